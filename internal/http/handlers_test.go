package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/realweather/forecast-service/internal/artifact"
	"github.com/realweather/forecast-service/internal/cache"
	"github.com/realweather/forecast-service/internal/health"
	"github.com/realweather/forecast-service/internal/loader"
	"github.com/realweather/forecast-service/internal/models"
	"github.com/realweather/forecast-service/internal/service"
)

type mockStore struct {
	rows []models.Reading
	err  error
}

func (m *mockStore) Append(ctx context.Context, r models.Reading) error { return m.err }

func (m *mockStore) Recent(ctx context.Context, limit int) ([]models.Reading, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > len(m.rows) {
		limit = len(m.rows)
	}
	return m.rows[len(m.rows)-limit:], nil
}

func testReadings(n int) []models.Reading {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	rows := make([]models.Reading, n)
	for i := range rows {
		rows[i] = models.Reading{
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
			City:        "Danang",
			Temperature: 28 + float64(i),
			Humidity:    70,
			WindSpeed:   8,
		}
	}
	return rows
}

func writeTestArtifact(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "weather_model.json")
	m := &artifact.Model{
		Intercept:    1,
		Coefficients: []float64{0.5, 0.1, -0.02},
		Features:     []string{"temperature", "hour", "humidity"},
		TrainedAt:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Rows:         100,
	}
	if err := m.Save(path, 0); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return path
}

// newTestHandler wires a Handler over a mock store, a real loader, and an
// in-memory cache. withModel controls whether an artifact exists.
func newTestHandler(t *testing.T, st *mockStore, withModel bool) *Handler {
	t.Helper()
	t.Cleanup(health.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "weather_model.json")
	if withModel {
		path = writeTestArtifact(t, dir)
	}
	ld := loader.New(path, nil)
	svc := service.NewForecastService(st, ld, cache.NewInMemoryCache(), time.Minute, 5)
	hc := &HealthConfig{
		OverloadWindow:       time.Minute,
		OverloadThresholdPct: 80,
		RateLimitRPS:         100,
		DegradedWindow:       time.Minute,
		DegradedErrorPct:     50,
	}
	return NewHandler(svc, ld, hc, zap.NewNop(), nil, 20, 1000)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body struct {
		Error map[string]string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestGetPrediction_Success(t *testing.T) {
	h := newTestHandler(t, &mockStore{rows: testReadings(3)}, true)

	rec := httptest.NewRecorder()
	h.GetPrediction(rec, httptest.NewRequest("GET", "/predict", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	var got models.Forecast
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.Status != "ok" {
		t.Errorf("Status = %q, want ok", got.Status)
	}
	if got.CurrentWeather.Temp != 30 {
		t.Errorf("CurrentWeather.Temp = %v, want 30", got.CurrentWeather.Temp)
	}
}

func TestGetPrediction_ModelUnavailable(t *testing.T) {
	h := newTestHandler(t, &mockStore{rows: testReadings(3)}, false)

	rec := httptest.NewRecorder()
	h.GetPrediction(rec, httptest.NewRequest("GET", "/predict", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := decodeError(t, rec)["code"]; got != "MODEL_UNAVAILABLE" {
		t.Errorf("error code = %q, want MODEL_UNAVAILABLE", got)
	}
}

func TestGetPrediction_NoData(t *testing.T) {
	h := newTestHandler(t, &mockStore{}, true)

	rec := httptest.NewRecorder()
	h.GetPrediction(rec, httptest.NewRequest("GET", "/predict", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := decodeError(t, rec)["code"]; got != "NO_DATA" {
		t.Errorf("error code = %q, want NO_DATA", got)
	}
}

func TestGetData_DefaultLimit(t *testing.T) {
	h := newTestHandler(t, &mockStore{rows: testReadings(3)}, true)

	rec := httptest.NewRecorder()
	h.GetData(rec, httptest.NewRequest("GET", "/data", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	var got models.DataResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.Status != "ok" || got.RowCount != 3 || len(got.Rows) != 3 {
		t.Errorf("response = (%q, %d, %d rows), want (ok, 3, 3 rows)", got.Status, got.RowCount, len(got.Rows))
	}
}

func TestGetData_ExplicitLimit(t *testing.T) {
	h := newTestHandler(t, &mockStore{rows: testReadings(5)}, true)

	rec := httptest.NewRecorder()
	h.GetData(rec, httptest.NewRequest("GET", "/data?limit=2", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got models.DataResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", got.RowCount)
	}
}

func TestGetData_InvalidLimit(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"not a number", "limit=abc"},
		{"zero", "limit=0"},
		{"negative", "limit=-3"},
		{"over max", "limit=1001"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, &mockStore{rows: testReadings(3)}, true)

			rec := httptest.NewRecorder()
			h.GetData(rec, httptest.NewRequest("GET", "/data?"+tc.query, nil))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decodeError(t, rec)["code"]; got != "INVALID_LIMIT" {
				t.Errorf("error code = %q, want INVALID_LIMIT", got)
			}
		})
	}
}

func TestGetData_WarehouseError(t *testing.T) {
	h := newTestHandler(t, &mockStore{err: errors.New("database locked")}, true)

	rec := httptest.NewRecorder()
	h.GetData(rec, httptest.NewRequest("GET", "/data", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := decodeError(t, rec)["code"]; got != "WAREHOUSE_UNAVAILABLE" {
		t.Errorf("error code = %q, want WAREHOUSE_UNAVAILABLE", got)
	}
}

func TestGetHealth_Healthy(t *testing.T) {
	h := newTestHandler(t, &mockStore{rows: testReadings(3)}, true)

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %q, want healthy", body.Status)
	}
	if body.Checks["model"] != "available" {
		t.Errorf("checks.model = %q, want available", body.Checks["model"])
	}
}

func TestGetHealth_MissingModelStaysHealthy(t *testing.T) {
	h := newTestHandler(t, &mockStore{rows: testReadings(3)}, false)

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 before first training run", rec.Code)
	}
	var body struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Checks["model"] != "unavailable" {
		t.Errorf("checks.model = %q, want unavailable", body.Checks["model"])
	}
}

func TestGetHealth_ShuttingDown(t *testing.T) {
	h := newTestHandler(t, &mockStore{rows: testReadings(3)}, true)
	health.SetShuttingDown(true)

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "shutting-down" {
		t.Errorf("status = %q, want shutting-down", body.Status)
	}
}

func TestGetHealth_WarehouseUnreachable(t *testing.T) {
	h := newTestHandler(t, &mockStore{rows: testReadings(3)}, true)
	h.healthConfig.WarehousePing = func() error { return errors.New("dial tcp: connection refused") }

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
	if body.Checks["warehouse"] != "unhealthy" {
		t.Errorf("checks.warehouse = %q, want unhealthy", body.Checks["warehouse"])
	}
}

func TestGetHealth_DegradedOnErrorRate(t *testing.T) {
	h := newTestHandler(t, &mockStore{rows: testReadings(3)}, true)
	for i := 0; i < 10; i++ {
		health.RecordPredictionError()
	}

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
