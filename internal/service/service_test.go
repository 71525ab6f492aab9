package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/realweather/forecast-service/internal/artifact"
	"github.com/realweather/forecast-service/internal/cache"
	"github.com/realweather/forecast-service/internal/loader"
	"github.com/realweather/forecast-service/internal/models"
)

type mockStore struct {
	rows    []models.Reading
	err     error
	queries int
}

func (m *mockStore) Append(ctx context.Context, r models.Reading) error { return m.err }

func (m *mockStore) Recent(ctx context.Context, limit int) ([]models.Reading, error) {
	m.queries++
	if m.err != nil {
		return nil, m.err
	}
	if limit > len(m.rows) {
		limit = len(m.rows)
	}
	return m.rows[len(m.rows)-limit:], nil
}

func testReadings(temps []float64) []models.Reading {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	rows := make([]models.Reading, len(temps))
	for i, tmp := range temps {
		rows[i] = models.Reading{
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
			City:        "Danang",
			Temperature: tmp,
			Humidity:    70,
			WindSpeed:   8,
		}
	}
	return rows
}

// testLoader builds a loader over a real artifact written to a temp dir.
func testLoader(t *testing.T) *loader.Loader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weather_model.json")
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
	return loader.New(path, nil)
}

func TestRecent_CacheAside(t *testing.T) {
	st := &mockStore{rows: testReadings([]float64{28, 29, 30})}
	svc := NewForecastService(st, testLoader(t), cache.NewInMemoryCache(), time.Minute, 3)

	first, err := svc.Recent(context.Background(), 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("Recent() returned %d rows, want 3", len(first))
	}

	// Second call within TTL is served from cache, no warehouse query.
	if _, err := svc.Recent(context.Background(), 3); err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if st.queries != 1 {
		t.Errorf("warehouse queried %d times, want 1", st.queries)
	}
}

func TestRecent_DistinctLimitsAreDistinctEntries(t *testing.T) {
	st := &mockStore{rows: testReadings([]float64{28, 29, 30, 31})}
	svc := NewForecastService(st, testLoader(t), cache.NewInMemoryCache(), time.Minute, 3)

	if _, err := svc.Recent(context.Background(), 2); err != nil {
		t.Fatalf("Recent(2) error = %v", err)
	}
	if _, err := svc.Recent(context.Background(), 4); err != nil {
		t.Fatalf("Recent(4) error = %v", err)
	}
	if st.queries != 2 {
		t.Errorf("warehouse queried %d times, want 2 for distinct limits", st.queries)
	}
}

func TestRecent_WarehouseError(t *testing.T) {
	st := &mockStore{err: errors.New("database locked")}
	svc := NewForecastService(st, testLoader(t), cache.NewInMemoryCache(), time.Minute, 3)

	if _, err := svc.Recent(context.Background(), 3); err == nil {
		t.Error("Recent() error = nil, want warehouse error")
	}
}

func TestForecast_PredictsFromLatestReading(t *testing.T) {
	st := &mockStore{rows: testReadings([]float64{28, 29, 30})}
	svc := NewForecastService(st, testLoader(t), cache.NewInMemoryCache(), time.Minute, 3)

	got, err := svc.Forecast(context.Background())
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if got.Status != "ok" {
		t.Errorf("Status = %q, want ok", got.Status)
	}
	if got.CurrentWeather.Temp != 30 {
		t.Errorf("CurrentWeather.Temp = %v, want newest reading 30", got.CurrentWeather.Temp)
	}
	// Newest reading is at 11:00 UTC: 1 + 0.5*30 + 0.1*11 - 0.02*70.
	want := 1 + 0.5*30.0 + 0.1*11 - 0.02*70
	if diff := got.ForecastNext - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("ForecastNext = %v, want %v", got.ForecastNext, want)
	}
	if got.ModelTrainedAt.IsZero() {
		t.Error("ModelTrainedAt is zero")
	}
}

func TestForecast_NoReadings(t *testing.T) {
	st := &mockStore{}
	svc := NewForecastService(st, testLoader(t), cache.NewInMemoryCache(), time.Minute, 3)

	_, err := svc.Forecast(context.Background())
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Forecast() error = %v, want ErrNoData", err)
	}
}

func TestForecast_ModelUnavailable(t *testing.T) {
	st := &mockStore{rows: testReadings([]float64{28, 29})}
	ld := loader.New(filepath.Join(t.TempDir(), "missing.json"), nil)
	svc := NewForecastService(st, ld, cache.NewInMemoryCache(), time.Minute, 3)

	_, err := svc.Forecast(context.Background())
	if !errors.Is(err, loader.ErrModelUnavailable) {
		t.Errorf("Forecast() error = %v, want ErrModelUnavailable", err)
	}
}
