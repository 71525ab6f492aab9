package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/realweather/forecast-service/internal/health"
	"github.com/realweather/forecast-service/internal/loader"
	"github.com/realweather/forecast-service/internal/models"
	"github.com/realweather/forecast-service/internal/service"
	"github.com/realweather/forecast-service/internal/validation"
)

// HealthConfig holds thresholds and dependency probes for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	RateLimitBurst       int // 0 when rate limiter disabled
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	// WarehousePing, when set, is called to check warehouse reachability.
	WarehousePing func() error
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	forecastService  *service.ForecastService
	loader           *loader.Loader
	healthConfig     *HealthConfig
	logger           *zap.Logger
	rateLimiter      *rate.Limiter
	dataDefaultLimit int
	dataMaxLimit     int
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. dataDefaultLimit and dataMaxLimit bound
// the /data limit query parameter.
func NewHandler(
	forecastService *service.ForecastService,
	ld *loader.Loader,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	rateLimiter *rate.Limiter,
	dataDefaultLimit, dataMaxLimit int,
) *Handler {
	return &Handler{
		forecastService:  forecastService,
		loader:           ld,
		healthConfig:     healthConfig,
		logger:           logger,
		rateLimiter:      rateLimiter,
		dataDefaultLimit: dataDefaultLimit,
		dataMaxLimit:     dataMaxLimit,
	}
}

// GetPrediction handles GET /predict.
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	result, err := h.forecastService.Forecast(r.Context())
	if err != nil {
		health.RecordPredictionError()
		writeForecastError(w, r, err)
		return
	}
	health.RecordPredictionSuccess()
	writeJSON(w, http.StatusOK, result)
}

// GetData handles GET /data?limit=N.
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	limit, err := validation.ValidateLimit(r.URL.Query().Get("limit"), h.dataDefaultLimit, h.dataMaxLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LIMIT", err.Error())
		return
	}

	rows, err := h.forecastService.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "WAREHOUSE_UNAVAILABLE", "Unable to read recent readings")
		if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
			logger.Debug("warehouse error", zap.Error(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, models.DataResponse{
		Status:   "ok",
		RowCount: len(rows),
		Rows:     rows,
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if _, err := h.loader.Get(); err != nil {
		checks["model"] = "unavailable"
	} else {
		checks["model"] = "available"
	}
	if h.healthConfig != nil && h.healthConfig.WarehousePing != nil {
		if h.healthConfig.WarehousePing() == nil {
			checks["warehouse"] = "healthy"
		} else {
			checks["warehouse"] = "unhealthy"
		}
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "forecast-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus determines the current health status by evaluating
// conditions in priority order: shutting-down > warehouse down > overloaded >
// degraded > healthy. A missing model does not fail the probe on its own;
// the API can serve /data while waiting for the first training run.
func (h *Handler) computeHealthStatus() healthResult {
	if health.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.healthConfig.WarehousePing != nil {
		if err := h.healthConfig.WarehousePing(); err != nil {
			return healthResult{"degraded", http.StatusServiceUnavailable, "warehouse_unreachable"}
		}
	}
	if h.healthConfig.RateLimitRPS > 0 && h.healthConfig.OverloadWindow > 0 {
		threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
		if float64(health.RequestCount(h.healthConfig.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := health.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errs) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
// Sets Content-Type header to application/json and encodes the provided value.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeForecastError maps forecast failures to stable error codes. The
// underlying error is logged at DEBUG level, never echoed to the client.
func writeForecastError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, loader.ErrModelUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "MODEL_UNAVAILABLE", "No trained model is available yet")
	case errors.Is(err, service.ErrNoData):
		writeError(w, r, http.StatusServiceUnavailable, "NO_DATA", "No readings available to forecast from")
	default:
		writeError(w, r, http.StatusServiceUnavailable, "FORECAST_FAILED", "Unable to produce a forecast")
	}
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("forecast error", zap.Error(err))
	}
}
