package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/realweather/forecast-service/internal/cache"
	"github.com/realweather/forecast-service/internal/features"
	"github.com/realweather/forecast-service/internal/loader"
	"github.com/realweather/forecast-service/internal/models"
	"github.com/realweather/forecast-service/internal/observability"
	"github.com/realweather/forecast-service/internal/store"
)

// ErrNoData is returned by Forecast when the warehouse holds no readings yet.
var ErrNoData = errors.New("no readings available")

// ForecastService orchestrates warehouse reads and model inference. Recent
// uses a cache-aside pattern over the warehouse; Forecast runs the hot-swap
// loader's current model on the newest reading.
type ForecastService struct {
	store      store.ReadingStore
	loader     *loader.Loader
	cache      cache.Cache
	ttl        time.Duration
	windowRows int
}

// NewForecastService creates a ForecastService with the provided dependencies.
// ttl is the cache expiration for recent-readings lookups; windowRows is how
// many trailing rows Forecast pulls to build the inference feature vector.
func NewForecastService(st store.ReadingStore, ld *loader.Loader, c cache.Cache, ttl time.Duration, windowRows int) *ForecastService {
	if windowRows < 2 {
		windowRows = 2
	}
	return &ForecastService{
		store:      st,
		loader:     ld,
		cache:      c,
		ttl:        ttl,
		windowRows: windowRows,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// Recent returns the newest limit readings in ascending timestamp order,
// using cache-aside: cache hit short-circuits, miss falls through to the
// warehouse and populates the cache on success.
func (s *ForecastService) Recent(ctx context.Context, limit int) ([]models.Reading, error) {
	key := fmt.Sprintf("recent:%d", limit)
	logger := loggerFromContext(ctx)

	getStart := time.Now()
	cached, ok, err := s.cache.Get(ctx, key)
	getDuration := time.Since(getStart).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(getDuration)
	} else if ok {
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
		observability.CacheHitsTotal.WithLabelValues("readings").Inc()
		if logger != nil {
			logger.Debug("cache hit", zap.String("key", key))
		}
		return cached, nil
	}

	if logger != nil {
		logger.Debug("cache miss, querying warehouse", zap.String("key", key))
	}

	rows, err := s.store.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent readings: %w", err)
	}

	setStart := time.Now()
	if setErr := s.cache.Set(ctx, key, rows, s.ttl); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(setErr)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(setStart).Seconds())
		if logger != nil {
			logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
		}
	} else {
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(setStart).Seconds())
	}
	return rows, nil
}

// Forecast predicts the next temperature from the newest reading using the
// currently loaded model. The loader refreshes its handle on every call, so a
// freshly trained artifact is picked up without a restart.
func (s *ForecastService) Forecast(ctx context.Context) (models.Forecast, error) {
	start := time.Now()
	logger := loggerFromContext(ctx)

	rows, err := s.Recent(ctx, s.windowRows)
	if err != nil {
		observability.PredictionsTotal.WithLabelValues("error").Inc()
		return models.Forecast{}, err
	}
	latest, ok := features.Latest(features.Engineer(rows))
	if !ok {
		observability.PredictionsTotal.WithLabelValues("no_data").Inc()
		return models.Forecast{}, ErrNoData
	}

	model, err := s.loader.Get()
	if err != nil {
		observability.PredictionsTotal.WithLabelValues("model_unavailable").Inc()
		return models.Forecast{}, err
	}

	next, err := model.Predict(latest.Vector())
	if err != nil {
		observability.PredictionsTotal.WithLabelValues("error").Inc()
		return models.Forecast{}, fmt.Errorf("predict: %w", err)
	}

	observability.PredictionsTotal.WithLabelValues("success").Inc()
	observability.PredictionDuration.Observe(time.Since(start).Seconds())
	if logger != nil {
		logger.Debug("forecast served",
			zap.Float64("current_temp", latest.Reading.Temperature),
			zap.Float64("forecast_next", next),
			zap.Time("trained_at", model.TrainedAt),
			zap.Duration("duration", time.Since(start)))
	}

	return models.Forecast{
		Status: "ok",
		CurrentWeather: models.CurrentWeather{
			Temp: latest.Reading.Temperature,
		},
		ForecastNext:   next,
		ModelTrainedAt: model.TrainedAt,
	}, nil
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}
