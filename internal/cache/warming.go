package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/realweather/forecast-service/internal/models"
	"github.com/realweather/forecast-service/internal/observability"
)

// RecentFetcher is implemented by the service layer to fetch the most recent
// readings for a row limit. Used by CacheWarmer to avoid a circular dependency
// on the service package.
type RecentFetcher interface {
	Recent(ctx context.Context, limit int) ([]models.Reading, error)
}

// CacheWarmer warms the cache by prefetching recent readings for a list of
// row limits, typically the default /data limit and the training window.
type CacheWarmer struct {
	fetcher RecentFetcher
	logger  *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer that uses the given fetcher and logger.
func NewCacheWarmer(fetcher RecentFetcher, logger *zap.Logger) *CacheWarmer {
	return &CacheWarmer{fetcher: fetcher, logger: logger}
}

// Warm fetches recent readings for each limit concurrently and populates the
// cache via the fetcher. Returns an error if any limit failed (aggregated).
func (w *CacheWarmer) Warm(ctx context.Context, limits []int) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("limits", len(limits)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(limits))
	for _, limit := range limits {
		limit := limit
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.fetcher.Recent(ctx, limit)
			if err != nil {
				errCh <- fmt.Errorf("warm limit %d: %w", limit, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("cache warming complete", zap.Int("limits", len(limits)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %v", errs)
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval until ctx is done.
func (w *CacheWarmer) WarmPeriodic(ctx context.Context, limits []int, interval time.Duration) error {
	if err := w.Warm(ctx, limits); err != nil && w.logger != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, limits); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
