// Package ingest implements the pusher: the periodic loop that fetches one
// current-conditions reading from the upstream provider and appends it to the
// warehouse. A failed cycle is logged and skipped; the next tick retries.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/realweather/forecast-service/internal/client"
	"github.com/realweather/forecast-service/internal/observability"
	"github.com/realweather/forecast-service/internal/store"
)

// Pusher fetches readings from the upstream client and appends them to the store.
type Pusher struct {
	client client.WeatherClient
	store  store.ReadingStore
	logger *zap.Logger
}

// NewPusher creates a Pusher with the provided dependencies.
func NewPusher(c client.WeatherClient, st store.ReadingStore, logger *zap.Logger) *Pusher {
	return &Pusher{client: c, store: st, logger: logger}
}

// RunOnce performs one fetch-and-append cycle. The warehouse table is
// append-only: rows are never updated, so a retried cycle at the next tick
// simply writes a fresh row.
func (p *Pusher) RunOnce(ctx context.Context) error {
	start := time.Now()
	defer func() {
		observability.IngestCycleDuration.Observe(time.Since(start).Seconds())
	}()

	reading, err := p.client.FetchCurrent(ctx)
	if err != nil {
		observability.ReadingsPushedTotal.WithLabelValues("fetch_error").Inc()
		p.logger.Warn("fetch failed, skipping cycle", zap.Error(err))
		return fmt.Errorf("fetch current reading: %w", err)
	}

	if err := p.store.Append(ctx, reading); err != nil {
		observability.ReadingsPushedTotal.WithLabelValues("store_error").Inc()
		p.logger.Warn("append failed, skipping cycle", zap.Error(err))
		return fmt.Errorf("append reading: %w", err)
	}

	observability.ReadingsPushedTotal.WithLabelValues("success").Inc()
	p.logger.Info("reading pushed",
		zap.Time("timestamp", reading.Timestamp),
		zap.String("city", reading.City),
		zap.Float64("temperature", reading.Temperature),
		zap.Float64("humidity", reading.Humidity),
		zap.Float64("wind_speed", reading.WindSpeed))
	return nil
}

// Run executes an immediate cycle, then repeats at the given interval until
// ctx is cancelled. Cycle errors never stop the loop.
func (p *Pusher) Run(ctx context.Context, interval time.Duration) error {
	if err := p.RunOnce(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}
