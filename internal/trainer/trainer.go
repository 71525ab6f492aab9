// Package trainer implements the retraining loop: pull the training window
// from the warehouse, fit a fresh model, and publish the artifact atomically
// so the API's hot-swap loader picks it up on its next request.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/realweather/forecast-service/internal/artifact"
	"github.com/realweather/forecast-service/internal/features"
	"github.com/realweather/forecast-service/internal/observability"
	"github.com/realweather/forecast-service/internal/store"
)

// Config holds trainer settings.
type Config struct {
	ArtifactPath string
	KeepVersions int
	MinRows      int // minimum training rows; runs with fewer are skipped
	RowLimit     int // newest rows pulled from the warehouse per run
}

// Trainer fits and publishes model artifacts from warehouse readings.
type Trainer struct {
	store  store.ReadingStore
	cfg    Config
	logger *zap.Logger
}

// NewTrainer creates a Trainer with the provided dependencies.
func NewTrainer(st store.ReadingStore, cfg Config, logger *zap.Logger) *Trainer {
	return &Trainer{store: st, cfg: cfg, logger: logger}
}

// RunOnce performs one training run. A run with too few target-bearing rows
// is skipped without error: the previous artifact stays live and the loader
// keeps serving it.
func (t *Trainer) RunOnce(ctx context.Context) error {
	start := time.Now()

	readings, err := t.store.Recent(ctx, t.cfg.RowLimit)
	if err != nil {
		observability.TrainingRunsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("query training rows: %w", err)
	}

	x, y := features.TrainingSet(features.Engineer(readings))
	model, err := artifact.Fit(x, y, features.Names, t.cfg.MinRows)
	if err != nil {
		if errors.Is(err, artifact.ErrNotEnoughData) {
			observability.TrainingRunsTotal.WithLabelValues("skipped").Inc()
			t.logger.Info("skipping training run",
				zap.Int("rows", len(x)),
				zap.Int("min_rows", t.cfg.MinRows))
			return nil
		}
		observability.TrainingRunsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("fit model: %w", err)
	}

	if err := model.Save(t.cfg.ArtifactPath, t.cfg.KeepVersions); err != nil {
		observability.TrainingRunsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("publish artifact: %w", err)
	}

	duration := time.Since(start)
	observability.TrainingRunsTotal.WithLabelValues("success").Inc()
	observability.TrainingDuration.Observe(duration.Seconds())
	observability.TrainingRowsLast.Set(float64(model.Rows))
	t.logger.Info("model trained",
		zap.String("artifact", t.cfg.ArtifactPath),
		zap.Int("rows", model.Rows),
		zap.Time("trained_at", model.TrainedAt),
		zap.Duration("duration", duration))
	return nil
}

// Run executes an immediate training run, then repeats at the given interval
// until ctx is cancelled. Run errors never stop the loop.
func (t *Trainer) Run(ctx context.Context, interval time.Duration) error {
	if err := t.RunOnce(ctx); err != nil {
		t.logger.Warn("training run failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.RunOnce(ctx); err != nil {
				t.logger.Warn("training run failed", zap.Error(err))
			}
		}
	}
}
