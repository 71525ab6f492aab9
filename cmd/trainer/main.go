package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/realweather/forecast-service/internal/config"
	"github.com/realweather/forecast-service/internal/observability"
	"github.com/realweather/forecast-service/internal/store"
	"github.com/realweather/forecast-service/internal/trainer"
)

func main() {
	once := flag.Bool("once", false, "run a single training run and exit")
	flag.Parse()

	logger, err := observability.NewLogger("trainer")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	warehouse, err := store.Open(cfg.WarehouseDSN, cfg.WarehouseTable)
	if err != nil {
		logger.Fatal("warehouse", zap.Error(err))
	}
	defer func() {
		if err := warehouse.Close(); err != nil {
			logger.Error("warehouse close", zap.Error(err))
		}
	}()

	t := trainer.NewTrainer(warehouse, trainer.Config{
		ArtifactPath: cfg.ArtifactPath,
		KeepVersions: cfg.KeepVersions,
		MinRows:      cfg.MinTrainingRows,
		RowLimit:     cfg.TrainingRowLimit,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := t.RunOnce(ctx); err != nil {
			logger.Error("training run failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	logger.Info("trainer starting",
		zap.Duration("interval", cfg.TrainingInterval),
		zap.String("artifact", cfg.ArtifactPath))
	if err := t.Run(ctx, cfg.TrainingInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("trainer stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("trainer stopped")
}
