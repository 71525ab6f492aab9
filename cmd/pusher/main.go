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

	"github.com/realweather/forecast-service/internal/circuitbreaker"
	"github.com/realweather/forecast-service/internal/client"
	"github.com/realweather/forecast-service/internal/config"
	"github.com/realweather/forecast-service/internal/ingest"
	"github.com/realweather/forecast-service/internal/observability"
	"github.com/realweather/forecast-service/internal/store"
)

func main() {
	once := flag.Bool("once", false, "run a single ingest cycle and exit")
	flag.Parse()

	logger, err := observability.NewLogger("pusher")
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

	weatherClient, err := client.NewOpenMeteoClientWithRetry(
		cfg.UpstreamURL,
		cfg.Latitude,
		cfg.Longitude,
		cfg.City,
		cfg.UpstreamTimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        "open_meteo",
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("open_meteo", to.String())
				observability.SetCircuitBreakerStateGauge("open_meteo", int(to))
			},
		})
		weatherClient.SetCircuitBreaker(cb)
		observability.SetCircuitBreakerStateGauge("open_meteo", 0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	pusher := ingest.NewPusher(weatherClient, warehouse, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := pusher.RunOnce(ctx); err != nil {
			logger.Error("ingest cycle failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	logger.Info("pusher starting", zap.Duration("interval", cfg.IngestInterval))
	if err := pusher.Run(ctx, cfg.IngestInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("pusher stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("pusher stopped")
}
