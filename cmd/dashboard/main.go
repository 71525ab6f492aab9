package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/realweather/forecast-service/internal/config"
	"github.com/realweather/forecast-service/internal/dashboard"
	"github.com/realweather/forecast-service/internal/observability"
)

func main() {
	logger, err := observability.NewLogger("dashboard")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	server, err := dashboard.NewServer(
		cfg.PredictAPIURL,
		cfg.DashboardTimeout,
		cfg.DashboardRefreshInterval,
		cfg.DataDefaultLimit,
		logger,
	)
	if err != nil {
		logger.Fatal("dashboard", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.DashboardPort,
		Handler:      server,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("dashboard starting",
			zap.String("addr", ":"+cfg.DashboardPort),
			zap.String("api_url", cfg.PredictAPIURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("dashboard server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
