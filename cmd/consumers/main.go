package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tripmate/cmd/consumers/jobs"
	"tripmate/internal/cache"
	"tripmate/internal/config"
	"tripmate/internal/consumers"
	"tripmate/internal/external"
	"tripmate/internal/logger"
	"tripmate/internal/metrics"
	"tripmate/internal/service"
	"tripmate/internal/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	slog.Info("Starting consumers service...")

	// Override NATS client ID for consumers
	cfg.NATS.ClientID = "tripmate-consumers"
	cfg.Tracing.ServiceName += "-consumers"

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", "error", err)
	}

	// Create and start consumers
	consumerService, err := consumers.NewConsumerService(cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	registry := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics()
	if err := appMetrics.Register(registry); err != nil {
		logger.Fatal("Failed to register metrics", "error", err)
	}

	services := service.NewServices(service.Deps{
		Store:     consumerService.Repositories(),
		Publisher: consumerService.NATS(),
		Gateway:   external.NewPaymentClient(cfg.Payment),
		Metrics:   appMetrics,
	})

	// Redis lock is optional; without it every replica sweeps
	var locker jobs.Locker
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, sweep runs without a lock", "error", err)
	} else {
		defer redisClient.Close()
		locker = cache.NewLocker(redisClient)
	}

	sweepJob := jobs.NewTripSweepJob(services.Sweeper, locker, cfg.Sweep.Interval, cfg.Sweep.LockTTL)
	sweepJob.Start(ctx)

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.ConsumersMetricsPort,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	slog.Info("Consumers service started successfully")

	// Wait for interrupt signal to gracefully shutdown
	<-ctx.Done()

	slog.Info("Shutting down consumers service...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sweepJob.Stop()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error stopping metrics server", "error", err)
	}
	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error shutting down tracing", "error", err)
	}

	slog.Info("Consumers service stopped")
}
