package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/sirupsen/logrus"

	"github.com/mkarlsen/roomsense/internal/config"
	"github.com/mkarlsen/roomsense/internal/influx"
	"github.com/mkarlsen/roomsense/internal/models"
	"github.com/mkarlsen/roomsense/internal/scheduler"
	"github.com/mkarlsen/roomsense/internal/server"
)

// Command roomsense serves AHT10 sensor telemetry stored in InfluxDB over a
// small read-only HTTP API.
//
// The service supports:
//   - Current, span ("last 30m") and explicit-range queries
//   - Temperature-only, humidity-only and combined (incl. CO2) series
//   - Windowed mean aggregation scaled to the requested span
//   - Bearer-password protected routes with static file fallback
//   - Prometheus metrics and a periodic store health probe
//
// All configuration is read from the environment (or a .env file); see
// internal/config for the supported keys.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.Logging)

	influxClient := influxdb2.NewClient(cfg.Influx.Host, cfg.Influx.Token)
	defer influxClient.Close()

	queryClient := influx.NewClient(
		influxClient.QueryAPI(cfg.Influx.Org),
		cfg.Influx.Bucket,
		cfg.Influx.Measurement,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	warmup(ctx, queryClient, logger)

	sched := scheduler.NewScheduler(ctx, influxClient, logger)
	if err := sched.Start(); err != nil {
		logger.Fatalf("Failed to start store health scheduler: %v", err)
	}
	defer sched.Stop()

	app, err := server.Setup(server.Options{
		Client:         queryClient,
		Logger:         logger,
		Password:       cfg.Server.Password,
		StaticDir:      cfg.Server.StaticDir,
		CacheSize:      cfg.Server.CacheSize,
		RateLimit:      cfg.Server.RateLimit,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})
	if err != nil {
		logger.Fatalf("Failed to set up server: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"port":   cfg.Server.Port,
		"bucket": cfg.Influx.Bucket,
	}).Info("Starting server")

	go func() {
		if err := app.Listen(fmt.Sprintf("[::]:%d", cfg.Server.Port)); err != nil {
			logger.WithError(err).Error("Server stopped")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("Gracefully stopping server")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during shutdown")
	}
}

// warmup issues one latest-value lookup and one small span query at boot so
// a misconfigured store surfaces in the logs immediately instead of on the
// first user request. Failures are logged, not fatal: the sensor being
// offline at boot is not a reason to refuse to serve history.
func warmup(ctx context.Context, client *influx.Client, logger *logrus.Logger) {
	warmCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if sample := client.LatestScalar(warmCtx, models.FieldTemperature); sample == nil {
		logger.Warn("No current temperature reading at startup")
	}

	bounds, window, err := influx.PlanSpan(1000 * time.Second)
	if err == nil {
		_, err = client.ScalarSeries(warmCtx, models.FieldTemperature, bounds, window)
	}
	if err != nil {
		logger.WithError(err).Warn("Startup range probe failed")
	}
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
