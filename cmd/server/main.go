package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/granhackaria/eventharvest/internal/api"
	"github.com/granhackaria/eventharvest/internal/app"
	"github.com/granhackaria/eventharvest/internal/config"
	"github.com/granhackaria/eventharvest/internal/ingestion"
	"github.com/granhackaria/eventharvest/internal/logging"
	"github.com/granhackaria/eventharvest/internal/scheduler"
	"github.com/granhackaria/eventharvest/internal/server"
)

func main() {
	// .env.local wins over .env; real environment variables win over both.
	for _, f := range []string{".env.local", ".env"} {
		_ = godotenv.Load(f)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting eventharvest")

	a, err := app.Build(context.Background(), cfg, logger, app.Options{})
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if cfg.Cron.Secret == "" {
		logger.Warn("CRON_SECRET is not set, scheduler endpoints are unauthenticated")
	}

	// Typed nils must not reach the handler's storage checks.
	var runner api.IngestRunner
	var links ingestion.LinkChecker
	var errorLister api.IngestionErrorLister
	if a.Orchestrator != nil {
		runner = a.Orchestrator
		links = a.LinkMonitor
		errorLister = a.Errors
		logger.Info("ingestion sources", "sources", a.Orchestrator.Sources())
	}

	mux := http.NewServeMux()
	api.SetupRoutes(mux, api.Routes{
		Cron: api.NewCronHandler(runner, links, api.CronSettings{
			IngestTimeout:   cfg.Cron.IngestTimeout,
			MarkGoneTimeout: cfg.Cron.MarkGoneTimeout,
			BatchSize:       cfg.LinkHealth.BatchSize,
		}, logger),
		Errors:     api.NewIngestionErrorHandler(errorLister, logger),
		Health:     a.HealthCheck(),
		PoolStats:  a.PoolStats(),
		Metrics:    a.Metrics.Handler(),
		CronSecret: cfg.Cron.Secret,
		Instrument: a.Metrics.InstrumentHandler,
	}, logger)

	if a.LinkMonitor != nil && cfg.LinkHealth.Interval > 0 {
		linkScheduler := scheduler.NewLinkHealthScheduler(
			a.LinkMonitor,
			cfg.LinkHealth.Interval,
			cfg.LinkHealth.BatchSize,
			cfg.Cron.MarkGoneTimeout,
			logger,
		)
		go linkScheduler.Start(context.Background())
		defer linkScheduler.Stop()
	}

	srv := server.New(cfg.Server, logger, mux)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
}
