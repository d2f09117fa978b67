// Package app assembles the ingestion service from configuration. Both the
// HTTP server and the CLI build their components here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/granhackaria/eventharvest/internal/bilingual"
	"github.com/granhackaria/eventharvest/internal/cache"
	"github.com/granhackaria/eventharvest/internal/config"
	"github.com/granhackaria/eventharvest/internal/database"
	"github.com/granhackaria/eventharvest/internal/extraction"
	"github.com/granhackaria/eventharvest/internal/inference"
	"github.com/granhackaria/eventharvest/internal/ingestion"
	"github.com/granhackaria/eventharvest/internal/linkhealth"
	"github.com/granhackaria/eventharvest/internal/llm"
	"github.com/granhackaria/eventharvest/internal/metrics"
)

const (
	pageImageTimeout = 8 * time.Second
	slowModelCall    = 30 * time.Second
)

// ErrStorageNotConfigured is returned when a component needs the events
// store and no database URL was given.
var ErrStorageNotConfigured = errors.New("storage not configured")

// Options adjusts Build.
type Options struct {
	// Sources restricts the run to these source names. Empty keeps the
	// configured selection.
	Sources []string
	// RequireStorage fails Build when the database is not configured.
	RequireStorage bool
}

// App holds the wired components. Storage-backed fields are nil when no
// database is configured.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.Collector

	DB           *sql.DB
	Events       *database.PostgresEventRepository
	Errors       *database.PostgresIngestionErrorRepository
	Provider     llm.Provider
	CallLog      *inference.Logger
	Normalizer   *bilingual.Normalizer
	LinkMonitor  *linkhealth.Monitor
	Orchestrator *ingestion.Orchestrator

	closers []func() error
}

// Build connects storage, runs migrations and wires every pipeline.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	collector, err := metrics.NewCollector()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: collector,
		CallLog: inference.NewLogger(logger, slowModelCall),
	}

	if len(opts.Sources) > 0 {
		a.Config.Pipeline.EnabledSources = opts.Sources
	}

	if !cfg.Database.Configured() {
		if opts.RequireStorage {
			return nil, ErrStorageNotConfigured
		}
		logger.Warn("database not configured, ingestion endpoints will be unavailable")
		return a, nil
	}

	logger.Info("connecting to database", "config", cfg.Database.Redacted())
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	logger.Info("database connected")

	if err := database.RunMigrations(ctx, db, database.Migrations(), logger); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a.Events = database.NewPostgresEventRepository(db)
	a.Errors = database.NewPostgresIngestionErrorRepository(db)

	provider, err := llm.NewFromConfig(cfg.Model, inference.Tee(collector, a.CallLog), logger)
	if err != nil {
		if !errors.Is(err, llm.ErrNoProvider) {
			a.Close()
			return nil, err
		}
		logger.Warn("no model provider configured, text and image records will be skipped")
	}
	a.Provider = provider
	a.Normalizer = bilingual.NewNormalizer(provider, cfg.Pipeline.Region, logger)

	a.LinkMonitor = linkhealth.NewMonitor(
		a.Events,
		linkhealth.NewChecker(nil, cfg.LinkHealth.Timeout, cfg.LinkHealth.UserAgent),
		collector,
		logger,
	)

	a.Orchestrator = a.buildOrchestrator(ctx)
	return a, nil
}

func (a *App) buildOrchestrator(ctx context.Context) *ingestion.Orchestrator {
	cfg := a.Config
	logger := a.Logger
	recorder := ingestion.NewStoreRecorder(a.Errors, logger)

	engine := extraction.NewEngine(
		a.Provider,
		extraction.NewHTTPImageFetcher(cfg.Pipeline.ImageFetchTimeout),
		extractionConfig(cfg.Pipeline),
		logger,
		extraction.WithPageImageFinder(extraction.NewHTTPPageImageFinder(pageImageTimeout)),
	)

	client := &http.Client{Timeout: cfg.Pipeline.HTTPTimeout}
	platformClient := &http.Client{Timeout: max(cfg.Pipeline.HTTPTimeout, cfg.Platform.Apify.Timeout)}

	harvesters := []ingestion.Harvester{
		ingestion.NewSocialHarvester(cfg.Social, client, recorder, logger),
		ingestion.NewChatHarvester(cfg.Chat, client, a.cursorStore(ctx), recorder, logger),
		ingestion.NewPlatformHarvester(cfg.Platform, platformClient, recorder, logger),
	}

	persister := ingestion.NewPersister(a.Events, recorder, logger)
	var pipelines []*ingestion.SourcePipeline
	for _, h := range harvesters {
		if !cfg.Pipeline.SourceEnabled(h.Name()) {
			logger.Info("source disabled", "source", h.Name())
			continue
		}
		pipelines = append(pipelines, ingestion.NewSourcePipeline(
			h, engine, a.Normalizer, persister, recorder, a.Metrics, logger,
			ingestion.PipelineConfig{RecordDelay: cfg.Pipeline.RecordDelay},
		))
	}

	opts := []ingestion.OrchestratorOption{ingestion.WithObserver(a.Metrics)}
	if cfg.LinkHealth.RunAfterIngest {
		opts = append(opts, ingestion.WithLinkHealth(a.LinkMonitor, cfg.LinkHealth.BatchSize))
	}

	return ingestion.NewOrchestrator(pipelines, cfg.Pipeline.MaxConcurrentSources, logger, opts...)
}

// cursorStore prefers Valkey so the chat cursor survives restarts, and falls
// back to process memory when Valkey is absent or unreachable.
func (a *App) cursorStore(ctx context.Context) ingestion.CursorStore {
	if a.Config.Cache.ValkeyAddr == "" {
		return ingestion.NewMemoryCursorStore()
	}

	store, err := cache.NewValkeyCursorStore(ctx, a.Config.Cache, a.Logger)
	if err != nil {
		a.Logger.Warn("valkey unavailable, using in-memory cursors", "error", err)
		return ingestion.NewMemoryCursorStore()
	}
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return store
}

func extractionConfig(cfg config.PipelineConfig) extraction.Config {
	out := extraction.DefaultConfig()
	if cfg.MinTextLength > 0 {
		out.MinTextLength = cfg.MinTextLength
	}
	if cfg.DefaultLocation != "" {
		out.DefaultLocation = cfg.DefaultLocation
	}
	if cfg.Region != "" {
		out.Region = cfg.Region
	}
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			out.Location = loc
		}
	}
	return out
}

// HealthCheck pings storage. It is nil when no database is configured.
func (a *App) HealthCheck() func(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return database.HealthCheck(ctx, a.DB)
	}
}

// PoolStats reports connection pool counters. It is nil when no database is
// configured.
func (a *App) PoolStats() func() map[string]any {
	if a.DB == nil {
		return nil
	}
	return func() map[string]any {
		return database.Stats(a.DB)
	}
}

// Close releases storage and cache connections in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
