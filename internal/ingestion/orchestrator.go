package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/granhackaria/eventharvest/internal/models"
)

// LinkChecker runs one link-health batch. Implemented by linkhealth.Monitor.
type LinkChecker interface {
	CheckBatch(ctx context.Context, limit int) (models.LinkHealthResult, error)
}

// Orchestrator runs every source pipeline concurrently and isolates their
// failures from each other.
type Orchestrator struct {
	pipelines     []*SourcePipeline
	maxConcurrent int
	linkChecker   LinkChecker
	linkLimit     int
	observer      Observer
	logger        *slog.Logger
	now           func() time.Time
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLinkHealth runs one link-health batch of limit rows after ingestion.
func WithLinkHealth(checker LinkChecker, limit int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.linkChecker = checker
		o.linkLimit = limit
	}
}

// WithObserver reports per-source run durations.
func WithObserver(observer Observer) OrchestratorOption {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// NewOrchestrator creates an orchestrator. maxConcurrent below one runs the
// sources sequentially.
func NewOrchestrator(pipelines []*SourcePipeline, maxConcurrent int, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	o := &Orchestrator{
		pipelines:     pipelines,
		maxConcurrent: maxConcurrent,
		observer:      nopObserver{},
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Sources lists the configured source names in run order.
func (o *Orchestrator) Sources() []string {
	names := make([]string, 0, len(o.pipelines))
	for _, p := range o.pipelines {
		names = append(names, p.Name())
	}
	return names
}

// Run executes one ingestion pass. It always returns a summary: a source that
// errors or panics gets an error entry while the others complete.
func (o *Orchestrator) Run(ctx context.Context) models.RunSummary {
	summary := models.RunSummary{
		Sources:   make(map[string]models.SourceOutcome, len(o.pipelines)),
		Timestamp: models.RunWindow{Start: o.now().UTC()},
	}

	o.logger.Info("starting ingestion run", "sources", o.Sources())

	dedup := NewMemoryDeduplicator()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		semaphore = make(chan struct{}, o.maxConcurrent)
	)

	for _, pipeline := range o.pipelines {
		wg.Add(1)

		go func(p *SourcePipeline) {
			defer wg.Done()

			outcome := o.runOne(ctx, p, dedup, semaphore)

			mu.Lock()
			summary.Sources[p.Name()] = outcome
			mu.Unlock()
		}(pipeline)
	}

	wg.Wait()

	if o.linkChecker != nil {
		summary.LinkHealth = o.runLinkHealth(ctx)
	}

	summary.Timestamp.End = o.now().UTC()
	o.logger.Info("ingestion run finished",
		"duration", summary.Timestamp.End.Sub(summary.Timestamp.Start),
	)
	return summary
}

func (o *Orchestrator) runOne(ctx context.Context, p *SourcePipeline, dedup Deduplicator, semaphore chan struct{}) (outcome models.SourceOutcome) {
	select {
	case semaphore <- struct{}{}:
		defer func() { <-semaphore }()
	case <-ctx.Done():
		return models.SourceOutcome{Error: fmt.Sprintf("not run: %v", ctx.Err())}
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("source pipeline panicked", "source", p.Name(), "panic", r)
			outcome = models.SourceOutcome{Error: fmt.Sprintf("panic: %v", r)}
		}
		o.observer.ObserveSourceRun(p.Name(), outcome.Failed(), time.Since(start))
	}()

	result, err := p.Run(ctx, dedup)
	if err != nil {
		o.logger.Error("source ingestion failed", "source", p.Name(), "error", err)
		outcome.Error = err.Error()
		// Interrupted runs keep what they managed to do.
		if result.Total() > 0 || ctx.Err() != nil {
			outcome.PipelineResult = &result
		}
		return outcome
	}

	o.logger.Info("source result",
		"source", p.Name(),
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"errors", result.Errors,
	)
	return models.SourceOutcome{PipelineResult: &result}
}

func (o *Orchestrator) runLinkHealth(ctx context.Context) *models.LinkHealthOutcome {
	if err := ctx.Err(); err != nil {
		return &models.LinkHealthOutcome{Error: fmt.Sprintf("not run: %v", err)}
	}

	res, err := o.linkChecker.CheckBatch(ctx, o.linkLimit)
	if err != nil {
		o.logger.Warn("link health check interrupted", "checked", res.Checked, "error", err)
		return &models.LinkHealthOutcome{LinkHealthResult: &res, Error: err.Error()}
	}
	o.logger.Info("link health checked", "checked", res.Checked, "marked", res.Marked, "errors", res.Errors)
	return &models.LinkHealthOutcome{LinkHealthResult: &res}
}
