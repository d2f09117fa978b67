package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/granhackaria/eventharvest/internal/models"
	"golang.org/x/time/rate"
)

// Extractor turns one raw record into a candidate event, or nil.
type Extractor interface {
	Extract(ctx context.Context, rec models.RawRecord) (*models.CandidateEvent, error)
}

// Translator fills missing language variants in place. It must not fail.
type Translator interface {
	Ensure(ctx context.Context, event *models.CandidateEvent)
}

// Observer receives pipeline outcomes for metrics.
type Observer interface {
	ObserveRecord(source string, status models.UpsertStatus)
	ObserveSourceRun(source string, failed bool, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveRecord(string, models.UpsertStatus)     {}
func (nopObserver) ObserveSourceRun(string, bool, time.Duration) {}

// PipelineConfig tunes a SourcePipeline.
type PipelineConfig struct {
	// RecordDelay is the minimum spacing between records. Zero disables
	// pacing.
	RecordDelay time.Duration
}

// SourcePipeline runs one harvester through extraction, translation and
// persistence. Records are processed sequentially.
type SourcePipeline struct {
	harvester  Harvester
	extractor  Extractor
	translator Translator
	persister  *Persister
	recorder   ErrorRecorder
	observer   Observer
	logger     *slog.Logger
	config     PipelineConfig
}

// NewSourcePipeline creates a pipeline. translator, recorder and observer
// may be nil.
func NewSourcePipeline(
	harvester Harvester,
	extractor Extractor,
	translator Translator,
	persister *Persister,
	recorder ErrorRecorder,
	observer Observer,
	logger *slog.Logger,
	config PipelineConfig,
) *SourcePipeline {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &SourcePipeline{
		harvester:  harvester,
		extractor:  extractor,
		translator: translator,
		persister:  persister,
		recorder:   recorder,
		observer:   observer,
		logger:     logger.With("source", harvester.Name()),
		config:     config,
	}
}

// Name returns the harvester's source name.
func (p *SourcePipeline) Name() string {
	return p.harvester.Name()
}

// Run harvests and processes one batch. On cancellation it stops between
// records and returns the partial counts with the context error.
func (p *SourcePipeline) Run(ctx context.Context, dedup Deduplicator) (models.PipelineResult, error) {
	var result models.PipelineResult

	records, err := p.harvester.FetchRecent(ctx)
	if err != nil {
		return result, err
	}

	p.logger.Info("processing records", "count", len(records))

	var limiter *rate.Limiter
	if p.config.RecordDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(p.config.RecordDelay), 1)
	}

	var handled, failed []models.RawRecord
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			p.acknowledge(ctx, handled, failed)
			return result, fmt.Errorf("interrupted after %d records: %w", result.Total(), err)
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				p.acknowledge(ctx, handled, failed)
				return result, fmt.Errorf("interrupted after %d records: %w", result.Total(), err)
			}
		}

		status, retry := p.process(ctx, rec, dedup)
		result.Add(status)
		p.observer.ObserveRecord(p.Name(), status)

		handled = append(handled, rec)
		if retry {
			failed = append(failed, rec)
		}
	}
	p.acknowledge(ctx, handled, failed)

	p.logger.Info("source complete",
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"errors", result.Errors,
	)
	return result, nil
}

// acknowledge reports the handled batch to harvesters that track a fetch
// position. It runs even when the run context is already cancelled.
func (p *SourcePipeline) acknowledge(ctx context.Context, handled, failed []models.RawRecord) {
	ack, ok := p.harvester.(Acknowledger)
	if !ok || len(handled) == 0 {
		return
	}
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	ack.Acknowledge(ackCtx, handled, failed)
}

// process handles one record. retry reports a transient failure after which
// the record should be harvested again on a later run.
func (p *SourcePipeline) process(ctx context.Context, rec models.RawRecord, dedup Deduplicator) (status models.UpsertStatus, retry bool) {
	if rec.Platform == nil && strings.TrimSpace(rec.Text) == "" {
		p.logger.Debug("skipping record without text", "record", rec.ID)
		return models.UpsertSkipped, false
	}

	if dedup != nil && !dedup.Claim(rec) {
		p.logger.Debug("skipping record seen earlier in this run", "record", rec.ID, "url", rec.DedupKey())
		return models.UpsertSkipped, false
	}

	event, err := p.extractor.Extract(ctx, rec)
	if err != nil {
		p.logger.Warn("extraction failed, skipping record", "record", rec.ID, "error", err)
		p.recorder.RecordError(ctx, p.Name(), models.ErrorTypeExtractionFailed, rec.Permalink, err)
		return models.UpsertSkipped, true
	}
	if event == nil {
		p.logger.Debug("record is not an event", "record", rec.ID, "snippet", snippet(rec.Text, 80))
		return models.UpsertSkipped, false
	}

	fillFromRecord(event, rec)

	if !event.Persistable() {
		p.logger.Info("skipping event without date or source url",
			"record", rec.ID,
			"title", event.Title,
		)
		return models.UpsertSkipped, false
	}

	if p.translator != nil {
		p.translator.Ensure(ctx, event)
	}

	status = p.persister.Upsert(ctx, event)
	return status, status == models.UpsertError
}

// fillFromRecord supplies provenance the model cannot know.
func fillFromRecord(event *models.CandidateEvent, rec models.RawRecord) {
	if event.Source == "" {
		event.Source = rec.Source
	}
	if event.SourceURL == nil {
		event.SourceURL = models.StringPtr(rec.Permalink)
	}
	if event.ImageURL == nil {
		event.ImageURL = models.StringPtr(rec.ImageURL)
	}
}

func snippet(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
