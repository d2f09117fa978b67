package ingestion

import (
	"context"
	"errors"
	"log/slog"

	"github.com/granhackaria/eventharvest/internal/models"
)

// Persister writes candidate events idempotently, keyed by source URL.
type Persister struct {
	repo     EventRepository
	recorder ErrorRecorder
	logger   *slog.Logger
}

// NewPersister creates a persister. recorder may be nil.
func NewPersister(repo EventRepository, recorder ErrorRecorder, logger *slog.Logger) *Persister {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Persister{repo: repo, recorder: recorder, logger: logger}
}

// Upsert stores event unless its source URL is already present. The first
// write wins; later ones are skipped without modifying the stored row.
func (p *Persister) Upsert(ctx context.Context, event *models.CandidateEvent) models.UpsertStatus {
	if !event.Persistable() {
		return models.UpsertSkipped
	}

	inserted, err := p.repo.InsertIgnoreDuplicate(ctx, *event)
	switch {
	case errors.Is(err, ErrDuplicate):
		return models.UpsertSkipped
	case err != nil:
		p.logger.Error("failed to insert event",
			"title", event.Title,
			"source_url", *event.SourceURL,
			"error", err,
		)
		p.recorder.RecordError(ctx, string(event.Source), models.ErrorTypePersistFailed, *event.SourceURL, err)
		return models.UpsertError
	case !inserted:
		p.logger.Debug("event already stored", "source_url", *event.SourceURL)
		return models.UpsertSkipped
	default:
		return models.UpsertInserted
	}
}
