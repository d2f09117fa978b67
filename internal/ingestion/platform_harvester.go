package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/granhackaria/eventharvest/internal/config"
	"github.com/granhackaria/eventharvest/internal/models"
)

// PlatformTransport fetches structured listings from an event platform.
type PlatformTransport interface {
	Name() string
	Fetch(ctx context.Context) ([]models.PlatformEvent, error)
}

// PlatformHarvester yields event platform listings through whichever
// transport has credentials: OAuth GraphQL first, then the scraper.
type PlatformHarvester struct {
	transport PlatformTransport
	recorder  ErrorRecorder
	logger    *slog.Logger
}

// NewPlatformHarvester selects a transport from cfg. With neither
// configured, FetchRecent returns ErrPlatformNotConfigured.
func NewPlatformHarvester(cfg config.PlatformConfig, client *http.Client, recorder ErrorRecorder, logger *slog.Logger) *PlatformHarvester {
	var transport PlatformTransport
	switch {
	case cfg.OAuthConfigured():
		transport = NewGraphQLTransport(cfg, NewTokenCache(cfg, client), client)
	case cfg.ApifyConfigured():
		transport = NewApifyTransport(cfg.Apify, client)
	}
	return NewPlatformHarvesterWithTransport(transport, recorder, logger)
}

// NewPlatformHarvesterWithTransport wires an explicit transport, which may
// be nil.
func NewPlatformHarvesterWithTransport(transport PlatformTransport, recorder ErrorRecorder, logger *slog.Logger) *PlatformHarvester {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &PlatformHarvester{
		transport: transport,
		recorder:  recorder,
		logger:    logger.With("source", string(models.SourceMeetup)),
	}
}

// Name implements Harvester.
func (h *PlatformHarvester) Name() string {
	return string(models.SourceMeetup)
}

// FetchRecent implements Harvester.
func (h *PlatformHarvester) FetchRecent(ctx context.Context) ([]models.RawRecord, error) {
	if h.transport == nil {
		return nil, ErrPlatformNotConfigured
	}

	events, err := h.transport.Fetch(ctx)
	if err != nil {
		h.logger.Error("platform fetch failed", "transport", h.transport.Name(), "error", err)
		h.recorder.RecordError(ctx, h.Name(), platformErrorType(err), h.transport.Name(), err)
		return nil, nil
	}

	records := make([]models.RawRecord, 0, len(events))
	for i := range events {
		pe := events[i]
		records = append(records, models.RawRecord{
			ID:        pe.ID,
			Source:    models.SourceForPlatform(pe.Platform),
			Text:      pe.Title,
			ImageURL:  pe.ImageURL,
			Permalink: pe.EventURL,
			Author:    pe.GroupName,
			PostedAt:  pe.StartsAt,
			Platform:  &pe,
		})
	}

	h.logger.Info("fetched platform events", "transport", h.transport.Name(), "count", len(records))
	return records, nil
}

func platformErrorType(err error) models.IngestionErrorType {
	if errors.Is(err, ErrUnauthorized) {
		return models.ErrorTypeAuthFailed
	}
	var se *StatusError
	if errors.As(err, &se) {
		return classifyStatus(se.StatusCode)
	}
	return models.ErrorTypeFetchFailed
}
