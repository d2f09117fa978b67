package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/granhackaria/eventharvest/internal/ingestion"
	"github.com/granhackaria/eventharvest/internal/linkhealth"
	"github.com/granhackaria/eventharvest/internal/models"
)

// IngestRunner executes one full ingestion pass. Implemented by
// ingestion.Orchestrator.
type IngestRunner interface {
	Run(ctx context.Context) models.RunSummary
}

// CronSettings bounds the scheduler-triggered jobs.
type CronSettings struct {
	IngestTimeout   time.Duration
	MarkGoneTimeout time.Duration
	BatchSize       int
}

// MarkGoneResponse is the body of /api/cron/mark-gone.
type MarkGoneResponse struct {
	*models.LinkHealthResult
	Error     string           `json:"error,omitempty"`
	Timestamp models.RunWindow `json:"timestamp"`
}

// CronHandler serves the scheduler entry points. A nil runner or checker
// means storage is not configured.
type CronHandler struct {
	runner   IngestRunner
	links    ingestion.LinkChecker
	settings CronSettings
	logger   *slog.Logger
	now      func() time.Time
}

func NewCronHandler(runner IngestRunner, links ingestion.LinkChecker, settings CronSettings, logger *slog.Logger) *CronHandler {
	if settings.BatchSize <= 0 {
		settings.BatchSize = linkhealth.DefaultBatchSize
	}
	return &CronHandler{
		runner:   runner,
		links:    links,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest runs every configured source and returns the per-source summary.
// GET|POST /api/cron/ingest
func (h *CronHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, http.StatusInternalServerError, "storage not configured")
		return
	}

	ctx, cancel := withOptionalTimeout(r.Context(), h.settings.IngestTimeout)
	defer cancel()

	h.logger.Info("cron ingest started")
	summary := h.runner.Run(ctx)
	h.logger.Info("cron ingest finished", "sources", len(summary.Sources), "duration", summary.Timestamp.End.Sub(summary.Timestamp.Start))

	writeJSON(w, http.StatusOK, summary)
}

// MarkGone checks one batch of source links. An interrupted batch still
// answers 200 with the partial counts and the error.
// GET|POST /api/cron/mark-gone
func (h *CronHandler) MarkGone(w http.ResponseWriter, r *http.Request) {
	if h.links == nil {
		writeError(w, http.StatusInternalServerError, "storage not configured")
		return
	}

	ctx, cancel := withOptionalTimeout(r.Context(), h.settings.MarkGoneTimeout)
	defer cancel()

	start := h.now().UTC()
	result, err := h.links.CheckBatch(ctx, h.settings.BatchSize)
	resp := MarkGoneResponse{
		LinkHealthResult: &result,
		Timestamp:        models.RunWindow{Start: start, End: h.now().UTC()},
	}

	if err != nil {
		h.logger.Warn("cron mark-gone interrupted", "error", err, "checked", result.Checked)
		resp.Error = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}

	h.logger.Info("cron mark-gone finished", "checked", result.Checked, "marked", result.Marked, "errors", result.Errors)
	writeJSON(w, http.StatusOK, resp)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
