package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/granhackaria/eventharvest/internal/models"
)

const (
	defaultErrorListLimit = 100
	maxErrorListLimit     = 500
)

// IngestionErrorLister reads recorded soft failures.
type IngestionErrorLister interface {
	List(ctx context.Context, limit int, unresolvedOnly bool) ([]models.IngestionError, error)
}

// IngestionErrorHandler exposes the ingestion_errors table to operators.
type IngestionErrorHandler struct {
	repo   IngestionErrorLister
	logger *slog.Logger
}

func NewIngestionErrorHandler(repo IngestionErrorLister, logger *slog.Logger) *IngestionErrorHandler {
	return &IngestionErrorHandler{
		repo:   repo,
		logger: logger,
	}
}

// ListErrors returns recent ingestion errors.
// GET /api/ingestion-errors?limit=100&unresolved_only=true
func (h *IngestionErrorHandler) ListErrors(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusInternalServerError, "storage not configured")
		return
	}

	limit, err := parseLimit(r, defaultErrorListLimit, maxErrorListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	unresolvedOnly, err := parseBool(r, "unresolved_only")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.repo.List(r.Context(), limit, unresolvedOnly)
	if err != nil {
		h.logger.Error("failed to list ingestion errors", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list errors")
		return
	}
	if items == nil {
		items = []models.IngestionError{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"errors": items,
		"count":  len(items),
	})
}
