package bilingual

import (
	"context"
	"fmt"

	"github.com/granhackaria/eventharvest/internal/models"
)

// Store is the slice of event storage the backfill needs.
type Store interface {
	ListMissingTranslations(ctx context.Context, limit int) ([]models.PersistedEvent, error)
	UpdateTranslations(ctx context.Context, id string, t models.Translation) error
}

// BackfillResult counts backfill outcomes.
type BackfillResult struct {
	Found    int `json:"found"`
	Migrated int `json:"migrated"`
	Errors   int `json:"errors"`
}

// Backfill translates up to limit stored events that lack a title variant.
// Rows are processed one at a time; a failed row is counted and skipped.
func (n *Normalizer) Backfill(ctx context.Context, store Store, limit int) (BackfillResult, error) {
	var result BackfillResult

	rows, err := store.ListMissingTranslations(ctx, limit)
	if err != nil {
		return result, fmt.Errorf("list untranslated events: %w", err)
	}
	result.Found = len(rows)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		t, err := n.Translate(ctx, row.Title, row.Description)
		if err != nil {
			n.logger.Warn("backfill translation failed", "event_id", row.ID, "error", err)
			result.Errors++
			continue
		}

		if err := store.UpdateTranslations(ctx, row.ID, *t); err != nil {
			n.logger.Warn("backfill update failed", "event_id", row.ID, "error", err)
			result.Errors++
			continue
		}
		result.Migrated++
	}

	n.logger.Info("bilingual backfill complete",
		"found", result.Found,
		"migrated", result.Migrated,
		"errors", result.Errors)

	return result, nil
}
