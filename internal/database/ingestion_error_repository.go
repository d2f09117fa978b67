package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/granhackaria/eventharvest/internal/models"
)

// PostgresIngestionErrorRepository stores soft harvest failures in the
// ingestion_errors table.
type PostgresIngestionErrorRepository struct {
	db *sql.DB
}

// NewPostgresIngestionErrorRepository creates a new PostgreSQL-based ingestion error repository.
func NewPostgresIngestionErrorRepository(db *sql.DB) *PostgresIngestionErrorRepository {
	return &PostgresIngestionErrorRepository{db: db}
}

// Store implements ingestion.IngestionErrorStore.
func (r *PostgresIngestionErrorRepository) Store(ctx context.Context, e models.IngestionError) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Metadata == "" {
		e.Metadata = "{}"
	}

	query := `
		INSERT INTO ingestion_errors (id, platform, error_type, url, error_msg, metadata, created_at, resolved, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			error_msg = EXCLUDED.error_msg,
			metadata = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at
	`

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.Platform,
		e.ErrorType,
		e.URL,
		e.ErrorMsg,
		e.Metadata,
		e.CreatedAt,
		e.Resolved,
		e.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store ingestion error: %w", err)
	}
	return nil
}

// List retrieves the most recent ingestion errors.
func (r *PostgresIngestionErrorRepository) List(ctx context.Context, limit int, unresolvedOnly bool) ([]models.IngestionError, error) {
	query := `
		SELECT id, platform, error_type, url, error_msg, metadata, created_at, resolved, resolved_at
		FROM ingestion_errors
	`
	if unresolvedOnly {
		query += " WHERE resolved = FALSE"
	}
	query += " ORDER BY created_at DESC LIMIT $1"

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingestion errors: %w", err)
	}
	defer rows.Close()

	var out []models.IngestionError
	for rows.Next() {
		var (
			e          models.IngestionError
			metadata   sql.NullString
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(
			&e.ID,
			&e.Platform,
			&e.ErrorType,
			&e.URL,
			&e.ErrorMsg,
			&metadata,
			&e.CreatedAt,
			&e.Resolved,
			&resolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion error: %w", err)
		}

		e.Metadata = metadata.String
		if resolvedAt.Valid {
			e.ResolvedAt = &resolvedAt.Time
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
