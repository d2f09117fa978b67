package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/granhackaria/eventharvest/internal/ingestion"
	"github.com/granhackaria/eventharvest/internal/models"
	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE for a unique constraint violation.
const uniqueViolation = pq.ErrorCode("23505")

// PostgresEventRepository implements ingestion.EventRepository using PostgreSQL.
type PostgresEventRepository struct {
	db *sql.DB
}

// NewPostgresEventRepository creates a new PostgreSQL event repository.
func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

// InsertIgnoreDuplicate inserts the event unless its source_url exists.
// A unique violation that slips past ON CONFLICT (for instance a concurrent
// insert on a replica) is reported as ingestion.ErrDuplicate.
func (r *PostgresEventRepository) InsertIgnoreDuplicate(ctx context.Context, event models.CandidateEvent) (bool, error) {
	query := `
		INSERT INTO events (
			title, title_en, title_es, description, description_en, description_es,
			source_language, date_start, time, location, ticket_price, category,
			image_url, source, source_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (source_url) DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, query,
		event.Title,
		nullString(event.TitleEn),
		nullString(event.TitleEs),
		event.Description,
		event.DescriptionEn,
		event.DescriptionEs,
		string(event.SourceLanguage),
		event.DateStart,
		event.Time,
		event.Location,
		event.TicketPrice,
		string(event.Category),
		event.ImageURL,
		string(event.Source),
		event.SourceURL,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, ingestion.ErrDuplicate
		}
		return false, fmt.Errorf("failed to insert event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// ListUncheckedSourceLinks returns events whose source URL has not been
// marked gone. Never-probed rows come first, then the least recently probed.
func (r *PostgresEventRepository) ListUncheckedSourceLinks(ctx context.Context, limit int) ([]models.SourceLink, error) {
	query := `
		SELECT id, source_url
		FROM events
		WHERE source_url IS NOT NULL AND source_url_gone IS NOT TRUE
		ORDER BY source_url_checked_at ASC NULLS FIRST, created_at ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query source links: %w", err)
	}
	defer rows.Close()

	var links []models.SourceLink
	for rows.Next() {
		var link models.SourceLink
		if err := rows.Scan(&link.ID, &link.SourceURL); err != nil {
			return nil, fmt.Errorf("failed to scan source link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// MarkSourceURLGone sets source_url_gone. It never clears the flag.
func (r *PostgresEventRepository) MarkSourceURLGone(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET source_url_gone = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark source url gone: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("event not found: %s", id)
	}
	return nil
}

// MarkSourceURLChecked records that the source URL was just probed.
func (r *PostgresEventRepository) MarkSourceURLChecked(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET source_url_checked_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark source url checked: %w", err)
	}
	return nil
}

// ListMissingTranslations returns events lacking either title variant,
// oldest first.
func (r *PostgresEventRepository) ListMissingTranslations(ctx context.Context, limit int) ([]models.PersistedEvent, error) {
	query := `
		SELECT id, title, title_en, title_es, description, description_en, description_es,
		       source_language, date_start, time, location, ticket_price, category,
		       image_url, source, source_url, source_url_gone, created_at
		FROM events
		WHERE COALESCE(title_en, '') = '' OR COALESCE(title_es, '') = ''
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query untranslated events: %w", err)
	}
	defer rows.Close()

	var events []models.PersistedEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// UpdateTranslations stores both language variants for an event.
func (r *PostgresEventRepository) UpdateTranslations(ctx context.Context, id string, t models.Translation) error {
	query := `
		UPDATE events
		SET title_en = $2, title_es = $3, description_en = $4, description_es = $5,
		    source_language = $6, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		id,
		t.TitleEn,
		t.TitleEs,
		t.DescriptionEn,
		t.DescriptionEs,
		string(t.SourceLanguage),
	)
	if err != nil {
		return fmt.Errorf("failed to update translations: %w", err)
	}
	return nil
}

// GetBySourceURL retrieves an event by its natural key, or nil.
func (r *PostgresEventRepository) GetBySourceURL(ctx context.Context, sourceURL string) (*models.PersistedEvent, error) {
	query := `
		SELECT id, title, title_en, title_es, description, description_en, description_es,
		       source_language, date_start, time, location, ticket_price, category,
		       image_url, source, source_url, source_url_gone, created_at
		FROM events
		WHERE source_url = $1
	`

	e, err := scanEvent(r.db.QueryRowContext(ctx, query, sourceURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.PersistedEvent, error) {
	var (
		e                  models.PersistedEvent
		titleEn, titleEs   sql.NullString
		desc, descEn       sql.NullString
		descEs, eventTime  sql.NullString
		price, image, link sql.NullString
		lang, category     string
		source             string
		dateStart          time.Time
	)

	err := row.Scan(
		&e.ID,
		&e.Title,
		&titleEn,
		&titleEs,
		&desc,
		&descEn,
		&descEs,
		&lang,
		&dateStart,
		&eventTime,
		&e.Location,
		&price,
		&category,
		&image,
		&source,
		&link,
		&e.SourceURLGone,
		&e.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	e.TitleEn = titleEn.String
	e.TitleEs = titleEs.String
	e.Description = ptrFromNull(desc)
	e.DescriptionEn = ptrFromNull(descEn)
	e.DescriptionEs = ptrFromNull(descEs)
	e.SourceLanguage = models.NormalizeLanguage(lang)
	e.DateStart = dateStart.Format(time.DateOnly)
	e.Time = ptrFromNull(eventTime)
	e.TicketPrice = ptrFromNull(price)
	e.Category = models.Category(category)
	e.ImageURL = ptrFromNull(image)
	e.Source = models.Source(source)
	e.SourceURL = ptrFromNull(link)
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func ptrFromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
