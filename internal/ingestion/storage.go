package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/granhackaria/eventharvest/internal/models"
)

// ErrDuplicate is returned by repositories when a write collides with an
// existing source URL.
var ErrDuplicate = errors.New("duplicate source url")

// EventRepository defines the interface for storing and retrieving events.
type EventRepository interface {
	// InsertIgnoreDuplicate stores the event unless its source URL already
	// exists. It reports whether a row was written. Implementations may
	// return ErrDuplicate instead of false on a unique violation.
	InsertIgnoreDuplicate(ctx context.Context, event models.CandidateEvent) (bool, error)

	// ListUncheckedSourceLinks returns up to limit events with a source URL
	// that has not been marked gone. Rows never probed come first, then the
	// least recently probed.
	ListUncheckedSourceLinks(ctx context.Context, limit int) ([]models.SourceLink, error)

	// MarkSourceURLGone flags an event's source URL as permanently gone.
	MarkSourceURLGone(ctx context.Context, id string) error

	// MarkSourceURLChecked records a probe of the event's source URL.
	MarkSourceURLChecked(ctx context.Context, id string) error

	// ListMissingTranslations returns up to limit events lacking a title
	// variant, oldest first.
	ListMissingTranslations(ctx context.Context, limit int) ([]models.PersistedEvent, error)

	// UpdateTranslations stores both language variants for an event.
	UpdateTranslations(ctx context.Context, id string, t models.Translation) error
}

// MemoryEventRepository implements an in-memory event repository for
// tests and runs without a database.
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]*models.PersistedEvent
	urlIdx map[string]string // source URL -> ID
	order  []string
	now    func() time.Time
}

// NewMemoryEventRepository creates an empty repository.
func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{
		events: make(map[string]*models.PersistedEvent),
		urlIdx: make(map[string]string),
		now:    time.Now,
	}
}

// InsertIgnoreDuplicate implements EventRepository.
func (r *MemoryEventRepository) InsertIgnoreDuplicate(ctx context.Context, event models.CandidateEvent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if event.SourceURL == nil || strings.TrimSpace(*event.SourceURL) == "" {
		return false, fmt.Errorf("source url is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	url := *event.SourceURL
	if _, exists := r.urlIdx[url]; exists {
		return false, nil
	}

	id := uuid.New().String()
	r.events[id] = &models.PersistedEvent{
		CandidateEvent: event,
		ID:             id,
		CreatedAt:      r.now(),
	}
	r.urlIdx[url] = id
	r.order = append(r.order, id)
	return true, nil
}

// ListUncheckedSourceLinks implements EventRepository.
func (r *MemoryEventRepository) ListUncheckedSourceLinks(ctx context.Context, limit int) ([]models.SourceLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []*models.PersistedEvent
	for _, e := range r.sorted() {
		if e.SourceURLGone || e.SourceURL == nil {
			continue
		}
		candidates = append(candidates, e)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].SourceURLCheckedAt, candidates[j].SourceURLCheckedAt
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})

	links := make([]models.SourceLink, 0, min(limit, len(candidates)))
	for _, e := range candidates {
		if len(links) >= limit {
			break
		}
		links = append(links, models.SourceLink{ID: e.ID, SourceURL: *e.SourceURL})
	}
	return links, nil
}

// MarkSourceURLChecked implements EventRepository.
func (r *MemoryEventRepository) MarkSourceURLChecked(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[id]
	if !ok {
		return fmt.Errorf("event not found: %s", id)
	}
	now := r.now()
	e.SourceURLCheckedAt = &now
	return nil
}

// MarkSourceURLGone implements EventRepository.
func (r *MemoryEventRepository) MarkSourceURLGone(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[id]
	if !ok {
		return fmt.Errorf("event not found: %s", id)
	}
	e.SourceURLGone = true
	return nil
}

// ListMissingTranslations implements EventRepository.
func (r *MemoryEventRepository) ListMissingTranslations(ctx context.Context, limit int) ([]models.PersistedEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.PersistedEvent
	for _, e := range r.sorted() {
		if len(out) >= limit {
			break
		}
		if e.TitleEn == "" || e.TitleEs == "" {
			out = append(out, *e)
		}
	}
	return out, nil
}

// UpdateTranslations implements EventRepository.
func (r *MemoryEventRepository) UpdateTranslations(ctx context.Context, id string, t models.Translation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[id]
	if !ok {
		return fmt.Errorf("event not found: %s", id)
	}
	e.ApplyTranslation(t)
	return nil
}

// GetBySourceURL returns the stored event for url, or nil.
func (r *MemoryEventRepository) GetBySourceURL(url string) *models.PersistedEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.urlIdx[url]
	if !ok {
		return nil
	}
	e := *r.events[id]
	return &e
}

// Count returns the number of stored events.
func (r *MemoryEventRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// sorted returns events in insertion order. Caller holds the lock.
func (r *MemoryEventRepository) sorted() []*models.PersistedEvent {
	out := make([]*models.PersistedEvent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.events[id])
	}
	return out
}
