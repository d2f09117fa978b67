package ingestion

import (
	"context"
	"sync"
)

// CursorStore persists incremental fetch positions between runs.
type CursorStore interface {
	// GetCursor returns the stored value and whether one exists.
	GetCursor(ctx context.Context, key string) (string, bool, error)
	SetCursor(ctx context.Context, key, value string) error
}

// MemoryCursorStore keeps cursors for the life of the process.
type MemoryCursorStore struct {
	mu      sync.Mutex
	cursors map[string]string
}

// NewMemoryCursorStore creates an empty store.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{cursors: make(map[string]string)}
}

// GetCursor implements CursorStore.
func (s *MemoryCursorStore) GetCursor(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cursors[key]
	return v, ok, nil
}

// SetCursor implements CursorStore.
func (s *MemoryCursorStore) SetCursor(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[key] = value
	return nil
}
