// Package cache holds the shared key-value state that outlives a single run.
package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/granhackaria/eventharvest/internal/config"
	"github.com/valkey-io/valkey-go"
)

// ValkeyCursorStore persists incremental fetch cursors in Valkey so that
// separate invocations share them.
type ValkeyCursorStore struct {
	client valkey.Client
	prefix string
	logger *slog.Logger
}

// NewValkeyCursorStore connects to cfg.ValkeyAddr and pings it.
func NewValkeyCursorStore(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (*ValkeyCursorStore, error) {
	opts := valkey.ClientOption{
		InitAddress:      []string{cfg.ValkeyAddr},
		Password:         cfg.ValkeyPassword,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if cfg.ValkeyTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}

	logger.Info("connected to valkey", "addr", cfg.ValkeyAddr)
	return NewValkeyCursorStoreWithClient(client, cfg.KeyPrefix, logger), nil
}

// NewValkeyCursorStoreWithClient wraps an existing client.
func NewValkeyCursorStoreWithClient(client valkey.Client, prefix string, logger *slog.Logger) *ValkeyCursorStore {
	return &ValkeyCursorStore{client: client, prefix: prefix, logger: logger}
}

// Key returns the namespaced Valkey key for a cursor.
func (s *ValkeyCursorStore) Key(key string) string {
	return s.prefix + "cursor:" + key
}

// GetCursor implements ingestion.CursorStore.
func (s *ValkeyCursorStore) GetCursor(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Do(ctx, s.client.B().Get().Key(s.Key(key)).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cursor %s: %w", key, err)
	}
	return v, true, nil
}

// SetCursor implements ingestion.CursorStore.
func (s *ValkeyCursorStore) SetCursor(ctx context.Context, key, value string) error {
	if err := s.client.Do(ctx, s.client.B().Set().Key(s.Key(key)).Value(value).Build()).Error(); err != nil {
		return fmt.Errorf("set cursor %s: %w", key, err)
	}
	s.logger.Debug("cursor stored", "key", key, "value", value)
	return nil
}

// Close releases the connection.
func (s *ValkeyCursorStore) Close() {
	s.client.Close()
}
