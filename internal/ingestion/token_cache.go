package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/granhackaria/eventharvest/internal/config"
	"golang.org/x/oauth2"
)

// TokenCache holds the event platform's short-lived access token. It is
// refreshed when expired and dropped on authorization failure.
type TokenCache struct {
	mu           sync.Mutex
	oauth        oauth2.Config
	refreshToken string
	client       *http.Client
	token        *oauth2.Token
}

// NewTokenCache creates a cache that uses the refresh-token grant.
func NewTokenCache(cfg config.PlatformConfig, client *http.Client) *TokenCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenCache{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		refreshToken: cfg.RefreshToken,
		client:       client,
	}
}

// AccessToken returns a valid access token, refreshing it if needed.
func (c *TokenCache) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Valid() {
		return c.token.AccessToken, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	tok, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: c.refreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}

	// Providers may rotate the refresh token.
	if tok.RefreshToken != "" {
		c.refreshToken = tok.RefreshToken
	}
	c.token = tok
	return tok.AccessToken, nil
}

// Invalidate drops the cached access token so the next call refreshes.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
}
