// Package linkhealth re-checks stored events' source URLs and flags the ones
// that are permanently gone.
package linkhealth

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Status is the outcome of probing one URL.
type Status string

const (
	StatusOK    Status = "ok"
	StatusGone  Status = "gone"
	StatusError Status = "error"
)

const (
	defaultTimeout   = 8 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; GranHackariaBot/1.0; +https://granhackaria.com)"
)

// Checker probes URLs with HEAD requests. Redirects are followed.
type Checker struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// NewChecker creates a checker. Zero values select the defaults.
func NewChecker(client *http.Client, timeout time.Duration, userAgent string) *Checker {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Checker{client: client, timeout: timeout, userAgent: userAgent}
}

// Probe classifies url: 404 and 410 are gone, 2xx is ok, and everything
// else, including timeouts and network errors, is an error. The returned
// error describes why the status is StatusError.
func (c *Checker) Probe(ctx context.Context, url string) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return StatusError, fmt.Errorf("build probe: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return StatusError, fmt.Errorf("probe %s: %w", url, err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return StatusGone, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return StatusOK, nil
	default:
		return StatusError, fmt.Errorf("probe %s: status %d", url, resp.StatusCode)
	}
}
