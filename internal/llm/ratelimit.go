package llm

import (
	"context"
	"log/slog"
	"time"
)

// RateLimitedProvider retries the same request when the wrapped provider is
// throttled, waiting a fixed cooldown between attempts. Once retries are
// exhausted the original provider error is returned.
type RateLimitedProvider struct {
	next       Provider
	maxRetries int
	wait       time.Duration
	logger     *slog.Logger
}

// NewRateLimitedProvider wraps next.
func NewRateLimitedProvider(next Provider, maxRetries int, wait time.Duration, logger *slog.Logger) *RateLimitedProvider {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RateLimitedProvider{
		next:       next,
		maxRetries: maxRetries,
		wait:       wait,
		logger:     logger,
	}
}

// Name implements Provider.
func (p *RateLimitedProvider) Name() string {
	return p.next.Name()
}

// Complete implements Provider.
func (p *RateLimitedProvider) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		out, err := p.next.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		if !IsRateLimited(err) {
			return "", err
		}

		lastErr = err
		if attempt == p.maxRetries {
			break
		}

		p.logger.Warn("model provider rate limited, waiting before retry",
			"provider", p.next.Name(),
			"operation", req.Operation,
			"retry", attempt+1,
			"max_retries", p.maxRetries,
			"wait", p.wait,
		)

		timer := time.NewTimer(p.wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", lastErr
		case <-timer.C:
		}
	}

	p.logger.Error("model provider still rate limited after retries",
		"provider", p.next.Name(),
		"operation", req.Operation,
		"error", lastErr,
	)
	return "", lastErr
}
