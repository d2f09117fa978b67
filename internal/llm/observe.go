package llm

import (
	"context"
	"time"
)

// CallObserver records provider call outcomes.
type CallObserver interface {
	ObserveModelCall(provider, operation, status string, duration time.Duration)
}

type instrumentedProvider struct {
	next     Provider
	observer CallObserver
}

// Instrument reports every call made through next to observer. A nil
// observer returns next unchanged.
func Instrument(next Provider, observer CallObserver) Provider {
	if observer == nil {
		return next
	}
	return &instrumentedProvider{next: next, observer: observer}
}

func (p *instrumentedProvider) Name() string {
	return p.next.Name()
}

func (p *instrumentedProvider) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := p.next.Complete(ctx, req)

	status := "ok"
	switch {
	case IsRateLimited(err):
		status = "rate_limited"
	case err != nil:
		status = "error"
	}
	p.observer.ObserveModelCall(p.next.Name(), string(req.Operation), status, time.Since(start))

	return out, err
}
