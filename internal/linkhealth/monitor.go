package linkhealth

import (
	"context"
	"log/slog"
	"time"

	"github.com/granhackaria/eventharvest/internal/models"
)

// DefaultBatchSize is used when CheckBatch is given a non-positive limit.
const DefaultBatchSize = 30

// Store is the subset of the event repository the monitor needs.
type Store interface {
	ListUncheckedSourceLinks(ctx context.Context, limit int) ([]models.SourceLink, error)
	MarkSourceURLGone(ctx context.Context, id string) error
	MarkSourceURLChecked(ctx context.Context, id string) error
}

// Prober classifies a single URL. Implemented by Checker.
type Prober interface {
	Probe(ctx context.Context, url string) (Status, error)
}

// ProbeObserver receives probe outcomes for metrics.
type ProbeObserver interface {
	ObserveProbe(status string, d time.Duration)
}

// Monitor runs link-health batches.
type Monitor struct {
	store    Store
	prober   Prober
	observer ProbeObserver
	logger   *slog.Logger
}

// NewMonitor creates a monitor. observer may be nil.
func NewMonitor(store Store, prober Prober, observer ProbeObserver, logger *slog.Logger) *Monitor {
	return &Monitor{store: store, prober: prober, observer: observer, logger: logger}
}

// CheckBatch probes up to limit source URLs, least recently checked first,
// and marks the gone ones. Ambiguous probes leave the row untouched and count
// as errors. A failed selection is reported as a single error rather than
// returned. On cancellation the counts cover the links probed so far and the
// context error is returned with them.
func (m *Monitor) CheckBatch(ctx context.Context, limit int) (models.LinkHealthResult, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	links, err := m.store.ListUncheckedSourceLinks(ctx, limit)
	if err != nil {
		m.logger.Error("failed to fetch events for link check", "error", err)
		return models.LinkHealthResult{Errors: 1}, nil
	}

	var result models.LinkHealthResult
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			m.logger.Warn("link check interrupted", "checked", result.Checked, "error", err)
			return result, err
		}
		if link.SourceURL == "" {
			continue
		}

		start := time.Now()
		status, err := m.prober.Probe(ctx, link.SourceURL)
		if status == StatusError && ctx.Err() != nil {
			// Cut short by the deadline, not an answer from the host.
			m.logger.Warn("link check interrupted", "checked", result.Checked, "url", link.SourceURL, "error", ctx.Err())
			return result, ctx.Err()
		}
		if m.observer != nil {
			m.observer.ObserveProbe(string(status), time.Since(start))
		}
		result.Checked++

		switch status {
		case StatusGone:
			if err := m.store.MarkSourceURLGone(ctx, link.ID); err != nil {
				m.logger.Error("failed to mark source url gone", "event_id", link.ID, "error", err)
				result.Errors++
				continue
			}
			m.logger.Info("source url gone", "event_id", link.ID, "url", link.SourceURL)
			result.Marked++
		case StatusError:
			m.logger.Warn("link check inconclusive", "url", link.SourceURL, "error", err)
			result.Errors++
		}

		if err := m.store.MarkSourceURLChecked(ctx, link.ID); err != nil {
			m.logger.Warn("failed to record link check", "event_id", link.ID, "error", err)
		}
	}

	return result, nil
}
