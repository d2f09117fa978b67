package inference

import (
	"log/slog"
	"sync"
	"time"

	"github.com/granhackaria/eventharvest/internal/llm"
)

// Logger writes one structured log line per model call and keeps running
// totals per provider and operation.
type Logger struct {
	logger *slog.Logger
	slow   time.Duration

	mu     sync.Mutex
	totals map[string]*Totals
}

// Totals counts calls for one provider/operation pair.
type Totals struct {
	Calls       int           `json:"calls"`
	Errors      int           `json:"errors"`
	RateLimited int           `json:"rate_limited"`
	Latency     time.Duration `json:"latency"`
}

// NewLogger creates a call logger. Calls slower than slow are logged at
// warn level; zero disables that.
func NewLogger(logger *slog.Logger, slow time.Duration) *Logger {
	return &Logger{
		logger: logger,
		slow:   slow,
		totals: make(map[string]*Totals),
	}
}

// ObserveModelCall implements llm.CallObserver.
func (l *Logger) ObserveModelCall(provider, operation, status string, d time.Duration) {
	l.mu.Lock()
	key := provider + "/" + operation
	t, ok := l.totals[key]
	if !ok {
		t = &Totals{}
		l.totals[key] = t
	}
	t.Calls++
	t.Latency += d
	switch status {
	case "ok":
	case "rate_limited":
		t.RateLimited++
	default:
		t.Errors++
	}
	l.mu.Unlock()

	attrs := []any{"provider", provider, "operation", operation, "status", status, "latency_ms", d.Milliseconds()}
	switch {
	case status != "ok":
		l.logger.Warn("model call failed", attrs...)
	case l.slow > 0 && d > l.slow:
		l.logger.Warn("slow model call", attrs...)
	default:
		l.logger.Debug("model call", attrs...)
	}
}

// Snapshot returns a copy of the totals keyed by "provider/operation".
func (l *Logger) Snapshot() map[string]Totals {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]Totals, len(l.totals))
	for k, v := range l.totals {
		out[k] = *v
	}
	return out
}

type tee []llm.CallObserver

func (t tee) ObserveModelCall(provider, operation, status string, d time.Duration) {
	for _, o := range t {
		o.ObserveModelCall(provider, operation, status, d)
	}
}

// Tee reports each call to every non-nil observer.
func Tee(observers ...llm.CallObserver) llm.CallObserver {
	var out tee
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}
