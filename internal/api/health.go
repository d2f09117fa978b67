package api

import (
	"context"
	"log/slog"
	"net/http"
)

// HealthCheckFunc reports whether storage answers.
type HealthCheckFunc func(ctx context.Context) error

// PoolStatsFunc reports connection pool counters.
type PoolStatsFunc func() map[string]any

// HealthHandler serves /healthz. A nil check reports storage as not
// configured without failing the probe. stats may be nil.
func HealthHandler(check HealthCheckFunc, stats PoolStatsFunc, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "database": "not_configured"})
			return
		}

		body := map[string]any{"status": "ok", "database": "ok"}
		if stats != nil {
			body["pool"] = stats()
		}

		if err := check(r.Context()); err != nil {
			logger.Warn("health check failed", "error", err)
			body["status"] = "degraded"
			body["database"] = "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}
