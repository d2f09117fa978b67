package api

import (
	"log/slog"
	"net/http"

	"github.com/granhackaria/eventharvest/internal/auth"
)

// Routes collects the handlers served by the HTTP entry point.
type Routes struct {
	Cron       *CronHandler
	Errors     *IngestionErrorHandler
	Health     HealthCheckFunc
	PoolStats  PoolStatsFunc
	Metrics    http.Handler
	CronSecret string
	Instrument func(http.Handler) http.Handler
}

// SetupRoutes configures all API routes.
func SetupRoutes(mux *http.ServeMux, routes Routes, logger *slog.Logger) {
	protect := auth.CronMiddleware(routes.CronSecret)
	instrument := routes.Instrument
	if instrument == nil {
		instrument = func(h http.Handler) http.Handler { return h }
	}

	mux.Handle("/healthz", HealthHandler(routes.Health, routes.PoolStats, logger))
	if routes.Metrics != nil {
		mux.Handle("/metrics", routes.Metrics)
	}

	if routes.Cron != nil {
		mux.Handle("/api/cron/ingest", instrument(protect(allowMethods(routes.Cron.Ingest, http.MethodGet, http.MethodPost))))
		mux.Handle("/api/cron/mark-gone", instrument(protect(allowMethods(routes.Cron.MarkGone, http.MethodGet, http.MethodPost))))
	}
	if routes.Errors != nil {
		mux.Handle("/api/ingestion-errors", instrument(protect(allowMethods(routes.Errors.ListErrors, http.MethodGet))))
	}
}

func allowMethods(next http.HandlerFunc, methods ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, m := range methods {
			if r.Method == m {
				next(w, r)
				return
			}
		}
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}
