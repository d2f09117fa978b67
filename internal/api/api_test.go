package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/granhackaria/eventharvest/internal/ingestion"
	"github.com/granhackaria/eventharvest/internal/logging"
	"github.com/granhackaria/eventharvest/internal/models"
)

const cronSecret = "cron-secret"

type fakeRunner struct {
	calls    int
	deadline bool
	summary  models.RunSummary
}

func (f *fakeRunner) Run(ctx context.Context) models.RunSummary {
	f.calls++
	_, f.deadline = ctx.Deadline()
	return f.summary
}

type fakeLinks struct {
	calls  int
	limit  int
	result models.LinkHealthResult
	err    error
}

func (f *fakeLinks) CheckBatch(_ context.Context, limit int) (models.LinkHealthResult, error) {
	f.calls++
	f.limit = limit
	return f.result, f.err
}

type fakeLister struct {
	limit          int
	unresolvedOnly bool
	items          []models.IngestionError
	err            error
}

func (f *fakeLister) List(_ context.Context, limit int, unresolvedOnly bool) ([]models.IngestionError, error) {
	f.limit = limit
	f.unresolvedOnly = unresolvedOnly
	return f.items, f.err
}

func newMux(runner IngestRunner, links *fakeLinks, lister IngestionErrorLister) *http.ServeMux {
	mux := http.NewServeMux()
	var checker ingestion.LinkChecker
	if links != nil {
		checker = links
	}
	routes := Routes{
		Cron: NewCronHandler(runner, checker, CronSettings{
			IngestTimeout:   time.Minute,
			MarkGoneTimeout: 30 * time.Second,
			BatchSize:       30,
		}, logging.Discard()),
		CronSecret: cronSecret,
	}
	if lister != nil {
		routes.Errors = NewIngestionErrorHandler(lister, logging.Discard())
	}
	SetupRoutes(mux, routes, logging.Discard())
	return mux
}

func do(mux http.Handler, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCronIngest_RequiresSecret(t *testing.T) {
	runner := &fakeRunner{}
	mux := newMux(runner, &fakeLinks{}, nil)

	for _, bearer := range []string{"", "wrong"} {
		rec := do(mux, http.MethodGet, "/api/cron/ingest", bearer)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized", decode(t, rec)["error"])
	}
	assert.Zero(t, runner.calls)
}

func TestCronIngest_ReturnsSummary(t *testing.T) {
	start := time.Date(2026, 2, 20, 6, 0, 0, 0, time.UTC)
	runner := &fakeRunner{summary: models.RunSummary{
		Sources: map[string]models.SourceOutcome{
			"instagram": {PipelineResult: &models.PipelineResult{Inserted: 2, Skipped: 5}},
			"meetup":    {Error: "platform source not configured"},
		},
		LinkHealth: &models.LinkHealthOutcome{LinkHealthResult: &models.LinkHealthResult{Checked: 30, Marked: 1}},
		Timestamp:  models.RunWindow{Start: start, End: start.Add(time.Minute)},
	}}
	mux := newMux(runner, &fakeLinks{}, nil)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := do(mux, method, "/api/cron/ingest", cronSecret)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode(t, rec)
		sources := body["sources"].(map[string]any)
		assert.Equal(t, float64(2), sources["instagram"].(map[string]any)["inserted"])
		assert.Equal(t, "platform source not configured", sources["meetup"].(map[string]any)["error"])
		assert.Equal(t, float64(30), body["mark_gone_source_urls"].(map[string]any)["checked"])
		assert.NotNil(t, body["timestamp"].(map[string]any)["start"])
	}
	assert.Equal(t, 2, runner.calls)
	assert.True(t, runner.deadline)
}

func TestCronIngest_RejectsOtherMethods(t *testing.T) {
	runner := &fakeRunner{}
	rec := do(newMux(runner, &fakeLinks{}, nil), http.MethodDelete, "/api/cron/ingest", cronSecret)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, runner.calls)
}

func TestCronIngest_WithoutStorage(t *testing.T) {
	rec := do(newMux(nil, nil, nil), http.MethodGet, "/api/cron/ingest", cronSecret)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "storage not configured", decode(t, rec)["error"])
}

func TestCronMarkGone(t *testing.T) {
	links := &fakeLinks{result: models.LinkHealthResult{Checked: 30, Marked: 2}}
	rec := do(newMux(&fakeRunner{}, links, nil), http.MethodGet, "/api/cron/mark-gone", cronSecret)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(30), body["checked"])
	assert.Equal(t, float64(2), body["marked"])
	assert.Equal(t, float64(0), body["errors"])
	assert.NotContains(t, body, "error")
	ts := body["timestamp"].(map[string]any)
	assert.NotEmpty(t, ts["start"])
	assert.NotEmpty(t, ts["end"])
	assert.Equal(t, 30, links.limit)
}

func TestCronMarkGone_InterruptedKeepsPartialCounts(t *testing.T) {
	links := &fakeLinks{result: models.LinkHealthResult{Checked: 3, Marked: 1}, err: errors.New("context deadline exceeded")}
	rec := do(newMux(&fakeRunner{}, links, nil), http.MethodPost, "/api/cron/mark-gone", cronSecret)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "context deadline exceeded", body["error"])
	assert.Equal(t, float64(3), body["checked"])
	assert.Equal(t, float64(1), body["marked"])
	assert.NotNil(t, body["timestamp"])
}

func TestCronMarkGone_WithoutSecretConfigured(t *testing.T) {
	mux := http.NewServeMux()
	links := &fakeLinks{}
	SetupRoutes(mux, Routes{
		Cron: NewCronHandler(&fakeRunner{}, links, CronSettings{}, logging.Discard()),
	}, logging.Discard())

	rec := do(mux, http.MethodGet, "/api/cron/mark-gone", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, links.calls)
	assert.Equal(t, 30, links.limit)
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		check      HealthCheckFunc
		wantStatus int
		wantDB     string
	}{
		{"not configured", nil, http.StatusOK, "not_configured"},
		{"healthy", func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"unreachable", func(context.Context) error { return errors.New("dial tcp: refused") }, http.StatusServiceUnavailable, "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			stats := func() map[string]any { return map[string]any{"open_connections": 2} }
			HealthHandler(tt.check, stats, logging.Discard())(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.wantDB, body["database"])
			if tt.check != nil {
				assert.Equal(t, float64(2), body["pool"].(map[string]any)["open_connections"])
			}
		})
	}
}

func TestListIngestionErrors(t *testing.T) {
	lister := &fakeLister{items: []models.IngestionError{{ID: "e1", Platform: "slack", ErrorType: "auth_failed"}}}
	mux := newMux(&fakeRunner{}, &fakeLinks{}, lister)

	rec := do(mux, http.MethodGet, "/api/ingestion-errors?limit=1000&unresolved_only=true", cronSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, maxErrorListLimit, lister.limit)
	assert.True(t, lister.unresolvedOnly)

	rec = do(mux, http.MethodGet, "/api/ingestion-errors?limit=abc", cronSecret)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "limit: must be an integer", decode(t, rec)["error"])

	rec = do(mux, http.MethodGet, "/api/ingestion-errors", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListIngestionErrors_StorageFailure(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection reset")}
	rec := do(newMux(&fakeRunner{}, &fakeLinks{}, lister), http.MethodGet, "/api/ingestion-errors", cronSecret)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, defaultErrorListLimit, lister.limit)
}
