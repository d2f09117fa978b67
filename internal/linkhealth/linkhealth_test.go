package linkhealth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/granhackaria/eventharvest/internal/ingestion"
	"github.com/granhackaria/eventharvest/internal/logging"
	"github.com/granhackaria/eventharvest/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProbeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Contains(t, r.Header.Get("User-Agent"), "GranHackariaBot")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/removed", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/removed", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/forbidden", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestChecker_Probe(t *testing.T) {
	srv := newProbeServer(t)
	checker := NewChecker(srv.Client(), 100*time.Millisecond, "")

	tests := []struct {
		path    string
		want    Status
		wantErr bool
	}{
		{"/ok", StatusOK, false},
		{"/missing", StatusGone, false},
		{"/removed", StatusGone, false},
		{"/moved", StatusGone, false},
		{"/broken", StatusError, true},
		{"/forbidden", StatusError, true},
		{"/slow", StatusError, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := checker.Probe(context.Background(), srv.URL+tt.path)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil, "error: %v", err)
		})
	}
}

func TestChecker_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	status, err := NewChecker(nil, time.Second, "").Probe(context.Background(), url)
	assert.Equal(t, StatusError, status)
	assert.Error(t, err)
}

type probeCounts struct {
	mu     sync.Mutex
	counts map[string]int
}

func (p *probeCounts) ObserveProbe(status string, _ time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[status]++
}

func seed(t *testing.T, repo *ingestion.MemoryEventRepository, urls ...string) {
	t.Helper()
	for _, u := range urls {
		_, err := repo.InsertIgnoreDuplicate(context.Background(), models.CandidateEvent{
			Title:     u,
			DateStart: "2026-03-01",
			Category:  models.CategoryMusic,
			Source:    models.SourceInstagram,
			SourceURL: models.StringPtr(u),
		})
		require.NoError(t, err)
	}
}

func TestMonitor_CheckBatch(t *testing.T) {
	srv := newProbeServer(t)
	repo := ingestion.NewMemoryEventRepository()
	seed(t, repo,
		srv.URL+"/ok",
		srv.URL+"/missing",
		srv.URL+"/removed",
		srv.URL+"/broken",
		srv.URL+"/slow",
	)

	observer := &probeCounts{counts: map[string]int{}}
	monitor := NewMonitor(repo, NewChecker(srv.Client(), 100*time.Millisecond, ""), observer, logging.Discard())

	res, err := monitor.CheckBatch(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, models.LinkHealthResult{Checked: 5, Marked: 2, Errors: 2}, res)

	assert.True(t, repo.GetBySourceURL(srv.URL+"/missing").SourceURLGone)
	assert.True(t, repo.GetBySourceURL(srv.URL+"/removed").SourceURLGone)
	assert.False(t, repo.GetBySourceURL(srv.URL+"/ok").SourceURLGone)
	assert.False(t, repo.GetBySourceURL(srv.URL+"/broken").SourceURLGone)
	assert.False(t, repo.GetBySourceURL(srv.URL+"/slow").SourceURLGone)

	assert.Equal(t, map[string]int{"ok": 1, "gone": 2, "error": 2}, observer.counts)

	// Gone rows are never re-checked.
	res, err = monitor.CheckBatch(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Checked)
	assert.Zero(t, res.Marked)
}

func TestMonitor_RespectsLimit(t *testing.T) {
	srv := newProbeServer(t)
	repo := ingestion.NewMemoryEventRepository()
	seed(t, repo, srv.URL+"/ok", srv.URL+"/ok?2", srv.URL+"/ok?3")

	res, err := NewMonitor(repo, NewChecker(srv.Client(), time.Second, ""), nil, logging.Discard()).
		CheckBatch(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, models.LinkHealthResult{Checked: 2}, res)
}

type failingStore struct {
	links   []models.SourceLink
	listErr error
	markErr error
}

func (s failingStore) ListUncheckedSourceLinks(context.Context, int) ([]models.SourceLink, error) {
	return s.links, s.listErr
}

func (s failingStore) MarkSourceURLGone(context.Context, string) error { return s.markErr }

func (s failingStore) MarkSourceURLChecked(context.Context, string) error { return nil }

type fixedProber Status

func (p fixedProber) Probe(context.Context, string) (Status, error) { return Status(p), nil }

func TestMonitor_SelectionFailure(t *testing.T) {
	monitor := NewMonitor(failingStore{listErr: errors.New("relation does not exist")}, fixedProber(StatusOK), nil, logging.Discard())

	res, err := monitor.CheckBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, models.LinkHealthResult{Errors: 1}, res)
}

func TestMonitor_MarkFailureCountsAsError(t *testing.T) {
	store := failingStore{
		links:   []models.SourceLink{{ID: "1", SourceURL: "https://example.com/a"}, {ID: "2", SourceURL: "https://example.com/b"}},
		markErr: errors.New("permission denied"),
	}
	monitor := NewMonitor(store, fixedProber(StatusGone), nil, logging.Discard())

	res, err := monitor.CheckBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, models.LinkHealthResult{Checked: 2, Marked: 0, Errors: 2}, res)
}

func TestMonitor_DefaultLimit(t *testing.T) {
	var gotLimit int
	store := limitRecorder{limit: &gotLimit}

	_, err := NewMonitor(store, fixedProber(StatusOK), nil, logging.Discard()).CheckBatch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, gotLimit)
}

type limitRecorder struct {
	limit *int
}

func (s limitRecorder) ListUncheckedSourceLinks(_ context.Context, limit int) ([]models.SourceLink, error) {
	*s.limit = limit
	return nil, nil
}

func (s limitRecorder) MarkSourceURLGone(context.Context, string) error { return nil }

func (s limitRecorder) MarkSourceURLChecked(context.Context, string) error { return nil }

// cancellingProber answers ok for the first n probes, then cancels the run
// and fails the probe the way a timed out request does.
type cancellingProber struct {
	n      int
	cancel context.CancelFunc
}

func (p *cancellingProber) Probe(ctx context.Context, _ string) (Status, error) {
	if p.n > 0 {
		p.n--
		return StatusOK, nil
	}
	p.cancel()
	return StatusError, ctx.Err()
}

func TestMonitor_CancellationReportsOnlyProbedLinks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := failingStore{links: []models.SourceLink{
		{ID: "1", SourceURL: "https://example.com/a"},
		{ID: "2", SourceURL: "https://example.com/b"},
		{ID: "3", SourceURL: "https://example.com/c"},
	}}
	monitor := NewMonitor(store, &cancellingProber{n: 1, cancel: cancel}, nil, logging.Discard())

	res, err := monitor.CheckBatch(ctx, 10)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.LinkHealthResult{Checked: 1}, res)
}

func TestMonitor_HealthyLinksRotate(t *testing.T) {
	srv := newProbeServer(t)
	repo := ingestion.NewMemoryEventRepository()
	seed(t, repo, srv.URL+"/ok", srv.URL+"/ok?2")

	var probed []string
	prober := proberFunc(func(ctx context.Context, url string) (Status, error) {
		probed = append(probed, url)
		return StatusOK, nil
	})
	monitor := NewMonitor(repo, prober, nil, logging.Discard())

	for i := 0; i < 2; i++ {
		res, err := monitor.CheckBatch(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, models.LinkHealthResult{Checked: 1}, res)
	}
	assert.Equal(t, []string{srv.URL + "/ok", srv.URL + "/ok?2"}, probed)
}

type proberFunc func(ctx context.Context, url string) (Status, error)

func (f proberFunc) Probe(ctx context.Context, url string) (Status, error) { return f(ctx, url) }
