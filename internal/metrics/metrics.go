package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/granhackaria/eventharvest/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventharvest"

// Collector exposes Prometheus metrics for inbound HTTP requests and the
// ingestion pipeline. It satisfies ingestion.Observer, llm.CallObserver and
// linkhealth.ProbeObserver.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	records         *prometheus.CounterVec
	sourceRuns      *prometheus.CounterVec
	sourceDuration  *prometheus.HistogramVec
	modelCalls      *prometheus.CounterVec
	modelDuration   *prometheus.HistogramVec
	linkProbes      *prometheus.CounterVec
	probeDuration   prometheus.Histogram
}

// NewCollector constructs a collector on a private registry.
func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Harvested records by source and outcome.",
		}, []string{"source", "status"}),
		sourceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "source_runs_total",
			Help:      "Source pipeline runs by outcome.",
		}, []string{"source", "result"}),
		sourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "source_run_duration_seconds",
			Help:      "Wall time of one source pipeline run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"source"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "calls_total",
			Help:      "Model provider calls by operation and status.",
		}, []string{"provider", "operation", "status"}),
		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "call_duration_seconds",
			Help:      "Model provider call latency.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 70, 150},
		}, []string{"provider", "operation"}),
		linkProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "linkhealth",
			Name:      "probes_total",
			Help:      "Source URL probes by classification.",
		}, []string{"status"}),
		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "linkhealth",
			Name:      "probe_duration_seconds",
			Help:      "Source URL probe latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
		}),
	}

	for _, m := range []prometheus.Collector{
		c.requestDuration, c.requestTotal,
		c.records, c.sourceRuns, c.sourceDuration,
		c.modelCalls, c.modelDuration,
		c.linkProbes, c.probeDuration,
	} {
		if err := c.registry.Register(m); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// ObserveRecord counts one pipeline outcome.
func (c *Collector) ObserveRecord(source string, status models.UpsertStatus) {
	c.records.WithLabelValues(source, string(status)).Inc()
}

// ObserveSourceRun records a finished source pipeline.
func (c *Collector) ObserveSourceRun(source string, failed bool, d time.Duration) {
	result := "ok"
	if failed {
		result = "error"
	}
	c.sourceRuns.WithLabelValues(source, result).Inc()
	c.sourceDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveModelCall records one provider call.
func (c *Collector) ObserveModelCall(provider, operation, status string, d time.Duration) {
	c.modelCalls.WithLabelValues(provider, operation, status).Inc()
	c.modelDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
}

// ObserveProbe records one link-health probe.
func (c *Collector) ObserveProbe(status string, d time.Duration) {
	c.linkProbes.WithLabelValues(status).Inc()
	c.probeDuration.Observe(d.Seconds())
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
