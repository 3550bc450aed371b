// Package metrics exposes Prometheus collectors for harness runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soryxie/code-contests/internal/domain/execution"
)

const namespace = "judgebox"

// Recorder owns a private registry so several recorders can coexist in tests.
type Recorder struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	runErrors    *prometheus.CounterVec
	tests        *prometheus.CounterVec
	testDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New registers the harness collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed harness runs by language and compilation status",
		}, []string{"language", "compilation"}),
		runErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_errors_total",
			Help:      "Harness runs aborted by a run-level error",
		}, []string{"language"}),
		tests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_outcomes_total",
			Help:      "Test outcomes by status and failure reason",
		}, []string{"language", "status", "reason"}),
		testDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "test_duration_seconds",
			Help:      "Wall-clock duration of executed tests",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"language", "status"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tests_in_flight",
			Help:      "Tests currently executing in a sandbox",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests received",
		}, []string{"method", "path", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// TestStarted marks a test as running.
func (r *Recorder) TestStarted() {
	r.inFlight.Inc()
}

// TestFinished releases the in-flight slot and observes the duration of tests
// that ran to a verdict.
func (r *Recorder) TestFinished(lang execution.Language, outcome execution.TestOutcome) {
	r.inFlight.Dec()
	if !outcome.Terminal() {
		return
	}
	r.testDuration.WithLabelValues(string(lang), string(outcome.Status)).Observe(outcome.Duration.Seconds())
}

// RunFinished records the end of a harness run. Outcomes are counted from the
// final result so tests skipped after the fact are not counted twice.
func (r *Recorder) RunFinished(lang execution.Language, result *execution.MultiTestResult, err error) {
	if err != nil || result == nil {
		r.runErrors.WithLabelValues(string(lang)).Inc()
		return
	}
	r.runs.WithLabelValues(string(lang), string(result.Compilation.Status)).Inc()
	for _, test := range result.Tests {
		r.tests.WithLabelValues(string(lang), string(test.Status), string(test.Reason)).Inc()
	}
}

// Middleware records request metrics. Route patterns should be used as paths to
// keep label cardinality bounded; callers pass them through pathLabel.
func (r *Recorder) Middleware(pathLabel func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rec, req)

			path := req.URL.Path
			if pathLabel != nil {
				if label := pathLabel(req); label != "" {
					path = label
				}
			}
			labels := prometheus.Labels{
				"method": req.Method,
				"path":   path,
				"status": strconv.Itoa(rec.status),
			}
			r.httpRequests.With(labels).Inc()
			r.httpLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
