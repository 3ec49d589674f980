// Package metrics exposes prometheus collectors for analysis runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "obsnote"

// Run statuses
const (
	StatusSuccess    = "success"
	StatusEmpty      = "empty"
	StatusFailed     = "failed"
	StatusSuperseded = "superseded"
)

// Metrics owns a registry so several instances can coexist in tests
type Metrics struct {
	registry       *prometheus.Registry
	runs           *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	sampled        *prometheus.HistogramVec
	failedSubsteps *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Analysis runs by kind and outcome",
		}, []string{"kind", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of analysis runs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"kind"}),
		sampled: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sampled_documents",
			Help:      "Documents fetched per sampling window",
			Buckets:   []float64{0, 10, 100, 250, 500, 1000, 5000},
		}, []string{"window"}),
		failedSubsteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_pattern_step_failures_total",
			Help:      "Failed log pattern sub-requests by step",
		}, []string{"step"}),
	}
	m.registry.MustRegister(m.runs, m.duration, m.sampled, m.failedSubsteps)
	return m
}

// ObserveRun records the outcome and duration of one run
func (m *Metrics) ObserveRun(kind, status string, elapsed time.Duration) {
	m.runs.WithLabelValues(kind, status).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveSample records the size of one fetched window
func (m *Metrics) ObserveSample(window string, documents int) {
	m.sampled.WithLabelValues(window).Observe(float64(documents))
}

// ObserveStepFailure counts a failed log pattern sub-request
func (m *Metrics) ObserveStepFailure(step string) {
	m.failedSubsteps.WithLabelValues(step).Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the scrape endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
