// Package monitoring exposes stress run progress as Prometheus metrics.
// Metrics implements the engine's Observer, so plugging it into a run
// config is all the wiring a scrape endpoint needs.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studiowebux/sqlstress/stresstest"
)

// Metrics collects per-query counters and latencies on its own registry,
// keeping stress run metrics apart from anything else the process exports.
type Metrics struct {
	registry *prometheus.Registry

	queries  *prometheus.CounterVec
	duration prometheus.Histogram
	errors   *prometheus.CounterVec
	active   prometheus.Gauge
}

// NewMetrics creates and registers the metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlstress_queries_total",
				Help: "Total number of executed statements by outcome",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sqlstress_query_duration_seconds",
				Help:    "Statement execution duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqlstress_errors_total",
				Help: "Total number of failed statements by error kind",
			},
			[]string{"kind"},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sqlstress_active_workers",
				Help: "Number of workers currently executing",
			},
		),
	}

	registry.MustRegister(
		m.queries,
		m.duration,
		m.errors,
		m.active,
	)

	return m
}

// WorkerStarted marks a worker as active.
func (m *Metrics) WorkerStarted(workerID int) {
	m.active.Inc()
}

// WorkerStopped marks a worker as done.
func (m *Metrics) WorkerStopped(workerID int) {
	m.active.Dec()
}

// QueryDone records one statement execution.
func (m *Metrics) QueryDone(workerID int, q stresstest.QueryRecord, latency time.Duration, err error) {
	m.duration.Observe(latency.Seconds())
	if err != nil {
		m.queries.WithLabelValues("failure").Inc()
		m.errors.WithLabelValues(string(stresstest.Classify(err))).Inc()
		return
	}
	m.queries.WithLabelValues("success").Inc()
}

// Handler serves the registry in Prometheus exposition format. Mount it
// wherever the process already listens, typically under /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
