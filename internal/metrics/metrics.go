package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "scrapequeue"

	labelOutcome = "outcome"
	labelResult  = "result"
	labelStatus  = "status"

	// ResultSuccess and ResultError label pushes
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds the collectors shared by producers and consumers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	pushes        *prometheus.CounterVec
	orphaned      prometheus.Counter
}

// New creates the collectors and registers them, plus the Go and process
// collectors, on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consumer_cycles_total",
				Help:      "Consumer cycles by outcome",
			},
			[]string{labelOutcome},
		),
		cycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "consumer_cycle_duration_seconds",
				Help:      "Duration of consumer cycles by outcome",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{labelOutcome},
		),
		pushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "producer_pushes_total",
				Help:      "External job ids pushed to the queue",
			},
			[]string{labelResult},
		),
		orphaned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "producer_orphaned_jobs_total",
				Help:      "Remote jobs created but never queued",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles,
		m.cycleDuration,
		m.pushes,
		m.orphaned,
	)

	return m
}

// ObserveCycle records one finished consumer cycle
func (m *Metrics) ObserveCycle(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObservePush records one queue push attempt
func (m *Metrics) ObservePush(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.pushes.WithLabelValues(ResultError).Inc()
		return
	}
	m.pushes.WithLabelValues(ResultSuccess).Inc()
}

// AddOrphaned counts remote jobs that could not be queued
func (m *Metrics) AddOrphaned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.orphaned.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format. A failing
// collector is reported as an error but does not hide the other metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
