// Package metrics defines the Prometheus collectors used by the ingestion
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	MessagesTotal       *prometheus.CounterVec
	ProcessingDuration  *prometheus.HistogramVec
	MessagesInFlight    prometheus.Gauge
	CommitsTotal        prometheus.Counter
	CommitFailuresTotal prometheus.Counter
	CommitsHeldTotal    prometheus.Counter
	PollErrorsTotal     prometheus.Counter
	DeadLetteredTotal   prometheus.Counter
	UnitsTotal          *prometheus.CounterVec
	UpsertBatchesTotal  *prometheus.CounterVec
	DedupCacheTotal     *prometheus.CounterVec
	PartitionsAssigned  prometheus.Gauge
	CircuitBreakerState *prometheus.GaugeVec
	OpsRequestsTotal    *prometheus.CounterVec
	registry            prometheus.Gatherer
}

// New creates all collectors and registers them with reg. A nil reg uses a
// fresh private registry, which keeps tests independent of each other.
func New(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	m := &Metrics{
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_messages_total",
				Help: "Messages handled by outcome (success, permanent_failure, transient_failure) and stage.",
			},
			[]string{"outcome", "stage"},
		),
		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_processing_duration_seconds",
				Help:    "Pipeline latency per message in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		MessagesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_messages_in_flight",
				Help: "Messages submitted to the worker pool and awaiting an outcome.",
			},
		),
		CommitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_commits_total",
				Help: "Offsets committed to the event log.",
			},
		),
		CommitFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_commit_failures_total",
				Help: "Offset commits rejected by the event log.",
			},
		),
		CommitsHeldTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_commits_held_total",
				Help: "Successful messages whose commit is held behind an earlier failed offset.",
			},
		),
		PollErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_poll_errors_total",
				Help: "Errors returned while polling the event log.",
			},
		),
		DeadLetteredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_dead_lettered_total",
				Help: "Permanently failed messages published to the dead-letter topic.",
			},
		),
		UnitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_content_units_total",
				Help: "Content units by result (written, skipped).",
			},
			[]string{"result"},
		),
		UpsertBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_upsert_batches_total",
				Help: "Vector store upsert batches by status.",
			},
			[]string{"status"},
		),
		DedupCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_dedup_cache_total",
				Help: "Dedup cache lookups by result (hit, miss, error).",
			},
			[]string{"result"},
		),
		PartitionsAssigned: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_partitions_assigned",
				Help: "Partitions assigned to this consumer in the current generation.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		OpsRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_ops_requests_total",
				Help: "Requests to the metrics and health endpoints by path and status code.",
			},
			[]string{"path", "code"},
		),
		registry: gatherer,
	}

	reg.MustRegister(
		m.MessagesTotal,
		m.ProcessingDuration,
		m.MessagesInFlight,
		m.CommitsTotal,
		m.CommitFailuresTotal,
		m.CommitsHeldTotal,
		m.PollErrorsTotal,
		m.DeadLetteredTotal,
		m.UnitsTotal,
		m.UpsertBatchesTotal,
		m.DedupCacheTotal,
		m.PartitionsAssigned,
		m.CircuitBreakerState,
		m.OpsRequestsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for this Metrics'
// registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
