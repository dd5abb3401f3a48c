// Package metrics defines the Prometheus collectors used by the index builder
// and the query surfaces, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	LookupsTotal         *prometheus.CounterVec
	LookupLatency        *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CacheCircuitOpen     prometheus.Gauge
	DocsIndexedTotal     prometheus.Counter
	TermsIndexed         prometheus.Gauge
	BuildDuration        *prometheus.HistogramVec
	SnapshotBytes        *prometheus.GaugeVec
	SnapshotReloadsTotal *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "term_lookups_total",
				Help: "Total term lookups by result (hit, miss, error).",
			},
			[]string{"result"},
		),
		LookupLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "term_lookup_latency_seconds",
				Help:    "Term lookup latency in seconds.",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"cache_status"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		CacheCircuitOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cache_circuit_open",
				Help: "1 while the lookup cache circuit breaker is not closed.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents indexed.",
			},
		),
		TermsIndexed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Vocabulary size of the most recent build or loaded snapshot.",
			},
		),
		BuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "index_build_phase_seconds",
				Help:    "Duration of each index build phase.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"phase"},
		),
		SnapshotBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "snapshot_artifact_bytes",
				Help: "Size on disk of each snapshot artifact.",
			},
			[]string{"artifact"},
		),
		SnapshotReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshot_reloads_total",
				Help: "Snapshot reloads by trigger and status.",
			},
			[]string{"trigger", "status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.LookupsTotal,
		m.LookupLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheCircuitOpen,
		m.DocsIndexedTotal,
		m.TermsIndexed,
		m.BuildDuration,
		m.SnapshotBytes,
		m.SnapshotReloadsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
