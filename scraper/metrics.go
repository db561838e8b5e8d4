package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a run.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ErrorsTotal      *prometheus.CounterVec
	SnapshotsTotal   prometheus.Counter
	StatsTotal       prometheus.Counter
	MissesTotal      *prometheus.CounterVec
	IndexCacheHits   prometheus.Counter
	AppsSkippedTotal prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appstats_requests_total",
			Help: "Total archive requests issued, by kind (index or page).",
		},
		[]string{"kind"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "appstats_request_duration_seconds",
			Help:    "Archive request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appstats_errors_total",
			Help: "Total number of failed archive requests by type.",
		},
		[]string{"error_type"},
	)
	snapshots := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appstats_snapshots_total",
			Help: "Snapshots selected after per-day deduplication.",
		},
	)
	stats := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appstats_stats_extracted_total",
			Help: "Snapshot pages that yielded both fields.",
		},
	)
	misses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appstats_extraction_misses_total",
			Help: "Snapshot pages missing a field, by field.",
		},
		[]string{"field"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appstats_index_cache_hits_total",
			Help: "Index lookups answered from the in-run cache.",
		},
	)
	skipped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appstats_apps_skipped_total",
			Help: "Apps skipped because their index lookup failed.",
		},
	)

	registry.MustRegister(requests, requestDuration, errorsTotal, snapshots, stats, misses, cacheHits, skipped)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		ErrorsTotal:      errorsTotal,
		SnapshotsTotal:   snapshots,
		StatsTotal:       stats,
		MissesTotal:      misses,
		IndexCacheHits:   cacheHits,
		AppsSkippedTotal: skipped,
	}
}

// IncRequest increments the requests counter for a request kind.
func (m *Metrics) IncRequest(kind string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// AddSnapshots counts snapshots selected for an app.
func (m *Metrics) AddSnapshots(n int) {
	if m == nil {
		return
	}
	m.SnapshotsTotal.Add(float64(n))
}

// IncStats counts a page that produced a stat.
func (m *Metrics) IncStats() {
	if m == nil {
		return
	}
	m.StatsTotal.Inc()
}

// IncMiss counts a page that lacked field.
func (m *Metrics) IncMiss(field string) {
	if m == nil {
		return
	}
	m.MissesTotal.WithLabelValues(field).Inc()
}

// IncCacheHit counts an index lookup served from the cache.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.IndexCacheHits.Inc()
}

// IncSkipped counts an app skipped after a failed index lookup.
func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	m.AppsSkippedTotal.Inc()
}
