// Package metrics provides Prometheus instrumentation for grebedb.
//
// No HTTP exporter is wired here — network access is outside this module's
// scope. Callers that want to serve these metrics register Metrics.Registry
// into their own exporter.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for one Database instance.
type Metrics struct {
	Registry *prometheus.Registry

	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CacheEvictionsTotal  prometheus.Counter
	PagesWrittenTotal    prometheus.Counter
	CommitsTotal         *prometheus.CounterVec
	CommitDuration       prometheus.Histogram
	TreeSplitsTotal      prometheus.Counter
	TreeRemovePropagated prometheus.Counter
	KeyValueCount        prometheus.Gauge
}

// New creates a fresh, independently-registered set of collectors. Each
// Database gets its own Registry so opening more than one store in a
// process (as the test suite does) never collides on metric names.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grebedb_cache_hits_total",
			Help: "Total number of page cache hits.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grebedb_cache_misses_total",
			Help: "Total number of page cache misses requiring a disk load.",
		}),
		CacheEvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grebedb_cache_evictions_total",
			Help: "Total number of page cache evictions.",
		}),
		PagesWrittenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grebedb_pages_written_total",
			Help: "Total number of page files written to the VFS.",
		}),
		CommitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grebedb_commits_total",
			Help: "Total number of commit attempts by outcome.",
		}, []string{"status"}),
		CommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grebedb_commit_duration_seconds",
			Help:    "Duration of successful commits.",
			Buckets: prometheus.DefBuckets,
		}),
		TreeSplitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grebedb_tree_splits_total",
			Help: "Total number of leaf/internal node splits.",
		}),
		TreeRemovePropagated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grebedb_tree_remove_propagations_total",
			Help: "Total number of removals that propagated a degenerate internal node upward.",
		}),
		KeyValueCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grebedb_key_value_count",
			Help: "Live key-value pair count as of the last commit.",
		}),
	}

	reg.MustRegister(
		m.CacheHitsTotal, m.CacheMissesTotal, m.CacheEvictionsTotal,
		m.PagesWrittenTotal, m.CommitsTotal, m.CommitDuration,
		m.TreeSplitsTotal, m.TreeRemovePropagated, m.KeyValueCount,
	)

	return m
}

// RecordCommit records the outcome and duration of one commit attempt.
func (m *Metrics) RecordCommit(ok bool, duration time.Duration) {
	status := "success"
	if !ok {
		status = "error"
	}
	m.CommitsTotal.WithLabelValues(status).Inc()
	if ok {
		m.CommitDuration.Observe(duration.Seconds())
	}
}
