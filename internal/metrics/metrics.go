// Package metrics holds the Prometheus collectors of the result-set engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "workbench"

var (
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups before a read, by outcome (hit, miss, stale).",
		},
		[]string{"outcome"},
	)
	CacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Result cache entries evicted by the LRU policy.",
		},
	)
	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Result cache entries currently held.",
		},
	)
	LoaderReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_reads_total",
			Help:      "Streaming reads by outcome (complete, truncated, canceled, failed).",
		},
		[]string{"outcome"},
	)
	LoaderRows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_rows_total",
			Help:      "Rows appended to streaming buffers.",
		},
	)
	LoaderFlushes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_flushes_total",
			Help:      "Buffer flushes made visible to the presentation layer.",
		},
	)
	AutoJumps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autojumps_total",
			Help:      "Automatic result-set selections after an execution finished.",
		},
	)
	MetadataFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_fetch_errors_total",
			Help:      "Swallowed metadata polling failures by call (session, indices, meta).",
		},
		[]string{"call"},
	)
	Executions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Finished executions by status.",
		},
		[]string{"status"},
	)
	StatementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "statement_duration_seconds",
			Help:      "Statement duration by result status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

// Register adds every collector to reg. Repeated calls are no-ops.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			CacheLookups,
			CacheEvictions,
			CacheEntries,
			LoaderReads,
			LoaderRows,
			LoaderFlushes,
			AutoJumps,
			MetadataFetchErrors,
			Executions,
			StatementDuration,
		)
	})
}
