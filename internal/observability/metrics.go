package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clbr_scan_seconds",
		Help:    "Time spent scanning a source module.",
		Buckets: prometheus.DefBuckets,
	}, []string{"dialect"})

	EntitiesExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clbr_entities_extracted_total",
		Help: "Total number of top-level entities produced by scans.",
	}, []string{"dialect"})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clbr_cache_hits_total",
		Help: "Total number of module reads served from the scan cache.",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clbr_cache_misses_total",
		Help: "Total number of module reads that required a fresh scan.",
	})

	ResolveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clbr_resolve_failures_total",
		Help: "Total number of module names no search path could resolve.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clbr_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	StoreWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clbr_store_writes_total",
		Help: "Total number of scan batches persisted to the symbol store.",
	})

	StoreWriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clbr_store_write_seconds",
		Help:    "Latency for persisting one scan batch.",
		Buckets: prometheus.DefBuckets,
	})
)
