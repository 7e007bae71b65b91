package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh cache hits.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tdx_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	// CacheMisses tracks cache misses by reason.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tdx_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"reason"}, // "absent", "stale"
	)

	// CacheEntries tracks the number of held entries, fresh or stale.
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tdx_cache_entries",
			Help: "Current number of entries held by the response cache",
		},
	)

	// CacheEvictions tracks capacity evictions.
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tdx_cache_evictions_total",
			Help: "Total number of entries evicted because the cache was full",
		},
	)
)
