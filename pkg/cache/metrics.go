package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHitsTotal tracks cache hits by store name.
	cacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"store"},
	)

	// cacheMissesTotal tracks cache misses by store name.
	cacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"store"},
	)

	// cacheEvictionsTotal tracks expired entries dropped lazily or by the
	// janitor sweep.
	cacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_cache_evictions_total",
			Help: "Total number of expired cache entries evicted",
		},
		[]string{"store"},
	)

	// cacheErrorsTotal tracks backend faults that degraded to misses.
	cacheErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_cache_errors_total",
			Help: "Total number of cache backend errors",
		},
		[]string{"store", "operation"}, // "get", "put", "delete", "hit_count", "len"
	)

	// cacheEntries tracks the current entry count (memory backend only).
	cacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "affiliate_cache_entries",
			Help: "Current number of cache entries",
		},
		[]string{"store"},
	)
)
