package smartsearch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	smartSearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_smartsearch_requests_total",
			Help: "Total smart-search requests by outcome (completed/failed)",
		},
		[]string{"outcome"},
	)

	smartSearchCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affiliate_smartsearch_search_cache_hits_total",
			Help: "Smart-search requests served from the search cache",
		},
	)

	smartSearchLinksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_smartsearch_links_total",
			Help: "Affiliate links resolved by source (cached/generated/unavailable)",
		},
		[]string{"source"},
	)

	smartSearchCallsSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affiliate_smartsearch_api_calls_saved_total",
			Help: "Remote-call units avoided by cache hits",
		},
	)

	smartSearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "affiliate_smartsearch_request_duration_seconds",
			Help:    "Smart-search request duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	smartSearchFlightsShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affiliate_smartsearch_shared_fetches_total",
			Help: "Search fetches that were shared with a concurrent request for the same key",
		},
	)
)
