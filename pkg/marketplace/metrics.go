package marketplace

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for marketplace client operations.
var (
	marketplaceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "affiliate_marketplace_requests_total",
		Help: "Total marketplace requests by method and status",
	}, []string{"method", "status"})

	marketplaceRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "affiliate_marketplace_request_duration_seconds",
		Help:    "Marketplace request duration in seconds by method",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method"})

	marketplaceErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "affiliate_marketplace_errors_total",
		Help: "Total marketplace errors by kind",
	}, []string{"kind"})

	marketplaceRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "affiliate_marketplace_retries_total",
		Help: "Total number of retry attempts by method",
	}, []string{"method"})

	marketplaceRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "affiliate_marketplace_retry_backoff_seconds",
		Help:    "Backoff duration for retries by method",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"method"})

	marketplaceRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "affiliate_marketplace_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by method",
	}, []string{"method"})

	marketplaceBreakerTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "affiliate_marketplace_breaker_transitions_total",
		Help: "Total circuit breaker state transitions by new state",
	}, []string{"state"})
)
