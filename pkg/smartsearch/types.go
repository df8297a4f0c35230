package smartsearch

import (
	"context"

	"github.com/affiliatekit/smartsearch/pkg/marketplace"
)

// Request is a product search plus the orchestration switches.
type Request struct {
	marketplace.SearchRequest

	// ForceRefresh bypasses the search cache on read. The fresh result
	// still overwrites the cache entry.
	ForceRefresh bool `json:"force_refresh"`

	// GenerateAffiliateLinks enables link resolution for the result's
	// products.
	GenerateAffiliateLinks bool `json:"generate_affiliate_links"`
}

// Response is the orchestrator's terminal success state.
type Response struct {
	Success  bool     `json:"success"`
	Data     Data     `json:"data"`
	Metadata Metadata `json:"metadata"`
}

// Data carries the search payload.
type Data struct {
	Products         []marketplace.Product `json:"products"`
	TotalRecordCount int                   `json:"total_record_count"`
}

// Metadata carries per-request diagnostics.
type Metadata struct {
	SearchOptimization Metrics `json:"search_optimization"`
}

// Metrics reports how much remote-call cost the caches saved for one request.
type Metrics struct {
	// CacheHit is true when the search result came from the cache.
	CacheHit bool `json:"cache_hit"`

	// AffiliateLinksCached counts products whose link came from the cache.
	AffiliateLinksCached int `json:"affiliate_links_cached"`

	// AffiliateLinksGenerated counts products whose link came from the
	// batched remote call.
	AffiliateLinksGenerated int `json:"affiliate_links_generated"`

	// APICallsSaved is the number of remote-call units avoided: one per
	// cached link, plus one when the search itself was cached.
	APICallsSaved int `json:"api_calls_saved"`

	// ResponseTimeMs is wall-clock time for the whole request.
	ResponseTimeMs float64 `json:"response_time_ms"`
}

// ProductSearcher is the basic search capability.
type ProductSearcher interface {
	Search(ctx context.Context, req marketplace.SearchRequest) (marketplace.SearchResult, error)
}

// SmartSearcher is the enhanced capability: cached search with affiliate-link
// resolution and savings metrics. Only variants that actually orchestrate
// implement it; callers branch on the interface, not on runtime probing.
type SmartSearcher interface {
	ProductSearcher
	SmartSearch(ctx context.Context, req Request) (*Response, error)
}
