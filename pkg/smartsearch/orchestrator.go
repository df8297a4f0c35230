// Package smartsearch orchestrates cached product searches with affiliate
// link resolution.
//
// A smart search runs a small state machine: check the search cache, fetch
// from the marketplace on a miss (deduplicated per cache key, so concurrent
// requests for the same search share one remote call), resolve affiliate
// links per product from the link cache with one batched remote call for the
// misses, and assemble the response with cache-savings metrics.
package smartsearch

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/affiliatekit/smartsearch/pkg/cache"
	"github.com/affiliatekit/smartsearch/pkg/marketplace"
)

// Default cache lifetimes. Search results age quickly (prices, stock);
// affiliate links are stable for a given URL and tracking id.
const (
	DefaultSearchTTL = 30 * time.Minute
	DefaultLinkTTL   = 24 * time.Hour
)

// MarketplaceAPI is the slice of the marketplace client the orchestrator
// uses. *marketplace.Client implements it.
type MarketplaceAPI interface {
	Search(ctx context.Context, req marketplace.SearchRequest) (marketplace.SearchResult, error)
	GenerateLinks(ctx context.Context, urls []string) (map[string]marketplace.AffiliateLink, error)
}

// Config parameterizes an Orchestrator.
type Config struct {
	// SearchTTL is the search cache entry lifetime.
	// Defaults to DefaultSearchTTL.
	SearchTTL time.Duration

	// LinkTTL is the affiliate link cache entry lifetime.
	// Defaults to DefaultLinkTTL.
	LinkTTL time.Duration
}

// Orchestrator is the full smart-search variant: cached searches, affiliate
// link resolution, savings metrics.
type Orchestrator struct {
	api         MarketplaceAPI
	searchCache cache.Store[marketplace.SearchResult]
	linkCache   cache.Store[marketplace.AffiliateLink]
	searchTTL   time.Duration
	linkTTL     time.Duration
	flight      singleflight.Group
	logger      zerolog.Logger
}

var _ SmartSearcher = (*Orchestrator)(nil)

// NewOrchestrator wires the orchestrator over a marketplace client and the
// two cache stores. Panics if any dependency is nil; construction happens
// once at startup and a nil dependency there is a programming error.
func NewOrchestrator(
	api MarketplaceAPI,
	searchCache cache.Store[marketplace.SearchResult],
	linkCache cache.Store[marketplace.AffiliateLink],
	cfg Config,
) *Orchestrator {
	if api == nil {
		panic("marketplace api cannot be nil")
	}
	if searchCache == nil || linkCache == nil {
		panic("cache stores cannot be nil")
	}
	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = DefaultSearchTTL
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = DefaultLinkTTL
	}

	return &Orchestrator{
		api:         api,
		searchCache: searchCache,
		linkCache:   linkCache,
		searchTTL:   cfg.SearchTTL,
		linkTTL:     cfg.LinkTTL,
		logger:      log.With().Str("component", "smartsearch").Logger(),
	}
}

// fetchOutcome is what a search fetch flight resolves to.
type fetchOutcome struct {
	result    marketplace.SearchResult
	fromCache bool
}

// SmartSearch runs the full orchestration for one request.
//
// The returned response is Completed: products in remote order, affiliate
// statuses resolved when requested, savings metrics filled in. A fetch
// failure returns (nil, error) with the marketplace error kind intact and
// never a partial response. Link resolution failures degrade the affected
// products to AffiliateStatusUnavailable instead of failing the search.
func (o *Orchestrator) SmartSearch(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	req.SearchRequest = req.SearchRequest.Normalize()
	if err := req.SearchRequest.Validate(); err != nil {
		smartSearchRequestsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	key := cache.SearchKey(req.SearchRequest)
	var m Metrics

	outcome, err := o.fetchSearch(ctx, key, req)
	if err != nil {
		smartSearchRequestsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	m.CacheHit = outcome.fromCache

	// Annotation must never write through to the cached result, so the
	// response always gets its own copy of the product slice.
	products := slices.Clone(outcome.result.Products)
	if req.GenerateAffiliateLinks {
		o.resolveLinks(ctx, products, &m)
	}

	m.APICallsSaved = m.AffiliateLinksCached
	if m.CacheHit {
		m.APICallsSaved++
	}
	m.ResponseTimeMs = float64(time.Since(start)) / float64(time.Millisecond)

	smartSearchRequestsTotal.WithLabelValues("completed").Inc()
	if m.CacheHit {
		smartSearchCacheHitsTotal.Inc()
	}
	smartSearchCallsSavedTotal.Add(float64(m.APICallsSaved))
	smartSearchDuration.Observe(time.Since(start).Seconds())

	o.logger.Debug().
		Str("key", key).
		Bool("cache_hit", m.CacheHit).
		Int("links_cached", m.AffiliateLinksCached).
		Int("links_generated", m.AffiliateLinksGenerated).
		Int("api_calls_saved", m.APICallsSaved).
		Float64("response_time_ms", m.ResponseTimeMs).
		Msg("Smart search completed")

	return &Response{
		Success: true,
		Data: Data{
			Products:         products,
			TotalRecordCount: outcome.result.TotalRecordCount,
		},
		Metadata: Metadata{SearchOptimization: m},
	}, nil
}

// Search is the basic capability: the cached search path without link
// resolution.
func (o *Orchestrator) Search(ctx context.Context, req marketplace.SearchRequest) (marketplace.SearchResult, error) {
	resp, err := o.SmartSearch(ctx, Request{SearchRequest: req})
	if err != nil {
		return marketplace.SearchResult{}, err
	}
	return marketplace.SearchResult{
		Products:         resp.Data.Products,
		TotalRecordCount: resp.Data.TotalRecordCount,
	}, nil
}

// fetchSearch resolves the search result for key, consulting the cache and
// deduplicating concurrent fetches per key.
func (o *Orchestrator) fetchSearch(ctx context.Context, key string, req Request) (fetchOutcome, error) {
	if !req.ForceRefresh {
		if entry, ok := o.searchCache.Get(ctx, key); ok {
			return fetchOutcome{result: entry.Value, fromCache: true}, nil
		}
	}

	// Forced refreshes fly under a separate key so they only ever share a
	// flight with other forced refreshes and always reach the remote.
	flightKey := key
	if req.ForceRefresh {
		flightKey = "forced\x00" + key
	}

	v, err, shared := o.flight.Do(flightKey, func() (interface{}, error) {
		if !req.ForceRefresh {
			// A concurrent flight may have filled the cache between the
			// miss above and entering this flight.
			if entry, ok := o.searchCache.Get(ctx, key); ok {
				return fetchOutcome{result: entry.Value, fromCache: true}, nil
			}
		}

		result, err := o.api.Search(ctx, req.SearchRequest)
		if err != nil {
			return fetchOutcome{}, err
		}

		// Commit only after the remote call fully completed; a cancelled
		// fetch never writes a partial entry.
		o.searchCache.Put(ctx, key, result, o.searchTTL)
		return fetchOutcome{result: result, fromCache: false}, nil
	})
	if shared {
		smartSearchFlightsShared.Inc()
	}
	if err != nil {
		return fetchOutcome{}, err
	}
	return v.(fetchOutcome), nil
}

// pendingLink tracks a product awaiting the batched link call.
type pendingLink struct {
	index int
	url   string
	key   string
}

// resolveLinks annotates products in place with affiliate links: cache hits
// first, then one batched remote call for the misses. Products the batch
// cannot resolve are marked unavailable; the search itself never fails here.
func (o *Orchestrator) resolveLinks(ctx context.Context, products []marketplace.Product, m *Metrics) {
	if len(products) == 0 {
		return
	}

	var pending []pendingLink
	batchURLs := make([]string, 0, len(products))
	batchSeen := make(map[string]bool, len(products))

	for i := range products {
		rawURL := products[i].URL
		if rawURL == "" {
			products[i].AffiliateStatus = marketplace.AffiliateStatusUnavailable
			smartSearchLinksTotal.WithLabelValues("unavailable").Inc()
			continue
		}

		linkKey := cache.NormalizeLinkURL(rawURL)
		if entry, ok := o.linkCache.Get(ctx, linkKey); ok {
			products[i].AffiliateURL = entry.Value.AffiliateURL
			products[i].AffiliateStatus = marketplace.AffiliateStatusCached
			m.AffiliateLinksCached++
			smartSearchLinksTotal.WithLabelValues("cached").Inc()
			continue
		}

		pending = append(pending, pendingLink{index: i, url: rawURL, key: linkKey})
		if !batchSeen[linkKey] {
			batchSeen[linkKey] = true
			batchURLs = append(batchURLs, rawURL)
		}
	}

	if len(pending) == 0 {
		return
	}

	links, err := o.api.GenerateLinks(ctx, batchURLs)
	if err != nil {
		o.logger.Warn().Err(err).
			Int("products", len(pending)).
			Msg("Affiliate link generation failed, marking products unavailable")
		for _, p := range pending {
			products[p.index].AffiliateStatus = marketplace.AffiliateStatusUnavailable
			smartSearchLinksTotal.WithLabelValues("unavailable").Inc()
		}
		return
	}

	// The remote keys its response by the URLs we sent; re-key by the
	// normalized form so every pending product finds its link.
	byKey := make(map[string]marketplace.AffiliateLink, len(links))
	for rawURL, link := range links {
		byKey[cache.NormalizeLinkURL(rawURL)] = link
	}

	for _, p := range pending {
		link, ok := byKey[p.key]
		if !ok {
			products[p.index].AffiliateStatus = marketplace.AffiliateStatusUnavailable
			smartSearchLinksTotal.WithLabelValues("unavailable").Inc()
			continue
		}
		products[p.index].AffiliateURL = link.AffiliateURL
		products[p.index].AffiliateStatus = marketplace.AffiliateStatusGenerated
		m.AffiliateLinksGenerated++
		smartSearchLinksTotal.WithLabelValues("generated").Inc()
		o.linkCache.Put(ctx, p.key, link, o.linkTTL)
	}
}
