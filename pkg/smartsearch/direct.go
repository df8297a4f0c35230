package smartsearch

import (
	"context"

	"github.com/affiliatekit/smartsearch/pkg/marketplace"
)

// DirectSearch is the basic variant: every search goes straight to the
// marketplace, no caches, no link resolution. It deliberately does not
// implement SmartSearcher; callers that need smart search hold an
// *Orchestrator instead.
type DirectSearch struct {
	api MarketplaceAPI
}

var _ ProductSearcher = (*DirectSearch)(nil)

// NewDirectSearch creates the passthrough variant.
func NewDirectSearch(api MarketplaceAPI) *DirectSearch {
	if api == nil {
		panic("marketplace api cannot be nil")
	}
	return &DirectSearch{api: api}
}

// Search forwards the request to the marketplace unchanged.
func (d *DirectSearch) Search(ctx context.Context, req marketplace.SearchRequest) (marketplace.SearchResult, error) {
	return d.api.Search(ctx, req)
}
