package pagination

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/affiliatekit/smartsearch/pkg/marketplace"
)

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel page fetches.
	// Affiliate gateways throttle per app key, so keep this small.
	MaxConcurrency int
	// PageTimeout bounds each page fetch.
	PageTimeout time.Duration
	// MaxPages caps how deep the fetcher paginates regardless of
	// total_record_count.
	MaxPages int
}

// DefaultConfig returns safe defaults for the marketplace gateway.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 5,
		PageTimeout:    15 * time.Second,
		MaxPages:       20,
	}
}

// Searcher is the single-search capability the page fetcher builds on.
// *marketplace.Client, *smartsearch.Orchestrator and *smartsearch.DirectSearch
// all implement it.
type Searcher interface {
	Search(ctx context.Context, req marketplace.SearchRequest) (marketplace.SearchResult, error)
}

// PageFetcher fetches a single page of a search.
type PageFetcher interface {
	FetchPage(ctx context.Context, req marketplace.SearchRequest, pageNo int) (marketplace.SearchResult, error)
}

// ClientPageFetcher adapts a Searcher into a PageFetcher.
type ClientPageFetcher struct {
	searcher Searcher
}

// NewClientPageFetcher creates the adapter.
func NewClientPageFetcher(searcher Searcher) *ClientPageFetcher {
	if searcher == nil {
		panic("searcher cannot be nil")
	}
	return &ClientPageFetcher{searcher: searcher}
}

// FetchPage runs the search with the page number swapped in.
func (f *ClientPageFetcher) FetchPage(ctx context.Context, req marketplace.SearchRequest, pageNo int) (marketplace.SearchResult, error) {
	req.PageNo = pageNo
	return f.searcher.Search(ctx, req)
}

// pageResult carries one page's outcome from a worker to the collector.
type pageResult struct {
	pageNo int
	result marketplace.SearchResult
	err    error
}

// BatchFetcher fetches all pages of a search in parallel.
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewBatchFetcher creates a batch fetcher. Zero config fields fall back to
// DefaultConfig values.
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if fetcher == nil {
		panic("page fetcher cannot be nil")
	}
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.PageTimeout <= 0 {
		config.PageTimeout = defaults.PageTimeout
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "batch-fetcher").Logger(),
	}
}

// FetchAll fetches every page of the search and concatenates the products in
// page order. When some pages fail, the successfully fetched products are
// returned together with a non-nil error describing the gap, so callers can
// choose partial data over nothing.
func (bf *BatchFetcher) FetchAll(ctx context.Context, req marketplace.SearchRequest) (marketplace.SearchResult, error) {
	start := time.Now()

	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return marketplace.SearchResult{}, err
	}

	first, err := bf.fetcher.FetchPage(ctx, req, 1)
	if err != nil {
		return marketplace.SearchResult{}, fmt.Errorf("fetch first page: %w", err)
	}

	totalPages := (first.TotalRecordCount + req.PageSize - 1) / req.PageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if totalPages > bf.config.MaxPages {
		bf.logger.Debug().
			Int("total_pages", totalPages).
			Int("max_pages", bf.config.MaxPages).
			Msg("Capping page depth")
		totalPages = bf.config.MaxPages
	}

	bf.logger.Info().
		Str("keywords", req.Keywords).
		Int("total_records", first.TotalRecordCount).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	pages := map[int][]marketplace.Product{1: first.Products}

	if totalPages > 1 {
		pageQueue := make(chan int, totalPages)
		for page := 2; page <= totalPages; page++ {
			pageQueue <- page
		}
		close(pageQueue)

		results := make(chan pageResult, totalPages)

		var wg sync.WaitGroup
		workers := bf.config.MaxConcurrency
		if workers > totalPages-1 {
			workers = totalPages - 1
		}
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go bf.worker(ctx, req, pageQueue, results, &wg)
		}

		go func() {
			wg.Wait()
			close(results)
		}()

		var failed []int
		var firstErr error
		for r := range results {
			if r.err != nil {
				bf.logger.Warn().Err(r.err).Int("page", r.pageNo).Msg("Page fetch failed")
				failed = append(failed, r.pageNo)
				if firstErr == nil {
					firstErr = r.err
				}
				continue
			}
			pages[r.pageNo] = r.result.Products
		}

		if len(pages) < totalPages {
			slices.Sort(failed)
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			if firstErr == nil {
				firstErr = errors.New("pages missing")
			}
			return assemble(pages, totalPages, first.TotalRecordCount),
				fmt.Errorf("fetched %d/%d pages (failed: %v): %w", len(pages), totalPages, failed, firstErr)
		}
	}

	result := assemble(pages, totalPages, first.TotalRecordCount)

	bf.logger.Info().
		Str("keywords", req.Keywords).
		Int("pages", totalPages).
		Int("products", len(result.Products)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return result, nil
}

// worker drains the page queue until it is empty or the context ends.
func (bf *BatchFetcher) worker(ctx context.Context, req marketplace.SearchRequest, pageQueue <-chan int, results chan<- pageResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for pageNo := range pageQueue {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pageCtx, cancel := context.WithTimeout(ctx, bf.config.PageTimeout)
		result, err := bf.fetcher.FetchPage(pageCtx, req, pageNo)
		cancel()

		select {
		case results <- pageResult{pageNo: pageNo, result: result, err: err}:
		case <-ctx.Done():
			return
		}
	}
}

// assemble concatenates the fetched pages in page order. Failed pages leave
// no placeholder; the caller learns about gaps from FetchAll's error.
func assemble(pages map[int][]marketplace.Product, totalPages, totalRecords int) marketplace.SearchResult {
	var products []marketplace.Product
	for page := 1; page <= totalPages; page++ {
		products = append(products, pages[page]...)
	}
	return marketplace.SearchResult{
		Products:         products,
		TotalRecordCount: totalRecords,
	}
}
