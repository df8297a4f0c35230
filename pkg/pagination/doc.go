// Package pagination provides parallel batch fetching for multi-page
// product searches.
//
// The marketplace reports total_record_count on every search page; this
// package fetches page 1 to size the result set, then fans the remaining
// pages across a worker pool. Page depth is capped because affiliate
// gateways reject deep pagination.
//
// Example usage:
//
//	fetcher := pagination.NewClientPageFetcher(client)
//	batch := pagination.NewBatchFetcher(fetcher, pagination.DefaultConfig())
//	result, err := batch.FetchAll(ctx, marketplace.SearchRequest{Keywords: "phone case"})
//
// The batch fetcher:
//   - Fetches the first page to determine total pages
//   - Spawns a worker pool (default 5 workers)
//   - Distributes remaining pages across workers
//   - Assembles products in page order
//   - Handles per-page errors gracefully (returns partial data plus an error)
package pagination
