// Package cache provides the TTL caches behind smart search: a generic
// store with expiration and hit counting, plus the key builders for search
// requests and destination URLs.
//
// Two backends implement the same Store contract:
//
//   - MemoryStore: RWMutex map with lazy expiry and a janitor sweep. Never
//     blocks on I/O; the default for the orchestrator.
//   - RedisStore: JSON entries with server-side TTL, shared across replicas.
//
// Store operations never surface backend errors. A backend fault degrades
// to a miss so callers fall through to the remote marketplace (fail-open);
// the fault is logged and counted instead.
//
// # Basic Usage
//
//	store := cache.NewMemoryStore[marketplace.SearchResult]("search", 0)
//	defer store.Close()
//
//	key := cache.SearchKey(req)
//	if entry, ok := store.Get(ctx, key); ok {
//		return entry.Value
//	}
//
//	result, err := client.Search(ctx, req)
//	if err != nil {
//		return err
//	}
//	store.Put(ctx, key, result, 15*time.Minute)
//
// # Keys
//
// SearchKey renders a normalized search request into a deterministic key:
// keywords are lower-cased with whitespace collapsed, fields appear in a
// fixed order, absent optionals render as "-". NormalizeLinkURL canonicalizes
// destination URLs (lower-cased scheme/host, sorted query, no fragment, no
// trailing slash) so equivalent spellings of one product URL share a single
// link cache entry.
//
// # Metrics
//
// The package exports Prometheus metrics, labelled by store name:
//
//   - affiliate_cache_hits_total{store} - Cache hits
//   - affiliate_cache_misses_total{store} - Cache misses
//   - affiliate_cache_evictions_total{store} - Lazily evicted expired entries
//   - affiliate_cache_errors_total{store,operation} - Backend faults
//   - affiliate_cache_entries{store} - Current entry count (memory backend)
package cache
