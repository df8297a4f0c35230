package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MemoryStore is the in-process Store backend: a mutex-guarded map with lazy
// expiry on read and a background janitor sweep. Operations never block on
// I/O, which makes it the orchestrator's default backend.
type MemoryStore[V any] struct {
	name string

	mu      sync.Mutex
	entries map[string]*Entry[V]

	janitorInterval time.Duration
	stopJanitor     chan struct{}
	closeOnce       sync.Once
	logger          zerolog.Logger
}

// NewMemoryStore creates a memory store and starts its janitor goroutine.
// A non-positive janitorInterval selects DefaultJanitorInterval. Call Close
// on shutdown to stop the janitor.
func NewMemoryStore[V any](name string, janitorInterval time.Duration) *MemoryStore[V] {
	if name == "" {
		name = "default"
	}
	if janitorInterval <= 0 {
		janitorInterval = DefaultJanitorInterval
	}

	s := &MemoryStore[V]{
		name:            name,
		entries:         make(map[string]*Entry[V]),
		janitorInterval: janitorInterval,
		stopJanitor:     make(chan struct{}),
		logger:          log.With().Str("component", "memory-cache").Str("store", name).Logger(),
	}

	go s.janitor()

	return s
}

// Get returns a copy of the entry under key and counts the hit.
// Expired entries are evicted on the spot and reported as misses.
func (s *MemoryStore[V]) Get(_ context.Context, key string) (Entry[V], bool) {
	now := time.Now()

	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		cacheMissesTotal.WithLabelValues(s.name).Inc()
		return Entry[V]{}, false
	}
	if !now.Before(entry.ExpiresAt) {
		delete(s.entries, key)
		size := len(s.entries)
		s.mu.Unlock()
		cacheEntries.WithLabelValues(s.name).Set(float64(size))
		cacheEvictionsTotal.WithLabelValues(s.name).Inc()
		cacheMissesTotal.WithLabelValues(s.name).Inc()
		return Entry[V]{}, false
	}
	entry.HitCount++
	copied := *entry
	s.mu.Unlock()

	cacheHitsTotal.WithLabelValues(s.name).Inc()
	return copied, true
}

// Put stores value under key, overwriting any existing entry.
// A non-positive ttl invalidates instead.
func (s *MemoryStore[V]) Put(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		s.Invalidate(ctx, key)
		return
	}

	entry := newEntry(key, value, ttl)

	s.mu.Lock()
	s.entries[key] = &entry
	size := len(s.entries)
	s.mu.Unlock()

	cacheEntries.WithLabelValues(s.name).Set(float64(size))
}

// Invalidate removes the entry under key, if any.
func (s *MemoryStore[V]) Invalidate(_ context.Context, key string) {
	s.mu.Lock()
	delete(s.entries, key)
	size := len(s.entries)
	s.mu.Unlock()

	cacheEntries.WithLabelValues(s.name).Set(float64(size))
}

// Len returns the number of stored entries, including expired ones the
// janitor has not swept yet.
func (s *MemoryStore[V]) Len(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear removes all entries. Useful for tests or manual resets.
func (s *MemoryStore[V]) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*Entry[V])
	s.mu.Unlock()

	cacheEntries.WithLabelValues(s.name).Set(0)
}

// Close stops the janitor goroutine. Safe to call more than once.
func (s *MemoryStore[V]) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopJanitor)
	})
	return nil
}

// janitor periodically sweeps expired entries so long-idle keys do not pin
// memory until their next read.
func (s *MemoryStore[V]) janitor() {
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			removed := 0

			s.mu.Lock()
			for key, entry := range s.entries {
				if !now.Before(entry.ExpiresAt) {
					delete(s.entries, key)
					removed++
				}
			}
			size := len(s.entries)
			s.mu.Unlock()

			if removed > 0 {
				cacheEntries.WithLabelValues(s.name).Set(float64(size))
				cacheEvictionsTotal.WithLabelValues(s.name).Add(float64(removed))
				s.logger.Debug().
					Int("removed", removed).
					Int("remaining", size).
					Msg("Swept expired cache entries")
			}
		case <-s.stopJanitor:
			return
		}
	}
}
