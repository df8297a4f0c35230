package cache

import (
	"time"
)

// Entry is one cached value with its bookkeeping. Stores hand out copies;
// the Value inside must be treated as read-only by callers because the
// shallow parts may still be shared with the stored entry.
type Entry[V any] struct {
	// Key the entry is stored under.
	Key string `json:"key"`

	// Value is the cached payload.
	Value V `json:"value"`

	// CreatedAt is when the entry was written.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the entry becomes stale. Always after CreatedAt.
	ExpiresAt time.Time `json:"expires_at"`

	// HitCount is how often the entry was served. Incremented on successful
	// reads only, never on writes or misses.
	HitCount int64 `json:"hit_count"`
}

// IsExpired returns true once the entry's lifetime is over. The boundary
// instant itself counts as expired.
func (e *Entry[V]) IsExpired() bool {
	return !time.Now().Before(e.ExpiresAt)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry[V]) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns how long ago the entry was written.
func (e *Entry[V]) Age() time.Duration {
	return time.Since(e.CreatedAt)
}

func newEntry[V any](key string, value V, ttl time.Duration) Entry[V] {
	now := time.Now()
	return Entry[V]{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}
