package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Supported store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultJanitorInterval is the memory backend's sweep cadence when the
// config leaves it unset.
const DefaultJanitorInterval = 5 * time.Minute

// Store is the generic TTL cache contract shared by both backends.
//
// Implementations never surface backend errors: a fault degrades to a miss
// so callers fall through to the remote (fail-open), and the fault is
// logged and counted instead.
type Store[V any] interface {
	// Get returns a copy of the entry under key. A hit increments the
	// stored entry's HitCount; an absent or expired key is a miss and
	// never touches it.
	Get(ctx context.Context, key string) (Entry[V], bool)

	// Put stores value under key with the given lifetime, overwriting any
	// existing entry. A non-positive ttl invalidates instead.
	Put(ctx context.Context, key string, value V, ttl time.Duration)

	// Invalidate removes the entry under key, if any.
	Invalidate(ctx context.Context, key string)

	// Len reports the number of stored entries, including expired ones
	// that have not been swept yet.
	Len(ctx context.Context) int
}

// Config selects and parameterizes a store backend.
type Config struct {
	// Backend is BackendMemory (default) or BackendRedis.
	Backend string

	// Name labels the store's metrics and namespaces its Redis keys,
	// e.g. "search" or "link".
	Name string

	// JanitorInterval is the memory backend's sweep cadence.
	// Defaults to DefaultJanitorInterval.
	JanitorInterval time.Duration
}

// New creates a store for the configured backend. The redis client is only
// required for BackendRedis.
func New[V any](cfg Config, redisClient *redis.Client) (Store[V], error) {
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore[V](cfg.Name, cfg.JanitorInterval), nil
	case BackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("cache backend %q requires a redis client", cfg.Backend)
		}
		return NewRedisStore[V](redisClient, cfg.Name), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
