package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// redisKeyPrefix namespaces all cache keys in Redis.
const redisKeyPrefix = "affiliate:cache:"

// RedisStore is the shared Store backend: entries are stored as JSON with a
// server-side TTL, so replicas see each other's writes and Redis evicts
// stale entries on its own.
//
// Hit counting is read-modify-write and therefore best effort under
// concurrent hits on the same key; the memory backend counts exactly.
type RedisStore[V any] struct {
	redis  *redis.Client
	name   string
	prefix string
	logger zerolog.Logger
}

// NewRedisStore creates a redis-backed store.
func NewRedisStore[V any](redisClient *redis.Client, name string) *RedisStore[V] {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if name == "" {
		name = "default"
	}

	return &RedisStore[V]{
		redis:  redisClient,
		name:   name,
		prefix: redisKeyPrefix + name + ":",
		logger: log.With().Str("component", "redis-cache").Str("store", name).Logger(),
	}
}

func (s *RedisStore[V]) redisKey(key string) string {
	return s.prefix + key
}

// Get returns a copy of the entry under key and counts the hit. Backend
// faults and corrupt payloads degrade to a miss.
func (s *RedisStore[V]) Get(ctx context.Context, key string) (Entry[V], bool) {
	data, err := s.redis.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMissesTotal.WithLabelValues(s.name).Inc()
			return Entry[V]{}, false
		}
		cacheErrorsTotal.WithLabelValues(s.name, "get").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache get failed, treating as miss")
		return Entry[V]{}, false
	}

	var entry Entry[V]
	if err := json.Unmarshal(data, &entry); err != nil {
		cacheErrorsTotal.WithLabelValues(s.name, "get").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Corrupt cache entry, dropping")
		_ = s.redis.Del(ctx, s.redisKey(key)).Err()
		return Entry[V]{}, false
	}

	// The server TTL normally removes stale entries; this guards against
	// clock skew between writer and Redis.
	if entry.IsExpired() {
		_ = s.redis.Del(ctx, s.redisKey(key)).Err()
		cacheEvictionsTotal.WithLabelValues(s.name).Inc()
		cacheMissesTotal.WithLabelValues(s.name).Inc()
		return Entry[V]{}, false
	}

	entry.HitCount++
	if payload, err := json.Marshal(entry); err == nil {
		if err := s.redis.Set(ctx, s.redisKey(key), payload, redis.KeepTTL).Err(); err != nil {
			cacheErrorsTotal.WithLabelValues(s.name, "hit_count").Inc()
			s.logger.Debug().Err(err).Str("key", key).Msg("Failed to persist hit count")
		}
	}

	cacheHitsTotal.WithLabelValues(s.name).Inc()
	return entry, true
}

// Put stores value under key with the given lifetime.
// A non-positive ttl invalidates instead.
func (s *RedisStore[V]) Put(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		s.Invalidate(ctx, key)
		return
	}

	entry := newEntry(key, value, ttl)

	payload, err := json.Marshal(entry)
	if err != nil {
		cacheErrorsTotal.WithLabelValues(s.name, "put").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to marshal cache entry, dropping")
		return
	}

	if err := s.redis.Set(ctx, s.redisKey(key), payload, ttl).Err(); err != nil {
		cacheErrorsTotal.WithLabelValues(s.name, "put").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache put failed, dropping")
	}
}

// Invalidate removes the entry under key, if any.
func (s *RedisStore[V]) Invalidate(ctx context.Context, key string) {
	if err := s.redis.Del(ctx, s.redisKey(key)).Err(); err != nil {
		cacheErrorsTotal.WithLabelValues(s.name, "delete").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache invalidate failed")
	}
}

// Len counts this store's keys in Redis. Linear in key count; intended for
// diagnostics and tests, not hot paths.
func (s *RedisStore[V]) Len(ctx context.Context) int {
	count := 0
	iter := s.redis.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		cacheErrorsTotal.WithLabelValues(s.name, "len").Inc()
		s.logger.Warn().Err(err).Msg("Cache scan failed")
	}
	return count
}
