package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client for testing.
// Unit tests skip when no local Redis is reachable; the integration suite
// under tests/integration uses testcontainers-go with a real instance.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	// Flush test DB before each test
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisStore_PanicsOnNilClient(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore[string](nil, "test")
}

func TestRedisStore_PutGet(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, "test")
	ctx := context.Background()

	store.Put(ctx, "k1", "v1", time.Minute)

	entry, ok := store.Get(ctx, "k1")
	if !ok {
		t.Fatal("Expected hit, got miss")
	}
	if entry.Value != "v1" {
		t.Errorf("Value = %v, want v1", entry.Value)
	}
	if entry.Key != "k1" {
		t.Errorf("Key = %v, want k1", entry.Key)
	}
}

func TestRedisStore_MissOnUnknownKey(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, "test")

	if _, ok := store.Get(context.Background(), "absent"); ok {
		t.Error("Expected miss for unknown key, got hit")
	}
}

func TestRedisStore_HitCountPersists(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, "test")
	ctx := context.Background()

	store.Put(ctx, "k1", "v1", time.Minute)

	for want := int64(1); want <= 3; want++ {
		entry, ok := store.Get(ctx, "k1")
		if !ok {
			t.Fatalf("Expected hit %d, got miss", want)
		}
		if entry.HitCount != want {
			t.Errorf("HitCount = %d, want %d", entry.HitCount, want)
		}
	}
}

func TestRedisStore_HitCountKeepsTTL(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, "test")
	ctx := context.Background()

	store.Put(ctx, "k1", "v1", time.Minute)
	store.Get(ctx, "k1")

	// Persisting the hit count must not extend the entry's lifetime.
	ttl, err := client.TTL(ctx, redisKeyPrefix+"test:k1").Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want within (0, 1m]", ttl)
	}
}

func TestRedisStore_Expiry(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, "test")
	ctx := context.Background()

	store.Put(ctx, "short", "v", 100*time.Millisecond)

	if _, ok := store.Get(ctx, "short"); !ok {
		t.Fatal("Expected hit before expiry")
	}

	time.Sleep(150 * time.Millisecond)

	if _, ok := store.Get(ctx, "short"); ok {
		t.Error("Expected miss after expiry, got hit")
	}
}

func TestRedisStore_PutOverwrites(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, "test")
	ctx := context.Background()

	store.Put(ctx, "k1", "old", time.Minute)
	store.Get(ctx, "k1")
	store.Put(ctx, "k1", "new", time.Minute)

	entry, ok := store.Get(ctx, "k1")
	if !ok {
		t.Fatal("Expected hit after overwrite")
	}
	if entry.Value != "new" {
		t.Errorf("Value = %v, want new", entry.Value)
	}
	if entry.HitCount != 1 {
		t.Errorf("HitCount = %d, want 1 after overwrite", entry.HitCount)
	}
}

func TestRedisStore_NonPositiveTTLInvalidates(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, "test")
	ctx := context.Background()

	store.Put(ctx, "k1", "v1", time.Minute)
	store.Put(ctx, "k1", "v2", 0)

	if _, ok := store.Get(ctx, "k1"); ok {
		t.Error("Expected miss after zero-TTL put, got hit")
	}
}

func TestRedisStore_Invalidate(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, "test")
	ctx := context.Background()

	store.Put(ctx, "k1", "v1", time.Minute)
	store.Invalidate(ctx, "k1")

	if _, ok := store.Get(ctx, "k1"); ok {
		t.Error("Expected miss after invalidate, got hit")
	}
}

func TestRedisStore_CorruptEntryDropped(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, "test")
	ctx := context.Background()

	if err := client.Set(ctx, redisKeyPrefix+"test:bad", "{not json", time.Minute).Err(); err != nil {
		t.Fatalf("Failed to seed corrupt entry: %v", err)
	}

	if _, ok := store.Get(ctx, "bad"); ok {
		t.Error("Expected miss for corrupt entry, got hit")
	}

	// The corrupt payload is removed so it cannot fail again.
	if err := client.Get(ctx, redisKeyPrefix+"test:bad").Err(); err != redis.Nil {
		t.Errorf("Expected corrupt key to be deleted, got err = %v", err)
	}
}

func TestRedisStore_Len(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore[string](client, "test")
	other := NewRedisStore[string](client, "other")
	ctx := context.Background()

	store.Put(ctx, "k1", "v", time.Minute)
	store.Put(ctx, "k2", "v", time.Minute)
	other.Put(ctx, "k1", "v", time.Minute)

	if got := store.Len(ctx); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
	if got := other.Len(ctx); got != 1 {
		t.Errorf("other Len() = %d, want 1", got)
	}
}

func TestRedisStore_StoresIsolatedByName(t *testing.T) {
	client := setupTestRedis(t)
	search := NewRedisStore[string](client, "search")
	links := NewRedisStore[string](client, "links")
	ctx := context.Background()

	search.Put(ctx, "k1", "search-value", time.Minute)
	links.Put(ctx, "k1", "link-value", time.Minute)

	entry, ok := search.Get(ctx, "k1")
	if !ok || entry.Value != "search-value" {
		t.Errorf("search entry = %v, %v; want search-value hit", entry.Value, ok)
	}
	entry, ok = links.Get(ctx, "k1")
	if !ok || entry.Value != "link-value" {
		t.Errorf("links entry = %v, %v; want link-value hit", entry.Value, ok)
	}

	search.Invalidate(ctx, "k1")
	if _, ok := links.Get(ctx, "k1"); !ok {
		t.Error("Invalidate on one store must not touch another store's keys")
	}
}

func TestRedisStore_StructValues(t *testing.T) {
	client := setupTestRedis(t)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	store := NewRedisStore[payload](client, "test")
	ctx := context.Background()

	store.Put(ctx, "k1", payload{Name: "widget", Count: 7}, time.Minute)

	entry, ok := store.Get(ctx, "k1")
	if !ok {
		t.Fatal("Expected hit, got miss")
	}
	if entry.Value.Name != "widget" || entry.Value.Count != 7 {
		t.Errorf("Value = %+v, want {widget 7}", entry.Value)
	}
}
