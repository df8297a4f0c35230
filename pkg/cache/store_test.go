package cache

import (
	"testing"
	"time"
)

func TestNew_DefaultsToMemory(t *testing.T) {
	store, err := New[string](Config{Name: "test", JanitorInterval: time.Hour}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	mem, ok := store.(*MemoryStore[string])
	if !ok {
		t.Fatalf("New() = %T, want *MemoryStore[string]", store)
	}
	defer mem.Close()
}

func TestNew_MemoryBackend(t *testing.T) {
	store, err := New[string](Config{Backend: BackendMemory, Name: "test", JanitorInterval: time.Hour}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	mem, ok := store.(*MemoryStore[string])
	if !ok {
		t.Fatalf("New() = %T, want *MemoryStore[string]", store)
	}
	defer mem.Close()
}

func TestNew_RedisBackendRequiresClient(t *testing.T) {
	if _, err := New[string](Config{Backend: BackendRedis, Name: "test"}, nil); err == nil {
		t.Error("Expected error for redis backend without client, got nil")
	}
}

func TestNew_RedisBackend(t *testing.T) {
	client := setupTestRedis(t)

	store, err := New[string](Config{Backend: BackendRedis, Name: "test"}, client)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := store.(*RedisStore[string]); !ok {
		t.Fatalf("New() = %T, want *RedisStore[string]", store)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New[string](Config{Backend: "memcached"}, nil); err == nil {
		t.Error("Expected error for unknown backend, got nil")
	}
}
