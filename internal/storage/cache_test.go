package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCacheSetGet(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Set("a", 1)
	cache.Set("b", "two")

	v, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = cache.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "two", v)

	_, ok = cache.Get("missing")
	assert.False(t, ok)
}

func TestLRUCacheUpdate(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Set("k", "old")
	cache.Set("k", "new")

	v, ok := cache.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, cache.Len())
}

func TestLRUCacheEviction(t *testing.T) {
	cache := NewLRUCache(2, time.Minute)

	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Set("c", 3)

	_, ok := cache.Get("a")
	assert.False(t, ok, "oldest entry should be evicted at capacity")

	_, ok = cache.Get("b")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
}

func TestLRUCacheAccessRefreshesOrder(t *testing.T) {
	cache := NewLRUCache(2, time.Minute)

	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Get("a") // a is now most recently used
	cache.Set("c", 3)

	_, ok := cache.Get("a")
	assert.True(t, ok)
	_, ok = cache.Get("b")
	assert.False(t, ok)
}

func TestLRUCacheTTLExpiry(t *testing.T) {
	cache := NewLRUCache(10, 20*time.Millisecond)

	cache.Set("k", "v")
	_, ok := cache.Get("k")
	assert.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	_, ok = cache.Get("k")
	assert.False(t, ok, "expired entry should be treated as a miss")
}

func TestLRUCacheDelete(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Set("k", "v")
	cache.Delete("k")

	_, ok := cache.Get("k")
	assert.False(t, ok)

	// Deleting a missing key is a no-op.
	cache.Delete("missing")
}

func TestLRUCacheCleanupExpired(t *testing.T) {
	cache := NewLRUCache(10, 20*time.Millisecond)

	cache.Set("a", 1)
	cache.Set("b", 2)
	time.Sleep(30 * time.Millisecond)
	cache.Set("c", 3)

	removed := cache.CleanupExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, cache.Len())
}

func TestLRUCacheClear(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Clear()

	assert.Equal(t, 0, cache.Len())
	_, ok := cache.Get("a")
	assert.False(t, ok)
}
