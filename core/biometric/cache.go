package biometric

import (
	"context"
	"sync"
	"time"
)

// Cache stores verification results keyed by content hash. Caching is
// optional per deployment; a nil cache on the Verifier disables it.
type Cache interface {
	Get(ctx context.Context, key string) (Result, bool)
	Set(ctx context.Context, key string, result Result, ttl time.Duration)
}

type memoryEntry struct {
	result  Result
	expires time.Time
}

// MemoryCache is a mutex-guarded in-process cache with TTL expiry.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	if time.Now().After(entry.expires) {
		delete(c.entries, key)
		return Result{}, false
	}
	return entry.result, true
}

func (c *MemoryCache) Set(ctx context.Context, key string, result Result, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{result: result, expires: time.Now().Add(ttl)}
}

var _ Cache = (*MemoryCache)(nil)
