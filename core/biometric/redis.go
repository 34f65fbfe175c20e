package biometric

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares verification results across node replicas. Redis being
// down degrades to a cache miss, never a verification failure.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Result, bool) {
	raw, err := c.client.Get(ctx, "biometric:"+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[BIOMETRIC] redis get failed: %v", err)
		}
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, false
	}
	return result, true
}

func (c *RedisCache) Set(ctx context.Context, key string, result Result, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, "biometric:"+key, raw, ttl).Err(); err != nil {
		log.Printf("[BIOMETRIC] redis set failed: %v", err)
	}
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
