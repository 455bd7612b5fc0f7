// Package dedupe guards at-least-once intake triggers with idempotency keys.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Deduper records processed keys. Scope namespaces keys, for example by board.
type Deduper interface {
	// Add records the key if it does not already exist and reports whether it was newly added.
	Add(ctx context.Context, scope, key string) (bool, error)
	// Remove deletes a recorded key so a failed trigger can be retried.
	Remove(ctx context.Context, scope, key string) error
}

// RedisDeduper stores processed idempotency keys in Redis so all instances
// skip a trigger that was already handled.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

// Open connects to the Redis URL and pings it
func Open(ctx context.Context, url string, ttl time.Duration) (*RedisDeduper, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisDeduper(client, ttl), nil
}

// Close releases the Redis client
func (r *RedisDeduper) Close() error {
	return r.client.Close()
}

func (r *RedisDeduper) key(scope, key string) string {
	return fmt.Sprintf("boardroom:intake:%s:%s", scope, key)
}

func (r *RedisDeduper) Add(ctx context.Context, scope, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(scope, key), 1, r.ttl).Result()
}

func (r *RedisDeduper) Remove(ctx context.Context, scope, key string) error {
	return r.client.Del(ctx, r.key(scope, key)).Err()
}

// MemoryDeduper is a single-process Deduper used when Redis is not configured.
// Expired keys are evicted by the cache janitor every ttl.
type MemoryDeduper struct {
	seen *cache.Cache
}

// NewMemoryDeduper creates an in-process deduper
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{seen: cache.New(ttl, ttl)}
}

func (m *MemoryDeduper) Add(_ context.Context, scope, key string) (bool, error) {
	// Add fails while an unexpired entry holds the key
	return m.seen.Add(scope+":"+key, struct{}{}, cache.DefaultExpiration) == nil, nil
}

func (m *MemoryDeduper) Remove(_ context.Context, scope, key string) error {
	m.seen.Delete(scope + ":" + key)
	return nil
}

// Len counts stored keys, including expired ones the janitor has not evicted yet
func (m *MemoryDeduper) Len() int {
	return m.seen.ItemCount()
}
