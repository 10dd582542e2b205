package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL strategies shared by the backend's cached resources.
const (
	TTLOAuth        = 30 * time.Minute
	TTLSession      = 24 * time.Hour
	TTLConversation = 2 * time.Hour
	TTLOrder        = 5 * time.Minute
	TTLShort        = time.Minute
)

// Cache is a JSON value cache on top of Redis. Values are marshaled on Set
// and unmarshaled into the caller's destination on Get; a missing key is
// reported as ErrCacheMiss.
type Cache struct {
	client redis.UniversalClient
}

// New creates a cache backed by the given Redis client.
func New(client redis.UniversalClient) (*Cache, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	return &Cache{client: client}, nil
}

// Get reads the value stored under key into dest.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if key == "" {
		return ErrKeyEmpty
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %q: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache get %q: unmarshal: %w", key, err)
	}
	return nil
}

// Set stores value under key. A zero ttl stores the value without expiry.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrKeyEmpty
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache set %q: marshal: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// SetWithJitter stores value with the base ttl skewed by up to ±10% so
// co-created entries do not expire in the same instant.
func (c *Cache) SetWithJitter(ctx context.Context, key string, value any, baseTTL time.Duration) error {
	jitter := time.Duration(0)
	if spread := int64(baseTTL / 10); spread > 0 {
		jitter = time.Duration(rand.Int63n(2*spread+1) - spread)
	}
	return c.Set(ctx, key, value, baseTTL+jitter)
}

// GetOrSet reads the value under key into dest, falling back to fn on a
// miss: the produced value is cached with jitter and written to dest.
func (c *Cache) GetOrSet(ctx context.Context, key string, dest any, ttl time.Duration, fn func(ctx context.Context) (any, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return err
	}

	value, err := fn(ctx)
	if err != nil {
		return err
	}
	if err := c.SetWithJitter(ctx, key, value, ttl); err != nil {
		return err
	}

	// Round-trip through JSON so dest sees exactly what a later Get would.
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache get-or-set %q: marshal: %w", key, err)
	}
	return json.Unmarshal(data, dest)
}

// Delete removes the given keys. Deleting absent keys is a no-op.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Exists reports whether key is present.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists %q: %w", key, err)
	}
	return n > 0, nil
}

// Increment adds delta to the counter under key and returns the new value.
func (c *Cache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if key == "" {
		return 0, ErrKeyEmpty
	}
	n, err := c.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("cache increment %q: %w", key, err)
	}
	return n, nil
}

// InvalidatePattern deletes every key matching the glob pattern, scanning in
// pages of 100 to keep the store responsive, and returns the number of keys
// removed.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) (int64, error) {
	var cursor uint64
	var deleted int64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache invalidate %q: scan: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("cache invalidate %q: del: %w", pattern, err)
			}
			deleted += n
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

// Healthcheck probes store reachability.
func (c *Cache) Healthcheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
