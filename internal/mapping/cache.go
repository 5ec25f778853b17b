package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheVersionKey = "mapping:rules:version"

// Loader fetches the active rule set from the rule store.
type Loader func(ctx context.Context) ([]Rule, error)

// Cache keeps the active rule set in Redis with a bounded staleness
// window, so operator edits take effect without a process restart. The
// cache is an injected value, not a process-wide singleton; concurrent
// misses coalesce into a single loader call.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	loader Loader
	group  singleflight.Group
}

// NewCache instantiates the cache helper. A nil client degrades to
// calling the loader directly.
func NewCache(client *redis.Client, ttl time.Duration, loader Loader) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl, loader: loader}
}

// Rules returns the active rule set, no staler than the configured TTL.
func (c *Cache) Rules(ctx context.Context) ([]Rule, error) {
	if c == nil || c.loader == nil {
		return nil, errors.New("mapping: cache loader required")
	}
	if c.client == nil {
		return c.loader(ctx)
	}
	key, err := c.buildKey(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var rules []Rule
		if err := json.Unmarshal(payload, &rules); err == nil {
			return rules, nil
		}
		// Corrupt payload: fall through and reload.
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		rules, err := c.loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(rules)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
		return rules, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]Rule), nil
}

// Invalidate bumps the version so the next read reloads immediately.
// Called after operator edits to the rule store.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func (c *Cache) buildKey(ctx context.Context) (string, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("mapping:rules:%d", ver), nil
}
