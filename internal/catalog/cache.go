package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cachePrefix = "catalog:v1:"

// CachedLookup is a Redis read-through cache in front of another Lookup.
// Misses are never cached and Redis failures fall back to the inner lookup.
type CachedLookup struct {
	inner  Lookup
	client redis.UniversalClient
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedLookup wraps inner. A nil client or non-positive ttl disables caching.
func NewCachedLookup(inner Lookup, client redis.UniversalClient, ttl time.Duration, logger zerolog.Logger) *CachedLookup {
	return &CachedLookup{inner: inner, client: client, ttl: ttl, logger: logger}
}

// GetCatalogItem implements Lookup.
func (c *CachedLookup) GetCatalogItem(ctx context.Context, id string) (CatalogItem, error) {
	return readThrough(ctx, c, "item:"+strings.TrimSpace(id), func(ctx context.Context) (CatalogItem, error) {
		return c.inner.GetCatalogItem(ctx, id)
	})
}

// GetModifier implements Lookup.
func (c *CachedLookup) GetModifier(ctx context.Context, code string) (Modifier, error) {
	return readThrough(ctx, c, "modifier:"+normalizeCode(code), func(ctx context.Context) (Modifier, error) {
		return c.inner.GetModifier(ctx, code)
	})
}

// GetCategory implements Lookup.
func (c *CachedLookup) GetCategory(ctx context.Context, code CategoryCode) (Category, error) {
	return readThrough(ctx, c, "category:"+string(code), func(ctx context.Context) (Category, error) {
		return c.inner.GetCategory(ctx, code)
	})
}

// ListModifiers implements ModifierLister when the inner lookup does.
func (c *CachedLookup) ListModifiers(ctx context.Context) ([]Modifier, error) {
	lister, ok := c.inner.(ModifierLister)
	if !ok {
		return nil, errors.New("catalog: modifier listing not supported")
	}
	return readThrough(ctx, c, "modifiers", lister.ListModifiers)
}

// Invalidate drops every cached catalog entry.
func (c *CachedLookup) Invalidate(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	iter := c.client.Scan(ctx, 0, cachePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *CachedLookup) enabled() bool {
	return c.client != nil && c.ttl > 0
}

func readThrough[T any](ctx context.Context, c *CachedLookup, key string, load func(context.Context) (T, error)) (T, error) {
	if !c.enabled() {
		return load(ctx)
	}
	key = cachePrefix + key
	var cached T
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jerr := json.Unmarshal(data, &cached); jerr == nil {
			return cached, nil
		}
		c.logger.Warn().Str("key", key).Msg("catalog cache entry corrupt")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return v, nil
}
