package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotCachePrefix = "board-cache:"

type backend interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Cache fronts a backend with a Redis read-through copy of each snapshot.
// Redis failures never fail a call; the backend stays authoritative.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper around base. A nil client disables
// caching.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if data, ok := c.loadFromCache(ctx, key); ok {
		return data, true, nil
	}
	data, ok, err := c.base.Load(ctx, key)
	if err != nil || !ok {
		return data, ok, err
	}
	c.store(ctx, key, data)
	return data, true, nil
}

func (c *Cache) Save(ctx context.Context, key string, data []byte) error {
	if err := c.base.Save(ctx, key, data); err != nil {
		c.evict(ctx, key)
		return err
	}
	c.store(ctx, key, data)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, key string) ([]byte, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.evict(ctx, key)
		}
		return nil, false
	}
	return data, true
}

func (c *Cache) store(ctx context.Context, key string, data []byte) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Set(ctx, cacheKey(key), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, cacheKey(key)).Err()
}

func cacheKey(key string) string {
	return snapshotCachePrefix + key
}
