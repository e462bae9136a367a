package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "board:"

// Redis stores snapshots as plain string values.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis adapter. A ttl of zero keeps snapshots forever.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if client == nil {
		panic("storage.NewRedis: client is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

func (r *Redis) Save(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, redisKey(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}
