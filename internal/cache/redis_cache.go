package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisViewCache struct {
	client redis.UniversalClient
}

func NewRedisViewCache(addr string, password string, db int) *RedisViewCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisViewCache{client: client}
}

// NewRedisViewCacheWithClient wraps an existing client.
func NewRedisViewCacheWithClient(client redis.UniversalClient) *RedisViewCache {
	return &RedisViewCache{client: client}
}

func (c *RedisViewCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisViewCache) Close() error {
	return c.client.Close()
}

func (c *RedisViewCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("decode cached view %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisViewCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode view %s: %w", key, err)
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisViewCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
