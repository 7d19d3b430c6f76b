package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/comps"
)

const keyPrefix = "comps:"

// RedisCache shares comps results between service instances.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to addr.
func NewRedisCache(addr, password string, db int) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: rdb}
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) Get(ctx context.Context, key string) (comps.MarketStats, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return comps.MarketStats{}, false, nil
	}
	if err != nil {
		return comps.MarketStats{}, false, fmt.Errorf("redis get: %w", err)
	}
	var stats comps.MarketStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return comps.MarketStats{}, false, fmt.Errorf("redis decode %s: %w", key, err)
	}
	return stats, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, stats comps.MarketStats, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
