package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "price:"

// Connect dials Redis and verifies the connection with a ping.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Redis is a PriceCache backed by a shared Redis instance. Expiry is
// delegated to native key TTLs, so stale entries are reclaimed by Redis
// rather than accumulating. Read and write failures degrade to cache
// misses; the orchestrator falls back to the exchange.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	value, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		slog.Warn("redis cache read failed", "key", key, "error", err)
		return "", false
	}
	return value, true
}

func (r *Redis) Put(ctx context.Context, key, value string) {
	if err := r.client.Set(ctx, redisKeyPrefix+key, value, r.ttl).Err(); err != nil {
		slog.Warn("redis cache write failed", "key", key, "error", err)
	}
}
