package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyGuard marks (buyer, key) checkouts as in flight with SET NX.
// The key expires on its own if the holder dies before releasing it.
type RedisIdempotencyGuard struct {
	client *redis.Client
	prefix string
}

func NewRedisIdempotencyGuard(client *redis.Client) *RedisIdempotencyGuard {
	return &RedisIdempotencyGuard{client: client, prefix: "checkout:inflight"}
}

func (g *RedisIdempotencyGuard) Acquire(ctx context.Context, userID int64, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key(userID, key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

func (g *RedisIdempotencyGuard) Release(ctx context.Context, userID int64, key string) error {
	if err := g.client.Del(ctx, g.key(userID, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (g *RedisIdempotencyGuard) key(userID int64, key string) string {
	return fmt.Sprintf("%s:%d:%s", g.prefix, userID, key)
}
