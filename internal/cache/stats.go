package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsCache stores serialized aggregates under short-lived keys.
type StatsCache struct {
	client *redis.Client
	prefix string
}

func NewStatsCache(client *redis.Client) *StatsCache {
	return &StatsCache{client: client, prefix: "stats:"}
}

// Get reports a miss as ok == false with a nil error.
func (c *StatsCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (c *StatsCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}
