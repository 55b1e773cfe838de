// Package cache provides the Redis access layer: scrape-result caching,
// rate limiting and admin auth-context caching.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is absent or unreadable.
var ErrCacheMiss = errors.New("cache miss")

// clientName identifies marketplace connections in CLIENT LIST.
const clientName = "api-marketplace"

// Option tunes the Redis client built by New.
type Option func(*redis.Options)

// WithPoolSize sets the connection pool size. The idle floor is a fifth of
// it, at least one.
func WithPoolSize(n int) Option {
	return func(o *redis.Options) {
		if n <= 0 {
			return
		}
		o.PoolSize = n
		o.MinIdleConns = max(n/5, 1)
	}
}

// Cache wraps a Redis client shared by the scrape cache, the rate limiter,
// the admin context cache and the event stream.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and verifies the connection with PING.
func New(ctx context.Context, redisURL string, opts ...Option) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.ClientName = clientName
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	for _, o := range opts {
		o(opt)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &Cache{client: client}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping implements the readiness check.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the raw client to the events publisher and consumer,
// which speak the stream commands directly.
func (c *Cache) Client() *redis.Client {
	return c.client
}
