package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apimarket/marketplace/internal/model"
)

const scrapeKeyPrefix = "scrape:"

// ScrapeKey returns the cache key for a documentation URL.
func ScrapeKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return scrapeKeyPrefix + hex.EncodeToString(sum[:])
}

// GetScrape returns a cached scrape result. Returns ErrCacheMiss when absent
// or when the stored entry cannot be decoded.
func (c *Cache) GetScrape(ctx context.Context, url string) (*model.ScrapeResult, error) {
	data, err := c.client.Get(ctx, ScrapeKey(url)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var result model.ScrapeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, ErrCacheMiss
	}
	return &result, nil
}

// SetScrape stores a successful scrape result. Failed results are ignored.
func (c *Cache) SetScrape(ctx context.Context, url string, result *model.ScrapeResult, ttl time.Duration) error {
	if result == nil || result.Failed() {
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal scrape result: %w", err)
	}

	return c.client.Set(ctx, ScrapeKey(url), data, ttl).Err()
}
