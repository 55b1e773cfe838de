package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apimarket/marketplace/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for admin auth contexts.
	authCachePrefix = "auth:admin:"
	// authCacheTTL is the time-to-live for cached auth contexts.
	authCacheTTL = 5 * time.Minute
)

type cachedAdminContext struct {
	KeyID     string   `json:"key_id"`
	KeyPrefix string   `json:"key_prefix"`
	Scopes    []string `json:"scopes"`
}

// GetAdminContext retrieves a cached admin context.
// Returns nil on a miss or a corrupt entry.
func (c *Cache) GetAdminContext(ctx context.Context, cacheKey string) (*model.AdminContext, error) {
	data, err := c.client.Get(ctx, authCachePrefix+cacheKey).Bytes()
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	var cached cachedAdminContext
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, nil //nolint:nilerr
	}

	return &model.AdminContext{
		KeyID:     cached.KeyID,
		KeyPrefix: cached.KeyPrefix,
		Scopes:    cached.Scopes,
	}, nil
}

// SetAdminContext caches an admin context.
func (c *Cache) SetAdminContext(ctx context.Context, cacheKey string, admin *model.AdminContext) error {
	data, err := json.Marshal(cachedAdminContext{
		KeyID:     admin.KeyID,
		KeyPrefix: admin.KeyPrefix,
		Scopes:    admin.Scopes,
	})
	if err != nil {
		return fmt.Errorf("marshal admin context: %w", err)
	}

	return c.client.Set(ctx, authCachePrefix+cacheKey, data, authCacheTTL).Err()
}

// DeleteAdminContext removes a cached admin context. Used when a key is revoked.
func (c *Cache) DeleteAdminContext(ctx context.Context, cacheKey string) error {
	return c.client.Del(ctx, authCachePrefix+cacheKey).Err()
}
