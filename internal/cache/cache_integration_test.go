//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apimarket/marketplace/internal/model"
	"github.com/apimarket/marketplace/internal/testutil"
)

func TestIntegrationCache_ScrapeRoundTrip(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	url := "https://docs.example.com/weather"
	if _, err := c.GetScrape(ctx, url); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	want := &model.ScrapeResult{
		Overview:     "Weather data for every city on earth, updated hourly.",
		Examples:     []string{"GET /v1/weather?city=Paris"},
		Requirements: []string{},
		IsRestAPI:    true,
	}
	if err := c.SetScrape(ctx, url, want, time.Minute); err != nil {
		t.Fatalf("SetScrape failed: %v", err)
	}

	got, err := c.GetScrape(ctx, url)
	if err != nil {
		t.Fatalf("GetScrape failed: %v", err)
	}
	if got.Overview != want.Overview || !got.IsRestAPI || len(got.Examples) != 1 {
		t.Errorf("unexpected cached result: %+v", got)
	}
}

func TestIntegrationCache_FailedScrapeNotStored(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	url := "https://down.example.com"
	failed := &model.ScrapeResult{Error: "Request timeout - the website took too long to respond"}
	if err := c.SetScrape(ctx, url, failed, time.Minute); err != nil {
		t.Fatalf("SetScrape failed: %v", err)
	}

	if _, err := c.GetScrape(ctx, url); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("failed results must not be cached, got %v", err)
	}
}

func TestIntegrationCache_IPRateLimit(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	const burst = 3
	for i := 0; i < burst; i++ {
		res, err := c.CheckIPRateLimit(ctx, "scrape", "203.0.113.7", 0.1, burst)
		if err != nil {
			t.Fatalf("CheckIPRateLimit failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	res, err := c.CheckIPRateLimit(ctx, "scrape", "203.0.113.7", 0.1, burst)
	if err != nil {
		t.Fatalf("CheckIPRateLimit failed: %v", err)
	}
	if res.Allowed {
		t.Error("request beyond burst should be denied")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", res.RetryAfter)
	}

	// Separate scope has its own bucket.
	res, err = c.CheckIPRateLimit(ctx, "proxy", "203.0.113.7", 0.1, burst)
	if err != nil {
		t.Fatalf("CheckIPRateLimit failed: %v", err)
	}
	if !res.Allowed {
		t.Error("other scope should be allowed")
	}
}

func TestIntegrationCache_AdminContext(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	admin := &model.AdminContext{KeyID: "k1", KeyPrefix: "abc123", Scopes: []string{model.ScopeCatalogRead}}
	if err := c.SetAdminContext(ctx, "hash", admin); err != nil {
		t.Fatalf("SetAdminContext failed: %v", err)
	}

	got, err := c.GetAdminContext(ctx, "hash")
	if err != nil || got == nil {
		t.Fatalf("GetAdminContext = %v, %v", got, err)
	}
	if got.KeyID != "k1" || !got.HasScope(model.ScopeCatalogRead) {
		t.Errorf("unexpected admin context: %+v", got)
	}

	if err := c.DeleteAdminContext(ctx, "hash"); err != nil {
		t.Fatalf("DeleteAdminContext failed: %v", err)
	}
	if got, _ := c.GetAdminContext(ctx, "hash"); got != nil {
		t.Error("deleted context should miss")
	}
}

func newCacheTestEnv(t *testing.T) (context.Context, *Cache) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	c, err := New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return ctx, c
}
