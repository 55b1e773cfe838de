package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apimarket/marketplace/internal/cache"
)

type fakeLimiter struct {
	result *cache.RateLimitResult
	err    error
	scope  string
	ip     string
}

func (f *fakeLimiter) CheckIPRateLimit(_ context.Context, scope, ip string, _ float64, _ int) (*cache.RateLimitResult, error) {
	f.scope, f.ip = scope, ip
	return f.result, f.err
}

func TestRateLimitIP(t *testing.T) {
	reset := time.Now().Add(2 * time.Second)

	tests := []struct {
		name           string
		enabled        bool
		limiter        *fakeLimiter
		wantStatus     int
		wantRetryAfter string
		wantRemaining  string
	}{
		{
			name:          "allowed",
			enabled:       true,
			limiter:       &fakeLimiter{result: &cache.RateLimitResult{Allowed: true, Remaining: 4, ResetAt: reset}},
			wantStatus:    http.StatusOK,
			wantRemaining: "4",
		},
		{
			name:           "limited",
			enabled:        true,
			limiter:        &fakeLimiter{result: &cache.RateLimitResult{Allowed: false, ResetAt: reset, RetryAfter: 1500 * time.Millisecond}},
			wantStatus:     http.StatusTooManyRequests,
			wantRetryAfter: "2",
			wantRemaining:  "0",
		},
		{
			name:       "backend error fails open",
			enabled:    true,
			limiter:    &fakeLimiter{err: errors.New("redis down")},
			wantStatus: http.StatusOK,
		},
		{
			name:       "disabled",
			enabled:    false,
			limiter:    &fakeLimiter{result: &cache.RateLimitResult{Allowed: false}},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := RateLimitIP(RateLimitConfig{
				Logger:  discardLogger(),
				Limiter: tt.limiter,
				Enabled: tt.enabled,
				Scope:   "proxy",
				RPS:     1,
				Burst:   5,
			})

			req := httptest.NewRequest(http.MethodPost, "/api/test-endpoint", nil)
			req.RemoteAddr = "203.0.113.7:51234"
			rec := httptest.NewRecorder()
			mw(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Retry-After"); got != tt.wantRetryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetryAfter)
			}
			if got := rec.Header().Get("X-RateLimit-Remaining"); got != tt.wantRemaining {
				t.Errorf("X-RateLimit-Remaining = %q, want %q", got, tt.wantRemaining)
			}
			if tt.enabled && (tt.limiter.scope != "proxy" || tt.limiter.ip != "203.0.113.7") {
				t.Errorf("limiter saw scope %q ip %q", tt.limiter.scope, tt.limiter.ip)
			}
		})
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{200 * time.Millisecond, 1},
		{time.Second, 1},
		{1001 * time.Millisecond, 2},
		{10 * time.Second, 10},
	}
	for _, tt := range tests {
		if got := retryAfterSeconds(tt.in); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
