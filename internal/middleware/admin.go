package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/apimarket/marketplace/internal/auth"
	"github.com/apimarket/marketplace/internal/model"
)

const (
	// minAuthDuration is the minimum time spent on admin auth so that
	// failures and successes take the same time.
	minAuthDuration = 200 * time.Millisecond
	// touchTimeout bounds the background last-used update.
	touchTimeout = 2 * time.Second
)

// AdminHeader carries the admin API key.
const AdminHeader = "X-API-Key"

// AdminKeyStore looks up admin keys.
type AdminKeyStore interface {
	GetAdminKeysByPrefix(ctx context.Context, prefix string) ([]*model.AdminKey, error)
	TouchAdminKey(ctx context.Context, id string) error
}

// AdminContextCache caches verified admin contexts by key digest.
type AdminContextCache interface {
	GetAdminContext(ctx context.Context, cacheKey string) (*model.AdminContext, error)
	SetAdminContext(ctx context.Context, cacheKey string, admin *model.AdminContext) error
}

// AdminAuthConfig holds configuration for the admin auth middleware.
type AdminAuthConfig struct {
	Logger *slog.Logger
	Keys   AdminKeyStore
	Cache  AdminContextCache
	// MinDuration overrides minAuthDuration; tests set it low.
	MinDuration time.Duration
}

// AdminAuth authenticates operator requests by X-API-Key. Verified keys are
// cached so the Argon2id check runs once per cache lifetime.
func AdminAuth(cfg AdminAuthConfig) func(http.Handler) http.Handler {
	minDuration := cfg.MinDuration
	if minDuration == 0 {
		minDuration = minAuthDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			admin, reason := authenticateAdmin(r, cfg)
			if elapsed := time.Since(start); elapsed < minDuration {
				time.Sleep(minDuration - elapsed)
			}

			if admin == nil {
				cfg.Logger.Warn("admin_auth_failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key")
				return
			}

			cfg.Logger.Info("admin_auth_succeeded",
				slog.String("key_id", admin.KeyID),
				slog.String("key_prefix", admin.KeyPrefix),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithAdmin(r.Context(), admin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticateAdmin returns the admin context, or nil and a log reason.
func authenticateAdmin(r *http.Request, cfg AdminAuthConfig) (*model.AdminContext, string) {
	key := r.Header.Get(AdminHeader)
	if key == "" {
		return nil, "missing_key"
	}

	parsed, err := auth.ParseAdminKey(key)
	if err != nil {
		return nil, "invalid_format"
	}

	cacheKey := auth.CacheKey(key)
	if cached, _ := cfg.Cache.GetAdminContext(r.Context(), cacheKey); cached != nil {
		return cached, ""
	}

	candidates, err := cfg.Keys.GetAdminKeysByPrefix(r.Context(), parsed.Prefix)
	if err != nil {
		cfg.Logger.Error("admin_key_lookup_failed",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(r.Context())),
		)
		return nil, "lookup_error"
	}

	// Prefixes may collide, so every candidate is checked.
	var matched *model.AdminKey
	for _, k := range candidates {
		if k.IsRevoked() {
			continue
		}
		if ok, err := auth.VerifySecret(key, k.KeyHash); err == nil && ok {
			matched = k
			break
		}
	}
	if matched == nil {
		return nil, "invalid_key"
	}

	admin := &model.AdminContext{
		KeyID:     matched.ID,
		KeyPrefix: matched.KeyPrefix,
		Scopes:    matched.Scopes,
	}
	_ = cfg.Cache.SetAdminContext(r.Context(), cacheKey, admin)

	go func(id string) {
		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if err := cfg.Keys.TouchAdminKey(ctx, id); err != nil {
			cfg.Logger.Warn("admin_key_touch_failed", slog.String("key_id", id), slog.String("error", err.Error()))
		}
	}(matched.ID)

	return admin, ""
}
