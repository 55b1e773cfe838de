package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/apimarket/marketplace/internal/auth"
	"github.com/apimarket/marketplace/internal/model"
)

// TokenVerifier turns a bearer token into a verified identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*model.Identity, error)
}

// IdentityConfig holds configuration for the identity middleware.
type IdentityConfig struct {
	Logger   *slog.Logger
	Verifier TokenVerifier
}

// OptionalIdentity attaches the bearer token's identity when it verifies.
// Missing or invalid tokens leave the request anonymous.
func OptionalIdentity(cfg IdentityConfig) func(http.Handler) http.Handler {
	return identity(cfg, false)
}

// RequireIdentity rejects requests without a valid bearer token with 401.
func RequireIdentity(cfg IdentityConfig) func(http.Handler) http.Handler {
	return identity(cfg, true)
}

func identity(cfg IdentityConfig, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if required {
					writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			id, err := cfg.Verifier.Verify(r.Context(), token)
			if err != nil {
				cfg.Logger.Warn("identity_verification_failed",
					slog.String("error", err.Error()),
					slog.Bool("required", required),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				if required {
					writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.ContextWithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
