package auth

import (
	"context"

	"github.com/apimarket/marketplace/internal/model"
)

type contextKey string

const (
	identityContextKey contextKey = "identity"
	adminContextKey    contextKey = "admin_context"
)

// ContextWithIdentity attaches a verified end-user identity.
func ContextWithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the verified identity, or nil for anonymous
// requests.
func IdentityFromContext(ctx context.Context) *model.Identity {
	id, _ := ctx.Value(identityContextKey).(*model.Identity)
	return id
}

// UserIDFromContext returns the verified subject id or "".
func UserIDFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.UID
	}
	return ""
}

// ContextWithAdmin attaches an authenticated admin key.
func ContextWithAdmin(ctx context.Context, admin *model.AdminContext) context.Context {
	return context.WithValue(ctx, adminContextKey, admin)
}

// AdminFromContext returns the admin context or nil.
func AdminFromContext(ctx context.Context) *model.AdminContext {
	admin, _ := ctx.Value(adminContextKey).(*model.AdminContext)
	return admin
}
