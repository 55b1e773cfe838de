package middleware

import (
	"net/http"

	"github.com/apimarket/marketplace/internal/auth"
	"github.com/apimarket/marketplace/internal/model"
)

// RequireScope enforces admin key scopes. It must run after AdminAuth.
// Holding any one of required is sufficient; the admin scope grants all.
func RequireScope(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin := auth.AdminFromContext(r.Context())
			if admin == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			for _, scope := range required {
				if admin.HasScope(scope) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if len(required) == 0 && admin.HasScope(model.ScopeAdmin) {
				next.ServeHTTP(w, r)
				return
			}

			msg := "Insufficient permissions"
			if len(required) > 0 {
				msg += ". Required scope: " + required[0]
			}
			writeError(w, http.StatusForbidden, "FORBIDDEN", msg)
		})
	}
}

// RequireCatalogRead allows catalog export.
func RequireCatalogRead() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeCatalogRead)
}

// RequireCatalogWrite allows catalog import.
func RequireCatalogWrite() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeCatalogWrite)
}

// RequireTransactionsRead allows reading the transaction ledger.
func RequireTransactionsRead() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeTransactionsRead)
}
