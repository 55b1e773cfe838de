package model

import (
	"slices"
	"time"
)

// Admin key scopes.
const (
	ScopeCatalogRead      = "catalog:read"
	ScopeCatalogWrite     = "catalog:write"
	ScopeTransactionsRead = "transactions:read"
	ScopeAdmin            = "admin"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeCatalogRead, ScopeCatalogWrite, ScopeTransactionsRead, ScopeAdmin}

// AdminKey is an operator credential. Only the Argon2id hash is stored.
type AdminKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsRevoked returns true if the key has been revoked.
func (k *AdminKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// AdminContext holds the authenticated operator for a request.
type AdminContext struct {
	KeyID     string
	KeyPrefix string
	Scopes    []string
}

// HasScope checks if the context grants scope. Admin implies all scopes.
func (a *AdminContext) HasScope(scope string) bool {
	if slices.Contains(a.Scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(a.Scopes, scope)
}
