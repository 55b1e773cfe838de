package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/apimarket/marketplace/internal/auth"
	"github.com/apimarket/marketplace/internal/model"
)

type fakeKeyStore struct {
	mu      sync.Mutex
	keys    []*model.AdminKey
	lookups int
	touched chan string
	err     error
}

func (s *fakeKeyStore) GetAdminKeysByPrefix(_ context.Context, prefix string) ([]*model.AdminKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.err != nil {
		return nil, s.err
	}
	var out []*model.AdminKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *fakeKeyStore) TouchAdminKey(_ context.Context, id string) error {
	if s.touched != nil {
		s.touched <- id
	}
	return nil
}

func (s *fakeKeyStore) lookupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

type fakeAdminCache struct {
	mu      sync.Mutex
	entries map[string]*model.AdminContext
}

func (c *fakeAdminCache) GetAdminContext(_ context.Context, key string) (*model.AdminContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *fakeAdminCache) SetAdminContext(_ context.Context, key string, admin *model.AdminContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = admin
	return nil
}

func newAdminKey(t *testing.T, id string, scopes ...string) (*auth.GeneratedKey, *model.AdminKey) {
	t.Helper()
	gen, err := auth.GenerateAdminKey(auth.EnvTest)
	if err != nil {
		t.Fatalf("GenerateAdminKey() error = %v", err)
	}
	return gen, &model.AdminKey{ID: id, KeyHash: gen.Hash, KeyPrefix: gen.Prefix, Scopes: scopes}
}

func serveAdmin(cfg AdminAuthConfig, key string) (*httptest.ResponseRecorder, *model.AdminContext) {
	var got *model.AdminContext
	handler := AdminAuth(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.AdminFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/export", nil)
	if key != "" {
		req.Header.Set(AdminHeader, key)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, got
}

func TestAdminAuth(t *testing.T) {
	valid, validKey := newAdminKey(t, "key-1", model.ScopeCatalogRead)
	revoked, revokedKey := newAdminKey(t, "key-2", model.ScopeAdmin)
	now := time.Now()
	revokedKey.RevokedAt = &now

	store := &fakeKeyStore{keys: []*model.AdminKey{validKey, revokedKey}, touched: make(chan string, 4)}
	cfg := AdminAuthConfig{
		Logger:      discardLogger(),
		Keys:        store,
		Cache:       &fakeAdminCache{entries: map[string]*model.AdminContext{}},
		MinDuration: time.Millisecond,
	}

	// Same prefix as the valid key but a different secret.
	wrongSecret := valid.Plaintext[:len(valid.Plaintext)-4] + "0000"
	if wrongSecret == valid.Plaintext {
		wrongSecret = valid.Plaintext[:len(valid.Plaintext)-4] + "1111"
	}

	tests := []struct {
		name string
		key  string
	}{
		{"missing", ""},
		{"malformed", "not-a-key"},
		{"wrong secret", wrongSecret},
		{"revoked", revoked.Plaintext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, admin := serveAdmin(cfg, tt.key)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if admin != nil {
				t.Error("handler must not run")
			}
		})
	}

	t.Run("valid then cached", func(t *testing.T) {
		before := store.lookupCount()

		rec, admin := serveAdmin(cfg, valid.Plaintext)
		if rec.Code != http.StatusOK || admin == nil {
			t.Fatalf("status = %d, admin = %v", rec.Code, admin)
		}
		if admin.KeyID != "key-1" || !admin.HasScope(model.ScopeCatalogRead) {
			t.Errorf("admin = %+v", admin)
		}

		select {
		case id := <-store.touched:
			if id != "key-1" {
				t.Errorf("touched %q, want key-1", id)
			}
		case <-time.After(time.Second):
			t.Error("last-used timestamp was not updated")
		}

		rec, admin = serveAdmin(cfg, valid.Plaintext)
		if rec.Code != http.StatusOK || admin == nil {
			t.Fatalf("cached request status = %d", rec.Code)
		}
		if got := store.lookupCount() - before; got != 1 {
			t.Errorf("key lookups = %d, want 1 with cache", got)
		}
	})
}

func TestAdminAuth_LookupError(t *testing.T) {
	gen, _ := newAdminKey(t, "key-1")
	cfg := AdminAuthConfig{
		Logger:      discardLogger(),
		Keys:        &fakeKeyStore{err: errors.New("connection refused")},
		Cache:       &fakeAdminCache{entries: map[string]*model.AdminContext{}},
		MinDuration: time.Millisecond,
	}

	rec, _ := serveAdmin(cfg, gen.Plaintext)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAdminAuth_MinimumDuration(t *testing.T) {
	cfg := AdminAuthConfig{
		Logger:      discardLogger(),
		Keys:        &fakeKeyStore{},
		Cache:       &fakeAdminCache{entries: map[string]*model.AdminContext{}},
		MinDuration: 30 * time.Millisecond,
	}

	start := time.Now()
	serveAdmin(cfg, "")
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("rejection took %v, want at least 30ms", elapsed)
	}
}
