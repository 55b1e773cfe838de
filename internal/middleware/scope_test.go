package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apimarket/marketplace/internal/auth"
	"github.com/apimarket/marketplace/internal/model"
)

func TestRequireScope(t *testing.T) {
	tests := []struct {
		name       string
		admin      *model.AdminContext
		mw         func(http.Handler) http.Handler
		wantStatus int
	}{
		{"no admin", nil, RequireCatalogRead(), http.StatusUnauthorized},
		{"matching scope", &model.AdminContext{Scopes: []string{model.ScopeCatalogRead}}, RequireCatalogRead(), http.StatusOK},
		{"other scope", &model.AdminContext{Scopes: []string{model.ScopeCatalogRead}}, RequireCatalogWrite(), http.StatusForbidden},
		{"admin grants all", &model.AdminContext{Scopes: []string{model.ScopeAdmin}}, RequireTransactionsRead(), http.StatusOK},
		{"any of several", &model.AdminContext{Scopes: []string{model.ScopeCatalogWrite}}, RequireScope(model.ScopeCatalogRead, model.ScopeCatalogWrite), http.StatusOK},
		{"empty requires admin", &model.AdminContext{Scopes: []string{model.ScopeCatalogRead}}, RequireScope(), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/transactions", nil)
			if tt.admin != nil {
				req = req.WithContext(auth.ContextWithAdmin(req.Context(), tt.admin))
			}
			rec := httptest.NewRecorder()
			tt.mw(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireScope_Message(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/import", nil)
	req = req.WithContext(auth.ContextWithAdmin(req.Context(), &model.AdminContext{Scopes: []string{model.ScopeCatalogRead}}))
	rec := httptest.NewRecorder()
	RequireCatalogWrite()(okHandler()).ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "Required scope: catalog:write") {
		t.Errorf("body = %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"code":"FORBIDDEN"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
