package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		preflight  bool
		wantStatus int
		wantHeader string
	}{
		{"no origins configured", nil, "https://example.com", false, http.StatusOK, ""},
		{"allowed origin", []string{"https://example.com"}, "https://example.com", false, http.StatusOK, "https://example.com"},
		{"case insensitive", []string{"HTTPS://EXAMPLE.COM"}, "https://example.com", false, http.StatusOK, "https://example.com"},
		{"disallowed preflight", []string{"https://example.com"}, "https://evil.com", true, http.StatusForbidden, ""},
		{"allowed preflight", []string{"https://example.com"}, "https://example.com", true, http.StatusNoContent, "https://example.com"},
		{"subdomain pattern", []string{"*.example.com"}, "https://app.example.com", false, http.StatusOK, "https://app.example.com"},
		{"subdomain pattern rejects lookalike", []string{"*.example.com"}, "https://badexample.com", false, http.StatusOK, ""},
		{"subdomain pattern rejects apex", []string{"*.example.com"}, "https://example.com", false, http.StatusOK, ""},
		{"wildcard", []string{"*"}, "https://anything.dev", false, http.StatusOK, "*"},
		{"no origin header", []string{"https://example.com"}, "", false, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowedOrigins = tt.origins
			handler := CORS(cfg)(okHandler())

			method := http.MethodGet
			if tt.preflight {
				method = http.MethodOptions
			}
			req := httptest.NewRequest(method, "/api/listings", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestCORS_PreflightHeaders(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://example.com"}
	cfg.AllowCredentials = true
	handler := CORS(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/submit", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	h := rec.Header()
	if h.Get("Access-Control-Allow-Methods") != "GET, POST, OPTIONS" {
		t.Errorf("Allow-Methods = %q", h.Get("Access-Control-Allow-Methods"))
	}
	if h.Get("Access-Control-Max-Age") != "86400" {
		t.Errorf("Max-Age = %q", h.Get("Access-Control-Max-Age"))
	}
	if h.Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected credentials header")
	}
	if h.Get("Vary") != "Origin" {
		t.Errorf("Vary = %q", h.Get("Vary"))
	}
}

func TestCORS_WildcardNeverAllowsCredentials(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"*"}
	cfg.AllowCredentials = true
	handler := CORS(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
	req.Header.Set("Origin", "https://anything.dev")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("wildcard origin must not allow credentials")
	}
}
