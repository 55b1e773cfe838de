package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/apimarket/marketplace/internal/auth"
	"github.com/apimarket/marketplace/internal/breach"
	"github.com/apimarket/marketplace/internal/model"
	"github.com/apimarket/marketplace/internal/service"
	"github.com/apimarket/marketplace/internal/testutil"
)

const contractBaseURL = "http://localhost:8080"

// loadSpec loads and validates docs/api/openapi.yaml.
func loadSpec(t *testing.T) (*openapi3.T, routers.Router) {
	t.Helper()

	root, err := testutil.ProjectRoot()
	if err != nil {
		t.Fatalf("project root: %v", err)
	}
	path := filepath.Join(root, "docs", "api", "openapi.yaml")

	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromFile(path)
	if err != nil {
		t.Fatalf("Failed to load OpenAPI spec from %s: %v", path, err)
	}
	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	router, err := gorillamux.NewRouter(spec)
	if err != nil {
		t.Fatalf("Failed to create router from OpenAPI document: %v", err)
	}
	return spec, router
}

func TestOpenAPISpecValid(t *testing.T) {
	spec, _ := loadSpec(t)

	want := []string{
		"/healthz",
		"/readyz",
		"/metrics",
		"/api/scrape",
		"/api/submit",
		"/api/listings",
		"/api/listings/suggestions",
		"/api/listings/{idOrName}",
		"/api/create-payment-intent",
		"/api/checkout/{idOrName}",
		"/api/checkout/settle",
		"/api/test-proxy",
		"/api/haveibeenpwned",
		"/api/user/profile",
		"/api/user/apis",
		"/api/me",
		"/api/admin/catalog/export",
		"/api/admin/catalog/import",
		"/api/admin/transactions",
		"/api/admin/sales",
		"/api/admin/stats",
	}
	for _, path := range want {
		if spec.Paths.Find(path) == nil {
			t.Errorf("path %s missing from openapi.yaml", path)
		}
	}
}

type contractCase struct {
	name   string
	method string
	path   string
	body   string
	viewer *model.Identity
	status int
}

// TestContract_Responses serves each request through the handlers and
// validates both sides of the exchange against docs/api/openapi.yaml.
func TestContract_Responses(t *testing.T) {
	_, specRouter := loadSpec(t)

	f := newFixture(t, paidListing(), freeListing())
	f.router.Get("/healthz", NewHealthHandler(testLogger()).Healthz)
	f.forwarder.result = &service.ProxyResult{
		Status:     200,
		StatusText: "OK",
		Headers:    map[string]string{"content-type": "application/json"},
		Data:       map[string]any{"fact": "cats sleep a lot"},
		OK:         true,
	}
	f.breach.result = &breach.Result{Compromised: true, Count: 3}
	f.store.Grant("buyer-1", paidListing().ID)

	buyer := &model.Identity{UID: "buyer-1", Email: "buyer@example.com"}
	stranger := &model.Identity{UID: "stranger", Email: "stranger@example.com"}
	strangerIntent := f.processor.Paid(paidListing().ID, stranger.UID, paidListing().AmountMinor(), "inr")
	seller := &model.Identity{UID: "seller-1"}

	cases := []contractCase{
		{"liveness", http.MethodGet, "/healthz", "", nil, http.StatusOK},
		{"browse", http.MethodGet, "/api/listings?q=geo&showAllCategories=true", "", nil, http.StatusOK},
		{"suggestions", http.MethodGet, "/api/listings/suggestions?q=cat", "", nil, http.StatusOK},
		{"detail anonymous", http.MethodGet, "/api/listings/Premium%20Geo", "", nil, http.StatusOK},
		{"detail entitled", http.MethodGet, "/api/listings/" + paidListing().ID, "", buyer, http.StatusOK},
		{"detail missing", http.MethodGet, "/api/listings/nope", "", nil, http.StatusNotFound},
		{"submit", http.MethodPost, "/api/submit", `{"name":"Weather Now","link":"https://weather.example","description":"Forecasts","category":"Weather"}`, nil, http.StatusCreated},
		{"submit invalid", http.MethodPost, "/api/submit", `{"name":"","link":""}`, nil, http.StatusBadRequest},
		{"submit duplicate", http.MethodPost, "/api/submit", `{"name":"Cat Facts","link":"https://other.example","description":"x"}`, nil, http.StatusConflict},
		{"quote", http.MethodGet, "/api/checkout/" + paidListing().ID, "", nil, http.StatusOK},
		{"quote missing", http.MethodGet, "/api/checkout/nope", "", nil, http.StatusNotFound},
		{"intent", http.MethodPost, "/api/create-payment-intent", `{"apiId":"` + paidListing().ID + `","amount":24950}`, nil, http.StatusOK},
		{"intent below minimum", http.MethodPost, "/api/create-payment-intent", `{"apiId":"x","amount":10}`, nil, http.StatusBadRequest},
		{"intent mismatched amount", http.MethodPost, "/api/create-payment-intent", `{"apiId":"` + paidListing().ID + `","amount":6000}`, nil, http.StatusBadRequest},
		{"intent unknown api", http.MethodPost, "/api/create-payment-intent", `{"apiId":"nope","amount":6000}`, nil, http.StatusNotFound},
		{"settle", http.MethodPost, "/api/checkout/settle", `{"apiId":"` + paidListing().ID + `","paymentIntentId":"` + strangerIntent + `"}`, stranger, http.StatusOK},
		{"settle unverified", http.MethodPost, "/api/checkout/settle", `{"apiId":"` + paidListing().ID + `","paymentIntentId":"pi_made_up"}`, buyer, http.StatusPaymentRequired},
		{"settle anonymous", http.MethodPost, "/api/checkout/settle", `{"apiId":"x","paymentIntentId":"pi_1"}`, nil, http.StatusUnauthorized},
		{"scrape", http.MethodGet, "/api/scrape?url=https%3A%2F%2Fcatfact.example", "", nil, http.StatusOK},
		{"scrape missing url", http.MethodGet, "/api/scrape?url=", "", nil, http.StatusBadRequest},
		{"proxy", http.MethodPost, "/api/test-proxy", `{"url":"https://catfact.example/fact","method":"GET","headers":{"Accept":"application/json"}}`, nil, http.StatusOK},
		{"breach", http.MethodPost, "/api/haveibeenpwned", `{"password":"hunter2"}`, nil, http.StatusOK},
		{"breach missing password", http.MethodPost, "/api/haveibeenpwned", `{}`, nil, http.StatusBadRequest},
		{"profile", http.MethodGet, "/api/user/profile?userId=seller-1", "", nil, http.StatusOK},
		{"update profile", http.MethodPost, "/api/user/profile", `{"userId":"seller-1","githubLink":"https://github.com/seller"}`, seller, http.StatusOK},
		{"update profile anonymous", http.MethodPost, "/api/user/profile", `{"userId":"seller-1","githubLink":"https://github.com/x"}`, nil, http.StatusUnauthorized},
		{"update other profile", http.MethodPost, "/api/user/profile", `{"userId":"seller-1","githubLink":"https://github.com/x"}`, buyer, http.StatusForbidden},
		{"seller apis", http.MethodGet, "/api/user/apis?userId=seller-1", "", nil, http.StatusOK},
		{"me", http.MethodGet, "/api/me", "", buyer, http.StatusOK},
		{"me anonymous", http.MethodGet, "/api/me", "", nil, http.StatusUnauthorized},
		{"export", http.MethodGet, "/api/admin/catalog/export", "", nil, http.StatusOK},
		{"import", http.MethodPost, "/api/admin/catalog/import", `{"count":0,"entries":[]}`, nil, http.StatusOK},
		{"transactions", http.MethodGet, "/api/admin/transactions?limit=10", "", nil, http.StatusOK},
		{"sales", http.MethodGet, "/api/admin/sales?days=7", "", nil, http.StatusOK},
		{"stats", http.MethodGet, "/api/admin/stats", "", nil, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validateExchange(t, specRouter, f, tc)
		})
	}
}

func validateExchange(t *testing.T, specRouter routers.Router, f *fixture, tc contractCase) {
	t.Helper()
	ctx := context.Background()

	var body io.Reader
	if tc.body != "" {
		body = strings.NewReader(tc.body)
	}
	req := httptest.NewRequest(tc.method, contractBaseURL+tc.path, body)
	if tc.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.viewer != nil {
		req = req.WithContext(auth.ContextWithIdentity(req.Context(), tc.viewer))
	}

	route, pathParams, err := specRouter.FindRoute(req)
	if err != nil {
		t.Fatalf("route %s %s not in openapi.yaml: %v", tc.method, tc.path, err)
	}

	reqInput := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	if err := openapi3filter.ValidateRequest(ctx, reqInput); err != nil {
		t.Fatalf("request does not match openapi.yaml: %v", err)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != tc.status {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, tc.status, rec.Body.String())
	}

	respInput := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: reqInput,
		Status:                 rec.Code,
		Header:                 rec.Header(),
		Body:                   io.NopCloser(bytes.NewReader(rec.Body.Bytes())),
		Options:                &openapi3filter.Options{IncludeResponseStatus: true},
	}
	if err := openapi3filter.ValidateResponse(ctx, respInput); err != nil {
		t.Errorf("response does not match openapi.yaml: %v\nbody: %s", err, rec.Body.String())
	}
}
