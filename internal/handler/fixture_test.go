package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/apimarket/marketplace/internal/auth"
	"github.com/apimarket/marketplace/internal/breach"
	"github.com/apimarket/marketplace/internal/metrics"
	"github.com/apimarket/marketplace/internal/model"
	"github.com/apimarket/marketplace/internal/service"
	"github.com/apimarket/marketplace/internal/testutil/fakepay"
	"github.com/apimarket/marketplace/internal/testutil/memstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubScraper struct {
	result *model.ScrapeResult
}

func (s *stubScraper) Scrape(context.Context, string) *model.ScrapeResult {
	if s.result != nil {
		return s.result
	}
	return &model.ScrapeResult{Overview: "Overview text", Examples: []string{}, Requirements: []string{}, IsRestAPI: true}
}

type stubForwarder struct {
	result *service.ProxyResult
	err    error
}

func (f *stubForwarder) Forward(context.Context, service.ProxyInput) (*service.ProxyResult, error) {
	return f.result, f.err
}

type stubBreach struct {
	result *breach.Result
	err    error
}

func (b *stubBreach) Check(_ context.Context, password string) (*breach.Result, error) {
	if password == "" {
		return nil, breach.ErrMissingPassword
	}
	return b.result, b.err
}

// fixture wires every handler over one in-memory store.
type fixture struct {
	store     *memstore.Store
	processor *fakepay.Processor
	forwarder *stubForwarder
	breach    *stubBreach
	metrics   *metrics.InMemoryRecorder
	router    chi.Router
}

func newFixture(t *testing.T, listings ...*model.Listing) *fixture {
	t.Helper()

	f := &fixture{
		store:     memstore.New(listings...),
		processor: fakepay.New(),
		forwarder: &stubForwarder{},
		breach:    &stubBreach{result: &breach.Result{}},
		metrics:   metrics.NewInMemory(),
	}
	logger := testLogger()

	listingSvc := service.NewListingService(f.store, f.store, &stubScraper{}, nil, logger, f.metrics)
	checkoutSvc := service.NewCheckoutService(listingSvc, f.store, f.processor, nil, service.CheckoutConfig{}, logger, f.metrics)
	profileSvc := service.NewProfileService(f.store)

	lh := NewListingHandler(listingSvc, logger)
	ch := NewCheckoutHandler(checkoutSvc, logger)
	ah := NewAccountHandler(profileSvc, logger)
	th := NewToolsHandler(&stubScraper{}, f.forwarder, f.breach, logger, f.metrics)
	adm := NewAdminHandler(listingSvc, checkoutSvc, service.NewSalesService(f.store), logger)

	r := chi.NewRouter()
	r.Get("/api/scrape", th.Scrape)
	r.Post("/api/test-proxy", th.Proxy)
	r.Post("/api/haveibeenpwned", th.Breach)
	r.Post("/api/submit", lh.Submit)
	r.Get("/api/listings", lh.Browse)
	r.Get("/api/listings/suggestions", lh.Suggestions)
	r.Get("/api/listings/{idOrName}", lh.Detail)
	r.Get("/api/user/apis", lh.BySeller)
	r.Get("/api/user/profile", ah.GetProfile)
	r.Post("/api/user/profile", ah.UpdateProfile)
	r.Get("/api/me", ah.Me)
	r.Post("/api/create-payment-intent", ch.CreateIntent)
	r.Get("/api/checkout/{idOrName}", ch.Quote)
	r.Post("/api/checkout/settle", ch.Settle)
	r.Get("/api/admin/catalog/export", adm.Export)
	r.Post("/api/admin/catalog/import", adm.Import)
	r.Get("/api/admin/transactions", adm.Transactions)
	r.Get("/api/admin/sales", adm.Sales)
	r.Get("/api/admin/stats", adm.Stats)
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)
	f.router = r

	return f
}

// do sends a request, optionally as viewer, and returns the recorder.
func (f *fixture) do(t *testing.T, method, target, body string, viewer *model.Identity) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if viewer != nil {
		req = req.WithContext(auth.ContextWithIdentity(req.Context(), viewer))
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func paidListing() *model.Listing {
	return &model.Listing{
		ID:          "01HZX3Q8W6Y2M1V5K7N9P0R4ST",
		Name:        "Premium Geo",
		Description: "Geocoding with street-level precision",
		Category:    "Geocoding",
		Link:        "https://geo.example/docs",
		Endpoint:    "https://api.geo.example/v1",
		IsPaid:      true,
		Price:       249.5,
		UserID:      "seller-1",
	}
}

func freeListing() *model.Listing {
	return &model.Listing{
		ID:          "01HZX3Q8W6Y2M1V5K7N9P0R4SV",
		Name:        "Cat Facts",
		Description: "Daily cat facts",
		Category:    "Animals",
		Link:        "https://catfact.example",
		Endpoint:    "https://catfact.example/fact",
	}
}
