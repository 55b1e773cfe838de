package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/apimarket/marketplace/internal/config"
	"github.com/apimarket/marketplace/internal/handler"
	"github.com/apimarket/marketplace/internal/middleware"
)

// routes bundles everything the router mounts.
type routes struct {
	health   *handler.HealthHandler
	metrics  *handler.MetricsHandler
	listings *handler.ListingHandler
	checkout *handler.CheckoutHandler
	accounts *handler.AccountHandler
	tools    *handler.ToolsHandler
	admin    *handler.AdminHandler

	verifier   middleware.TokenVerifier
	adminKeys  middleware.AdminKeyStore
	adminCache middleware.AdminContextCache
	limiter    middleware.IPRateLimiter
}

func setupRouter(rt routes, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger, cfg.IsDevelopment()))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
	r.Use(middleware.LimitQuery)

	r.Get("/healthz", rt.health.Healthz)
	r.Get("/readyz", rt.health.Readyz)
	r.Get("/metrics", rt.metrics.Metrics)

	identityCfg := middleware.IdentityConfig{Logger: logger, Verifier: rt.verifier}
	optionalIdentity := middleware.OptionalIdentity(identityCfg)
	requireIdentity := middleware.RequireIdentity(identityCfg)

	limit := func(scope string) func(http.Handler) http.Handler {
		return middleware.RateLimitIP(middleware.RateLimitConfig{
			Logger:  logger,
			Limiter: rt.limiter,
			Enabled: cfg.RateLimitEnabled,
			Scope:   scope,
			RPS:     float64(cfg.RateLimitRPS),
			Burst:   cfg.RateLimitBurst,
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.With(limit("scrape")).Get("/scrape", rt.tools.Scrape)
		r.With(limit("proxy")).Post("/test-proxy", rt.tools.Proxy)
		r.With(limit("breach")).Post("/haveibeenpwned", rt.tools.Breach)

		r.With(optionalIdentity).Post("/submit", rt.listings.Submit)
		r.Get("/listings", rt.listings.Browse)
		r.Get("/listings/suggestions", rt.listings.Suggestions)
		r.With(optionalIdentity).Get("/listings/{idOrName}", rt.listings.Detail)

		r.With(optionalIdentity).Post("/create-payment-intent", rt.checkout.CreateIntent)
		r.With(requireIdentity).Post("/checkout/settle", rt.checkout.Settle)
		r.Get("/checkout/{idOrName}", rt.checkout.Quote)

		r.Get("/user/profile", rt.accounts.GetProfile)
		r.With(requireIdentity).Post("/user/profile", rt.accounts.UpdateProfile)
		r.Get("/user/apis", rt.listings.BySeller)
		r.With(requireIdentity).Get("/me", rt.accounts.Me)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminAuth(middleware.AdminAuthConfig{
				Logger: logger,
				Keys:   rt.adminKeys,
				Cache:  rt.adminCache,
			}))

			r.With(middleware.RequireCatalogRead()).Get("/catalog/export", rt.admin.Export)
			r.With(middleware.RequireCatalogWrite()).Post("/catalog/import", rt.admin.Import)
			r.With(middleware.RequireTransactionsRead()).Get("/transactions", rt.admin.Transactions)
			r.With(middleware.RequireTransactionsRead()).Get("/sales", rt.admin.Sales)
			r.Get("/stats", rt.admin.Stats)
		})
	})

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}
