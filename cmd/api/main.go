// Package main is the entrypoint for the API marketplace server.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/apimarket/marketplace/internal/breach"
	"github.com/apimarket/marketplace/internal/cache"
	"github.com/apimarket/marketplace/internal/config"
	"github.com/apimarket/marketplace/internal/events"
	"github.com/apimarket/marketplace/internal/handler"
	"github.com/apimarket/marketplace/internal/identity"
	"github.com/apimarket/marketplace/internal/metrics"
	"github.com/apimarket/marketplace/internal/middleware"
	"github.com/apimarket/marketplace/internal/outbound"
	"github.com/apimarket/marketplace/internal/payment"
	"github.com/apimarket/marketplace/internal/repository"
	"github.com/apimarket/marketplace/internal/scraper"
	"github.com/apimarket/marketplace/internal/server"
	"github.com/apimarket/marketplace/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server_exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, flush, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer flush()
	slog.SetDefault(logger)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database_connect_failed",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return err
	}
	logger.Info("database_connected")

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.WithPoolSize(cfg.RedisPoolSize))
	if err != nil {
		logger.Error("redis_connect_failed",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		return err
	}
	logger.Info("redis_connected")

	recorder := metrics.NewInMemory()

	var verifier middleware.TokenVerifier = identity.Disabled{}
	if cfg.IdentityEnabled() {
		fb, err := identity.NewFirebase(ctx, identity.Config{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentialsFile,
			CredentialsB64:  cfg.FirebaseCredentialsB64,
		})
		if err != nil {
			logger.Error("identity_init_failed", "error", err)
			repo.Close()
			_ = cacheClient.Close()
			return err
		}
		verifier = fb
	} else {
		logger.Warn("identity_disabled", "reason", "FIREBASE_PROJECT_ID not set")
	}

	if !cfg.PaymentsEnabled() {
		logger.Warn("payments_disabled", "reason", "STRIPE_SECRET_KEY not set")
	}
	processor := payment.NewStripe(cfg.StripeSecretKey)

	guard := outbound.NewGuard(outbound.WithAllowedPorts(cfg.GetOutboundAllowedPorts()...))
	pageScraper := scraper.New(guard, cfg.ScrapeTimeout, logger,
		scraper.WithCache(cacheClient, cfg.ScrapeCacheTTL),
		scraper.WithMetrics(recorder),
	)
	publisher := events.NewPublisher(cacheClient.Client(), cfg.EventsStream, logger, recorder)

	listingSvc := service.NewListingService(repo, repo, pageScraper, publisher, logger, recorder)
	checkoutSvc := service.NewCheckoutService(listingSvc, repo, processor, publisher, service.CheckoutConfig{
		Currency:       cfg.PaymentCurrency,
		MinAmountMinor: cfg.PaymentMinAmount,
	}, logger, recorder)
	profileSvc := service.NewProfileService(repo)
	proxySvc := service.NewProxyService(guard, 0, logger, recorder)
	salesSvc := service.NewSalesService(repo)

	r := setupRouter(routes{
		health: handler.NewHealthHandler(logger,
			handler.Dependency{Name: "postgres", Checker: repo},
			handler.Dependency{Name: "redis", Checker: cacheClient},
		),
		metrics:  handler.NewMetricsHandler(recorder),
		listings: handler.NewListingHandler(listingSvc, logger),
		checkout: handler.NewCheckoutHandler(checkoutSvc, logger),
		accounts: handler.NewAccountHandler(profileSvc, logger),
		tools:    handler.NewToolsHandler(pageScraper, proxySvc, breach.New(cfg.PwnedAPIBaseURL, nil), logger, recorder),
		admin:    handler.NewAdminHandler(listingSvc, checkoutSvc, salesSvc, logger),

		verifier:   verifier,
		adminKeys:  repo,
		adminCache: cacheClient,
		limiter:    cacheClient,
	}, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Components stop LIFO, so the consumer stops before the pools close.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})
	if cfg.SalesConsumerEnabled {
		consumer := events.NewConsumer(cacheClient.Client(), cfg.EventsStream, repo, logger, events.NewConsumerID(), recorder)
		srv.Go("sales-consumer", consumer.Run, consumer.Shutdown)
	}

	logger.Info("server_starting",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"payments", cfg.PaymentsEnabled(),
		"identity", cfg.IdentityEnabled(),
	)

	return srv.Run()
}
