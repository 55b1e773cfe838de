// Package scraper extracts a short summary from API documentation pages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/apimarket/marketplace/internal/metrics"
	"github.com/apimarket/marketplace/internal/model"
	"github.com/apimarket/marketplace/internal/outbound"
)

const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.5"

	// DefaultTimeout bounds a whole fetch.
	DefaultTimeout = 10 * time.Second
	// MaxRedirects is how many redirects a fetch follows.
	MaxRedirects = 5
	// maxBodyBytes caps how much of a page is parsed.
	maxBodyBytes = 5 << 20

	// FailedOverview is returned with every failed result.
	FailedOverview = "Unable to fetch documentation. Please visit the official link."

	msgTimeout      = "Request timeout - the website took too long to respond"
	msgAccessDenied = "Access denied - the website blocked the scraping request"
)

// ResultCache stores successful results keyed by URL.
type ResultCache interface {
	GetScrape(ctx context.Context, url string) (*model.ScrapeResult, error)
	SetScrape(ctx context.Context, url string, result *model.ScrapeResult, ttl time.Duration) error
}

// Scraper fetches documentation pages through the outbound guard.
type Scraper struct {
	guard    *outbound.Guard
	client   *http.Client
	cache    ResultCache
	cacheTTL time.Duration
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithCache enables result caching.
func WithCache(c ResultCache, ttl time.Duration) Option {
	return func(s *Scraper) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(s *Scraper) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a Scraper. A non-positive timeout uses DefaultTimeout.
func New(guard *outbound.Guard, timeout time.Duration, logger *slog.Logger, opts ...Option) *Scraper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Scraper{
		guard:   guard,
		client:  guard.NewClient(timeout, MaxRedirects),
		logger:  logger,
		metrics: metrics.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape returns a summary of the page at pageURL. It never fails: fetch and
// parse problems produce a degraded result carrying an error message.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) *model.ScrapeResult {
	if s.cache != nil {
		if cached, err := s.cache.GetScrape(ctx, pageURL); err == nil {
			s.metrics.IncScrape("cache_hit")
			return cached
		}
	}

	start := time.Now()
	result, err := s.fetch(ctx, pageURL)
	s.metrics.ObserveScrapeDuration(time.Since(start))

	if err != nil {
		s.metrics.IncScrape(metrics.StatusFailed)
		s.logger.Warn("scrape_failed",
			"host", outbound.ExtractHost(pageURL),
			"error", err,
		)
		return Failed(err)
	}

	s.metrics.IncScrape(metrics.StatusSuccess)

	if s.cache != nil {
		if err := s.cache.SetScrape(ctx, pageURL, result, s.cacheTTL); err != nil {
			s.logger.Debug("scrape_cache_write_failed", "error", err)
		}
	}
	return result
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*model.ScrapeResult, error) {
	if _, err := s.guard.ValidateURL(ctx, pageURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	result, err := Extract(pageURL, io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return result, nil
}

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Request failed with status code %d", e.Code)
}

// Failed builds the degraded result for a fetch error.
func Failed(err error) *model.ScrapeResult {
	return &model.ScrapeResult{
		Overview:     FailedOverview,
		Examples:     []string{},
		Requirements: []string{},
		IsRestAPI:    false,
		Error:        FailureMessage(err),
	}
}

// FailureMessage maps a fetch error to the message shown to clients.
func FailureMessage(err error) string {
	if isTimeout(err) {
		return msgTimeout
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) &&
		(statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden) {
		return msgAccessDenied
	}

	return "Failed to scrape URL: " + err.Error()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
