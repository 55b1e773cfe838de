package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/apimarket/marketplace/internal/catalog"
	"github.com/apimarket/marketplace/internal/events"
	"github.com/apimarket/marketplace/internal/metrics"
	"github.com/apimarket/marketplace/internal/model"
	"github.com/apimarket/marketplace/internal/repository"
)

// Access describes what a viewer may see of a listing.
type Access string

const (
	AccessGranted          Access = "granted"
	AccessSignInRequired   Access = "sign_in_required"
	AccessPurchaseRequired Access = "purchase_required"
)

// ListingService handles catalog business logic.
type ListingService struct {
	listings ListingStore
	accounts AccountStore
	scraper  PageScraper
	events   EventPublisher
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewListingService creates a new ListingService.
func NewListingService(
	listings ListingStore,
	accounts AccountStore,
	scraper PageScraper,
	publisher EventPublisher,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *ListingService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ListingService{
		listings: listings,
		accounts: accounts,
		scraper:  scraper,
		events:   publisherOrNoop(publisher),
		logger:   logger,
		metrics:  recorder,
		now:      time.Now,
	}
}

// SubmitInput defines input for submitting a listing.
type SubmitInput struct {
	Name        string
	Description string
	Link        string
	Category    string
	Auth        string
	HTTPS       *bool
	Cors        string
	Endpoint    string
	UserID      string
	IsPaid      bool
	Price       float64
}

// SubmitResult is a created listing and the catalog size after the insert.
type SubmitResult struct {
	Listing    *model.Listing
	TotalCount int
}

// Submit validates and stores a new listing. A verified identity takes
// precedence over the submitted user id.
func (s *ListingService) Submit(ctx context.Context, input SubmitInput, viewer *model.Identity) (*SubmitResult, error) {
	listing, err := s.buildListing(input)
	if err != nil {
		s.metrics.IncListingSubmitted(metrics.StatusFailed)
		return nil, err
	}
	if viewer != nil {
		listing.UserID = viewer.UID
	}

	if err := s.listings.CreateListing(ctx, listing); err != nil {
		s.metrics.IncListingSubmitted(metrics.StatusFailed)
		if errors.Is(err, repository.ErrListingExists) {
			return nil, ErrListingExists
		}
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}
	s.metrics.IncListingSubmitted(metrics.StatusSuccess)

	s.logger.Info("listing_submitted",
		"listing_id", listing.ID,
		"paid", listing.IsPaid,
		"anonymous", !listing.HasSeller(),
	)
	s.publishCreated(listing)

	total, err := s.listings.CountListings(ctx)
	if err != nil {
		s.logger.Warn("listing_count_failed", "error", err)
	}

	return &SubmitResult{Listing: listing, TotalCount: total}, nil
}

// buildListing applies validation in order and fills defaults.
func (s *ListingService) buildListing(input SubmitInput) (*model.Listing, error) {
	name := strings.TrimSpace(input.Name)
	description := strings.TrimSpace(input.Description)
	link := strings.TrimSpace(input.Link)
	if name == "" || description == "" || link == "" {
		return nil, ErrMissingFields
	}
	if !isAbsoluteHTTPURL(link) {
		return nil, ErrInvalidLink
	}
	price := model.RoundPrice(input.Price)
	if input.IsPaid && price < model.MinListingPrice {
		return nil, ErrPriceBelowMinimum
	}
	if input.IsPaid && price > model.MaxListingPrice {
		return nil, ErrPriceTooHigh
	}

	l := &model.Listing{
		ID:          ulid.Make().String(),
		Name:        name,
		Description: description,
		Link:        link,
		Auth:        strings.TrimSpace(input.Auth),
		HTTPS:       true,
		Cors:        strings.TrimSpace(input.Cors),
		Category:    strings.TrimSpace(input.Category),
		IsPaid:      input.IsPaid,
		Endpoint:    strings.TrimSpace(input.Endpoint),
		UserID:      strings.TrimSpace(input.UserID),
		CreatedAt:   s.now().UTC(),
	}
	if input.HTTPS != nil {
		l.HTTPS = *input.HTTPS
	}
	if l.Cors == "" {
		l.Cors = model.DefaultCors
	}
	if l.Category == "" {
		l.Category = model.DefaultCategory
	}
	if l.IsPaid {
		l.Price = price
	}
	if l.Endpoint == "" {
		l.Endpoint = l.Link
	}
	return l, nil
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *ListingService) publishCreated(l *model.Listing) {
	event, err := events.ListingCreatedEvent(l)
	if err != nil {
		s.logger.Warn("event_build_failed", "event_type", events.TypeListingCreated, "error", err)
		return
	}
	s.events.PublishAsync(event)
}

// Get retrieves a listing by id.
func (s *ListingService) Get(ctx context.Context, id string) (*model.Listing, error) {
	l, err := s.listings.GetListingByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return l, nil
}

// Resolve finds a listing by id, then exact name, then case-insensitive name.
func (s *ListingService) Resolve(ctx context.Context, identifier string) (*model.Listing, error) {
	if identifier == "" {
		return nil, ErrListingNotFound
	}

	lookups := []func(context.Context, string) (*model.Listing, error){
		s.listings.GetListingByID,
		s.listings.GetListingByName,
		s.listings.FindListingByNameFold,
	}
	for _, lookup := range lookups {
		l, err := lookup(ctx, identifier)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, repository.ErrListingNotFound) {
			return nil, fmt.Errorf("failed to resolve listing: %w", err)
		}
	}
	return nil, ErrListingNotFound
}

// ListingDetail is a listing as a particular viewer may see it.
type ListingDetail struct {
	Listing model.Listing
	Docs    *model.ScrapeResult
	Access  Access
}

// Entitled reports whether the viewer sees the real endpoint.
func (d *ListingDetail) Entitled() bool {
	return d.Access == AccessGranted
}

// Detail resolves a listing and gates its endpoint. Documentation is scraped
// concurrently with the viewer's entitlement lookup; a failed scrape degrades
// the docs, never the listing. A nil viewer is anonymous.
func (s *ListingService) Detail(ctx context.Context, identifier string, viewer *model.Identity) (*ListingDetail, error) {
	listing, err := s.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	var (
		docs      *model.ScrapeResult
		purchased []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs = s.scraper.Scrape(gctx, listing.Link)
		return nil
	})
	if viewer != nil && listing.IsPaid && listing.UserID != viewer.UID {
		g.Go(func() error {
			account, err := s.accounts.GetAccount(gctx, viewer.UID)
			if err != nil {
				if errors.Is(err, repository.ErrAccountNotFound) {
					return nil
				}
				return fmt.Errorf("failed to load entitlements: %w", err)
			}
			purchased = account.PurchasedAPIs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	detail := &ListingDetail{Listing: *listing, Docs: docs, Access: AccessGranted}

	viewerID := ""
	if viewer != nil {
		viewerID = viewer.UID
	}
	if !listing.IsEntitled(viewerID, purchased) {
		detail.Listing = listing.Public()
		detail.Access = AccessPurchaseRequired
		if viewer == nil {
			detail.Access = AccessSignInRequired
		}
	}
	return detail, nil
}

// BrowseInput defines a catalog query.
type BrowseInput struct {
	Tokens            []string
	Category          string
	ShowAllCategories bool
}

// BrowseResult is a filtered catalog page with its category bar.
type BrowseResult struct {
	APIs              []model.Listing
	TotalCount        int
	Categories        []string
	HasMoreCategories bool
}

// Browse filters the catalog. Every token, and the category when given,
// must match. Endpoints are withheld.
func (s *ListingService) Browse(ctx context.Context, input BrowseInput) (*BrowseResult, error) {
	all, err := s.listings.ListListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}

	tokens := input.Tokens
	if c := strings.TrimSpace(input.Category); c != "" {
		tokens = append(append([]string{}, tokens...), c)
	}
	matched := catalog.Filter(all, tokens)

	categories, more := catalog.VisibleCategories(catalog.Categories(all), input.ShowAllCategories)

	return &BrowseResult{
		APIs:              publicListings(matched),
		TotalCount:        len(matched),
		Categories:        categories,
		HasMoreCategories: more,
	}, nil
}

// Suggest returns typeahead matches for query.
func (s *ListingService) Suggest(ctx context.Context, query string) ([]model.Listing, error) {
	if strings.TrimSpace(query) == "" {
		return []model.Listing{}, nil
	}
	all, err := s.listings.ListListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return publicListings(catalog.Suggestions(all, query)), nil
}

// ListBySeller returns the listings a user submitted, without endpoints.
func (s *ListingService) ListBySeller(ctx context.Context, userID string) ([]model.Listing, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	listings, err := s.listings.ListListingsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seller listings: %w", err)
	}
	return publicListings(listings), nil
}

func publicListings(listings []*model.Listing) []model.Listing {
	out := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.Public())
	}
	return out
}

// Export writes the whole catalog, endpoints included, as a flat file.
func (s *ListingService) Export(ctx context.Context, w io.Writer) error {
	all, err := s.listings.ListListings(ctx)
	if err != nil {
		return fmt.Errorf("failed to list listings: %w", err)
	}
	return catalog.EncodeFlatFile(w, all)
}

// ImportResult counts the outcome of a flat-file import.
type ImportResult struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Invalid  int `json:"invalid"`
}

// Import loads a flat file. Entries go through submission validation;
// duplicates are skipped and counted rather than failing the import.
func (s *ListingService) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	doc, err := catalog.DecodeFlatFile(r)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Total: doc.Count}
	for _, entry := range doc.Entries {
		listing, err := s.buildListing(importInput(entry))
		if err != nil {
			result.Invalid++
			s.metrics.IncListingImported(metrics.StatusFailed)
			continue
		}
		if _, err := ulid.ParseStrict(entry.ID); err == nil {
			listing.ID = entry.ID
		}
		if !entry.CreatedAt.IsZero() {
			listing.CreatedAt = entry.CreatedAt.UTC()
		}

		if err := s.listings.CreateListing(ctx, listing); err != nil {
			if errors.Is(err, repository.ErrListingExists) {
				result.Skipped++
				s.metrics.IncListingImported("skipped")
				continue
			}
			return result, fmt.Errorf("failed to import %q: %w", listing.Name, err)
		}
		result.Imported++
		s.metrics.IncListingImported(metrics.StatusSuccess)
	}

	s.logger.Info("catalog_imported",
		"total", result.Total,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"invalid", result.Invalid,
	)
	return result, nil
}

func importInput(l *model.Listing) SubmitInput {
	https := l.HTTPS
	return SubmitInput{
		Name:        l.Name,
		Description: l.Description,
		Link:        l.Link,
		Category:    l.Category,
		Auth:        l.Auth,
		HTTPS:       &https,
		Cors:        l.Cors,
		Endpoint:    l.Endpoint,
		UserID:      l.UserID,
		IsPaid:      l.IsPaid,
		Price:       l.Price,
	}
}
