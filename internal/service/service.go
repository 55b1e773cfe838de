// Package service provides business logic for the marketplace.
package service

import (
	"context"
	"errors"

	"github.com/apimarket/marketplace/internal/events"
	"github.com/apimarket/marketplace/internal/model"
	"github.com/apimarket/marketplace/internal/repository"
)

// Service errors.
var (
	ErrMissingFields     = errors.New("missing required fields (name, description, link)")
	ErrInvalidLink       = errors.New("invalid link URL")
	ErrPriceBelowMinimum = errors.New("price below minimum for paid APIs")
	ErrPriceTooHigh      = errors.New("price above maximum")
	ErrListingExists     = errors.New("API already exists in the list")
	ErrListingNotFound   = errors.New("API not found")

	ErrMissingIntentFields   = errors.New("missing apiId or amount")
	ErrAmountBelowMinimum    = errors.New("amount below processor minimum")
	ErrAmountMismatch        = errors.New("amount does not match the API price")
	ErrPaymentsNotConfigured = errors.New("payments are not configured")
	ErrPaymentFailed         = errors.New("payment processor error")
	ErrPaymentNotVerified    = errors.New("payment could not be verified")
	ErrMissingSettleFields   = errors.New("missing apiId or paymentIntentId")
	ErrListingNotForSale     = errors.New("API is not a paid listing")
	ErrUnauthenticated       = errors.New("authentication required")

	ErrMissingUserID = errors.New("user ID required")
	ErrForbidden     = errors.New("not allowed to modify another user")

	ErrMissingURL    = errors.New("URL is required")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrInvalidMethod = errors.New("invalid method")
	ErrProxyRequest  = errors.New("failed to make request")
)

// ListingStore is the catalog part of the store.
type ListingStore interface {
	CreateListing(ctx context.Context, l *model.Listing) error
	GetListingByID(ctx context.Context, id string) (*model.Listing, error)
	GetListingByName(ctx context.Context, name string) (*model.Listing, error)
	FindListingByNameFold(ctx context.Context, name string) (*model.Listing, error)
	ListListings(ctx context.Context) ([]*model.Listing, error)
	ListListingsByUser(ctx context.Context, userID string) ([]*model.Listing, error)
	CountListings(ctx context.Context) (int, error)
}

// AccountStore holds user accounts and profiles.
type AccountStore interface {
	EnsureAccount(ctx context.Context, uid, email string) (*model.Account, error)
	GetAccount(ctx context.Context, uid string) (*model.Account, error)
	UpdateProfile(ctx context.Context, uid string, profile model.Profile) (*model.Account, error)
}

// SettlementStore records purchases.
type SettlementStore interface {
	Settle(ctx context.Context, p repository.SettleParams) (*model.Settlement, error)
	GetTransaction(ctx context.Context, buyerID, listingID string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, limit int) ([]*model.Transaction, error)
}

// PageScraper summarizes a documentation page. It never fails; failures are
// reported inside the result.
type PageScraper interface {
	Scrape(ctx context.Context, url string) *model.ScrapeResult
}

// EventPublisher emits domain events without blocking the caller.
type EventPublisher interface {
	PublishAsync(event *events.Event)
}

type noopPublisher struct{}

func (noopPublisher) PublishAsync(*events.Event) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
