package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/apimarket/marketplace/internal/events"
	"github.com/apimarket/marketplace/internal/metrics"
	"github.com/apimarket/marketplace/internal/model"
	"github.com/apimarket/marketplace/internal/payment"
	"github.com/apimarket/marketplace/internal/repository"
)

const (
	// DefaultCurrency is the processor currency when none is configured.
	DefaultCurrency = "inr"
	// DefaultMinAmountMinor is the processor minimum, in minor units.
	DefaultMinAmountMinor = 5000
	// MaxTransactionsLimit caps transaction listings.
	MaxTransactionsLimit = 100
)

// CheckoutConfig holds processor settings.
type CheckoutConfig struct {
	Currency       string
	MinAmountMinor int64
}

// CheckoutService handles payment intents and post-payment settlement.
type CheckoutService struct {
	listings    *ListingService
	settlements SettlementStore
	processor   payment.Processor
	events      EventPublisher
	cfg         CheckoutConfig
	logger      *slog.Logger
	metrics     metrics.Recorder
	now         func() time.Time
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	listings *ListingService,
	settlements SettlementStore,
	processor payment.Processor,
	publisher EventPublisher,
	cfg CheckoutConfig,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.MinAmountMinor <= 0 {
		cfg.MinAmountMinor = DefaultMinAmountMinor
	}
	if processor == nil {
		processor = payment.Disabled{}
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &CheckoutService{
		listings:    listings,
		settlements: settlements,
		processor:   processor,
		events:      publisherOrNoop(publisher),
		cfg:         cfg,
		logger:      logger,
		metrics:     recorder,
		now:         time.Now,
	}
}

// MinAmountMinor returns the configured processor minimum.
func (s *CheckoutService) MinAmountMinor() int64 {
	return s.cfg.MinAmountMinor
}

// CreateIntentInput defines input for creating a payment intent.
// Amount is in minor units and is rounded to the nearest unit. Buyer is
// optional here, but only intents created for a signed-in buyer can be
// settled.
type CreateIntentInput struct {
	APIID  string
	Amount float64
	Buyer  *model.Identity
}

// IntentResult is what the browser needs to confirm a payment.
type IntentResult struct {
	ClientSecret    string
	PaymentIntentID string
}

// CreateIntent authorizes a charge with the payment processor. The amount
// must equal the listing price in minor units.
func (s *CheckoutService) CreateIntent(ctx context.Context, input CreateIntentInput) (*IntentResult, error) {
	apiID := strings.TrimSpace(input.APIID)
	if apiID == "" || input.Amount == 0 {
		return nil, ErrMissingIntentFields
	}

	amount := int64(math.Round(input.Amount))
	if amount < s.cfg.MinAmountMinor {
		return nil, ErrAmountBelowMinimum
	}

	listing, err := s.listings.Get(ctx, apiID)
	if err != nil {
		return nil, err
	}
	if !listing.IsPaid {
		return nil, ErrListingNotForSale
	}
	if amount != listing.AmountMinor() {
		return nil, ErrAmountMismatch
	}

	metadata := map[string]string{payment.MetadataAPIID: listing.ID}
	if input.Buyer != nil && input.Buyer.UID != "" {
		metadata[payment.MetadataBuyerUID] = input.Buyer.UID
	}

	intent, err := s.processor.CreateIntent(ctx, payment.IntentRequest{
		AmountMinor: amount,
		Currency:    s.cfg.Currency,
		Metadata:    metadata,
	})
	if err != nil {
		s.metrics.IncPaymentIntent(metrics.StatusFailed)
		if errors.Is(err, payment.ErrNotConfigured) {
			return nil, ErrPaymentsNotConfigured
		}
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}
	s.metrics.IncPaymentIntent(metrics.StatusSuccess)

	s.logger.Info("payment_intent_created",
		"payment_intent_id", intent.ID,
		"api_id", listing.ID,
		"amount", amount,
		"currency", s.cfg.Currency,
	)

	return &IntentResult{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}, nil
}

// Quote is the amount a checkout page charges for a listing.
type Quote struct {
	APIID    string
	APIName  string
	Price    float64
	Amount   int64
	Currency string
}

// Quote resolves a listing and converts its price to minor units.
func (s *CheckoutService) Quote(ctx context.Context, identifier string) (*Quote, error) {
	l, err := s.listings.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return &Quote{
		APIID:    l.ID,
		APIName:  l.Name,
		Price:    l.Price,
		Amount:   l.AmountMinor(),
		Currency: s.cfg.Currency,
	}, nil
}

// SettleInput identifies the returned payment.
type SettleInput struct {
	APIID           string
	PaymentIntentID string
}

// SettleResult reports whether this call granted the entitlement.
type SettleResult struct {
	Settled        bool
	AlreadySettled bool
	Transaction    *model.Transaction
}

// Settle reconciles a completed payment for buyer. The intent is fetched
// from the processor and must have succeeded for this buyer, listing, amount
// and currency before anything is written. It is idempotent per
// (buyer, listing): repeated calls report AlreadySettled and write nothing.
func (s *CheckoutService) Settle(ctx context.Context, buyer *model.Identity, input SettleInput) (*SettleResult, error) {
	if buyer == nil || buyer.UID == "" {
		return nil, ErrUnauthenticated
	}
	apiID := strings.TrimSpace(input.APIID)
	intentID := strings.TrimSpace(input.PaymentIntentID)
	if apiID == "" || intentID == "" {
		return nil, ErrMissingSettleFields
	}

	listing, err := s.listings.Get(ctx, apiID)
	if err != nil {
		return nil, err
	}
	if !listing.IsPaid {
		return nil, ErrListingNotForSale
	}

	if err := s.verifyPayment(ctx, buyer, listing, intentID); err != nil {
		s.metrics.IncSettlement("unverified")
		s.logger.Warn("settlement_rejected",
			"payment_intent_id", intentID,
			"api_id", listing.ID,
			"error", err,
		)
		return nil, err
	}

	settlement, err := s.settlements.Settle(ctx, repository.SettleParams{
		BuyerID:         buyer.UID,
		BuyerEmail:      buyer.Email,
		Listing:         listing,
		PaymentIntentID: intentID,
		TransactionID:   ulid.Make().String(),
		SettledAt:       s.now().UTC(),
	})
	if err != nil {
		s.metrics.IncSettlement(metrics.StatusFailed)
		return nil, fmt.Errorf("failed to settle purchase: %w", err)
	}

	if settlement.AlreadySettled {
		s.metrics.IncSettlement("already_settled")
		result := &SettleResult{Settled: true, AlreadySettled: true}
		txn, err := s.settlements.GetTransaction(ctx, buyer.UID, listing.ID)
		switch {
		case err == nil:
			result.Transaction = txn
		case !errors.Is(err, repository.ErrTransactionNotFound):
			s.logger.Warn("transaction_lookup_failed", "api_id", listing.ID, "error", err)
		}
		return result, nil
	}

	s.metrics.IncSettlement(metrics.StatusSuccess)
	s.logger.Info("purchase_settled",
		"transaction_id", settlement.Transaction.ID,
		"api_id", listing.ID,
		"seller_credited", settlement.SellerCredited,
	)

	if event, err := events.PurchaseSettledEvent(settlement.Transaction); err != nil {
		s.logger.Warn("event_build_failed", "event_type", events.TypePurchaseSettled, "error", err)
	} else {
		s.events.PublishAsync(event)
	}

	return &SettleResult{Settled: true, Transaction: settlement.Transaction}, nil
}

// verifyPayment checks the processor's record of intentID against the
// purchase being settled.
func (s *CheckoutService) verifyPayment(ctx context.Context, buyer *model.Identity, listing *model.Listing, intentID string) error {
	intent, err := s.processor.GetIntent(ctx, intentID)
	switch {
	case errors.Is(err, payment.ErrNotConfigured):
		return ErrPaymentsNotConfigured
	case errors.Is(err, payment.ErrIntentNotFound):
		return fmt.Errorf("%w: unknown payment intent", ErrPaymentNotVerified)
	case err != nil:
		return fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	var reason string
	switch {
	case !intent.Succeeded():
		reason = "payment status is " + intent.Status
	case intent.Metadata[payment.MetadataAPIID] != listing.ID:
		reason = "intent was created for another API"
	case intent.Metadata[payment.MetadataBuyerUID] != buyer.UID:
		reason = "intent was created for another buyer"
	case intent.AmountMinor != listing.AmountMinor():
		reason = "amount does not match the API price"
	case !strings.EqualFold(intent.Currency, s.cfg.Currency):
		reason = "currency " + intent.Currency + " is not " + s.cfg.Currency
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPaymentNotVerified, reason)
}

// ListTransactions returns the newest transactions. The limit is clamped
// to [1, MaxTransactionsLimit].
func (s *CheckoutService) ListTransactions(ctx context.Context, limit int) ([]*model.Transaction, error) {
	if limit <= 0 || limit > MaxTransactionsLimit {
		limit = MaxTransactionsLimit
	}
	txns, err := s.settlements.ListTransactions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}
