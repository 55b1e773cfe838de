// Package events publishes domain events to a Redis stream for downstream
// consumers (fulfilment, analytics, seller notifications).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/apimarket/marketplace/internal/metrics"
	"github.com/apimarket/marketplace/internal/model"
)

// Event types.
const (
	TypePurchaseSettled = "purchase.settled"
	TypeListingCreated  = "listing.created"
)

const (
	// DefaultStream is the stream key used when none is configured.
	DefaultStream = "marketplace:events"
	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000
	// PublishTimeout bounds an asynchronous publish.
	PublishTimeout = 500 * time.Millisecond
)

// Event is the envelope written to the stream.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// PurchaseSettled is the payload of a purchase.settled event.
type PurchaseSettled struct {
	TransactionID   string  `json:"transactionId"`
	BuyerID         string  `json:"buyerId"`
	SellerID        string  `json:"sellerId,omitempty"`
	APIID           string  `json:"apiId"`
	APIName         string  `json:"apiName"`
	Amount          float64 `json:"amount"`
	PaymentIntentID string  `json:"paymentIntentId"`
}

// ListingCreated is the payload of a listing.created event.
type ListingCreated struct {
	APIID    string `json:"apiId"`
	APIName  string `json:"apiName"`
	SellerID string `json:"sellerId,omitempty"`
	IsPaid   bool   `json:"isPaid"`
}

// NewEvent wraps a payload in an envelope with a fresh id.
func NewEvent(eventType string, payload any, at time.Time) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: at.UTC(),
		Data:       data,
	}, nil
}

// PurchaseSettledEvent builds the event for a recorded transaction.
func PurchaseSettledEvent(txn *model.Transaction) (*Event, error) {
	return NewEvent(TypePurchaseSettled, PurchaseSettled{
		TransactionID:   txn.ID,
		BuyerID:         txn.BuyerID,
		SellerID:        txn.SellerID,
		APIID:           txn.APIID,
		APIName:         txn.APIName,
		Amount:          txn.Amount,
		PaymentIntentID: txn.PaymentIntentID,
	}, txn.CreatedAt)
}

// ListingCreatedEvent builds the event for a new listing.
func ListingCreatedEvent(l *model.Listing) (*Event, error) {
	return NewEvent(TypeListingCreated, ListingCreated{
		APIID:    l.ID,
		APIName:  l.Name,
		SellerID: l.UserID,
		IsPaid:   l.IsPaid,
	}, l.CreatedAt)
}

// Publisher appends events to a Redis stream.
type Publisher struct {
	redis   *redis.Client
	stream  string
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a Publisher. An empty stream uses DefaultStream.
func NewPublisher(client *redis.Client, stream string, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		stream:  stream,
		logger:  logger.With("component", "events.publisher"),
		metrics: recorder,
	}
}

// Publish adds an event to the stream and returns the stream entry id.
func (p *Publisher) Publish(ctx context.Context, event *Event) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"type":    event.Type,
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// PublishAsync publishes without blocking the caller. Failures are logged
// and counted, never returned.
func (p *Publisher) PublishAsync(event *Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("event_publish_failed",
				"event_type", event.Type,
				"event_id", event.ID,
				"error", err,
			)
			p.metrics.IncEventPublished("dropped")
			return
		}

		p.logger.Debug("event_published",
			"event_type", event.Type,
			"stream_id", streamID,
		)
		p.metrics.IncEventPublished(metrics.StatusSuccess)
	}()
}
