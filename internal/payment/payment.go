// Package payment creates and looks up processor-side payment intents.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

var (
	// ErrNotConfigured is returned when no processor secret is configured.
	ErrNotConfigured = errors.New("payment processor is not configured")
	// ErrIntentNotFound is returned when the processor has no such intent.
	ErrIntentNotFound = errors.New("payment intent not found")
)

// StatusSucceeded is the intent status of a captured payment.
const StatusSucceeded = "succeeded"

// Metadata keys attached to every intent.
const (
	MetadataAPIID    = "apiId"
	MetadataBuyerUID = "buyerUid"
)

// IntentRequest describes a charge to authorize.
type IntentRequest struct {
	AmountMinor int64
	Currency    string
	Metadata    map[string]string
}

// Intent is a processor payment intent. ClientSecret lets the browser
// confirm the payment directly with the processor and is only set on
// creation.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
	Metadata     map[string]string
}

// Processor creates payment intents and reads back their state.
type Processor interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
}

// ProcessorError carries the processor's own message for the client.
type ProcessorError struct {
	Message string
	Err     error
}

func (e *ProcessorError) Error() string {
	return e.Message
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

// Stripe implements Processor with the Stripe PaymentIntents API.
type Stripe struct {
	sc *client.API
}

// NewStripe returns a Stripe processor, or a Disabled one when secretKey is
// empty.
func NewStripe(secretKey string) Processor {
	if secretKey == "" {
		return Disabled{}
	}
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &Stripe{sc: sc}
}

// CreateIntent creates a PaymentIntent with automatic payment methods.
func (s *Stripe) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, processorError(err)
	}

	return intentFrom(pi), nil
}

// GetIntent fetches the current state of a PaymentIntent.
func (s *Stripe) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.sc.PaymentIntents.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, fmt.Errorf("get intent %s: %w", id, ErrIntentNotFound)
		}
		return nil, processorError(err)
	}

	intent := intentFrom(pi)
	intent.ClientSecret = ""
	return intent, nil
}

func intentFrom(pi *stripe.PaymentIntent) *Intent {
	metadata := make(map[string]string, len(pi.Metadata))
	for k, v := range pi.Metadata {
		metadata[k] = v
	}
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     metadata,
	}
}

func processorError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return &ProcessorError{Message: stripeErr.Msg, Err: err}
	}
	return &ProcessorError{Message: err.Error(), Err: err}
}

// Succeeded reports whether the intent captured its payment.
func (i *Intent) Succeeded() bool {
	return i.Status == StatusSucceeded
}

// Disabled rejects every request with ErrNotConfigured.
type Disabled struct{}

// CreateIntent always fails.
func (Disabled) CreateIntent(context.Context, IntentRequest) (*Intent, error) {
	return nil, fmt.Errorf("create intent: %w", ErrNotConfigured)
}

// GetIntent always fails.
func (Disabled) GetIntent(context.Context, string) (*Intent, error) {
	return nil, fmt.Errorf("get intent: %w", ErrNotConfigured)
}
