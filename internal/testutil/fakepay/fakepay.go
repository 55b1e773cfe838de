// Package fakepay is an in-memory payment processor for tests.
package fakepay

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/apimarket/marketplace/internal/payment"
)

// Processor keeps intents in memory. Created intents start unpaid; tests
// mark them paid with Succeed or insert finished intents with Put.
type Processor struct {
	mu       sync.Mutex
	intents  map[string]*payment.Intent
	requests []payment.IntentRequest
	seq      int

	// Err, when set, is returned by CreateIntent and GetIntent.
	Err error
}

// New returns an empty Processor.
func New() *Processor {
	return &Processor{intents: map[string]*payment.Intent{}}
}

// CreateIntent records req and stores an unpaid intent.
func (p *Processor) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if p.Err != nil {
		return nil, p.Err
	}

	p.seq++
	id := fmt.Sprintf("pi_test_%d", p.seq)
	intent := &payment.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       "requires_payment_method",
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
		Metadata:     maps.Clone(req.Metadata),
	}
	p.intents[id] = intent

	cp := *intent
	return &cp, nil
}

// GetIntent returns a copy of a stored intent.
func (p *Processor) GetIntent(_ context.Context, id string) (*payment.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	intent, ok := p.intents[id]
	if !ok {
		return nil, fmt.Errorf("get intent %s: %w", id, payment.ErrIntentNotFound)
	}
	cp := *intent
	cp.ClientSecret = ""
	cp.Metadata = maps.Clone(intent.Metadata)
	return &cp, nil
}

// Succeed marks a stored intent as paid.
func (p *Processor) Succeed(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if intent, ok := p.intents[id]; ok {
		intent.Status = payment.StatusSucceeded
	}
}

// Put stores intent as-is, replacing any intent with the same ID.
func (p *Processor) Put(intent *payment.Intent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *intent
	cp.Metadata = maps.Clone(intent.Metadata)
	p.intents[intent.ID] = &cp
}

// Paid stores a succeeded intent for buyerUID buying apiID and returns its ID.
func (p *Processor) Paid(apiID, buyerUID string, amountMinor int64, currency string) string {
	p.mu.Lock()
	p.seq++
	id := fmt.Sprintf("pi_paid_%d", p.seq)
	p.mu.Unlock()

	p.Put(&payment.Intent{
		ID:          id,
		Status:      payment.StatusSucceeded,
		AmountMinor: amountMinor,
		Currency:    currency,
		Metadata: map[string]string{
			payment.MetadataAPIID:    apiID,
			payment.MetadataBuyerUID: buyerUID,
		},
	})
	return id
}

// Requests returns every CreateIntent request in order.
func (p *Processor) Requests() []payment.IntentRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]payment.IntentRequest(nil), p.requests...)
}
