package service

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/apimarket/marketplace/internal/events"
	"github.com/apimarket/marketplace/internal/model"
	"github.com/apimarket/marketplace/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryStore implements ListingStore, AccountStore and SettlementStore.
type memoryStore struct {
	mu           sync.Mutex
	listings     []*model.Listing
	accounts     map[string]*model.Account
	transactions []*model.Transaction
	failList     error
	failSettle   error
}

func newMemoryStore(listings ...*model.Listing) *memoryStore {
	return &memoryStore{listings: listings, accounts: map[string]*model.Account{}}
}

func (m *memoryStore) CreateListing(_ context.Context, l *model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.listings {
		if existing.ID == l.ID || existing.Name == l.Name || existing.Link == l.Link {
			return repository.ErrListingExists
		}
	}
	cp := *l
	m.listings = append(m.listings, &cp)
	return nil
}

func (m *memoryStore) GetListingByID(_ context.Context, id string) (*model.Listing, error) {
	return m.find(func(l *model.Listing) bool { return l.ID == id })
}

func (m *memoryStore) GetListingByName(_ context.Context, name string) (*model.Listing, error) {
	return m.find(func(l *model.Listing) bool { return l.Name == name })
}

func (m *memoryStore) FindListingByNameFold(_ context.Context, name string) (*model.Listing, error) {
	return m.find(func(l *model.Listing) bool { return strings.EqualFold(l.Name, name) })
}

func (m *memoryStore) find(match func(*model.Listing) bool) (*model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	for _, l := range m.listings {
		if match(l) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, repository.ErrListingNotFound
}

func (m *memoryStore) ListListings(context.Context) ([]*model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	return slices.Clone(m.listings), nil
}

func (m *memoryStore) ListListingsByUser(_ context.Context, userID string) ([]*model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Listing
	for _, l := range m.listings {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memoryStore) CountListings(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listings), nil
}

func (m *memoryStore) EnsureAccount(_ context.Context, uid, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.ensure(uid)
	if email != "" {
		a.Email = email
	}
	cp := *a
	return &cp, nil
}

func (m *memoryStore) ensure(uid string) *model.Account {
	a, ok := m.accounts[uid]
	if !ok {
		a = &model.Account{UID: uid}
		m.accounts[uid] = a
	}
	return a
}

func (m *memoryStore) GetAccount(_ context.Context, uid string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[uid]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	cp := *a
	cp.PurchasedAPIs = slices.Clone(a.PurchasedAPIs)
	return &cp, nil
}

func (m *memoryStore) UpdateProfile(_ context.Context, uid string, profile model.Profile) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.ensure(uid)
	a.GithubLink = profile.GithubLink
	cp := *a
	return &cp, nil
}

func (m *memoryStore) Settle(_ context.Context, p repository.SettleParams) (*model.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSettle != nil {
		return nil, m.failSettle
	}

	buyer := m.ensure(p.BuyerID)
	if buyer.HasPurchased(p.Listing.ID) {
		return &model.Settlement{AlreadySettled: true}, nil
	}
	buyer.PurchasedAPIs = append(buyer.PurchasedAPIs, p.Listing.ID)

	result := &model.Settlement{}
	if seller, ok := m.accounts[p.Listing.UserID]; ok && p.Listing.HasSeller() {
		seller.Earnings += p.Listing.Price
		result.SellerCredited = true
	}
	txn := &model.Transaction{
		ID:              p.TransactionID,
		BuyerID:         p.BuyerID,
		BuyerEmail:      p.BuyerEmail,
		SellerID:        p.Listing.UserID,
		APIID:           p.Listing.ID,
		APIName:         p.Listing.Name,
		Amount:          p.Listing.Price,
		PaymentIntentID: p.PaymentIntentID,
		CreatedAt:       p.SettledAt,
	}
	m.transactions = append(m.transactions, txn)
	result.Transaction = txn
	return result, nil
}

func (m *memoryStore) GetTransaction(_ context.Context, buyerID, listingID string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, txn := range m.transactions {
		if txn.BuyerID == buyerID && txn.APIID == listingID {
			return txn, nil
		}
	}
	return nil, repository.ErrTransactionNotFound
}

func (m *memoryStore) ListTransactions(_ context.Context, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.transactions)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// staticScraper returns a fixed result and records requested URLs.
type staticScraper struct {
	mu     sync.Mutex
	result *model.ScrapeResult
	urls   []string
}

func (s *staticScraper) Scrape(_ context.Context, url string) *model.ScrapeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, url)
	if s.result == nil {
		return &model.ScrapeResult{Overview: "docs", Examples: []string{}, Requirements: []string{}}
	}
	return s.result
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *recordingPublisher) PublishAsync(e *events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
