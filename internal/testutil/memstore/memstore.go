// Package memstore is an in-memory stand-in for the PostgreSQL repository,
// used by handler and router tests.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/apimarket/marketplace/internal/model"
	"github.com/apimarket/marketplace/internal/repository"
)

// Store holds listings, accounts and transactions in memory. It enforces
// the same uniqueness as the database: id, name and link.
type Store struct {
	mu           sync.Mutex
	listings     []*model.Listing
	accounts     map[string]*model.Account
	transactions []*model.Transaction
	sales        map[salesKey]*model.DailySales
	processed    map[string]bool

	// Err, when set, is returned by every read and write.
	Err error
}

// New returns a Store seeded with listings.
func New(listings ...*model.Listing) *Store {
	s := &Store{
		accounts:  map[string]*model.Account{},
		sales:     map[salesKey]*model.DailySales{},
		processed: map[string]bool{},
	}
	for _, l := range listings {
		cp := *l
		s.listings = append(s.listings, &cp)
	}
	return s
}

// CreateListing stores a copy of l.
func (s *Store) CreateListing(_ context.Context, l *model.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, existing := range s.listings {
		if existing.ID == l.ID || existing.Name == l.Name || existing.Link == l.Link {
			return repository.ErrListingExists
		}
	}
	cp := *l
	s.listings = append(s.listings, &cp)
	return nil
}

func (s *Store) GetListingByID(_ context.Context, id string) (*model.Listing, error) {
	return s.find(func(l *model.Listing) bool { return l.ID == id })
}

func (s *Store) GetListingByName(_ context.Context, name string) (*model.Listing, error) {
	return s.find(func(l *model.Listing) bool { return l.Name == name })
}

func (s *Store) FindListingByNameFold(_ context.Context, name string) (*model.Listing, error) {
	return s.find(func(l *model.Listing) bool { return strings.EqualFold(l.Name, name) })
}

func (s *Store) find(match func(*model.Listing) bool) (*model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, l := range s.listings {
		if match(l) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, repository.ErrListingNotFound
}

// ListListings returns copies in insertion order.
func (s *Store) ListListings(context.Context) ([]*model.Listing, error) {
	return s.filter(func(*model.Listing) bool { return true })
}

func (s *Store) ListListingsByUser(_ context.Context, userID string) ([]*model.Listing, error) {
	return s.filter(func(l *model.Listing) bool { return l.UserID == userID })
}

func (s *Store) filter(keep func(*model.Listing) bool) ([]*model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]*model.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if keep(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) CountListings(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return len(s.listings), nil
}

// EnsureAccount creates the account on first use and records email.
func (s *Store) EnsureAccount(_ context.Context, uid, email string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	a := s.ensure(uid)
	if email != "" {
		a.Email = email
	}
	return copyAccount(a), nil
}

func (s *Store) GetAccount(_ context.Context, uid string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	a, ok := s.accounts[uid]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return copyAccount(a), nil
}

func (s *Store) UpdateProfile(_ context.Context, uid string, profile model.Profile) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	a := s.ensure(uid)
	a.GithubLink = profile.GithubLink
	return copyAccount(a), nil
}

// Grant records a purchase without a transaction, for seeding tests.
func (s *Store) Grant(uid, listingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.ensure(uid)
	a.PurchasedAPIs = append(a.PurchasedAPIs, listingID)
}

func (s *Store) ensure(uid string) *model.Account {
	a, ok := s.accounts[uid]
	if !ok {
		a = &model.Account{UID: uid, PurchasedAPIs: []string{}}
		s.accounts[uid] = a
	}
	return a
}

func copyAccount(a *model.Account) *model.Account {
	cp := *a
	cp.PurchasedAPIs = slices.Clone(a.PurchasedAPIs)
	return &cp
}

// Settle grants the entitlement, credits the seller and records the
// transaction, once per (buyer, listing).
func (s *Store) Settle(_ context.Context, p repository.SettleParams) (*model.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	buyer := s.ensure(p.BuyerID)
	if p.BuyerEmail != "" {
		buyer.Email = p.BuyerEmail
	}
	if buyer.HasPurchased(p.Listing.ID) {
		return &model.Settlement{AlreadySettled: true}, nil
	}
	buyer.PurchasedAPIs = append(buyer.PurchasedAPIs, p.Listing.ID)

	result := &model.Settlement{}
	if seller, ok := s.accounts[p.Listing.UserID]; ok && p.Listing.HasSeller() {
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
	s.transactions = append(s.transactions, txn)
	result.Transaction = txn
	return result, nil
}

func (s *Store) GetTransaction(_ context.Context, buyerID, listingID string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, txn := range s.transactions {
		if txn.BuyerID == buyerID && txn.APIID == listingID {
			cp := *txn
			return &cp, nil
		}
	}
	return nil, repository.ErrTransactionNotFound
}

// ListTransactions returns up to limit transactions, newest first.
func (s *Store) ListTransactions(_ context.Context, limit int) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := slices.Clone(s.transactions)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type salesKey struct {
	listingID string
	day       time.Time
}

// RecordSales aggregates sales by listing and UTC day, once per event id.
func (s *Store) RecordSales(_ context.Context, sales []*model.Sale) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}

	n := 0
	for _, sale := range sales {
		if s.processed[sale.EventID] {
			continue
		}
		s.processed[sale.EventID] = true

		key := salesKey{sale.ListingID, sale.Day()}
		row, ok := s.sales[key]
		if !ok {
			row = &model.DailySales{ListingID: sale.ListingID, Day: key.day}
			s.sales[key] = row
		}
		row.Sales++
		row.Revenue += sale.Amount
		n++
	}
	return n, nil
}

// ListDailySales returns aggregates on or after since, newest day first.
func (s *Store) ListDailySales(_ context.Context, since time.Time) ([]*model.DailySales, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := make([]*model.DailySales, 0, len(s.sales))
	for key, row := range s.sales {
		if key.day.Before(since) {
			continue
		}
		cp := *row
		for _, l := range s.listings {
			if l.ID == row.ListingID {
				cp.ListingName = l.Name
				break
			}
		}
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *model.DailySales) int {
		if c := b.Day.Compare(a.Day); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Revenue, a.Revenue); c != 0 {
			return c
		}
		return strings.Compare(a.ListingID, b.ListingID)
	})
	return out, nil
}
