package model

import "time"

// Sale is one settled purchase as seen by the sales projection.
type Sale struct {
	// EventID is the idempotency key; a sale is counted once per id.
	EventID   string
	ListingID string
	Amount    float64
	SettledAt time.Time
}

// Day returns the UTC calendar day the sale falls on.
func (s *Sale) Day() time.Time {
	y, m, d := s.SettledAt.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DailySales aggregates one listing's sales on one day.
type DailySales struct {
	ListingID   string    `json:"apiId"`
	ListingName string    `json:"apiName"`
	Day         time.Time `json:"day"`
	Sales       int       `json:"sales"`
	Revenue     float64   `json:"revenue"`
}
