// Package model defines domain entities for the application.
package model

import (
	"math"
	"slices"
	"time"
)

// Listing defaults and limits.
const (
	DefaultCategory = "General"
	DefaultCors     = "unknown"

	// MinListingPrice is the lowest price, in major currency units, a paid
	// listing may carry. It matches the processor minimum of 5000 minor units.
	MinListingPrice = 50.0
	// MaxListingPrice is the largest price the NUMERIC(12,2) column holds.
	MaxListingPrice = 9999999999.99
)

// Listing is a cataloged third-party API.
//
// JSON field names follow the catalog document format shared with clients
// and the flat-file export.
type Listing struct {
	ID          string    `json:"id"`
	Name        string    `json:"API"`
	Description string    `json:"Description"`
	Auth        string    `json:"Auth"`
	HTTPS       bool      `json:"HTTPS"`
	Cors        string    `json:"Cors"`
	Link        string    `json:"Link"`
	Category    string    `json:"Category"`
	IsPaid      bool      `json:"isPaid"`
	Price       float64   `json:"price"`
	Endpoint    string    `json:"endpoint,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasSeller reports whether the listing is owned by a known user.
func (l *Listing) HasSeller() bool {
	return l.UserID != ""
}

// AmountMinor converts the price to minor currency units.
func (l *Listing) AmountMinor() int64 {
	return ToMinorUnits(l.Price)
}

// IsEntitled reports whether a viewer may see the real endpoint.
// An empty viewerID is an anonymous viewer.
func (l *Listing) IsEntitled(viewerID string, purchased []string) bool {
	if !l.IsPaid {
		return true
	}
	if viewerID == "" {
		return false
	}
	if l.UserID != "" && l.UserID == viewerID {
		return true
	}
	return slices.Contains(purchased, l.ID)
}

// Public returns a copy with the endpoint withheld.
func (l *Listing) Public() Listing {
	cp := *l
	cp.Endpoint = ""
	return cp
}

// RoundPrice rounds a major-unit price to whole minor units.
func RoundPrice(major float64) float64 {
	return math.Round(major*100) / 100
}

// ToMinorUnits converts a major-unit amount to minor units, rounding to the
// nearest unit.
func ToMinorUnits(major float64) int64 {
	return int64(math.Round(major * 100))
}
