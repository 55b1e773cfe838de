package model

import (
	"slices"
	"time"
)

// Account is a signed-in user and their commerce state.
type Account struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	PurchasedAPIs []string  `json:"purchasedAPIs"`
	Earnings      float64   `json:"earnings"`
	Credits       float64   `json:"credits"`
	GithubLink    string    `json:"githubLink"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasPurchased reports whether the account owns an entitlement for listingID.
func (a *Account) HasPurchased(listingID string) bool {
	return slices.Contains(a.PurchasedAPIs, listingID)
}

// Profile is the user-editable part of an account.
type Profile struct {
	GithubLink string `json:"githubLink"`
}

// Identity is the verified subject of a bearer token.
type Identity struct {
	UID   string
	Email string
	Name  string
}
