package model

import "time"

// Transaction is an immutable receipt of one settled purchase.
type Transaction struct {
	ID              string    `json:"id"`
	BuyerID         string    `json:"buyerId"`
	BuyerEmail      string    `json:"buyerEmail"`
	SellerID        string    `json:"sellerId,omitempty"`
	APIID           string    `json:"apiId"`
	APIName         string    `json:"apiName"`
	Amount          float64   `json:"amount"`
	PaymentIntentID string    `json:"paymentIntentId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Settlement is the outcome of reconciling a returned payment.
type Settlement struct {
	// AlreadySettled is true when the buyer held the entitlement before this call.
	AlreadySettled bool
	// SellerCredited is true when a seller's earnings were incremented.
	SellerCredited bool
	Transaction    *Transaction
}
