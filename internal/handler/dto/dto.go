// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"encoding/json"

	"github.com/apimarket/marketplace/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// SubmitRequest is the body of POST /api/submit. HTTPS is a pointer so an
// omitted value can default to true.
type SubmitRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Link        string  `json:"link"`
	Category    string  `json:"category"`
	Auth        string  `json:"auth"`
	HTTPS       *bool   `json:"https"`
	Cors        string  `json:"cors"`
	Endpoint    string  `json:"endpoint"`
	UserID      string  `json:"userId"`
	IsPaid      bool    `json:"isPaid"`
	Price       float64 `json:"price"`
}

// SubmitResponse is returned for a created listing.
type SubmitResponse struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	API        *model.Listing `json:"api"`
	TotalCount int            `json:"totalCount"`
}

// SubmitErrorResponse is the submission error envelope.
type SubmitErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ListingsResponse is a filtered catalog page.
type ListingsResponse struct {
	APIs              []model.Listing `json:"apis"`
	TotalCount        int             `json:"totalCount"`
	Categories        []string        `json:"categories"`
	HasMoreCategories bool            `json:"hasMoreCategories"`
}

// SuggestionsResponse holds typeahead matches.
type SuggestionsResponse struct {
	Suggestions []model.Listing `json:"suggestions"`
}

// DetailResponse is a listing as the viewer may see it, with scraped docs.
type DetailResponse struct {
	API    model.Listing       `json:"api"`
	Docs   *model.ScrapeResult `json:"docs"`
	Access string              `json:"access"`
}

// APIsResponse lists a seller's listings.
type APIsResponse struct {
	APIs []model.Listing `json:"apis"`
}

// CreateIntentRequest is the body of POST /api/create-payment-intent.
// Amount is in minor units.
type CreateIntentRequest struct {
	APIID  string  `json:"apiId"`
	Amount float64 `json:"amount"`
}

// CreateIntentResponse carries what the browser needs to confirm payment.
type CreateIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// QuoteResponse is the checkout amount for a listing.
type QuoteResponse struct {
	APIID    string  `json:"apiId"`
	APIName  string  `json:"apiName"`
	Price    float64 `json:"price"`
	Amount   int64   `json:"amount"`
	Currency string  `json:"currency"`
}

// SettleRequest is the body of POST /api/checkout/settle.
type SettleRequest struct {
	APIID           string `json:"apiId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// SettleResponse reports the reconciliation outcome.
type SettleResponse struct {
	Settled        bool               `json:"settled"`
	AlreadySettled bool               `json:"alreadySettled"`
	Transaction    *model.Transaction `json:"transaction,omitempty"`
}

// ProfileResponse wraps a profile.
type ProfileResponse struct {
	Profile *model.Profile `json:"profile"`
}

// UpdateProfileRequest is the body of POST /api/user/profile.
type UpdateProfileRequest struct {
	UserID     string  `json:"userId"`
	GithubLink *string `json:"githubLink"`
}

// UpdateProfileResponse confirms a profile update.
type UpdateProfileResponse struct {
	Message string         `json:"message"`
	Profile *model.Profile `json:"profile"`
}

// ProxyRequest is the body of POST /api/test-proxy.
type ProxyRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

// ProxyResponse relays the upstream response.
type ProxyResponse struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Data       any               `json:"data"`
	OK         bool              `json:"ok"`
}

// BreachRequest is the body of POST /api/haveibeenpwned.
type BreachRequest struct {
	Password string `json:"password"`
}

// BreachResponse is the outcome of a breach check.
type BreachResponse struct {
	Result      bool   `json:"result"`
	Message     string `json:"message"`
	Status      string `json:"status"`
	BreachCount *int   `json:"breachCount,omitempty"`
}

// TransactionsResponse lists settled purchases, newest first.
type TransactionsResponse struct {
	Transactions []*model.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
}
