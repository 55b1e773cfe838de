package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/apimarket/marketplace/internal/auth"
	"github.com/apimarket/marketplace/internal/handler/dto"
	"github.com/apimarket/marketplace/internal/middleware"
	"github.com/apimarket/marketplace/internal/payment"
	"github.com/apimarket/marketplace/internal/service"
)

// CheckoutHandler handles payment intents, quotes and settlement.
type CheckoutHandler struct {
	svc    *service.CheckoutService
	logger *slog.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		svc:    svc,
		logger: logger,
	}
}

// CreateIntent handles POST /api/create-payment-intent. It runs behind
// OptionalIdentity so the buyer is recorded on the intent.
func (h *CheckoutHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	result, err := h.svc.CreateIntent(r.Context(), service.CreateIntentInput{
		APIID:  req.APIID,
		Amount: req.Amount,
		Buyer:  auth.IdentityFromContext(r.Context()),
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CreateIntentResponse{
		ClientSecret:    result.ClientSecret,
		PaymentIntentID: result.PaymentIntentID,
	})
}

// Quote handles GET /api/checkout/{idOrName}.
func (h *CheckoutHandler) Quote(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "idOrName")
	if err := middleware.ValidateIdentifier(identifier); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_IDENTIFIER", "Invalid API identifier")
		return
	}

	q, err := h.svc.Quote(r.Context(), identifier)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.QuoteResponse{
		APIID:    q.APIID,
		APIName:  q.APIName,
		Price:    q.Price,
		Amount:   q.Amount,
		Currency: q.Currency,
	})
}

// Settle handles POST /api/checkout/settle. It runs behind RequireIdentity.
func (h *CheckoutHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	result, err := h.svc.Settle(r.Context(), auth.IdentityFromContext(r.Context()), service.SettleInput{
		APIID:           req.APIID,
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SettleResponse{
		Settled:        result.Settled,
		AlreadySettled: result.AlreadySettled,
		Transaction:    result.Transaction,
	})
}

// handleServiceError maps service errors to HTTP responses.
func (h *CheckoutHandler) handleServiceError(w http.ResponseWriter, err error) {
	var procErr *payment.ProcessorError

	switch {
	case errors.Is(err, service.ErrMissingIntentFields):
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_FIELDS", "Missing apiId or amount")
	case errors.Is(err, service.ErrAmountBelowMinimum):
		writeErrorJSON(w, http.StatusBadRequest, "AMOUNT_TOO_LOW",
			fmt.Sprintf("Amount must be at least ₹%.2f", float64(h.svc.MinAmountMinor())/100))
	case errors.Is(err, service.ErrAmountMismatch):
		writeErrorJSON(w, http.StatusBadRequest, "AMOUNT_MISMATCH", "Amount does not match the API price")
	case errors.Is(err, service.ErrPaymentNotVerified):
		h.logger.Warn("payment_not_verified", "error", err)
		writeErrorJSON(w, http.StatusPaymentRequired, "PAYMENT_NOT_VERIFIED", "Payment could not be verified")
	case errors.Is(err, service.ErrPaymentsNotConfigured):
		h.logger.Error("payments_not_configured")
		writeErrorJSON(w, http.StatusInternalServerError, "PAYMENTS_NOT_CONFIGURED", "Payment processing is not configured")
	case errors.As(err, &procErr):
		writeErrorJSON(w, http.StatusBadGateway, "PAYMENT_FAILED", procErr.Message)
	case errors.Is(err, service.ErrPaymentFailed):
		writeErrorJSON(w, http.StatusBadGateway, "PAYMENT_FAILED", "Payment processor error")
	case errors.Is(err, service.ErrUnauthenticated):
		writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	case errors.Is(err, service.ErrMissingSettleFields):
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_FIELDS", "Missing apiId or paymentIntentId")
	case errors.Is(err, service.ErrListingNotFound):
		writeErrorJSON(w, http.StatusNotFound, "NOT_FOUND", "API not found")
	case errors.Is(err, service.ErrListingNotForSale):
		writeErrorJSON(w, http.StatusBadRequest, "NOT_FOR_SALE", "API is not a paid listing")
	default:
		h.logger.Error("internal_error", "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
