package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/apimarket/marketplace/internal/auth"
	"github.com/apimarket/marketplace/internal/handler/dto"
	"github.com/apimarket/marketplace/internal/middleware"
	"github.com/apimarket/marketplace/internal/service"
)

const msgListingCreated = "API added successfully to the marketplace"

// ListingHandler handles HTTP requests for catalog operations.
type ListingHandler struct {
	svc    *service.ListingService
	logger *slog.Logger
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(svc *service.ListingService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		svc:    svc,
		logger: logger,
	}
}

// Submit handles POST /api/submit.
func (h *ListingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		status := http.StatusBadRequest
		msg := "Invalid request body"
		if errors.Is(err, errBodyTooLarge) {
			status, msg = http.StatusRequestEntityTooLarge, "Request body too large"
		}
		writeJSON(w, status, dto.SubmitErrorResponse{Error: msg})
		return
	}

	input := service.SubmitInput{
		Name:        req.Name,
		Description: req.Description,
		Link:        req.Link,
		Category:    req.Category,
		Auth:        req.Auth,
		HTTPS:       req.HTTPS,
		Cors:        req.Cors,
		Endpoint:    req.Endpoint,
		UserID:      req.UserID,
		IsPaid:      req.IsPaid,
		Price:       req.Price,
	}

	result, err := h.svc.Submit(r.Context(), input, auth.IdentityFromContext(r.Context()))
	if err != nil {
		status, msg := h.submitError(err)
		writeJSON(w, status, dto.SubmitErrorResponse{Error: msg})
		return
	}

	writeJSON(w, http.StatusCreated, dto.SubmitResponse{
		Success:    true,
		Message:    msgListingCreated,
		API:        result.Listing,
		TotalCount: result.TotalCount,
	})
}

func (h *ListingHandler) submitError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMissingFields):
		return http.StatusBadRequest, "Missing required fields (name, description, link)"
	case errors.Is(err, service.ErrInvalidLink):
		return http.StatusBadRequest, "Invalid link URL"
	case errors.Is(err, service.ErrPriceBelowMinimum):
		return http.StatusBadRequest, "Price must be at least ₹50.00 for paid APIs"
	case errors.Is(err, service.ErrPriceTooHigh):
		return http.StatusBadRequest, "Price must be at most ₹9999999999.99"
	case errors.Is(err, service.ErrListingExists):
		return http.StatusConflict, "API already exists in the list"
	default:
		h.logger.Error("internal_error", "error", err, "operation", "submit")
		return http.StatusInternalServerError, "Failed to add API to the marketplace"
	}
}

// Browse handles GET /api/listings.
func (h *ListingHandler) Browse(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	showAll, _ := strconv.ParseBool(query.Get("showAllCategories"))

	result, err := h.svc.Browse(r.Context(), service.BrowseInput{
		Tokens:            query["q"],
		Category:          query.Get("category"),
		ShowAllCategories: showAll,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListingsResponse{
		APIs:              result.APIs,
		TotalCount:        result.TotalCount,
		Categories:        result.Categories,
		HasMoreCategories: result.HasMoreCategories,
	})
}

// Suggestions handles GET /api/listings/suggestions.
func (h *ListingHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.svc.Suggest(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuggestionsResponse{Suggestions: suggestions})
}

// Detail handles GET /api/listings/{idOrName}.
func (h *ListingHandler) Detail(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "idOrName")
	if err := middleware.ValidateIdentifier(identifier); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_IDENTIFIER", "Invalid API identifier")
		return
	}

	detail, err := h.svc.Detail(r.Context(), identifier, auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DetailResponse{
		API:    detail.Listing,
		Docs:   detail.Docs,
		Access: string(detail.Access),
	})
}

// BySeller handles GET /api/user/apis.
func (h *ListingHandler) BySeller(w http.ResponseWriter, r *http.Request) {
	apis, err := h.svc.ListBySeller(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.APIsResponse{APIs: apis})
}

// handleServiceError maps service errors to HTTP responses.
func (h *ListingHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrListingNotFound):
		writeErrorJSON(w, http.StatusNotFound, "NOT_FOUND", "API not found")
	case errors.Is(err, service.ErrMissingUserID):
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_USER_ID", "User ID required")
	default:
		h.logger.Error("internal_error", "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
