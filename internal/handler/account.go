package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/apimarket/marketplace/internal/auth"
	"github.com/apimarket/marketplace/internal/handler/dto"
	"github.com/apimarket/marketplace/internal/service"
)

// AccountHandler serves profiles and the caller's account.
type AccountHandler struct {
	svc    *service.ProfileService
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc *service.ProfileService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		svc:    svc,
		logger: logger,
	}
}

// GetProfile handles GET /api/user/profile?userId=.
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.GetProfile(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ProfileResponse{Profile: profile})
}

// UpdateProfile handles POST /api/user/profile. It runs behind
// RequireIdentity.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	profile, err := h.svc.UpdateProfile(r.Context(), service.UpdateProfileInput{
		Caller:     auth.IdentityFromContext(r.Context()),
		UserID:     req.UserID,
		GithubLink: req.GithubLink,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UpdateProfileResponse{
		Message: "Profile updated successfully",
		Profile: profile,
	})
}

// Me handles GET /api/me. It runs behind RequireIdentity.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.Me(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// handleServiceError maps service errors to HTTP responses.
func (h *AccountHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMissingUserID):
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_USER_ID", "User ID required")
	case errors.Is(err, service.ErrUnauthenticated):
		writeErrorJSON(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	case errors.Is(err, service.ErrForbidden):
		writeErrorJSON(w, http.StatusForbidden, "FORBIDDEN", "Cannot update another user's profile")
	default:
		h.logger.Error("internal_error", "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
