package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/apimarket/marketplace/internal/breach"
	"github.com/apimarket/marketplace/internal/handler/dto"
	"github.com/apimarket/marketplace/internal/metrics"
	"github.com/apimarket/marketplace/internal/middleware"
	"github.com/apimarket/marketplace/internal/model"
	"github.com/apimarket/marketplace/internal/scraper"
	"github.com/apimarket/marketplace/internal/service"
)

// PageScraper summarizes a documentation page. It never fails; failures
// come back as a degraded result.
type PageScraper interface {
	Scrape(ctx context.Context, url string) *model.ScrapeResult
}

// BreachChecker looks a password up in the breach corpus.
type BreachChecker interface {
	Check(ctx context.Context, password string) (*breach.Result, error)
}

// Forwarder relays a test request to a third-party endpoint.
type Forwarder interface {
	Forward(ctx context.Context, input service.ProxyInput) (*service.ProxyResult, error)
}

// ToolsHandler serves the scraper, the endpoint tester and the breach check.
type ToolsHandler struct {
	scraper PageScraper
	proxy   Forwarder
	breach  BreachChecker
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewToolsHandler creates a new ToolsHandler.
func NewToolsHandler(s PageScraper, proxy Forwarder, checker BreachChecker, logger *slog.Logger, recorder metrics.Recorder) *ToolsHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ToolsHandler{
		scraper: s,
		proxy:   proxy,
		breach:  checker,
		logger:  logger,
		metrics: recorder,
	}
}

// Scrape handles GET /api/scrape?url=. Fetch failures are reported in the
// body with status 200.
func (h *ToolsHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if strings.TrimSpace(target) == "" {
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_URL", "URL parameter is required")
		return
	}
	if err := middleware.ValidateURLLength(target); err != nil {
		writeJSON(w, http.StatusOK, scraper.Failed(err))
		return
	}

	writeJSON(w, http.StatusOK, h.scraper.Scrape(r.Context(), target))
}

// Proxy handles POST /api/test-proxy.
func (h *ToolsHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	var req dto.ProxyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := middleware.ValidateURLLength(req.URL); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid URL", Code: "INVALID_URL", Details: err.Error()})
		return
	}

	result, err := h.proxy.Forward(r.Context(), service.ProxyInput{
		URL:     req.URL,
		Method:  req.Method,
		Headers: req.Headers,
		Body:    req.Body,
	})
	switch {
	case errors.Is(err, service.ErrMissingURL):
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_URL", "URL is required")
		return
	case errors.Is(err, service.ErrInvalidMethod):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Invalid method",
			Code:    "INVALID_METHOD",
			Details: strings.TrimPrefix(err.Error(), service.ErrInvalidMethod.Error()+": "),
		})
		return
	case errors.Is(err, service.ErrInvalidURL):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Invalid URL",
			Code:    "INVALID_URL",
			Details: strings.TrimPrefix(err.Error(), service.ErrInvalidURL.Error()+": "),
		})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Failed to make request",
			Code:    "PROXY_FAILED",
			Details: strings.TrimPrefix(err.Error(), service.ErrProxyRequest.Error()+": "),
		})
		return
	}

	writeJSON(w, http.StatusOK, dto.ProxyResponse{
		Status:     result.Status,
		StatusText: result.StatusText,
		Headers:    result.Headers,
		Data:       result.Data,
		OK:         result.OK,
	})
}

// Breach handles POST /api/haveibeenpwned.
func (h *ToolsHandler) Breach(w http.ResponseWriter, r *http.Request) {
	var req dto.BreachRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeDecodeError(w, err)
			return
		}
		// An unreadable body is reported as the missing parameter.
		req = dto.BreachRequest{}
	}
	if req.Password == "" {
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_PASSWORD", "Missing required parameter: password")
		return
	}

	result, err := h.breach.Check(r.Context(), req.Password)
	if err != nil {
		h.metrics.IncBreachCheck(metrics.StatusFailed)
		var upstream *breach.UpstreamError
		if errors.As(err, &upstream) {
			writeErrorJSON(w, http.StatusBadGateway, "UPSTREAM_ERROR", upstream.Error())
			return
		}
		h.logger.Warn("breach_check_failed", "error", err)
		writeErrorJSON(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Failed to reach the Pwned Passwords API")
		return
	}

	if !result.Compromised {
		h.metrics.IncBreachCheck("safe")
		writeJSON(w, http.StatusOK, dto.BreachResponse{
			Result:  false,
			Message: "Password not found in breaches",
			Status:  "safe",
		})
		return
	}

	h.metrics.IncBreachCheck("compromised")
	count := result.Count
	writeJSON(w, http.StatusOK, dto.BreachResponse{
		Result:      true,
		Message:     fmt.Sprintf("Password found in %d data breaches", count),
		Status:      "compromised",
		BreachCount: &count,
	})
}
