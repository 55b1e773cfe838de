package handler

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/apimarket/marketplace/internal/auth"
	"github.com/apimarket/marketplace/internal/catalog"
	"github.com/apimarket/marketplace/internal/handler/dto"
	"github.com/apimarket/marketplace/internal/service"
)

// exportFilename is suggested to clients saving an export.
const exportFilename = "marketplace-apis.json"

// AdminHandler provides operator endpoints behind admin key auth.
type AdminHandler struct {
	listings *service.ListingService
	checkout *service.CheckoutService
	sales    *service.SalesService
	logger   *slog.Logger
	started  time.Time
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(listings *service.ListingService, checkout *service.CheckoutService, sales *service.SalesService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		listings: listings,
		checkout: checkout,
		sales:    sales,
		logger:   logger,
		started:  time.Now(),
	}
}

// Export handles GET /api/admin/catalog/export.
// The whole document is buffered so a failure can still produce a 500.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.listings.Export(r.Context(), &buf); err != nil {
		h.logger.Error("catalog_export_failed", "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to export catalog")
		return
	}

	h.logger.Info("catalog_exported", "bytes", buf.Len(), "key_prefix", keyPrefix(r))

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Import handles POST /api/admin/catalog/import.
func (h *AdminHandler) Import(w http.ResponseWriter, r *http.Request) {
	result, err := h.listings.Import(r.Context(), r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeErrorJSON(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
		case errors.Is(err, catalog.ErrInvalidFlatFile):
			writeErrorJSON(w, http.StatusBadRequest, "INVALID_CATALOG", "Invalid catalog document")
		default:
			h.logger.Error("catalog_import_failed", "error", err, "imported", importedSoFar(result))
			writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to import catalog")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func importedSoFar(result *service.ImportResult) int {
	if result == nil {
		return 0
	}
	return result.Imported
}

// Transactions handles GET /api/admin/transactions?limit=N.
func (h *AdminHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	limit, err := parsePositive(r.URL.Query().Get("limit"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
		return
	}

	txns, err := h.checkout.ListTransactions(r.Context(), limit)
	if err != nil {
		h.logger.Error("list_transactions_failed", "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list transactions")
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionsResponse{Transactions: txns, Count: len(txns)})
}

// Sales handles GET /api/admin/sales?days=N. The window is capped at a year.
func (h *AdminHandler) Sales(w http.ResponseWriter, r *http.Request) {
	days, err := parsePositive(r.URL.Query().Get("days"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "INVALID_DAYS", "days must be a positive integer")
		return
	}

	report, err := h.sales.Report(r.Context(), days)
	if err != nil {
		h.logger.Error("sales_report_failed", "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load sales")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// StatsResponse represents operational statistics.
type StatsResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Uptime    string    `json:"uptime"`
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		Timestamp: time.Now().UTC(),
		Service:   "api-marketplace",
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	})
}

// parsePositive parses an optional positive integer. Empty yields 0, which
// services read as their default.
func parsePositive(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}

func keyPrefix(r *http.Request) string {
	if admin := auth.AdminFromContext(r.Context()); admin != nil {
		return admin.KeyPrefix
	}
	return ""
}
