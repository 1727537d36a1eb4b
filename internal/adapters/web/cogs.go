package web

import (
	"errors"
	"net/http"
	"time"

	"backoffice/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// applyCOGS handles POST /api/cogs/apply. Business failures come back in the
// ApplyResult body; the HTTP status only distinguishes booked (200) from
// nothing-booked (422).
func (h *Handler) applyCOGS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID   string          `json:"order_id"`
		SKU       string          `json:"sku"`
		Qty       decimal.Decimal `json:"qty"`
		ShippedAt time.Time       `json:"shipped_at"`
		Method    string          `json:"method"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !core.CostingMethod(req.Method).Valid() {
		writeError(w, r, "method must be FIFO or AVG", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ApplyCOGSForOrderShipped(r.Context(), actorFromContext(r.Context()), core.ApplyCOGSRequest{
		OrderID:   req.OrderID,
		SKU:       req.SKU,
		Qty:       req.Qty,
		ShippedAt: req.ShippedAt,
		Method:    core.CostingMethod(req.Method),
	})
	if err != nil {
		writeError(w, r, err.Error(), "DB_ERROR", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if result.Status == core.ApplyFailed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

// reverseCOGS handles POST /api/cogs/reverse.
func (h *Handler) reverseCOGS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID    string          `json:"order_id"`
		SKU        string          `json:"sku"`
		ReturnQty  decimal.Decimal `json:"return_qty"`
		ReturnDate string          `json:"return_date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.svc.ApplyReturnReverseCOGS(r.Context(), actorFromContext(r.Context()), core.ReverseCOGSRequest{
		OrderID:    req.OrderID,
		SKU:        req.SKU,
		ReturnQty:  req.ReturnQty,
		ReturnDate: req.ReturnDate,
	})
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, core.ErrOverReversal):
		writeError(w, r, err.Error(), "OVER_REVERSAL", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrSKUNotFound):
		writeError(w, r, err.Error(), "SKU_NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrNoBundleRecipe):
		writeError(w, r, err.Error(), "NO_BUNDLE_RECIPE", http.StatusUnprocessableEntity)
	default:
		writeError(w, r, err.Error(), "REVERSAL_FAILED", http.StatusInternalServerError)
	}
}

// orderAllocations handles GET /api/cogs/orders/{orderID}.
func (h *Handler) orderAllocations(w http.ResponseWriter, r *http.Request) {
	allocs, err := h.svc.GetOrderAllocations(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err.Error(), "DB_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, allocs)
}

// dailyCOGS handles GET /api/reports/cogs/daily?date=YYYY-MM-DD. With
// breakdown=true the response includes the per-SKU split.
func (h *Handler) dailyCOGS(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, r, "date query parameter is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	daily, err := h.svc.ComputeDailyCOGS(r.Context(), date)
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("breakdown") != "true" {
		writeJSON(w, http.StatusOK, daily)
		return
	}

	breakdown, err := h.svc.GetDailyCOGSBreakdown(r.Context(), date)
	if err != nil {
		writeError(w, r, err.Error(), "DB_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"daily":     daily,
		"breakdown": breakdown,
	})
}
