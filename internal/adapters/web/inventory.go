package web

import (
	"net/http"
	"time"

	"backoffice/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// createItem handles POST /api/items.
func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SKU      string `json:"sku"`
		Name     string `json:"name"`
		IsBundle bool   `json:"is_bundle"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.svc.CreateItem(r.Context(), actorFromContext(r.Context()), app.CreateItemRequest{
		SKU:      req.SKU,
		Name:     req.Name,
		IsBundle: req.IsBundle,
	})
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// listItems handles GET /api/items.
func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListItems(r.Context())
	if err != nil {
		writeError(w, r, err.Error(), "DB_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// openingBalance handles POST /api/inventory/opening-balance.
func (h *Handler) openingBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SKU      string          `json:"sku"`
		Qty      decimal.Decimal `json:"qty"`
		UnitCost decimal.Decimal `json:"unit_cost"`
		Date     string          `json:"date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	layerID, err := h.svc.RecordOpeningBalance(r.Context(), actorFromContext(r.Context()), app.OpeningBalanceRequest{
		SKU:      req.SKU,
		Qty:      req.Qty,
		UnitCost: req.UnitCost,
		Date:     req.Date,
	})
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"layer_id": layerID})
}

// purchaseReceipt handles POST /api/inventory/receipts.
func (h *Handler) purchaseReceipt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SKU        string          `json:"sku"`
		Qty        decimal.Decimal `json:"qty"`
		UnitCost   decimal.Decimal `json:"unit_cost"`
		ReceivedAt time.Time       `json:"received_at"`
		RefID      string          `json:"ref_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	layerID, err := h.svc.RecordPurchaseReceipt(r.Context(), actorFromContext(r.Context()), app.PurchaseReceiptRequest{
		SKU:        req.SKU,
		Qty:        req.Qty,
		UnitCost:   req.UnitCost,
		ReceivedAt: req.ReceivedAt,
		RefID:      req.RefID,
	})
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"layer_id": layerID})
}

// receiptLayers handles GET /api/inventory/{sku}/layers.
func (h *Handler) receiptLayers(w http.ResponseWriter, r *http.Request) {
	layers, err := h.svc.GetReceiptLayers(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		writeError(w, r, err.Error(), "DB_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, layers)
}

// costSnapshot handles GET /api/inventory/{sku}/snapshot?date=YYYY-MM-DD.
func (h *Handler) costSnapshot(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	snap, err := h.svc.GetCostSnapshot(r.Context(), chi.URLParam(r, "sku"), date)
	if err != nil {
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// upsertRecipe handles PUT /api/bundles/{sku}/recipe.
func (h *Handler) upsertRecipe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Components []struct {
			ComponentSKU    string          `json:"component_sku"`
			QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
		} `json:"components"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	in := app.UpsertRecipeRequest{BundleSKU: chi.URLParam(r, "sku")}
	for _, c := range req.Components {
		in.Components = append(in.Components, app.RecipeComponentInput{
			ComponentSKU:    c.ComponentSKU,
			QuantityPerUnit: c.QuantityPerUnit,
		})
	}

	if err := h.svc.UpsertBundleRecipe(r.Context(), actorFromContext(r.Context()), in); err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bundleComponents handles GET /api/bundles/{sku}/components.
func (h *Handler) bundleComponents(w http.ResponseWriter, r *http.Request) {
	components, err := h.svc.GetBundleComponents(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		writeError(w, r, err.Error(), "DB_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, components)
}
