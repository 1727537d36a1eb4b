package web

import (
	"net/http"

	"backoffice/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService the routes delegate to.
type Handler struct {
	svc       app.ApplicationService
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{svc: svc, jwtSecret: jwtSecret}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API ─────────────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/api/auth/me", h.me)

		// Catalog
		r.Get("/api/items", h.listItems)
		r.Post("/api/items", h.createItem)

		// Receipt layers & snapshots
		r.Post("/api/inventory/opening-balance", h.openingBalance)
		r.Post("/api/inventory/receipts", h.purchaseReceipt)
		r.Get("/api/inventory/{sku}/layers", h.receiptLayers)
		r.Get("/api/inventory/{sku}/snapshot", h.costSnapshot)

		// Bundle recipes
		r.Put("/api/bundles/{sku}/recipe", h.upsertRecipe)
		r.Get("/api/bundles/{sku}/components", h.bundleComponents)

		// COGS engine
		r.Post("/api/cogs/apply", h.applyCOGS)
		r.Post("/api/cogs/reverse", h.reverseCOGS)
		r.Get("/api/cogs/orders/{orderID}", h.orderAllocations)

		// Reporting
		r.Get("/api/reports/cogs/daily", h.dailyCOGS)
	})

	return r
}

// health handles GET /api/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
