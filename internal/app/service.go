package app

import (
	"context"

	"backoffice/internal/core"
)

// ApplicationService is the single interface adapters call. It decouples
// presentation from the costing engine and contains no display logic.
// Every engine operation takes the authenticated ActorContext explicitly.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns a user profile by ID.
	GetUser(ctx context.Context, userID int) (*core.User, error)

	// ListItems returns all active catalog items.
	ListItems(ctx context.Context) ([]core.InventoryItem, error)

	// CreateItem adds a catalog item (simple SKU or bundle).
	CreateItem(ctx context.Context, actor core.ActorContext, req CreateItemRequest) (*core.InventoryItem, error)

	// RecordOpeningBalance seeds a SKU's stock: one receipt layer plus the
	// cost snapshot for the given Bangkok date. Returns the layer id.
	RecordOpeningBalance(ctx context.Context, actor core.ActorContext, req OpeningBalanceRequest) (int64, error)

	// RecordPurchaseReceipt records goods received from a purchase.
	RecordPurchaseReceipt(ctx context.Context, actor core.ActorContext, req PurchaseReceiptRequest) (int64, error)

	// GetReceiptLayers returns all receipt layers for a SKU, oldest first.
	GetReceiptLayers(ctx context.Context, sku string) ([]core.ReceiptLayer, error)

	// GetCostSnapshot returns the running snapshot for a SKU as of a date.
	GetCostSnapshot(ctx context.Context, sku, date string) (*core.CostSnapshot, error)

	// UpsertBundleRecipe replaces a bundle's component set wholesale.
	UpsertBundleRecipe(ctx context.Context, actor core.ActorContext, req UpsertRecipeRequest) error

	// GetBundleComponents returns a bundle's recipe (possibly empty).
	GetBundleComponents(ctx context.Context, bundleSKU string) ([]core.BundleComponent, error)

	// ApplyCOGSForOrderShipped books COGS for a shipped order line.
	// Retry-safe: see core.COGSService.
	ApplyCOGSForOrderShipped(ctx context.Context, actor core.ActorContext, req core.ApplyCOGSRequest) (*core.ApplyResult, error)

	// ApplyReturnReverseCOGS offsets prior allocations for a returned line.
	ApplyReturnReverseCOGS(ctx context.Context, actor core.ActorContext, req core.ReverseCOGSRequest) error

	// GetOrderAllocations returns the costing ledger rows for one order.
	GetOrderAllocations(ctx context.Context, orderID string) ([]core.COGSAllocation, error)

	// ComputeDailyCOGS returns the COGS total for one Bangkok calendar day.
	ComputeDailyCOGS(ctx context.Context, date string) (*core.DailyCOGS, error)

	// GetDailyCOGSBreakdown returns the same day's total split per SKU.
	GetDailyCOGSBreakdown(ctx context.Context, date string) ([]core.SKUDailyCOGS, error)
}
