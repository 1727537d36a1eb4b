package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostingMethod selects how shipped units are costed.
type CostingMethod string

const (
	MethodFIFO CostingMethod = "FIFO"
	MethodAVG  CostingMethod = "AVG"
)

// Valid reports whether m is a recognized costing method.
func (m CostingMethod) Valid() bool {
	return m == MethodFIFO || m == MethodAVG
}

// Receipt layer origin types.
const (
	RefOpeningBalance = "OPENING_BALANCE"
	RefPurchase       = "PURCHASE"
)

// InventoryItem is a catalog entry. Items are created by catalog management;
// the costing engine reads them to resolve SKUs and the bundle flag.
type InventoryItem struct {
	SKU       string    `json:"sku_internal"`
	Name      string    `json:"name"`
	IsBundle  bool      `json:"is_bundle"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// BundleComponent maps one component SKU of a bundle recipe.
type BundleComponent struct {
	BundleSKU       string          `json:"bundle_sku"`
	ComponentSKU    string          `json:"component_sku"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
}

// ReceiptLayer is one discrete inbound quantity+cost record. Layers are
// consumed oldest-first under FIFO and are never deleted, only voided.
// QtyRemaining moves down on allocation and back up on reversal; the store
// enforces 0 ≤ QtyRemaining ≤ QtyReceived at all times.
type ReceiptLayer struct {
	ID           int64           `json:"id"`
	SKU          string          `json:"sku_internal"`
	ReceivedAt   time.Time       `json:"received_at"`
	QtyReceived  decimal.Decimal `json:"qty_received"`
	QtyRemaining decimal.Decimal `json:"qty_remaining"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	RefType      string          `json:"ref_type"`
	RefID        *string         `json:"ref_id,omitempty"`
	IsVoided     bool            `json:"is_voided"`
	CreatedAt    time.Time       `json:"created_at"`
}

// CostSnapshot is the running on-hand state for a SKU as of a date, used by
// moving-average costing. AvgUnitCost = OnHandValue / OnHandQty (zero when
// the quantity is zero). Rows are upserted in place, not appended.
type CostSnapshot struct {
	SKU         string          `json:"sku_internal"`
	AsOfDate    string          `json:"as_of_date"` // YYYY-MM-DD, Bangkok calendar date
	OnHandQty   decimal.Decimal `json:"on_hand_qty"`
	OnHandValue decimal.Decimal `json:"on_hand_value"`
	AvgUnitCost decimal.Decimal `json:"avg_unit_cost"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// COGSAllocation is one row of the append-only costing ledger. Reversals are
// allocations with negative quantity and amount; a reversal row points back
// at the allocation it offsets via ReversalOf and keeps its LayerID. Rows are
// never updated — corrections are always new reversal rows.
type COGSAllocation struct {
	ID           int64           `json:"id"`
	OrderID      string          `json:"order_id"`
	SKU          string          `json:"sku_internal"` // component SKU, never the bundle SKU
	ShippedAt    time.Time       `json:"shipped_at"`
	Method       CostingMethod   `json:"method"`
	Qty          decimal.Decimal `json:"qty"`
	UnitCostUsed decimal.Decimal `json:"unit_cost_used"`
	Amount       decimal.Decimal `json:"amount"` // Qty × UnitCostUsed
	LayerID      *int64          `json:"layer_id,omitempty"`
	IsReversal   bool            `json:"is_reversal"`
	ReversalOf   *int64          `json:"reversal_of,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ApplyStatus is the outcome class of a COGS application.
type ApplyStatus string

const (
	ApplySuccess          ApplyStatus = "success"
	ApplyPartial          ApplyStatus = "partial"
	ApplyFailed           ApplyStatus = "failed"
	ApplyAlreadyAllocated ApplyStatus = "already_allocated"
)

// ApplyResult is the structured outcome of ApplyCOGS. For bundles,
// AllocatedSKUs lists components costed now or on a previous attempt and
// MissingSKUs lists components that could not be costed; a strict subset of
// each yields partial, which the caller may retry after restocking.
type ApplyResult struct {
	Status        ApplyStatus     `json:"status"`
	AllocatedSKUs []string        `json:"allocated_skus,omitempty"`
	MissingSKUs   []string        `json:"missing_skus,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Failure       FailureKind     `json:"failure,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// DailyCOGS is the aggregate for one Bangkok calendar day: the sum of
// allocation and reversal amounts, floored at zero, rounded to 2 decimals.
type DailyCOGS struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// SKUDailyCOGS is one per-SKU line of a daily COGS breakdown.
type SKUDailyCOGS struct {
	SKU    string          `json:"sku_internal"`
	Qty    decimal.Decimal `json:"qty"`
	Amount decimal.Decimal `json:"amount"`
}
