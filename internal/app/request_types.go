package app

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateItemRequest is the input for adding a catalog item.
type CreateItemRequest struct {
	SKU      string
	Name     string
	IsBundle bool
}

// OpeningBalanceRequest seeds stock for a SKU on a Bangkok calendar date.
type OpeningBalanceRequest struct {
	SKU      string
	Qty      decimal.Decimal
	UnitCost decimal.Decimal
	Date     string // YYYY-MM-DD
}

// PurchaseReceiptRequest records goods received against a purchase.
type PurchaseReceiptRequest struct {
	SKU        string
	Qty        decimal.Decimal
	UnitCost   decimal.Decimal
	ReceivedAt time.Time
	RefID      string // purchase row reference in the purchasing subsystem
}

// RecipeComponentInput is one component line of a bundle recipe.
type RecipeComponentInput struct {
	ComponentSKU    string
	QuantityPerUnit decimal.Decimal
}

// UpsertRecipeRequest replaces a bundle's full component set.
type UpsertRecipeRequest struct {
	BundleSKU  string
	Components []RecipeComponentInput
}
