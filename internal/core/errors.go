package core

import "errors"

// FailureKind is the stable business failure code surfaced to callers.
// These are expected conditions — the caller decides whether to retry.
type FailureKind string

const (
	FailureNone            FailureKind = ""
	FailureAuth            FailureKind = "AUTH_FAILED"
	FailureInvalidQuantity FailureKind = "INVALID_QUANTITY"
	FailureMissingSKU      FailureKind = "MISSING_SKU"
	FailureSKUNotFound     FailureKind = "SKU_NOT_FOUND"
	FailureMissingShipped  FailureKind = "MISSING_SHIPPED_AT"
	FailureNoBundleRecipe  FailureKind = "NO_BUNDLE_RECIPE"
	FailureAllocation      FailureKind = "ALLOCATION_FAILED"
	FailureDB              FailureKind = "DB_ERROR"
)

// Sentinel errors raised inside allocator/reversal transactions. They are
// matched with errors.Is at the orchestrator boundary and mapped to a
// FailureKind; anything else is treated as a storage failure.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNoCostSnapshot    = errors.New("no cost snapshot on or before ship date")
	ErrSKUNotFound       = errors.New("sku not found")
	ErrNoBundleRecipe    = errors.New("bundle has no recipe configured")
	ErrOverReversal      = errors.New("return quantity exceeds net allocated quantity")
	ErrLayerConsumed     = errors.New("layer is partially or fully consumed")
)

// classifyFailure maps an allocation error to its FailureKind.
func classifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrNoCostSnapshot):
		return FailureAllocation
	case errors.Is(err, ErrSKUNotFound):
		return FailureSKUNotFound
	case errors.Is(err, ErrNoBundleRecipe):
		return FailureNoBundleRecipe
	default:
		return FailureDB
	}
}
