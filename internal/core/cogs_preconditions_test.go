package core_test

import (
	"context"
	"testing"
	"time"

	"backoffice/internal/core"

	"github.com/shopspring/decimal"
)

// The first checks in ApplyCOGS run before any storage access, so a nil pool
// is fine here — reaching the catalog would panic and fail the test loudly.
func TestApplyCOGS_PreconditionFailures(t *testing.T) {
	cogs := core.NewCOGSService(nil, nil, nil)
	ctx := context.Background()
	shipped := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	base := core.ApplyCOGSRequest{
		OrderID:   "ORD-1",
		SKU:       "WIDGET-A",
		Qty:       decimal.NewFromInt(1),
		ShippedAt: shipped,
		Method:    core.MethodFIFO,
	}

	cases := []struct {
		name    string
		actor   core.ActorContext
		mutate  func(*core.ApplyCOGSRequest)
		failure core.FailureKind
	}{
		{
			name:    "unauthenticated actor",
			actor:   core.ActorContext{},
			mutate:  func(r *core.ApplyCOGSRequest) {},
			failure: core.FailureAuth,
		},
		{
			name:    "zero quantity",
			actor:   testActor(),
			mutate:  func(r *core.ApplyCOGSRequest) { r.Qty = decimal.Zero },
			failure: core.FailureInvalidQuantity,
		},
		{
			name:    "negative quantity",
			actor:   testActor(),
			mutate:  func(r *core.ApplyCOGSRequest) { r.Qty = decimal.NewFromInt(-3) },
			failure: core.FailureInvalidQuantity,
		},
		{
			name:    "empty sku",
			actor:   testActor(),
			mutate:  func(r *core.ApplyCOGSRequest) { r.SKU = "" },
			failure: core.FailureMissingSKU,
		},
		{
			name:    "missing shipped_at",
			actor:   testActor(),
			mutate:  func(r *core.ApplyCOGSRequest) { r.ShippedAt = time.Time{} },
			failure: core.FailureMissingShipped,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)

			result, err := cogs.ApplyCOGS(ctx, tc.actor, req)
			if err != nil {
				t.Fatalf("Expected business failure, not error: %v", err)
			}
			if result.Status != core.ApplyFailed {
				t.Errorf("Expected failed, got %s", result.Status)
			}
			if result.Failure != tc.failure {
				t.Errorf("Expected failure %s, got %s", tc.failure, result.Failure)
			}
			if result.Reason == "" {
				t.Error("Expected a diagnostic reason")
			}
		})
	}
}

func TestApplyCOGS_UnknownMethodErrors(t *testing.T) {
	cogs := core.NewCOGSService(nil, nil, nil)

	_, err := cogs.ApplyCOGS(context.Background(), testActor(), core.ApplyCOGSRequest{
		OrderID:   "ORD-1",
		SKU:       "WIDGET-A",
		Qty:       decimal.NewFromInt(1),
		ShippedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		Method:    core.CostingMethod("LIFO"),
	})
	if err == nil {
		t.Fatal("Expected error for unknown costing method")
	}
}

func TestApplyCOGS_UnknownSKUFails(t *testing.T) {
	pool := setupCostingTestDB(t)
	defer pool.Close()
	_, cogs, _ := newCostingServices(pool)
	ctx := context.Background()

	result, err := cogs.ApplyCOGS(ctx, testActor(), core.ApplyCOGSRequest{
		OrderID:   "ORD-1700",
		SKU:       "NO-SUCH-SKU",
		Qty:       decimal.NewFromInt(1),
		ShippedAt: bkkNoon(t, "2026-03-02"),
		Method:    core.MethodFIFO,
	})
	if err != nil {
		t.Fatalf("Expected business failure, not error: %v", err)
	}
	if result.Status != core.ApplyFailed || result.Failure != core.FailureSKUNotFound {
		t.Errorf("Expected failed/SKU_NOT_FOUND, got %s/%s", result.Status, result.Failure)
	}
}
