package core_test

import (
	"context"
	"errors"
	"testing"

	"backoffice/internal/core"

	"github.com/shopspring/decimal"
)

func TestOpeningBalance_CreatesLayerAndSnapshot(t *testing.T) {
	pool := setupCostingTestDB(t)
	defer pool.Close()
	receipts, _, _ := newCostingServices(pool)
	ctx := context.Background()

	layerID, err := receipts.RecordOpeningBalance(ctx, testActor(), "WIDGET-A",
		decimal.NewFromInt(40), decimal.RequireFromString("7.50"), "2026-03-01")
	if err != nil {
		t.Fatalf("RecordOpeningBalance failed: %v", err)
	}

	layers, err := receipts.GetLayers(ctx, "WIDGET-A")
	if err != nil {
		t.Fatalf("GetLayers failed: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("Expected 1 layer, got %d", len(layers))
	}
	l := layers[0]
	if l.ID != layerID {
		t.Errorf("Expected layer %d, got %d", layerID, l.ID)
	}
	if l.RefType != core.RefOpeningBalance {
		t.Errorf("Expected ref_type OPENING_BALANCE, got %s", l.RefType)
	}
	if !l.QtyRemaining.Equal(l.QtyReceived) {
		t.Errorf("Fresh layer should be unconsumed: received %s, remaining %s", l.QtyReceived, l.QtyRemaining)
	}
	if got := core.BangkokDate(l.ReceivedAt); got != "2026-03-01" {
		t.Errorf("Expected layer dated 2026-03-01 in Bangkok, got %s", got)
	}

	snap, err := receipts.GetSnapshot(ctx, "WIDGET-A", "2026-03-01")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if !snap.OnHandQty.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected snapshot qty 40, got %s", snap.OnHandQty)
	}
	if !snap.OnHandValue.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected snapshot value 300, got %s", snap.OnHandValue)
	}
	if !snap.AvgUnitCost.Equal(decimal.RequireFromString("7.50")) {
		t.Errorf("Expected avg 7.50, got %s", snap.AvgUnitCost)
	}
}

func TestRecordReceipt_RejectsUnknownSKUAndBadInput(t *testing.T) {
	pool := setupCostingTestDB(t)
	defer pool.Close()
	receipts, _, _ := newCostingServices(pool)
	ctx := context.Background()

	_, err := receipts.RecordOpeningBalance(ctx, testActor(), "NO-SUCH-SKU",
		decimal.NewFromInt(1), decimal.NewFromInt(1), "2026-03-01")
	if !errors.Is(err, core.ErrSKUNotFound) {
		t.Errorf("Expected ErrSKUNotFound, got %v", err)
	}

	_, err = receipts.RecordOpeningBalance(ctx, testActor(), "WIDGET-A",
		decimal.Zero, decimal.NewFromInt(1), "2026-03-01")
	if err == nil {
		t.Error("Expected error for zero quantity")
	}

	_, err = receipts.RecordOpeningBalance(ctx, core.ActorContext{}, "WIDGET-A",
		decimal.NewFromInt(1), decimal.NewFromInt(1), "2026-03-01")
	if err == nil {
		t.Error("Expected error for unauthenticated actor")
	}
}

func TestVoidLayer_RejectsConsumedLayer(t *testing.T) {
	pool := setupCostingTestDB(t)
	defer pool.Close()
	receipts, cogs, _ := newCostingServices(pool)
	ctx := context.Background()

	layerID, err := receipts.RecordPurchaseReceipt(ctx, testActor(), "WIDGET-A",
		decimal.NewFromInt(10), decimal.NewFromInt(10), bkkNoon(t, "2026-03-01"), "PO-1")
	if err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	if _, err := cogs.ApplyCOGS(ctx, testActor(), core.ApplyCOGSRequest{
		OrderID: "ORD-1500", SKU: "WIDGET-A", Qty: decimal.NewFromInt(1),
		ShippedAt: bkkNoon(t, "2026-03-02"), Method: core.MethodFIFO,
	}); err != nil {
		t.Fatalf("ApplyCOGS failed: %v", err)
	}

	if err := receipts.VoidLayer(ctx, testActor(), layerID); !errors.Is(err, core.ErrLayerConsumed) {
		t.Fatalf("Expected ErrLayerConsumed, got %v", err)
	}
}

func TestVoidLayer_HidesLayerFromFIFO(t *testing.T) {
	pool := setupCostingTestDB(t)
	defer pool.Close()
	receipts, cogs, _ := newCostingServices(pool)
	ctx := context.Background()

	// Void the cheap old layer; allocation must fall through to the next one.
	voided, err := receipts.RecordPurchaseReceipt(ctx, testActor(), "WIDGET-A",
		decimal.NewFromInt(5), decimal.NewFromInt(10), bkkNoon(t, "2026-03-01"), "PO-1")
	if err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	if _, err := receipts.RecordPurchaseReceipt(ctx, testActor(), "WIDGET-A",
		decimal.NewFromInt(5), decimal.NewFromInt(12), bkkNoon(t, "2026-03-02"), "PO-2"); err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	if err := receipts.VoidLayer(ctx, testActor(), voided); err != nil {
		t.Fatalf("VoidLayer failed: %v", err)
	}

	result, err := cogs.ApplyCOGS(ctx, testActor(), core.ApplyCOGSRequest{
		OrderID: "ORD-1600", SKU: "WIDGET-A", Qty: decimal.NewFromInt(2),
		ShippedAt: bkkNoon(t, "2026-03-03"), Method: core.MethodFIFO,
	})
	if err != nil {
		t.Fatalf("ApplyCOGS failed: %v", err)
	}
	if result.Status != core.ApplySuccess {
		t.Fatalf("Expected success, got %s (%s)", result.Status, result.Reason)
	}
	// 2 × 12, not 2 × 10.
	if !result.TotalAmount.Equal(decimal.NewFromInt(24)) {
		t.Errorf("Expected amount 24 from the non-voided layer, got %s", result.TotalAmount)
	}
	if rem := layerRemaining(t, ctx, pool, voided); !rem.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Voided layer must stay untouched, got qty_remaining=%s", rem)
	}
}
