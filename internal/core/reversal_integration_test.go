package core_test

import (
	"context"
	"errors"
	"testing"

	"backoffice/internal/core"

	"github.com/shopspring/decimal"
)

func TestReversal_FIFORestoresLayerAtOriginalCost(t *testing.T) {
	pool := setupCostingTestDB(t)
	defer pool.Close()
	receipts, cogs, _ := newCostingServices(pool)
	ctx := context.Background()

	if _, err := receipts.RecordPurchaseReceipt(ctx, testActor(), "WIDGET-A",
		decimal.NewFromInt(5), decimal.NewFromInt(10), bkkNoon(t, "2026-03-01"), "PO-1"); err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	l2, err := receipts.RecordPurchaseReceipt(ctx, testActor(), "WIDGET-A",
		decimal.NewFromInt(5), decimal.NewFromInt(12), bkkNoon(t, "2026-03-02"), "PO-2")
	if err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}

	if _, err := cogs.ApplyCOGS(ctx, testActor(), core.ApplyCOGSRequest{
		OrderID: "ORD-600", SKU: "WIDGET-A", Qty: decimal.NewFromInt(7),
		ShippedAt: bkkNoon(t, "2026-03-03"), Method: core.MethodFIFO,
	}); err != nil {
		t.Fatalf("ApplyCOGS failed: %v", err)
	}

	// New cost arrives before the return. The reversal must ignore it and
	// price at the allocation's original unit cost.
	if _, err := receipts.RecordPurchaseReceipt(ctx, testActor(), "WIDGET-A",
		decimal.NewFromInt(10), decimal.NewFromInt(99), bkkNoon(t, "2026-03-04"), "PO-3"); err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}

	// The returned 2 units were the last consumed — they came from L2 at 12.
	if err := cogs.ApplyReturnReverseCOGS(ctx, testActor(), core.ReverseCOGSRequest{
		OrderID: "ORD-600", SKU: "WIDGET-A",
		ReturnQty: decimal.NewFromInt(2), ReturnDate: "2026-03-05",
	}); err != nil {
		t.Fatalf("Reversal failed: %v", err)
	}

	allocs, err := cogs.GetAllocationsForOrder(ctx, "ORD-600")
	if err != nil {
		t.Fatalf("GetAllocationsForOrder failed: %v", err)
	}
	if len(allocs) != 3 {
		t.Fatalf("Expected 2 allocations + 1 reversal, got %d rows", len(allocs))
	}
	rev := allocs[2]
	if !rev.IsReversal {
		t.Fatal("Expected last row to be a reversal")
	}
	if !rev.Qty.Equal(decimal.NewFromInt(-2)) {
		t.Errorf("Expected reversal qty=-2, got %s", rev.Qty)
	}
	if !rev.Amount.Equal(decimal.NewFromInt(-24)) {
		t.Errorf("Expected reversal amount=-24 at original cost 12, got %s", rev.Amount)
	}
	if rev.ReversalOf == nil || *rev.ReversalOf != allocs[1].ID {
		t.Errorf("Expected reversal to reference allocation %d", allocs[1].ID)
	}
	if rev.LayerID == nil || *rev.LayerID != l2 {
		t.Error("Expected reversal to keep the original layer reference")
	}
	if rem := layerRemaining(t, ctx, pool, l2); !rem.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected L2 restored to 5, got %s", rem)
	}
}

func TestReversal_SpansMultipleLayers(t *testing.T) {
	pool := setupCostingTestDB(t)
	defer pool.Close()
	receipts, cogs, _ := newCostingServices(pool)
	ctx := context.Background()

	l1, err := receipts.RecordPurchaseReceipt(ctx, testActor(), "WIDGET-A",
		decimal.NewFromInt(5), decimal.NewFromInt(10), bkkNoon(t, "2026-03-01"), "PO-1")
	if err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	l2, err := receipts.RecordPurchaseReceipt(ctx, testActor(), "WIDGET-A",
		decimal.NewFromInt(5), decimal.NewFromInt(12), bkkNoon(t, "2026-03-02"), "PO-2")
	if err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	if _, err := cogs.ApplyCOGS(ctx, testActor(), core.ApplyCOGSRequest{
		OrderID: "ORD-650", SKU: "WIDGET-A", Qty: decimal.NewFromInt(7),
		ShippedAt: bkkNoon(t, "2026-03-03"), Method: core.MethodFIFO,
	}); err != nil {
		t.Fatalf("ApplyCOGS failed: %v", err)
	}

	// Returning 4 undoes all of L2's 2 and then 2 of L1's 5.
	if err := cogs.ApplyReturnReverseCOGS(ctx, testActor(), core.ReverseCOGSRequest{
		OrderID: "ORD-650", SKU: "WIDGET-A",
		ReturnQty: decimal.NewFromInt(4), ReturnDate: "2026-03-04",
	}); err != nil {
		t.Fatalf("Reversal failed: %v", err)
	}

	if rem := layerRemaining(t, ctx, pool, l1); !rem.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected L1 restored to 2, got %s", rem)
	}
	if rem := layerRemaining(t, ctx, pool, l2); !rem.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected L2 fully restored to 5, got %s", rem)
	}

	// −(2×12) − (2×10) = −44 at the original costs of each slice.
	var reversed decimal.Decimal
	if err := pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM cogs_allocations WHERE order_id = 'ORD-650' AND is_reversal`,
	).Scan(&reversed); err != nil {
		t.Fatalf("Failed to sum reversals: %v", err)
	}
	if !reversed.Equal(decimal.NewFromInt(-44)) {
		t.Errorf("Expected reversal total -44, got %s", reversed)
	}
}

func TestReversal_RejectsMoreThanNetAllocated(t *testing.T) {
	pool := setupCostingTestDB(t)
	defer pool.Close()
	receipts, cogs, _ := newCostingServices(pool)
	ctx := context.Background()

	if _, err := receipts.RecordPurchaseReceipt(ctx, testActor(), "WIDGET-A",
		decimal.NewFromInt(10), decimal.NewFromInt(10), bkkNoon(t, "2026-03-01"), "PO-1"); err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	if _, err := cogs.ApplyCOGS(ctx, testActor(), core.ApplyCOGSRequest{
		OrderID: "ORD-700", SKU: "WIDGET-A", Qty: decimal.NewFromInt(4),
		ShippedAt: bkkNoon(t, "2026-03-02"), Method: core.MethodFIFO,
	}); err != nil {
		t.Fatalf("ApplyCOGS failed: %v", err)
	}
	if err := cogs.ApplyReturnReverseCOGS(ctx, testActor(), core.ReverseCOGSRequest{
		OrderID: "ORD-700", SKU: "WIDGET-A",
		ReturnQty: decimal.NewFromInt(3), ReturnDate: "2026-03-03",
	}); err != nil {
		t.Fatalf("First reversal failed: %v", err)
	}

	// Net allocated is now 1; returning 2 more must fail without writes.
	err := cogs.ApplyReturnReverseCOGS(ctx, testActor(), core.ReverseCOGSRequest{
		OrderID: "ORD-700", SKU: "WIDGET-A",
		ReturnQty: decimal.NewFromInt(2), ReturnDate: "2026-03-04",
	})
	if !errors.Is(err, core.ErrOverReversal) {
		t.Fatalf("Expected ErrOverReversal, got %v", err)
	}

	allocs, err := cogs.GetAllocationsForOrder(ctx, "ORD-700")
	if err != nil {
		t.Fatalf("GetAllocationsForOrder failed: %v", err)
	}
	if len(allocs) != 2 {
		t.Errorf("Expected 1 allocation + 1 reversal, got %d rows", len(allocs))
	}
}

func TestReversal_AVGFoldsBackIntoSnapshot(t *testing.T) {
	pool := setupCostingTestDB(t)
	defer pool.Close()
	receipts, cogs, _ := newCostingServices(pool)
	ctx := context.Background()

	if _, err := receipts.RecordOpeningBalance(ctx, testActor(), "WIDGET-A",
		decimal.NewFromInt(100), decimal.NewFromInt(10), "2026-03-01"); err != nil {
		t.Fatalf("Opening balance failed: %v", err)
	}
	if _, err := cogs.ApplyCOGS(ctx, testActor(), core.ApplyCOGSRequest{
		OrderID: "ORD-800", SKU: "WIDGET-A", Qty: decimal.NewFromInt(20),
		ShippedAt: bkkNoon(t, "2026-03-02"), Method: core.MethodAVG,
	}); err != nil {
		t.Fatalf("ApplyCOGS failed: %v", err)
	}

	if err := cogs.ApplyReturnReverseCOGS(ctx, testActor(), core.ReverseCOGSRequest{
		OrderID: "ORD-800", SKU: "WIDGET-A",
		ReturnQty: decimal.NewFromInt(5), ReturnDate: "2026-03-06",
	}); err != nil {
		t.Fatalf("Reversal failed: %v", err)
	}

	snap, err := receipts.GetSnapshot(ctx, "WIDGET-A", "2026-03-06")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if !snap.OnHandQty.Equal(decimal.NewFromInt(85)) {
		t.Errorf("Expected on_hand_qty=85 after return, got %s", snap.OnHandQty)
	}
	if !snap.OnHandValue.Equal(decimal.NewFromInt(850)) {
		t.Errorf("Expected on_hand_value=850 after return, got %s", snap.OnHandValue)
	}
	if !snap.AvgUnitCost.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected avg unchanged at 10, got %s", snap.AvgUnitCost)
	}
}

func TestReversal_BundleExpandsRecipe(t *testing.T) {
	pool := setupCostingTestDB(t)
	defer pool.Close()
	receipts, cogs, _ := newCostingServices(pool)
	ctx := context.Background()

	// GIFT-SET = 1×WIDGET-A + 2×WIDGET-B
	if _, err := receipts.RecordPurchaseReceipt(ctx, testActor(), "WIDGET-A",
		decimal.NewFromInt(10), decimal.NewFromInt(10), bkkNoon(t, "2026-03-01"), "PO-1"); err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	if _, err := receipts.RecordPurchaseReceipt(ctx, testActor(), "WIDGET-B",
		decimal.NewFromInt(10), decimal.NewFromInt(5), bkkNoon(t, "2026-03-01"), "PO-2"); err != nil {
		t.Fatalf("Receipt failed: %v", err)
	}
	result, err := cogs.ApplyCOGS(ctx, testActor(), core.ApplyCOGSRequest{
		OrderID: "ORD-900", SKU: "GIFT-SET", Qty: decimal.NewFromInt(2),
		ShippedAt: bkkNoon(t, "2026-03-02"), Method: core.MethodFIFO,
	})
	if err != nil {
		t.Fatalf("ApplyCOGS failed: %v", err)
	}
	if result.Status != core.ApplySuccess {
		t.Fatalf("Expected success, got %s (%s)", result.Status, result.Reason)
	}
	// 2×1×10 + 2×2×5 = 40
	if !result.TotalAmount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected bundle total 40, got %s", result.TotalAmount)
	}

	// Returning 1 gift set reverses 1×A and 2×B.
	if err := cogs.ApplyReturnReverseCOGS(ctx, testActor(), core.ReverseCOGSRequest{
		OrderID: "ORD-900", SKU: "GIFT-SET",
		ReturnQty: decimal.NewFromInt(1), ReturnDate: "2026-03-03",
	}); err != nil {
		t.Fatalf("Reversal failed: %v", err)
	}

	var reversed decimal.Decimal
	if err := pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM cogs_allocations WHERE order_id = 'ORD-900' AND is_reversal`,
	).Scan(&reversed); err != nil {
		t.Fatalf("Failed to sum reversals: %v", err)
	}
	// −(1×10 + 2×5) = −20
	if !reversed.Equal(decimal.NewFromInt(-20)) {
		t.Errorf("Expected reversal total -20, got %s", reversed)
	}
}
