package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// allocateAVGTx costs qty units of sku at the weighted-average unit cost of
// the snapshot active on the ship date, within the caller's transaction.
// It writes exactly one allocation row (layer_id NULL) and mutates the
// snapshot in place: qty and value come down, the average is recomputed
// (zero once the quantity reaches zero). Allocation row and snapshot update
// commit together or not at all.
func allocateAVGTx(ctx context.Context, tx pgx.Tx, orderID, sku string, qty decimal.Decimal, shippedAt time.Time) ([]COGSAllocation, error) {
	snap, err := snapshotForUpdateTx(ctx, tx, sku, BangkokDate(shippedAt))
	if err != nil {
		return nil, err
	}
	if snap.OnHandQty.LessThan(qty) {
		return nil, fmt.Errorf("sku %s: on hand %s, need %s: %w",
			sku, snap.OnHandQty, qty, ErrInsufficientStock)
	}

	unitCost := snap.AvgUnitCost
	amount := qty.Mul(unitCost)

	var alloc COGSAllocation
	err = tx.QueryRow(ctx, `
		INSERT INTO cogs_allocations (order_id, sku_internal, shipped_at, method, qty, unit_cost_used, amount, layer_id, is_reversal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, false)
		RETURNING id, created_at`,
		orderID, sku, shippedAt, MethodAVG, qty, unitCost, amount,
	).Scan(&alloc.ID, &alloc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert AVG allocation for %s: %w", sku, err)
	}

	if err := writeSnapshotTx(ctx, tx, sku, snap.AsOfDate,
		snap.OnHandQty.Sub(qty), snap.OnHandValue.Sub(amount)); err != nil {
		return nil, err
	}

	alloc.OrderID = orderID
	alloc.SKU = sku
	alloc.ShippedAt = shippedAt
	alloc.Method = MethodAVG
	alloc.Qty = qty
	alloc.UnitCostUsed = unitCost
	alloc.Amount = amount
	return []COGSAllocation{alloc}, nil
}

// returnToSnapshotTx adds returned quantity and value back onto the snapshot
// active on the return date and recomputes the average. A SKU whose snapshot
// history starts after the return date gets a fresh row at that date — the
// returned goods are on hand again either way.
func returnToSnapshotTx(ctx context.Context, tx pgx.Tx, sku, returnDate string, qty, value decimal.Decimal) error {
	snap, err := snapshotForUpdateTx(ctx, tx, sku, returnDate)
	if err != nil {
		if errors.Is(err, ErrNoCostSnapshot) {
			return writeSnapshotTx(ctx, tx, sku, returnDate, qty, value)
		}
		return err
	}
	return writeSnapshotTx(ctx, tx, sku, snap.AsOfDate,
		snap.OnHandQty.Add(qty), snap.OnHandValue.Add(value))
}
