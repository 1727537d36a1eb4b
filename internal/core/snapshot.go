package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Tx-scoped helpers for the cost snapshot store. A snapshot row is the
// running {on_hand_qty, on_hand_value, avg_unit_cost} state of a SKU as of a
// Bangkok calendar date. Rows are upserted in place; the latest row on or
// before a date is the state the AVG allocator consumes.

// snapshotForUpdateTx locks and returns the most recent snapshot for sku with
// as_of_date <= date. Returns ErrNoCostSnapshot when none exists.
func snapshotForUpdateTx(ctx context.Context, tx pgx.Tx, sku, date string) (*CostSnapshot, error) {
	snap := &CostSnapshot{}
	err := tx.QueryRow(ctx, `
		SELECT sku_internal, as_of_date::text, on_hand_qty, on_hand_value, avg_unit_cost, updated_at
		FROM cost_snapshots
		WHERE sku_internal = $1 AND as_of_date <= $2::date
		ORDER BY as_of_date DESC
		LIMIT 1
		FOR UPDATE`,
		sku, date,
	).Scan(&snap.SKU, &snap.AsOfDate, &snap.OnHandQty, &snap.OnHandValue, &snap.AvgUnitCost, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sku %s as of %s: %w", sku, date, ErrNoCostSnapshot)
		}
		return nil, fmt.Errorf("failed to lock snapshot for %s: %w", sku, err)
	}
	return snap, nil
}

// writeSnapshotTx upserts the snapshot row at (sku, date) with the given
// running state, recomputing the average (zero when qty is zero).
func writeSnapshotTx(ctx context.Context, tx pgx.Tx, sku, date string, qty, value decimal.Decimal) error {
	avg := decimal.Zero
	if !qty.IsZero() {
		avg = value.Div(qty)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO cost_snapshots (sku_internal, as_of_date, on_hand_qty, on_hand_value, avg_unit_cost, updated_at)
		VALUES ($1, $2::date, $3, $4, $5, NOW())
		ON CONFLICT (sku_internal, as_of_date) DO UPDATE
		SET on_hand_qty = EXCLUDED.on_hand_qty,
		    on_hand_value = EXCLUDED.on_hand_value,
		    avg_unit_cost = EXCLUDED.avg_unit_cost,
		    updated_at = NOW()`,
		sku, date, qty, value, avg)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot for %s @ %s: %w", sku, date, err)
	}
	return nil
}

// foldReceiptIntoSnapshotTx folds a goods receipt into the running snapshot
// state at date, weighted-average style: the prior state is the latest
// snapshot on or before date (zero state when none exists yet).
func foldReceiptIntoSnapshotTx(ctx context.Context, tx pgx.Tx, sku, date string, qty, unitCost decimal.Decimal) error {
	prevQty, prevValue := decimal.Zero, decimal.Zero
	snap, err := snapshotForUpdateTx(ctx, tx, sku, date)
	if err != nil && !errors.Is(err, ErrNoCostSnapshot) {
		return err
	}
	if snap != nil {
		prevQty, prevValue = snap.OnHandQty, snap.OnHandValue
	}
	return writeSnapshotTx(ctx, tx, sku, date,
		prevQty.Add(qty), prevValue.Add(qty.Mul(unitCost)))
}
