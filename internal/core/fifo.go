package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// allocateFIFOTx costs qty units of sku for an order by consuming receipt
// layers oldest-first within the caller's transaction. One allocation row is
// written per layer consumed, referencing that layer. If the layers are
// exhausted before qty is satisfied it returns ErrInsufficientStock and the
// caller must roll the whole transaction back — partial consumption is never
// persisted.
//
// Amounts are computed at full decimal precision; currency rounding happens
// only at aggregation time.
func allocateFIFOTx(ctx context.Context, tx pgx.Tx, orderID, sku string, qty decimal.Decimal, shippedAt time.Time) ([]COGSAllocation, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, qty_remaining, unit_cost
		FROM receipt_layers
		WHERE sku_internal = $1 AND NOT is_voided AND qty_remaining > 0
		ORDER BY received_at, id
		FOR UPDATE`,
		sku)
	if err != nil {
		return nil, fmt.Errorf("failed to lock layers for %s: %w", sku, err)
	}

	type layer struct {
		id        int64
		remaining decimal.Decimal
		unitCost  decimal.Decimal
	}
	var layers []layer
	for rows.Next() {
		var l layer
		if err := rows.Scan(&l.id, &l.remaining, &l.unitCost); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}
		layers = append(layers, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating layers: %w", err)
	}

	needed := qty
	var allocations []COGSAllocation
	for _, l := range layers {
		if needed.IsZero() {
			break
		}
		take := decimal.Min(needed, l.remaining)
		amount := take.Mul(l.unitCost)

		var alloc COGSAllocation
		layerID := l.id
		err := tx.QueryRow(ctx, `
			INSERT INTO cogs_allocations (order_id, sku_internal, shipped_at, method, qty, unit_cost_used, amount, layer_id, is_reversal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)
			RETURNING id, created_at`,
			orderID, sku, shippedAt, MethodFIFO, take, l.unitCost, amount, layerID,
		).Scan(&alloc.ID, &alloc.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert allocation for %s layer %d: %w", sku, l.id, err)
		}

		if _, err := tx.Exec(ctx,
			"UPDATE receipt_layers SET qty_remaining = qty_remaining - $1 WHERE id = $2",
			take, l.id,
		); err != nil {
			return nil, fmt.Errorf("failed to decrement layer %d: %w", l.id, err)
		}

		alloc.OrderID = orderID
		alloc.SKU = sku
		alloc.ShippedAt = shippedAt
		alloc.Method = MethodFIFO
		alloc.Qty = take
		alloc.UnitCostUsed = l.unitCost
		alloc.Amount = amount
		alloc.LayerID = &layerID
		allocations = append(allocations, alloc)

		needed = needed.Sub(take)
	}

	if needed.IsPositive() {
		return nil, fmt.Errorf("sku %s: need %s more of %s: %w", sku, needed, qty, ErrInsufficientStock)
	}
	return allocations, nil
}

// restoreLayerTx puts qty back onto the layer a FIFO allocation consumed.
// Used by the return reversal path; the layer invariant
// qty_remaining ≤ qty_received is enforced by the store's check constraint.
func restoreLayerTx(ctx context.Context, tx pgx.Tx, layerID int64, qty decimal.Decimal) error {
	tag, err := tx.Exec(ctx,
		"UPDATE receipt_layers SET qty_remaining = qty_remaining + $1 WHERE id = $2",
		qty, layerID)
	if err != nil {
		return fmt.Errorf("failed to restore layer %d: %w", layerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("layer %d not found for restore", layerID)
	}
	return nil
}
