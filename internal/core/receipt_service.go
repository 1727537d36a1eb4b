package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ReceiptService owns the receipt layer ledger and seeds the cost snapshot
// store. Every inbound quantity (opening balance or purchase) creates one
// layer for FIFO and folds into the running snapshot for AVG — both costing
// methods see the same goods, whichever one an order later uses.
type ReceiptService interface {
	// RecordOpeningBalance creates an OPENING_BALANCE layer dated at Bangkok
	// midnight of the given date and upserts the SKU's cost snapshot for that
	// date. Both writes commit atomically. Returns the new layer id.
	RecordOpeningBalance(ctx context.Context, actor ActorContext, sku string, qty, unitCost decimal.Decimal, date string) (int64, error)

	// RecordPurchaseReceipt creates a PURCHASE layer at receivedAt and folds
	// the receipt into the snapshot of the Bangkok day it arrived. refID links
	// back to the purchase row in the purchasing subsystem.
	RecordPurchaseReceipt(ctx context.Context, actor ActorContext, sku string, qty, unitCost decimal.Decimal, receivedAt time.Time, refID string) (int64, error)

	// VoidLayer hides an untouched layer from FIFO. Layers with any quantity
	// already consumed cannot be voided (ErrLayerConsumed) — their history is
	// referenced by allocation rows.
	VoidLayer(ctx context.Context, actor ActorContext, layerID int64) error

	// GetLayers returns all layers for a SKU, oldest first.
	GetLayers(ctx context.Context, sku string) ([]ReceiptLayer, error)

	// GetSnapshot returns the running snapshot state for a SKU as of a date.
	GetSnapshot(ctx context.Context, sku, date string) (*CostSnapshot, error)
}

type receiptService struct {
	pool *pgxpool.Pool
}

func NewReceiptService(pool *pgxpool.Pool) ReceiptService {
	return &receiptService{pool: pool}
}

func (s *receiptService) RecordOpeningBalance(ctx context.Context, actor ActorContext, sku string, qty, unitCost decimal.Decimal, date string) (int64, error) {
	start, _, err := BangkokDayWindow(date)
	if err != nil {
		return 0, err
	}
	return s.recordReceipt(ctx, actor, sku, qty, unitCost, start, RefOpeningBalance, nil)
}

func (s *receiptService) RecordPurchaseReceipt(ctx context.Context, actor ActorContext, sku string, qty, unitCost decimal.Decimal, receivedAt time.Time, refID string) (int64, error) {
	if receivedAt.IsZero() {
		return 0, fmt.Errorf("received_at must be set")
	}
	var ref *string
	if refID != "" {
		ref = &refID
	}
	return s.recordReceipt(ctx, actor, sku, qty, unitCost, receivedAt, RefPurchase, ref)
}

func (s *receiptService) recordReceipt(ctx context.Context, actor ActorContext, sku string, qty, unitCost decimal.Decimal, receivedAt time.Time, refType string, refID *string) (int64, error) {
	if !actor.Authenticated() {
		return 0, fmt.Errorf("record receipt: no authenticated actor")
	}
	if !qty.IsPositive() {
		return 0, fmt.Errorf("receipt quantity must be positive, got %s", qty)
	}
	if unitCost.IsNegative() {
		return 0, fmt.Errorf("unit cost cannot be negative, got %s", unitCost)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM inventory_items WHERE sku_internal = $1)", sku,
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check sku %s: %w", sku, err)
	}
	if !exists {
		return 0, fmt.Errorf("sku %s: %w", sku, ErrSKUNotFound)
	}

	var layerID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO receipt_layers (sku_internal, received_at, qty_received, qty_remaining, unit_cost, ref_type, ref_id)
		VALUES ($1, $2, $3, $3, $4, $5, $6)
		RETURNING id`,
		sku, receivedAt, qty, unitCost, refType, refID,
	).Scan(&layerID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert receipt layer for %s: %w", sku, err)
	}

	// Layer insert and snapshot fold land together or not at all.
	if err := foldReceiptIntoSnapshotTx(ctx, tx, sku, BangkokDate(receivedAt), qty, unitCost); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit receipt for %s: %w", sku, err)
	}
	return layerID, nil
}

func (s *receiptService) VoidLayer(ctx context.Context, actor ActorContext, layerID int64) error {
	if !actor.Authenticated() {
		return fmt.Errorf("void layer: no authenticated actor")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var qtyReceived, qtyRemaining decimal.Decimal
	var voided bool
	err = tx.QueryRow(ctx,
		"SELECT qty_received, qty_remaining, is_voided FROM receipt_layers WHERE id = $1 FOR UPDATE",
		layerID,
	).Scan(&qtyReceived, &qtyRemaining, &voided)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("layer %d not found", layerID)
		}
		return fmt.Errorf("failed to lock layer %d: %w", layerID, err)
	}
	if voided {
		return fmt.Errorf("layer %d is already voided", layerID)
	}
	if !qtyRemaining.Equal(qtyReceived) {
		return fmt.Errorf("layer %d: %w", layerID, ErrLayerConsumed)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE receipt_layers SET is_voided = true WHERE id = $1", layerID,
	); err != nil {
		return fmt.Errorf("failed to void layer %d: %w", layerID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit void of layer %d: %w", layerID, err)
	}
	return nil
}

func (s *receiptService) GetLayers(ctx context.Context, sku string) ([]ReceiptLayer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sku_internal, received_at, qty_received, qty_remaining, unit_cost, ref_type, ref_id, is_voided, created_at
		FROM receipt_layers
		WHERE sku_internal = $1
		ORDER BY received_at, id`,
		sku)
	if err != nil {
		return nil, fmt.Errorf("failed to query layers for %s: %w", sku, err)
	}
	defer rows.Close()

	var layers []ReceiptLayer
	for rows.Next() {
		var l ReceiptLayer
		if err := rows.Scan(&l.ID, &l.SKU, &l.ReceivedAt, &l.QtyReceived, &l.QtyRemaining,
			&l.UnitCost, &l.RefType, &l.RefID, &l.IsVoided, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}
		layers = append(layers, l)
	}
	return layers, rows.Err()
}

func (s *receiptService) GetSnapshot(ctx context.Context, sku, date string) (*CostSnapshot, error) {
	snap := &CostSnapshot{}
	err := s.pool.QueryRow(ctx, `
		SELECT sku_internal, as_of_date::text, on_hand_qty, on_hand_value, avg_unit_cost, updated_at
		FROM cost_snapshots
		WHERE sku_internal = $1 AND as_of_date <= $2::date
		ORDER BY as_of_date DESC
		LIMIT 1`,
		sku, date,
	).Scan(&snap.SKU, &snap.AsOfDate, &snap.OnHandQty, &snap.OnHandValue, &snap.AvgUnitCost, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sku %s as of %s: %w", sku, date, ErrNoCostSnapshot)
		}
		return nil, fmt.Errorf("failed to fetch snapshot for %s: %w", sku, err)
	}
	return snap, nil
}
