package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogService reads and maintains the SKU catalog. The costing engine only
// reads it; creation exists for seeding and the catalog management screens.
type CatalogService interface {
	GetItem(ctx context.Context, sku string) (*InventoryItem, error)
	ListItems(ctx context.Context) ([]InventoryItem, error)
	CreateItem(ctx context.Context, actor ActorContext, sku, name string, isBundle bool) (*InventoryItem, error)
}

type catalogService struct {
	pool *pgxpool.Pool
}

func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

func (s *catalogService) GetItem(ctx context.Context, sku string) (*InventoryItem, error) {
	it := &InventoryItem{}
	err := s.pool.QueryRow(ctx, `
		SELECT sku_internal, name, is_bundle, is_active, created_at
		FROM inventory_items
		WHERE sku_internal = $1`,
		sku,
	).Scan(&it.SKU, &it.Name, &it.IsBundle, &it.IsActive, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sku %s: %w", sku, ErrSKUNotFound)
		}
		return nil, fmt.Errorf("failed to fetch item %s: %w", sku, err)
	}
	return it, nil
}

func (s *catalogService) ListItems(ctx context.Context) ([]InventoryItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sku_internal, name, is_bundle, is_active, created_at
		FROM inventory_items
		WHERE is_active = true
		ORDER BY sku_internal`)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []InventoryItem
	for rows.Next() {
		var it InventoryItem
		if err := rows.Scan(&it.SKU, &it.Name, &it.IsBundle, &it.IsActive, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *catalogService) CreateItem(ctx context.Context, actor ActorContext, sku, name string, isBundle bool) (*InventoryItem, error) {
	if !actor.Authenticated() {
		return nil, fmt.Errorf("create item: no authenticated actor")
	}
	if sku == "" {
		return nil, fmt.Errorf("sku must not be empty")
	}

	it := &InventoryItem{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO inventory_items (sku_internal, name, is_bundle)
		VALUES ($1, $2, $3)
		RETURNING sku_internal, name, is_bundle, is_active, created_at`,
		sku, name, isBundle,
	).Scan(&it.SKU, &it.Name, &it.IsBundle, &it.IsActive, &it.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create item %s: %w", sku, err)
	}
	return it, nil
}
