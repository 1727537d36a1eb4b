package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BundleService maintains bundle recipes: the mapping from a composite SKU to
// its component SKUs and per-unit quantities.
type BundleService interface {
	// UpsertRecipe replaces the full component set of a bundle transactionally
	// (delete-all-then-insert — recipes are never partially mutated). An empty
	// component list is valid: such a bundle exists but cannot be allocated.
	UpsertRecipe(ctx context.Context, actor ActorContext, bundleSKU string, components []BundleComponent) error

	// GetComponents returns the recipe of a bundle. Non-bundles and bundles
	// without a recipe return an empty slice, not an error — the caller
	// distinguishes by checking is_bundle on the catalog item.
	GetComponents(ctx context.Context, bundleSKU string) ([]BundleComponent, error)
}

type bundleService struct {
	pool *pgxpool.Pool
}

func NewBundleService(pool *pgxpool.Pool) BundleService {
	return &bundleService{pool: pool}
}

func (s *bundleService) UpsertRecipe(ctx context.Context, actor ActorContext, bundleSKU string, components []BundleComponent) error {
	if !actor.Authenticated() {
		return fmt.Errorf("upsert recipe: no authenticated actor")
	}

	for _, c := range components {
		if !c.QuantityPerUnit.IsPositive() {
			return fmt.Errorf("component %s: quantity_per_unit must be positive, got %s",
				c.ComponentSKU, c.QuantityPerUnit)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var isBundle bool
	err = tx.QueryRow(ctx,
		"SELECT is_bundle FROM inventory_items WHERE sku_internal = $1 FOR UPDATE",
		bundleSKU,
	).Scan(&isBundle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("bundle %s: %w", bundleSKU, ErrSKUNotFound)
		}
		return fmt.Errorf("failed to resolve bundle %s: %w", bundleSKU, err)
	}
	if !isBundle {
		return fmt.Errorf("item %s is not a bundle: %w", bundleSKU, ErrSKUNotFound)
	}

	// Every component must itself exist in the catalog.
	for _, c := range components {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM inventory_items WHERE sku_internal = $1)",
			c.ComponentSKU,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check component %s: %w", c.ComponentSKU, err)
		}
		if !exists {
			return fmt.Errorf("component %s: %w", c.ComponentSKU, ErrSKUNotFound)
		}
	}

	if _, err := tx.Exec(ctx,
		"DELETE FROM bundle_components WHERE bundle_sku = $1", bundleSKU,
	); err != nil {
		return fmt.Errorf("failed to clear recipe for %s: %w", bundleSKU, err)
	}

	for _, c := range components {
		if _, err := tx.Exec(ctx, `
			INSERT INTO bundle_components (bundle_sku, component_sku, quantity_per_unit)
			VALUES ($1, $2, $3)`,
			bundleSKU, c.ComponentSKU, c.QuantityPerUnit,
		); err != nil {
			return fmt.Errorf("failed to insert component %s for %s: %w", c.ComponentSKU, bundleSKU, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit recipe for %s: %w", bundleSKU, err)
	}
	return nil
}

func (s *bundleService) GetComponents(ctx context.Context, bundleSKU string) ([]BundleComponent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT bundle_sku, component_sku, quantity_per_unit
		FROM bundle_components
		WHERE bundle_sku = $1
		ORDER BY component_sku`,
		bundleSKU)
	if err != nil {
		return nil, fmt.Errorf("failed to query components for %s: %w", bundleSKU, err)
	}
	defer rows.Close()

	components := []BundleComponent{}
	for rows.Next() {
		var c BundleComponent
		if err := rows.Scan(&c.BundleSKU, &c.ComponentSKU, &c.QuantityPerUnit); err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		components = append(components, c)
	}
	return components, rows.Err()
}
