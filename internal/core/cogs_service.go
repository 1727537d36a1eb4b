package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ApplyCOGSRequest is a fulfillment event: an order line was shipped and its
// cost of goods sold must be booked.
type ApplyCOGSRequest struct {
	OrderID   string
	SKU       string // seller-facing SKU already resolved to sku_internal upstream
	Qty       decimal.Decimal
	ShippedAt time.Time
	Method    CostingMethod
}

// ReverseCOGSRequest is a return event: previously costed units came back and
// the original allocations must be offset at their historical cost.
type ReverseCOGSRequest struct {
	OrderID    string
	SKU        string
	ReturnQty  decimal.Decimal
	ReturnDate string // YYYY-MM-DD, Bangkok calendar date
}

// COGSService is the costing entry point for fulfillment and return events.
type COGSService interface {
	// ApplyCOGS books COGS for a shipped order line. It is safe to retry:
	// every (order, component SKU) pair is costed at most once, so a bundle
	// that partially failed can be re-invoked after restocking and only the
	// missing components are allocated. Expected business conditions come
	// back inside ApplyResult; the error return is for storage failures.
	ApplyCOGS(ctx context.Context, actor ActorContext, req ApplyCOGSRequest) (*ApplyResult, error)

	// ApplyReturnReverseCOGS offsets up to ReturnQty of the allocations
	// previously booked for (order, SKU), newest first, at each allocation's
	// original unit cost. Undoing the most recent consumption first puts
	// returned units back on the layer they actually came from. Bundle SKUs are expanded through the recipe. The
	// whole reversal is one atomic unit — reversing more than the net
	// allocated quantity fails without writing anything.
	ApplyReturnReverseCOGS(ctx context.Context, actor ActorContext, req ReverseCOGSRequest) error

	// GetAllocationsForOrder returns every ledger row for an order, oldest first.
	GetAllocationsForOrder(ctx context.Context, orderID string) ([]COGSAllocation, error)
}

type cogsService struct {
	pool    *pgxpool.Pool
	catalog CatalogService
	bundles BundleService
}

func NewCOGSService(pool *pgxpool.Pool, catalog CatalogService, bundles BundleService) COGSService {
	return &cogsService{pool: pool, catalog: catalog, bundles: bundles}
}

// ── ApplyCOGS ─────────────────────────────────────────────────────────────────

func (s *cogsService) ApplyCOGS(ctx context.Context, actor ActorContext, req ApplyCOGSRequest) (*ApplyResult, error) {
	// Preconditions, each with its own failure code so the caller can tell a
	// bad request from an out-of-stock condition.
	if !actor.Authenticated() {
		return &ApplyResult{Status: ApplyFailed, Failure: FailureAuth, Reason: "no authenticated caller"}, nil
	}
	if !req.Qty.IsPositive() {
		return &ApplyResult{Status: ApplyFailed, Failure: FailureInvalidQuantity,
			Reason: fmt.Sprintf("quantity must be positive, got %s", req.Qty)}, nil
	}
	if req.SKU == "" {
		return &ApplyResult{Status: ApplyFailed, Failure: FailureMissingSKU, Reason: "sku is empty"}, nil
	}
	if req.ShippedAt.IsZero() {
		return &ApplyResult{Status: ApplyFailed, Failure: FailureMissingShipped, Reason: "shipped_at is not set"}, nil
	}
	if !req.Method.Valid() {
		return nil, fmt.Errorf("unknown costing method %q", req.Method)
	}

	item, err := s.catalog.GetItem(ctx, req.SKU)
	if err != nil {
		if errors.Is(err, ErrSKUNotFound) {
			return &ApplyResult{Status: ApplyFailed, Failure: FailureSKUNotFound, Reason: err.Error()}, nil
		}
		return nil, err
	}

	if !item.IsBundle {
		return s.applySimple(ctx, req)
	}
	return s.applyBundle(ctx, req)
}

func (s *cogsService) applySimple(ctx context.Context, req ApplyCOGSRequest) (*ApplyResult, error) {
	allocs, already, err := s.allocateComponent(ctx, req.OrderID, req.SKU, req.Qty, req.ShippedAt, req.Method)
	if already {
		return &ApplyResult{Status: ApplyAlreadyAllocated, AllocatedSKUs: []string{req.SKU}}, nil
	}
	if err != nil {
		kind := classifyFailure(err)
		if kind == FailureDB {
			return nil, err
		}
		return &ApplyResult{
			Status:      ApplyFailed,
			MissingSKUs: []string{req.SKU},
			Failure:     kind,
			Reason:      err.Error(),
		}, nil
	}
	return &ApplyResult{
		Status:        ApplySuccess,
		AllocatedSKUs: []string{req.SKU},
		TotalAmount:   sumAmounts(allocs),
	}, nil
}

func (s *cogsService) applyBundle(ctx context.Context, req ApplyCOGSRequest) (*ApplyResult, error) {
	components, err := s.bundles.GetComponents(ctx, req.SKU)
	if err != nil {
		return nil, err
	}
	if len(components) == 0 {
		return &ApplyResult{Status: ApplyFailed, Failure: FailureNoBundleRecipe,
			Reason: fmt.Sprintf("bundle %s has no recipe configured", req.SKU)}, nil
	}

	// Each component is its own atomic unit with its own idempotency guard, so
	// one out-of-stock component never blocks (or re-costs) the others.
	var allocated, missing []string
	var failures []string
	failure := FailureNone
	total := decimal.Zero

	for _, c := range components {
		need := req.Qty.Mul(c.QuantityPerUnit)
		allocs, already, err := s.allocateComponent(ctx, req.OrderID, c.ComponentSKU, need, req.ShippedAt, req.Method)
		switch {
		case already:
			allocated = append(allocated, c.ComponentSKU)
		case err != nil:
			missing = append(missing, c.ComponentSKU)
			failures = append(failures, fmt.Sprintf("%s: %v", c.ComponentSKU, err))
			if failure == FailureNone {
				failure = classifyFailure(err)
			}
		default:
			allocated = append(allocated, c.ComponentSKU)
			total = total.Add(sumAmounts(allocs))
		}
	}

	status, reason := summarizeBundle(allocated, missing)
	if len(failures) > 0 {
		reason = reason + " (" + strings.Join(failures, "; ") + ")"
	}
	if status == ApplySuccess {
		failure = FailureNone
	}
	return &ApplyResult{
		Status:        status,
		AllocatedSKUs: allocated,
		MissingSKUs:   missing,
		Reason:        reason,
		Failure:       failure,
		TotalAmount:   total,
	}, nil
}

// summarizeBundle classifies a bundle outcome: everything allocated (now or
// previously) is success, nothing allocated is failed, a strict subset is
// partial — the state a later retry converges from.
func summarizeBundle(allocated, missing []string) (ApplyStatus, string) {
	switch {
	case len(missing) == 0:
		return ApplySuccess, ""
	case len(allocated) == 0:
		return ApplyFailed, fmt.Sprintf("no components allocated: %s", strings.Join(missing, ", "))
	default:
		return ApplyPartial, fmt.Sprintf("allocated %s; missing %s",
			strings.Join(allocated, ", "), strings.Join(missing, ", "))
	}
}

func sumAmounts(allocs []COGSAllocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		total = total.Add(a.Amount)
	}
	return total
}

// allocateComponent runs one component allocation as a single transaction:
// per-(order, SKU) serialization, idempotency guard, allocator writes. The
// advisory lock keeps two concurrent retries of the same component from
// racing between the guard check and the allocation writes; the guard
// table's primary key backs it up across sessions.
func (s *cogsService) allocateComponent(ctx context.Context, orderID, sku string, qty decimal.Decimal, shippedAt time.Time, method CostingMethod) (allocs []COGSAllocation, already bool, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockOrderSKUTx(ctx, tx, orderID, sku); err != nil {
		return nil, false, err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO cogs_applications (order_id, sku_internal)
		VALUES ($1, $2)
		ON CONFLICT (order_id, sku_internal) DO NOTHING`,
		orderID, sku)
	if err != nil {
		return nil, false, fmt.Errorf("failed to record application guard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already costed on a previous attempt. Nothing to write.
		return nil, true, nil
	}

	switch method {
	case MethodFIFO:
		allocs, err = allocateFIFOTx(ctx, tx, orderID, sku, qty, shippedAt)
	case MethodAVG:
		allocs, err = allocateAVGTx(ctx, tx, orderID, sku, qty, shippedAt)
	default:
		err = fmt.Errorf("unknown costing method %q", method)
	}
	if err != nil {
		// Rollback discards the guard row and any partial layer consumption.
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit allocation for %s: %w", sku, err)
	}
	return allocs, false, nil
}

// lockOrderSKUTx takes a transaction-scoped advisory lock on the (order, SKU)
// pair. Unrelated SKUs and orders hash to different keys and stay parallel.
func lockOrderSKUTx(ctx context.Context, tx pgx.Tx, orderID, sku string) error {
	if _, err := tx.Exec(ctx,
		"SELECT pg_advisory_xact_lock(hashtextextended($1, 0))",
		orderID+"/"+sku,
	); err != nil {
		return fmt.Errorf("failed to lock order %s sku %s: %w", orderID, sku, err)
	}
	return nil
}

// ── ApplyReturnReverseCOGS ────────────────────────────────────────────────────

func (s *cogsService) ApplyReturnReverseCOGS(ctx context.Context, actor ActorContext, req ReverseCOGSRequest) error {
	if !actor.Authenticated() {
		return fmt.Errorf("reverse cogs: no authenticated caller")
	}
	if !req.ReturnQty.IsPositive() {
		return fmt.Errorf("return quantity must be positive, got %s", req.ReturnQty)
	}
	if req.SKU == "" {
		return fmt.Errorf("sku is empty")
	}
	returnedAt, _, err := BangkokDayWindow(req.ReturnDate)
	if err != nil {
		return err
	}

	item, err := s.catalog.GetItem(ctx, req.SKU)
	if err != nil {
		return err
	}

	type target struct {
		sku string
		qty decimal.Decimal
	}
	targets := []target{{sku: req.SKU, qty: req.ReturnQty}}
	if item.IsBundle {
		components, err := s.bundles.GetComponents(ctx, req.SKU)
		if err != nil {
			return err
		}
		if len(components) == 0 {
			return fmt.Errorf("bundle %s: %w", req.SKU, ErrNoBundleRecipe)
		}
		targets = targets[:0]
		for _, c := range components {
			targets = append(targets, target{sku: c.ComponentSKU, qty: req.ReturnQty.Mul(c.QuantityPerUnit)})
		}
	}

	// The whole return is one atomic unit: either every component's reversal
	// rows and state restorations commit, or none do.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range targets {
		if err := s.reverseComponentTx(ctx, tx, req.OrderID, t.sku, t.qty, req.ReturnDate, returnedAt); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reversal for order %s: %w", req.OrderID, err)
	}
	return nil
}

// reverseComponentTx walks the non-reversal allocations of (order, sku)
// newest first, offsetting up to returnQty at each allocation's original
// unit_cost_used. Reversal rows keep the original layer_id; FIFO layers get
// their quantity restored and AVG returns fold back into the snapshot active
// on the return date. Never reprices at current cost.
func (s *cogsService) reverseComponentTx(ctx context.Context, tx pgx.Tx, orderID, sku string, returnQty decimal.Decimal, returnDate string, returnedAt time.Time) error {
	if err := lockOrderSKUTx(ctx, tx, orderID, sku); err != nil {
		return err
	}

	type allocation struct {
		id       int64
		method   CostingMethod
		qty      decimal.Decimal
		unitCost decimal.Decimal
		layerID  *int64
		reversed decimal.Decimal
	}

	rows, err := tx.Query(ctx, `
		SELECT id, method, qty, unit_cost_used, layer_id
		FROM cogs_allocations
		WHERE order_id = $1 AND sku_internal = $2 AND NOT is_reversal
		ORDER BY created_at DESC, id DESC`,
		orderID, sku)
	if err != nil {
		return fmt.Errorf("failed to query allocations for order %s sku %s: %w", orderID, sku, err)
	}
	var allocations []allocation
	for rows.Next() {
		var a allocation
		if err := rows.Scan(&a.id, &a.method, &a.qty, &a.unitCost, &a.layerID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating allocations: %w", err)
	}

	// Prior reversals, keyed by the allocation they offset.
	reversedBy := map[int64]decimal.Decimal{}
	rrows, err := tx.Query(ctx, `
		SELECT reversal_of, SUM(-qty)
		FROM cogs_allocations
		WHERE order_id = $1 AND sku_internal = $2 AND is_reversal
		GROUP BY reversal_of`,
		orderID, sku)
	if err != nil {
		return fmt.Errorf("failed to query prior reversals: %w", err)
	}
	for rrows.Next() {
		var of *int64
		var qty decimal.Decimal
		if err := rrows.Scan(&of, &qty); err != nil {
			rrows.Close()
			return fmt.Errorf("failed to scan prior reversal: %w", err)
		}
		if of != nil {
			reversedBy[*of] = qty
		}
	}
	rrows.Close()
	if err := rrows.Err(); err != nil {
		return fmt.Errorf("error iterating prior reversals: %w", err)
	}

	net := decimal.Zero
	for i := range allocations {
		allocations[i].reversed = reversedBy[allocations[i].id]
		net = net.Add(allocations[i].qty).Sub(allocations[i].reversed)
	}
	if returnQty.GreaterThan(net) {
		return fmt.Errorf("order %s sku %s: net allocated %s, returning %s: %w",
			orderID, sku, net, returnQty, ErrOverReversal)
	}

	toReverse := returnQty
	avgQty, avgValue := decimal.Zero, decimal.Zero
	fifoRestores := map[int64]decimal.Decimal{}
	for _, a := range allocations {
		if toReverse.IsZero() {
			break
		}
		remaining := a.qty.Sub(a.reversed)
		if !remaining.IsPositive() {
			continue
		}
		r := decimal.Min(toReverse, remaining)
		amount := r.Mul(a.unitCost)

		if _, err := tx.Exec(ctx, `
			INSERT INTO cogs_allocations (order_id, sku_internal, shipped_at, method, qty, unit_cost_used, amount, layer_id, is_reversal, reversal_of)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, $9)`,
			orderID, sku, returnedAt, a.method, r.Neg(), a.unitCost, amount.Neg(), a.layerID, a.id,
		); err != nil {
			return fmt.Errorf("failed to insert reversal of allocation %d: %w", a.id, err)
		}

		switch a.method {
		case MethodFIFO:
			if a.layerID == nil {
				return fmt.Errorf("allocation %d is FIFO but has no layer reference", a.id)
			}
			fifoRestores[*a.layerID] = fifoRestores[*a.layerID].Add(r)
		case MethodAVG:
			avgQty = avgQty.Add(r)
			avgValue = avgValue.Add(amount)
		}

		toReverse = toReverse.Sub(r)
	}

	// Layer restores run in ascending layer-id order, aligned with the
	// allocator's lock order on the same rows.
	layerIDs := make([]int64, 0, len(fifoRestores))
	for id := range fifoRestores {
		layerIDs = append(layerIDs, id)
	}
	slices.Sort(layerIDs)
	for _, id := range layerIDs {
		if err := restoreLayerTx(ctx, tx, id, fifoRestores[id]); err != nil {
			return err
		}
	}

	if avgQty.IsPositive() {
		if err := returnToSnapshotTx(ctx, tx, sku, returnDate, avgQty, avgValue); err != nil {
			return err
		}
	}
	return nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *cogsService) GetAllocationsForOrder(ctx context.Context, orderID string) ([]COGSAllocation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, sku_internal, shipped_at, method, qty, unit_cost_used, amount, layer_id, is_reversal, reversal_of, created_at
		FROM cogs_allocations
		WHERE order_id = $1
		ORDER BY created_at, id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var allocs []COGSAllocation
	for rows.Next() {
		var a COGSAllocation
		if err := rows.Scan(&a.ID, &a.OrderID, &a.SKU, &a.ShippedAt, &a.Method, &a.Qty,
			&a.UnitCostUsed, &a.Amount, &a.LayerID, &a.IsReversal, &a.ReversalOf, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}
