package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ReportingService provides read-only aggregates over the costing ledger for
// the P&L reporting collaborator. No method here has side effects.
type ReportingService interface {
	// ComputeDailyCOGS sums allocation amounts over one Bangkok calendar day.
	// Reversals carry negative amounts so they net out naturally; the result
	// is floored at zero and rounded to 2 decimals.
	ComputeDailyCOGS(ctx context.Context, date string) (*DailyCOGS, error)

	// GetCOGSBreakdown returns the same day's COGS split per component SKU.
	GetCOGSBreakdown(ctx context.Context, date string) ([]SKUDailyCOGS, error)
}

type reportingService struct {
	pool *pgxpool.Pool
}

func NewReportingService(pool *pgxpool.Pool) ReportingService {
	return &reportingService{pool: pool}
}

func (s *reportingService) ComputeDailyCOGS(ctx context.Context, date string) (*DailyCOGS, error) {
	start, end, err := BangkokDayWindow(date)
	if err != nil {
		return nil, err
	}

	var total decimal.Decimal
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM cogs_allocations
		WHERE shipped_at >= $1 AND shipped_at < $2`,
		start, end,
	).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily COGS for %s: %w", date, err)
	}

	if total.IsNegative() {
		total = decimal.Zero
	}
	return &DailyCOGS{Date: date, Amount: total.Round(2)}, nil
}

func (s *reportingService) GetCOGSBreakdown(ctx context.Context, date string) ([]SKUDailyCOGS, error) {
	start, end, err := BangkokDayWindow(date)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT sku_internal, SUM(qty), SUM(amount)
		FROM cogs_allocations
		WHERE shipped_at >= $1 AND shipped_at < $2
		GROUP BY sku_internal
		ORDER BY sku_internal`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query COGS breakdown for %s: %w", date, err)
	}
	defer rows.Close()

	var lines []SKUDailyCOGS
	for rows.Next() {
		var l SKUDailyCOGS
		if err := rows.Scan(&l.SKU, &l.Qty, &l.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan breakdown line: %w", err)
		}
		l.Amount = l.Amount.Round(2)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
