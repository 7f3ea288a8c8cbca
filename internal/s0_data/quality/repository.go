package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads raw-layer coverage for the audit
// ⭐ SSOT: audit queries live here
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new quality repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// BarCoverage returns bar count and date span per instrument
func (r *Repository) BarCoverage(ctx context.Context) ([]BarCoverage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ts_code, COUNT(*), MIN(trade_date), MAX(trade_date)
		FROM ods_market_daily
		GROUP BY ts_code
		ORDER BY ts_code
	`)
	if err != nil {
		return nil, fmt.Errorf("query bar coverage: %w", err)
	}
	defer rows.Close()

	var out []BarCoverage
	for rows.Next() {
		var c BarCoverage
		if err := rows.Scan(&c.TSCode, &c.Bars, &c.First, &c.Last); err != nil {
			return nil, fmt.Errorf("scan bar coverage: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PeriodCoverage returns the distinct statement categories per consolidated
// (ts_code, end_date) with end_date on or after since
func (r *Repository) PeriodCoverage(ctx context.Context, since time.Time) ([]PeriodCoverage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ts_code, end_date, COUNT(DISTINCT category)
		FROM ods_finance_report
		WHERE report_type = '1' AND end_date >= $1
		GROUP BY ts_code, end_date
		ORDER BY ts_code, end_date
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query period coverage: %w", err)
	}
	defer rows.Close()

	var out []PeriodCoverage
	for rows.Next() {
		var c PeriodCoverage
		if err := rows.Scan(&c.TSCode, &c.EndDate, &c.Categories); err != nil {
			return nil, fmt.Errorf("scan period coverage: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
