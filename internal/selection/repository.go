package selection

import (
	"context"
	"fmt"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/radar/backend/internal/contracts"
)

// Repository reads the derived layer for screening
// ⭐ SSOT: radar SQL lives only here
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new selection repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AsOfDate returns the newest trade_date of the derived indicators
func (r *Repository) AsOfDate(ctx context.Context) (time.Time, bool, error) {
	var latest null.Time
	if err := r.pool.QueryRow(ctx, `SELECT MAX(trade_date) FROM dws_market_indicators`).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query as-of date: %w", err)
	}
	return latest.Time, latest.Valid, nil
}

const snapshotQuery = `
	SELECT
		b.ts_code, b.name, b.industry, i.trade_date,
		i.close_qfq, i.ma_20, i.pe_ttm, i.pb, i.total_mv, m.pct_chg,
		f.end_date, f.ann_date, f.roe, f.debt_to_assets,
		f.ocf_to_profit, f.toxic_asset_ratio, f.goodwill_ratio
	FROM stock_basic b
	JOIN dws_market_indicators i ON i.ts_code = b.ts_code
	LEFT JOIN ods_market_daily m ON m.ts_code = i.ts_code AND m.trade_date = i.trade_date
	LEFT JOIN (
		SELECT DISTINCT ON (ts_code)
			ts_code, end_date, ann_date, roe, debt_to_assets,
			ocf_to_profit, toxic_asset_ratio, goodwill_ratio
		FROM dws_finance_std
		WHERE NOT $3::boolean OR ann_date <= $1
		ORDER BY ts_code, end_date DESC
	) f ON f.ts_code = b.ts_code
	WHERE i.trade_date = $1
	  AND (
		$2::text = 'all'
		OR ($2::text = 'index' AND b.is_index_member)
		OR ($2::text = 'watchlist' AND b.ts_code IN (SELECT ts_code FROM watchlist))
	  )
	ORDER BY b.ts_code
`

// Snapshot joins instrument metadata, the indicator row at asOf, that day's
// raw percent change and the latest standardized statement per instrument.
// With pointInTime only statements announced by asOf are eligible.
func (r *Repository) Snapshot(ctx context.Context, asOf time.Time, pool contracts.Pool, pointInTime bool) ([]Snapshot, error) {
	rows, err := r.pool.Query(ctx, snapshotQuery, asOf, string(pool), pointInTime)
	if err != nil {
		return nil, fmt.Errorf("failed to query radar snapshot: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(
			&s.TSCode, &s.Name, &s.Industry, &s.TradeDate,
			&s.CloseQFQ, &s.MA20, &s.PETTM, &s.PB, &s.TotalMV, &s.PctChg,
			&s.LastReport, &s.AnnDate, &s.ROE, &s.DebtToAssets,
			&s.OCFToProfit, &s.ToxicAssetRatio, &s.GoodwillRatio,
		); err != nil {
			return nil, fmt.Errorf("failed to scan radar row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
