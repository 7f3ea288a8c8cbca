package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/pkg/database"
)

// MarketRepository implements contracts.RawMarketRepository
// ⭐ SSOT: ODS market tables are written only here
type MarketRepository struct {
	pool *pgxpool.Pool
}

var _ contracts.RawMarketRepository = (*MarketRepository)(nil)

// NewMarketRepository creates a new market repository
func NewMarketRepository(pool *pgxpool.Pool) *MarketRepository {
	return &MarketRepository{pool: pool}
}

const (
	upsertBarSQL = `
		INSERT INTO ods_market_daily (ts_code, trade_date, open, high, low, close, pre_close, change, pct_chg, vol, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (ts_code, trade_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			pre_close = EXCLUDED.pre_close,
			change = EXCLUDED.change,
			pct_chg = EXCLUDED.pct_chg,
			vol = EXCLUDED.vol,
			amount = EXCLUDED.amount
	`
	upsertFactorSQL = `
		INSERT INTO ods_adj_factor (ts_code, trade_date, adj_factor)
		VALUES ($1, $2, $3)
		ON CONFLICT (ts_code, trade_date) DO UPDATE SET adj_factor = EXCLUDED.adj_factor
	`
	upsertBasicSQL = `
		INSERT INTO ods_daily_basic (ts_code, trade_date, pe_ttm, pb, total_mv, turnover_rate)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ts_code, trade_date) DO UPDATE SET
			pe_ttm = EXCLUDED.pe_ttm,
			pb = EXCLUDED.pb,
			total_mv = EXCLUDED.total_mv,
			turnover_rate = EXCLUDED.turnover_rate
	`
)

func queueBars(batch *pgx.Batch, bars []contracts.RawBar) {
	for _, b := range bars {
		batch.Queue(upsertBarSQL, b.TSCode, b.TradeDate, b.Open, b.High, b.Low, b.Close,
			b.PreClose, b.Change, b.PctChg, b.Vol, b.Amount)
	}
}

func queueFactors(batch *pgx.Batch, factors []contracts.AdjustmentFactor) {
	for _, f := range factors {
		batch.Queue(upsertFactorSQL, f.TSCode, f.TradeDate, f.Factor)
	}
}

func queueBasics(batch *pgx.Batch, basics []contracts.DailyBasic) {
	for _, b := range basics {
		batch.Queue(upsertBasicSQL, b.TSCode, b.TradeDate, b.PETTM, b.PB, b.TotalMV, b.TurnoverRate)
	}
}

func (r *MarketRepository) saveBatch(ctx context.Context, what string, fill func(*pgx.Batch)) error {
	batch := &pgx.Batch{}
	fill(batch)
	if batch.Len() == 0 {
		return nil
	}
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := database.ExecBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("save %s: %w", what, err)
		}
		return nil
	})
}

// SaveBars upserts daily bars
func (r *MarketRepository) SaveBars(ctx context.Context, bars []contracts.RawBar) error {
	return r.saveBatch(ctx, "bars", func(b *pgx.Batch) { queueBars(b, bars) })
}

// SaveFactors upserts adjustment factors
func (r *MarketRepository) SaveFactors(ctx context.Context, factors []contracts.AdjustmentFactor) error {
	return r.saveBatch(ctx, "adj factors", func(b *pgx.Batch) { queueFactors(b, factors) })
}

// SaveDailyBasics upserts daily valuation rows
func (r *MarketRepository) SaveDailyBasics(ctx context.Context, basics []contracts.DailyBasic) error {
	return r.saveBatch(ctx, "daily basics", func(b *pgx.Batch) { queueBasics(b, basics) })
}

// SaveSnapshot writes one date's three feeds atomically
func (r *MarketRepository) SaveSnapshot(ctx context.Context, bars []contracts.RawBar, factors []contracts.AdjustmentFactor, basics []contracts.DailyBasic) error {
	return r.saveBatch(ctx, "snapshot", func(b *pgx.Batch) {
		queueBars(b, bars)
		queueFactors(b, factors)
		queueBasics(b, basics)
	})
}

// LatestTradeDate returns the newest bar date
func (r *MarketRepository) LatestTradeDate(ctx context.Context) (time.Time, bool, error) {
	var latest null.Time
	if err := r.pool.QueryRow(ctx, `SELECT MAX(trade_date) FROM ods_market_daily`).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("latest trade date: %w", err)
	}
	return latest.Time, latest.Valid, nil
}

// BarsByCode returns one instrument's bars in date order
func (r *MarketRepository) BarsByCode(ctx context.Context, code string) ([]contracts.RawBar, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ts_code, trade_date,
		       COALESCE(open, 0), COALESCE(high, 0), COALESCE(low, 0), COALESCE(close, 0),
		       COALESCE(pre_close, 0), COALESCE(change, 0), COALESCE(pct_chg, 0),
		       COALESCE(vol, 0), COALESCE(amount, 0)
		FROM ods_market_daily
		WHERE ts_code = $1
		ORDER BY trade_date ASC
	`, code)
	if err != nil {
		return nil, fmt.Errorf("query bars %s: %w", code, err)
	}
	defer rows.Close()

	var bars []contracts.RawBar
	for rows.Next() {
		var b contracts.RawBar
		if err := rows.Scan(&b.TSCode, &b.TradeDate, &b.Open, &b.High, &b.Low, &b.Close,
			&b.PreClose, &b.Change, &b.PctChg, &b.Vol, &b.Amount); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// FactorsByCode returns one instrument's adjustment factors in date order
func (r *MarketRepository) FactorsByCode(ctx context.Context, code string) ([]contracts.AdjustmentFactor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ts_code, trade_date, adj_factor
		FROM ods_adj_factor
		WHERE ts_code = $1
		ORDER BY trade_date ASC
	`, code)
	if err != nil {
		return nil, fmt.Errorf("query factors %s: %w", code, err)
	}
	defer rows.Close()

	var factors []contracts.AdjustmentFactor
	for rows.Next() {
		var f contracts.AdjustmentFactor
		if err := rows.Scan(&f.TSCode, &f.TradeDate, &f.Factor); err != nil {
			return nil, err
		}
		factors = append(factors, f)
	}
	return factors, rows.Err()
}

// DailyBasicsByCode returns one instrument's valuation rows in date order
func (r *MarketRepository) DailyBasicsByCode(ctx context.Context, code string) ([]contracts.DailyBasic, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ts_code, trade_date, pe_ttm, pb, total_mv, turnover_rate
		FROM ods_daily_basic
		WHERE ts_code = $1
		ORDER BY trade_date ASC
	`, code)
	if err != nil {
		return nil, fmt.Errorf("query daily basics %s: %w", code, err)
	}
	defer rows.Close()

	var basics []contracts.DailyBasic
	for rows.Next() {
		var b contracts.DailyBasic
		if err := rows.Scan(&b.TSCode, &b.TradeDate, &b.PETTM, &b.PB, &b.TotalMV, &b.TurnoverRate); err != nil {
			return nil, err
		}
		basics = append(basics, b)
	}
	return basics, rows.Err()
}
