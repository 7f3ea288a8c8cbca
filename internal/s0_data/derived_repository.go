package s0_data

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/pkg/database"
)

// DerivedRepository implements contracts.DerivedRepository
// ⭐ SSOT: DWS tables are written only here, one instrument per transaction
type DerivedRepository struct {
	pool *pgxpool.Pool
}

var _ contracts.DerivedRepository = (*DerivedRepository)(nil)

// NewDerivedRepository creates a new derived repository
func NewDerivedRepository(pool *pgxpool.Pool) *DerivedRepository {
	return &DerivedRepository{pool: pool}
}

var indicatorColumns = []string{
	"ts_code", "trade_date", "close_qfq",
	"ma_20", "ma_50", "ma_120", "ma_250", "ma_850",
	"pe_ttm", "pb", "total_mv", "turnover_rate",
}

var financialColumns = []string{
	"ts_code", "end_date", "ann_date", "industry_class",
	"revenue", "net_income", "operating_cash_flow", "total_assets", "total_liab",
	"debt_to_assets", "roe", "grossprofit_margin",
	"ocf_to_profit", "toxic_asset_ratio", "goodwill_ratio",
}

// ReplaceIndicators swaps code's indicator rows for rows. Readers see either
// the old set or the new one.
func (r *DerivedRepository) ReplaceIndicators(ctx context.Context, code string, rows []contracts.MarketIndicator) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM dws_market_indicators WHERE ts_code = $1`, code); err != nil {
			return fmt.Errorf("delete indicators %s: %w", code, err)
		}
		if len(rows) == 0 {
			return nil
		}

		_, err := tx.CopyFrom(ctx, pgx.Identifier{"dws_market_indicators"}, indicatorColumns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				m := rows[i]
				return []any{
					m.TSCode, m.TradeDate, m.CloseQFQ.Ptr(),
					m.MA20.Ptr(), m.MA50.Ptr(), m.MA120.Ptr(), m.MA250.Ptr(), m.MA850.Ptr(),
					m.PETTM.Ptr(), m.PB.Ptr(), m.TotalMV.Ptr(), m.TurnoverRate.Ptr(),
				}, nil
			}))
		if err != nil {
			return fmt.Errorf("copy indicators %s: %w", code, err)
		}
		return nil
	})
}

// ReplaceFinancials swaps code's standardized statement rows for rows
func (r *DerivedRepository) ReplaceFinancials(ctx context.Context, code string, rows []contracts.FinancialRecord) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM dws_finance_std WHERE ts_code = $1`, code); err != nil {
			return fmt.Errorf("delete financials %s: %w", code, err)
		}
		if len(rows) == 0 {
			return nil
		}

		_, err := tx.CopyFrom(ctx, pgx.Identifier{"dws_finance_std"}, financialColumns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				f := rows[i]
				return []any{
					f.TSCode, f.EndDate, f.AnnDate, string(f.IndustryClass),
					f.Revenue.Ptr(), f.NetIncome.Ptr(), f.OperatingCashFlow.Ptr(),
					f.TotalAssets.Ptr(), f.TotalLiab.Ptr(),
					f.DebtToAssets.Ptr(), f.ROE.Ptr(), f.GrossProfitMargin.Ptr(),
					f.OCFToProfit, f.ToxicAssetRatio, f.GoodwillRatio,
				}, nil
			}))
		if err != nil {
			return fmt.Errorf("copy financials %s: %w", code, err)
		}
		return nil
	})
}

