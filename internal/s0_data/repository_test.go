package s0_data

import (
	"context"
	"testing"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/testutil"
)

func indicatorRows(code string, closes ...float64) []contracts.MarketIndicator {
	rows := make([]contracts.MarketIndicator, len(closes))
	for i, c := range closes {
		rows[i] = contracts.MarketIndicator{
			TSCode:    code,
			TradeDate: testutil.Day("20240102").AddDate(0, 0, i),
			CloseQFQ:  null.FloatFrom(c),
			PETTM:     null.FloatFrom(12),
		}
	}
	return rows
}

func TestDerivedRepository_ReplaceIndicatorsIsIdempotent(t *testing.T) {
	pool := testutil.OpenTestDB(t)
	code := "IT_DERIVED.SZ"
	testutil.PurgeCodes(t, pool, code)

	repo := NewDerivedRepository(pool)
	ctx := context.Background()

	count := func() int {
		var n int
		require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM dws_market_indicators WHERE ts_code = $1`, code).Scan(&n))
		return n
	}

	rows := indicatorRows(code, 10, 11, 12)
	require.NoError(t, repo.ReplaceIndicators(ctx, code, rows))
	require.NoError(t, repo.ReplaceIndicators(ctx, code, rows))
	assert.Equal(t, 3, count(), "replaying the same rows keeps one copy")

	require.NoError(t, repo.ReplaceIndicators(ctx, code, indicatorRows(code, 20, 21)))
	assert.Equal(t, 2, count(), "stale rows are removed")

	var close float64
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT close_qfq FROM dws_market_indicators WHERE ts_code = $1 ORDER BY trade_date LIMIT 1`, code).Scan(&close))
	assert.Equal(t, 20.0, close)

	require.NoError(t, repo.ReplaceIndicators(ctx, code, nil))
	assert.Zero(t, count())
}

func TestFinancialRepository_NullNeverErases(t *testing.T) {
	pool := testutil.OpenTestDB(t)
	code := "IT_FIN.SZ"
	testutil.PurgeCodes(t, pool, code)

	repo := NewFinancialRepository(pool)
	ctx := context.Background()

	record := func(annDate null.Time, payload map[string]interface{}) contracts.RawFinancialRecord {
		return contracts.RawFinancialRecord{
			TSCode:     code,
			EndDate:    testutil.Day("20231231"),
			ReportType: contracts.ReportTypeConsolidated,
			UpdateFlag: "0",
			Category:   contracts.CategoryIncome,
			AnnDate:    annDate,
			Payload:    payload,
		}
	}

	require.NoError(t, repo.SaveFinancials(ctx, []contracts.RawFinancialRecord{
		record(null.TimeFrom(testutil.Day("20240320")), map[string]interface{}{"revenue": 100.0, "n_income_attr_p": 5.0}),
	}))
	require.NoError(t, repo.SaveFinancials(ctx, []contracts.RawFinancialRecord{
		record(null.Time{}, map[string]interface{}{"revenue": nil, "n_income_attr_p": 6.0, "basic_eps": 0.3}),
	}))

	saved, err := repo.FinancialsByCode(ctx, code, "")
	require.NoError(t, err)
	require.Len(t, saved, 1)

	assert.Equal(t, 100.0, saved[0].Payload["revenue"])
	assert.Equal(t, 6.0, saved[0].Payload["n_income_attr_p"])
	assert.Equal(t, 0.3, saved[0].Payload["basic_eps"])
	assert.Equal(t, "20240320", contracts.FormatDate(saved[0].AnnDate.Time))
}

func TestInstrumentRepository_Watchlist(t *testing.T) {
	pool := testutil.OpenTestDB(t)
	code := "IT_WATCH.SZ"
	testutil.PurgeCodes(t, pool, code)

	repo := NewInstrumentRepository(pool)
	ctx := context.Background()

	require.NoError(t, repo.AddWatchlist(ctx, contracts.WatchlistEntry{TSCode: code, Weight: 2}))
	require.NoError(t, repo.AddWatchlist(ctx, contracts.WatchlistEntry{TSCode: code, GroupName: "banks", Weight: 3}))

	codes, err := repo.WatchlistCodes(ctx)
	require.NoError(t, err)
	assert.Contains(t, codes, code)

	entries, err := repo.ListWatchlist(ctx)
	require.NoError(t, err)
	var found *contracts.WatchlistEntry
	for i := range entries {
		if entries[i].TSCode == code {
			found = &entries[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "banks", found.GroupName)
	assert.Equal(t, 3.0, found.Weight)

	removed, err := repo.RemoveWatchlist(ctx, code)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RemoveWatchlist(ctx, code)
	require.NoError(t, err)
	assert.False(t, removed)
}
