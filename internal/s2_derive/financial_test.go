package s2_derive

import (
	"math/rand"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/radar/backend/internal/contracts"
)

var (
	q4 = time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	q3 = time.Date(2023, 9, 30, 0, 0, 0, 0, time.UTC)
)

func rec(end time.Time, cat contracts.StatementCategory, flag string, ann string, payload map[string]interface{}) contracts.RawFinancialRecord {
	r := contracts.RawFinancialRecord{
		TSCode:     "X",
		EndDate:    end,
		ReportType: contracts.ReportTypeConsolidated,
		UpdateFlag: flag,
		Category:   cat,
		Payload:    payload,
	}
	if ann != "" {
		d, _ := contracts.ParseDate(ann)
		r.AnnDate = null.TimeFrom(d)
	}
	return r
}

func fullQuarter() []contracts.RawFinancialRecord {
	return []contracts.RawFinancialRecord{
		rec(q4, contracts.CategoryIncome, "0", "20240320", map[string]interface{}{"revenue": 1000.0, "n_income_attr_p": 100.0}),
		rec(q4, contracts.CategoryBalance, "0", "20240320", map[string]interface{}{
			"total_assets": 5000.0, "total_liab": 2000.0, "goodwill": 50.0,
			"total_hldr_eqy_exc_min_int": 2500.0, "oth_receiv": 30.0, "prepayment": 20.0,
		}),
		rec(q4, contracts.CategoryCashflow, "0", "20240320", map[string]interface{}{"n_cashflow_act": 150.0}),
		rec(q4, contracts.CategoryIndicator, "0", "20240320", map[string]interface{}{"roe": 12.0, "roe_dt": 11.5, "grossprofit_margin": 35.123456}),
	}
}

func TestStandardize_FullQuarter(t *testing.T) {
	result := Standardize("X", contracts.IndustryGeneral, fullQuarter(), defaultMap(t))
	require.Len(t, result.Records, 1)
	r := result.Records[0]

	assert.Equal(t, q4, r.EndDate)
	assert.Equal(t, 1000.0, r.Revenue.Float64)
	assert.Equal(t, 100.0, r.NetIncome.Float64)
	assert.Equal(t, 150.0, r.OperatingCashFlow.Float64)
	assert.Equal(t, 40.0, r.DebtToAssets.Float64, "derived from liabilities / assets")
	assert.Equal(t, 11.5, r.ROE.Float64, "deducted ROE preferred")
	assert.Equal(t, 35.1235, r.GrossProfitMargin.Float64)
	assert.Equal(t, 1.5, r.OCFToProfit)
	assert.Equal(t, 0.01, r.ToxicAssetRatio)
	assert.Equal(t, 0.02, r.GoodwillRatio)
}

func TestStandardize_ReportedLeverageWins(t *testing.T) {
	records := fullQuarter()
	records[3].Payload["debt_to_assets"] = 55.5

	r := Standardize("X", contracts.IndustryGeneral, records, defaultMap(t)).Records[0]
	assert.Equal(t, 55.5, r.DebtToAssets.Float64)
}

func TestStandardize_FallbackROE(t *testing.T) {
	records := fullQuarter()
	delete(records[3].Payload, "roe_dt")

	r := Standardize("X", contracts.IndustryGeneral, records, defaultMap(t)).Records[0]
	assert.Equal(t, 12.0, r.ROE.Float64)
}

func TestStandardize_DropsRecordsWithoutAnnDate(t *testing.T) {
	records := append(fullQuarter(),
		rec(q3, contracts.CategoryIncome, "0", "", map[string]interface{}{"revenue": 700.0}),
	)

	result := Standardize("X", contracts.IndustryGeneral, records, defaultMap(t))
	assert.Equal(t, 1, result.Dropped)
	for _, r := range result.Records {
		assert.NotEqual(t, q3, r.EndDate)
	}
}

func TestStandardize_OnlyConsolidated(t *testing.T) {
	parent := rec(q3, contracts.CategoryIncome, "0", "20231030", map[string]interface{}{"revenue": 1.0})
	parent.ReportType = contracts.ReportTypeParent

	result := Standardize("X", contracts.IndustryGeneral, []contracts.RawFinancialRecord{parent}, defaultMap(t))
	assert.Empty(t, result.Records)
	assert.Zero(t, result.Considered)
}

func TestStandardize_LatestRevisionWins(t *testing.T) {
	records := append(fullQuarter(),
		rec(q4, contracts.CategoryIncome, "1", "20240425", map[string]interface{}{"revenue": 1100.0, "n_income_attr_p": nil}),
	)

	r := Standardize("X", contracts.IndustryGeneral, records, defaultMap(t)).Records[0]
	assert.Equal(t, 1100.0, r.Revenue.Float64)
	assert.Equal(t, 100.0, r.NetIncome.Float64, "a null revision does not erase a reported value")
	assert.Equal(t, time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC), r.AnnDate, "latest announcement")
}

func TestStandardize_ZeroNetIncome(t *testing.T) {
	records := []contracts.RawFinancialRecord{
		rec(q4, contracts.CategoryIncome, "0", "20240320", map[string]interface{}{"n_income_attr_p": 0.0}),
		rec(q4, contracts.CategoryCashflow, "0", "20240320", map[string]interface{}{"n_cashflow_act": 50.0}),
	}

	r := Standardize("X", contracts.IndustryGeneral, records, defaultMap(t)).Records[0]
	assert.Equal(t, 0.0, r.OCFToProfit)
	assert.Equal(t, 0.0, r.ToxicAssetRatio)
	assert.Equal(t, 0.0, r.GoodwillRatio)
	assert.False(t, r.DebtToAssets.Valid)
}

func TestStandardize_BankRevenue(t *testing.T) {
	records := []contracts.RawFinancialRecord{
		rec(q4, contracts.CategoryIncome, "0", "20240320", map[string]interface{}{
			"int_income": 100.0, "comm_income": 20.0, "n_oth_b_income": 5.0,
		}),
	}

	fm := defaultMap(t)
	r := Standardize("A", fm.ClassOf("Bank"), records, fm).Records[0]
	assert.Equal(t, contracts.IndustryBank, r.IndustryClass)
	assert.Equal(t, 125.0, r.Revenue.Float64)
}

func TestStandardize_IdempotentAndOrderIndependent(t *testing.T) {
	fm := defaultMap(t)
	records := append(fullQuarter(),
		rec(q4, contracts.CategoryIncome, "1", "20240425", map[string]interface{}{"revenue": 1100.0}),
		rec(q3, contracts.CategoryIncome, "0", "20231030", map[string]interface{}{"revenue": 700.0}),
	)

	first := Standardize("X", contracts.IndustryGeneral, records, fm)
	second := Standardize("X", contracts.IndustryGeneral, records, fm)
	assert.Equal(t, first, second)

	shuffled := append([]contracts.RawFinancialRecord(nil), records...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	assert.Equal(t, first, Standardize("X", contracts.IndustryGeneral, shuffled, fm))

	require.Len(t, first.Records, 2)
	assert.True(t, first.Records[0].EndDate.Before(first.Records[1].EndDate))
}
