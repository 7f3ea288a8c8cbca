package contracts

import (
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniverse(t *testing.T) {
	u := NewUniverse("600000.SH", "000001.SZ", "600000.SH", "")

	assert.Equal(t, 2, u.Len())
	assert.Equal(t, []string{"000001.SZ", "600000.SH"}, u.Codes())
	assert.True(t, u.Contains("000001.SZ"))
	assert.False(t, u.Contains("300750.SZ"))
	assert.Equal(t, []string{"600000.SH"}, u.Intersect([]string{"300750.SZ", "600000.SH", "600000.SH"}))

	assert.True(t, NewUniverse().IsEmpty())
}

func TestUniverse_CodesIsACopy(t *testing.T) {
	u := NewUniverse("A", "B")
	codes := u.Codes()
	codes[0] = "Z"
	assert.Equal(t, []string{"A", "B"}, u.Codes())
}

func TestParseAndFormatDate(t *testing.T) {
	d, err := ParseDate("20240105")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, "20240105", FormatDate(d))

	_, err = ParseDate("2024-01-05")
	assert.Error(t, err)

	local := time.Date(2024, 1, 5, 23, 59, 0, 0, time.FixedZone("CST", 8*3600))
	assert.Equal(t, d, Truncate(local))
}

func TestMarketIndicator_MA(t *testing.T) {
	var m MarketIndicator
	for _, w := range MovingAverageWindows {
		m.SetMA(w, null.FloatFrom(float64(w)))
	}
	m.SetMA(7, null.FloatFrom(7))

	assert.Equal(t, 20.0, m.MA20.Float64)
	assert.Equal(t, 850.0, m.MA(850).Float64)
	assert.False(t, m.MA(7).Valid)
}

func TestStatementCategory_Precedence(t *testing.T) {
	assert.Less(t, CategoryIncome.Precedence(), CategoryBalance.Precedence())
	assert.Less(t, CategoryCashflow.Precedence(), CategoryIndicator.Precedence())
	assert.Equal(t, len(StatementCategories), StatementCategory("other").Precedence())
}

func TestParseSyncMode(t *testing.T) {
	m, ok := ParseSyncMode("daily")
	assert.True(t, ok)
	assert.Equal(t, ModeDaily, m)

	_, ok = ParseSyncMode("hourly")
	assert.False(t, ok)
}

func TestRunReport(t *testing.T) {
	start := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	r := RunReport{
		StartedAt: start,
		EndedAt:   start.Add(90 * time.Second),
		Succeeded: 3,
		Failed:    1,
		Skipped:   2,
		Failures:  []UnitFailure{{Unit: "X", Error: "boom"}},
	}

	assert.Equal(t, 6, r.Total())
	assert.Equal(t, 90*time.Second, r.Duration())
	assert.Equal(t, []string{"X"}, r.FailedUnits())
}

func TestParsePool(t *testing.T) {
	tests := []struct {
		in   string
		want Pool
		ok   bool
	}{
		{"index", PoolIndex, true},
		{"Watchlist", PoolWatchlist, true},
		{" ALL ", PoolAll, true},
		{"csi800", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePool(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
