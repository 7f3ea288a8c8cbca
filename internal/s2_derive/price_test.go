package s2_derive

import (
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/radar/backend/internal/contracts"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func series(n int, close func(i int) float64, factor func(i int) (float64, bool)) ([]contracts.RawBar, []contracts.AdjustmentFactor) {
	bars := make([]contracts.RawBar, 0, n)
	var factors []contracts.AdjustmentFactor
	for i := 0; i < n; i++ {
		d := base.AddDate(0, 0, i)
		bars = append(bars, contracts.RawBar{TSCode: "X", TradeDate: d, Close: close(i)})
		if f, ok := factor(i); ok {
			factors = append(factors, contracts.AdjustmentFactor{TSCode: "X", TradeDate: d, Factor: f})
		}
	}
	return bars, factors
}

func constant(v float64) func(int) (float64, bool) {
	return func(int) (float64, bool) { return v, true }
}

func TestComputeIndicators_ConstantFactorKeepsClose(t *testing.T) {
	bars, factors := series(30, func(i int) float64 { return 10.37 + float64(i)*0.11 }, constant(3.217))

	rows, err := ComputeIndicators(bars, factors, nil)
	require.NoError(t, err)
	require.Len(t, rows, 30)

	for i, row := range rows {
		require.True(t, row.CloseQFQ.Valid)
		assert.Equal(t, Round(bars[i].Close), row.CloseQFQ.Float64, "bar %d", i)
	}
}

func TestComputeIndicators_NormalizesToLatestFactor(t *testing.T) {
	bars, factors := series(4, func(int) float64 { return 10 }, func(i int) (float64, bool) {
		if i < 2 {
			return 1, true
		}
		return 2, true
	})

	rows, err := ComputeIndicators(bars, factors, nil)
	require.NoError(t, err)

	assert.Equal(t, 5.0, rows[0].CloseQFQ.Float64)
	assert.Equal(t, 5.0, rows[1].CloseQFQ.Float64)
	assert.Equal(t, 10.0, rows[2].CloseQFQ.Float64)
	assert.Equal(t, 10.0, rows[3].CloseQFQ.Float64)
}

func TestComputeIndicators_ForwardFillNeverBackFill(t *testing.T) {
	bars, factors := series(5, func(int) float64 { return 10 }, func(i int) (float64, bool) {
		switch i {
		case 1:
			return 1, true
		case 3:
			return 2, true
		}
		return 0, false
	})

	rows, err := ComputeIndicators(bars, factors, nil)
	require.NoError(t, err)

	assert.False(t, rows[0].CloseQFQ.Valid, "no factor known yet")
	assert.Equal(t, 5.0, rows[1].CloseQFQ.Float64)
	assert.Equal(t, 5.0, rows[2].CloseQFQ.Float64, "carried forward")
	assert.Equal(t, 10.0, rows[3].CloseQFQ.Float64)
	assert.Equal(t, 10.0, rows[4].CloseQFQ.Float64)
}

func TestComputeIndicators_MA20Window(t *testing.T) {
	tests := []struct {
		name string
		n    int
	}{
		{"shorter than window", 19},
		{"exactly window", 20},
		{"longer than window", 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars, factors := series(tt.n, func(i int) float64 { return float64(i + 1) }, constant(1))
			rows, err := ComputeIndicators(bars, factors, nil)
			require.NoError(t, err)

			for i, row := range rows {
				if i < 19 {
					assert.False(t, row.MA20.Valid, "bar %d", i+1)
					continue
				}
				require.True(t, row.MA20.Valid, "bar %d", i+1)
				// mean of (i-18)..(i+1)
				assert.Equal(t, float64(i)-8.5, row.MA20.Float64, "bar %d", i+1)
			}
			for _, row := range rows {
				assert.False(t, row.MA850.Valid)
			}
		})
	}
}

func TestComputeIndicators_MAStartsAfterFirstFactor(t *testing.T) {
	bars, factors := series(25, func(int) float64 { return 10 }, func(i int) (float64, bool) {
		return 1, i >= 3
	})

	rows, err := ComputeIndicators(bars, factors, nil)
	require.NoError(t, err)

	// first adjusted close is bar index 3, so 20 observations end at index 22
	assert.False(t, rows[21].MA20.Valid)
	assert.True(t, rows[22].MA20.Valid)
	assert.Equal(t, 10.0, rows[24].MA20.Float64)
}

func TestComputeIndicators_CarriesValuation(t *testing.T) {
	bars, factors := series(2, func(int) float64 { return 10 }, constant(1))
	basics := []contracts.DailyBasic{
		{TSCode: "X", TradeDate: base, PETTM: null.FloatFrom(12.345678), PB: null.FloatFrom(1.5), TotalMV: null.FloatFrom(2e6)},
	}

	rows, err := ComputeIndicators(bars, factors, basics)
	require.NoError(t, err)

	assert.Equal(t, 12.3457, rows[0].PETTM.Float64)
	assert.Equal(t, 1.5, rows[0].PB.Float64)
	assert.False(t, rows[0].TurnoverRate.Valid)
	assert.False(t, rows[1].PETTM.Valid)
}

func TestComputeIndicators_Skips(t *testing.T) {
	_, err := ComputeIndicators(nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoBars)

	bars, _ := series(3, func(int) float64 { return 10 }, constant(1))
	_, err = ComputeIndicators(bars, nil, nil)
	assert.ErrorIs(t, err, ErrNoFactors)

	// factors only after the last bar never cover it
	late := []contracts.AdjustmentFactor{{TSCode: "X", TradeDate: base.AddDate(0, 1, 0), Factor: 1}}
	_, err = ComputeIndicators(bars, late, nil)
	assert.ErrorIs(t, err, ErrNoFactors)
}

func TestMovingAverage_ShortSeriesIsNull(t *testing.T) {
	out := movingAverage([]float64{1, 2, 3}, 20)
	require.Len(t, out, 3)
	for _, v := range out {
		assert.False(t, v.Valid)
	}
}
