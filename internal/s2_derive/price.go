package s2_derive

import (
	"time"

	"github.com/guregu/null/v6"
	"github.com/markcheno/go-talib"

	"github.com/wonny/radar/backend/internal/contracts"
)

// ComputeIndicators derives one instrument's indicator rows from its full
// bar, factor and valuation history. bars and factors must be in date order.
//
// Factors are left-joined on trade_date and carried forward, never back.
// Bars before the first known factor get a null adjusted close. Moving
// averages exist only once a full window of adjusted closes is available.
func ComputeIndicators(bars []contracts.RawBar, factors []contracts.AdjustmentFactor, basics []contracts.DailyBasic) ([]contracts.MarketIndicator, error) {
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	if len(factors) == 0 {
		return nil, ErrNoFactors
	}

	filled := forwardFill(bars, factors)
	latest := filled[len(filled)-1]
	if !latest.Valid || latest.Float64 == 0 {
		return nil, ErrNoFactors
	}

	basicByDate := make(map[time.Time]contracts.DailyBasic, len(basics))
	for _, b := range basics {
		basicByDate[b.TradeDate] = b
	}

	rows := make([]contracts.MarketIndicator, len(bars))
	qfq := make([]float64, len(bars))
	firstValid := -1
	for i, bar := range bars {
		row := contracts.MarketIndicator{TSCode: bar.TSCode, TradeDate: bar.TradeDate}
		if filled[i].Valid {
			qfq[i] = bar.Close * (filled[i].Float64 / latest.Float64)
			row.CloseQFQ = RoundNull(null.FloatFrom(qfq[i]))
			if firstValid < 0 {
				firstValid = i
			}
		}
		if basic, ok := basicByDate[bar.TradeDate]; ok {
			row.PETTM = RoundNull(basic.PETTM)
			row.PB = RoundNull(basic.PB)
			row.TotalMV = RoundNull(basic.TotalMV)
			row.TurnoverRate = RoundNull(basic.TurnoverRate)
		}
		rows[i] = row
	}

	if firstValid >= 0 {
		series := qfq[firstValid:]
		for _, window := range contracts.MovingAverageWindows {
			for offset, v := range movingAverage(series, window) {
				rows[firstValid+offset].SetMA(window, RoundNull(v))
			}
		}
	}

	return rows, nil
}

// forwardFill aligns factors to bars by trade_date and carries the last
// known factor forward over gaps
func forwardFill(bars []contracts.RawBar, factors []contracts.AdjustmentFactor) []null.Float {
	byDate := make(map[time.Time]float64, len(factors))
	for _, f := range factors {
		byDate[f.TradeDate] = f.Factor
	}

	out := make([]null.Float, len(bars))
	var last null.Float
	for i, bar := range bars {
		if f, ok := byDate[bar.TradeDate]; ok {
			last = null.FloatFrom(f)
		}
		out[i] = last
	}
	return out
}

// movingAverage returns the simple moving average of series over window.
// The first window-1 values are null, and a series shorter than window is
// entirely null.
func movingAverage(series []float64, window int) []null.Float {
	out := make([]null.Float, len(series))
	if window <= 0 || len(series) < window {
		return out
	}

	sma := talib.Sma(series, window)
	for i := window - 1; i < len(series); i++ {
		out[i] = null.FloatFrom(sma[i])
	}
	return out
}
