package contracts

import (
	"time"

	"github.com/guregu/null/v6"
)

// MovingAverageWindows is the fixed ordered set of MA windows in trading bars
var MovingAverageWindows = []int{20, 50, 120, 250, 850}

// RawBar is one vendor daily bar
type RawBar struct {
	TSCode    string    `json:"ts_code"`
	TradeDate time.Time `json:"trade_date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	PreClose  float64   `json:"pre_close"`
	Change    float64   `json:"change"`
	PctChg    float64   `json:"pct_chg"`
	Vol       float64   `json:"vol"`    // lots
	Amount    float64   `json:"amount"` // thousand CNY
}

// AdjustmentFactor is the cumulative corporate-action factor of one day
type AdjustmentFactor struct {
	TSCode    string    `json:"ts_code"`
	TradeDate time.Time `json:"trade_date"`
	Factor    float64   `json:"adj_factor"`
}

// DailyBasic carries the vendor's daily valuation metrics
type DailyBasic struct {
	TSCode       string     `json:"ts_code"`
	TradeDate    time.Time  `json:"trade_date"`
	PETTM        null.Float `json:"pe_ttm"`
	PB           null.Float `json:"pb"`
	TotalMV      null.Float `json:"total_mv"` // ten-thousand CNY
	TurnoverRate null.Float `json:"turnover_rate"`
}

// MarketIndicator is one derived row of dws_market_indicators
type MarketIndicator struct {
	TSCode       string     `json:"ts_code"`
	TradeDate    time.Time  `json:"trade_date"`
	CloseQFQ     null.Float `json:"close_qfq"`
	MA20         null.Float `json:"ma_20"`
	MA50         null.Float `json:"ma_50"`
	MA120        null.Float `json:"ma_120"`
	MA250        null.Float `json:"ma_250"`
	MA850        null.Float `json:"ma_850"`
	PETTM        null.Float `json:"pe_ttm"`
	PB           null.Float `json:"pb"`
	TotalMV      null.Float `json:"total_mv"`
	TurnoverRate null.Float `json:"turnover_rate"`
}

// MA returns the moving average for window, or null for an unknown window
func (m *MarketIndicator) MA(window int) null.Float {
	if p := m.maField(window); p != nil {
		return *p
	}
	return null.Float{}
}

// SetMA stores the moving average for window. Unknown windows are ignored.
func (m *MarketIndicator) SetMA(window int, v null.Float) {
	if p := m.maField(window); p != nil {
		*p = v
	}
}

func (m *MarketIndicator) maField(window int) *null.Float {
	switch window {
	case 20:
		return &m.MA20
	case 50:
		return &m.MA50
	case 120:
		return &m.MA120
	case 250:
		return &m.MA250
	case 850:
		return &m.MA850
	}
	return nil
}
