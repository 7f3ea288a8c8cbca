package contracts

import (
	"time"

	"github.com/guregu/null/v6"
)

// StatementCategory is one of the four vendor financial statement feeds
type StatementCategory string

const (
	CategoryIncome    StatementCategory = "income"
	CategoryBalance   StatementCategory = "balance"
	CategoryCashflow  StatementCategory = "cashflow"
	CategoryIndicator StatementCategory = "indicator"
)

// StatementCategories lists every category in merge precedence order.
// Later categories overwrite earlier ones when a field appears in both.
var StatementCategories = []StatementCategory{
	CategoryIncome,
	CategoryBalance,
	CategoryCashflow,
	CategoryIndicator,
}

// Precedence returns the merge rank of c, or len(StatementCategories) if unknown
func (c StatementCategory) Precedence() int {
	for i, cat := range StatementCategories {
		if cat == c {
			return i
		}
	}
	return len(StatementCategories)
}

// Report consolidation types as published by the vendor
const (
	ReportTypeConsolidated           = "1"
	ReportTypeParent                 = "6"
	ReportTypeConsolidatedUnadjusted = "11"
)

// RawFinancialRecord is one vendor statement snapshot with an irregular payload
type RawFinancialRecord struct {
	TSCode     string                 `json:"ts_code"`
	EndDate    time.Time              `json:"end_date"`
	ReportType string                 `json:"report_type"`
	UpdateFlag string                 `json:"update_flag"`
	Category   StatementCategory      `json:"category"`
	AnnDate    null.Time              `json:"ann_date"`
	Payload    map[string]interface{} `json:"data"`
}

// IndustryClass selects the extraction strategy for canonical fields
type IndustryClass string

const (
	IndustryGeneral   IndustryClass = "general"
	IndustryBank      IndustryClass = "bank"
	IndustryInsurance IndustryClass = "insurance"
	IndustryBrokerage IndustryClass = "brokerage"
)

// IndustryClasses is the closed set of extraction strategies
var IndustryClasses = []IndustryClass{
	IndustryGeneral,
	IndustryBank,
	IndustryInsurance,
	IndustryBrokerage,
}

// FinancialRecord is one standardized row of dws_finance_std
type FinancialRecord struct {
	TSCode            string        `json:"ts_code"`
	EndDate           time.Time     `json:"end_date"`
	AnnDate           time.Time     `json:"ann_date"`
	IndustryClass     IndustryClass `json:"industry_class"`
	Revenue           null.Float    `json:"revenue"`
	NetIncome         null.Float    `json:"net_income"`
	OperatingCashFlow null.Float    `json:"operating_cash_flow"`
	TotalAssets       null.Float    `json:"total_assets"`
	TotalLiab         null.Float    `json:"total_liab"`
	DebtToAssets      null.Float    `json:"debt_to_assets"`
	ROE               null.Float    `json:"roe"`
	GrossProfitMargin null.Float    `json:"grossprofit_margin"`

	// Audit ratios are never null: a missing or zero denominator yields 0
	OCFToProfit     float64 `json:"ocf_to_profit"`
	ToxicAssetRatio float64 `json:"toxic_asset_ratio"`
	GoodwillRatio   float64 `json:"goodwill_ratio"`
}

// DisclosureEvent is one row of the vendor disclosure calendar
type DisclosureEvent struct {
	TSCode     string    `json:"ts_code"`
	EndDate    time.Time `json:"end_date"`
	ActualDate time.Time `json:"actual_date"`
}
