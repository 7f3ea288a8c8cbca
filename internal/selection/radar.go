package selection

import (
	"math"
	"sort"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"github.com/wonny/radar/backend/internal/strategyconfig"
)

// MissingValuation replaces a null PE or PB so finite ceilings reject it
const MissingValuation = 999.0

// missingRatio replaces null profitability and leverage figures
const missingRatio = 0.0

// Filter names, in evaluation order. A rejected row is counted against the
// first one it fails.
const (
	FilterPE            = "pe"
	FilterPB            = "pb"
	FilterMarketCap     = "mv"
	FilterROE           = "roe"
	FilterDebt          = "debt"
	FilterOCFToProfit   = "ocf_to_profit"
	FilterToxicRatio    = "toxic_ratio"
	FilterGoodwillRatio = "goodwill_ratio"
	FilterTrend         = "trend"
)

// Snapshot is one instrument's joined as-of row before null defaults
type Snapshot struct {
	TSCode    string
	Name      string
	Industry  string
	TradeDate time.Time

	CloseQFQ null.Float
	MA20     null.Float
	PETTM    null.Float
	PB       null.Float
	TotalMV  null.Float
	PctChg   null.Float

	LastReport      null.Time
	AnnDate         null.Time
	ROE             null.Float
	DebtToAssets    null.Float
	OCFToProfit     null.Float
	ToxicAssetRatio null.Float
	GoodwillRatio   null.Float
}

// Row is one screened instrument with null defaults applied
type Row struct {
	TSCode    string    `json:"ts_code"`
	Name      string    `json:"name"`
	Industry  string    `json:"industry"`
	TradeDate time.Time `json:"trade_date"`

	CloseQFQ null.Float `json:"close_qfq"`
	MA20     null.Float `json:"ma_20"`
	PctChg   null.Float `json:"pct_chg"`
	PETTM    float64    `json:"pe_ttm"`
	PB       float64    `json:"pb"`
	TotalMV  float64    `json:"total_mv"`    // 万 CNY
	TotalMVY float64    `json:"total_mv_yi"` // 亿 CNY, 2 dp

	LastReport      null.Time `json:"last_report"`
	ROE             float64   `json:"roe"`
	DebtToAssets    float64   `json:"debt_to_assets"`
	OCFToProfit     float64   `json:"ocf_to_profit"`
	ToxicAssetRatio float64   `json:"toxic_asset_ratio"`
	GoodwillRatio   float64   `json:"goodwill_ratio"`

	Signal string `json:"signal"`
}

// Result is one radar query
type Result struct {
	AsOf       time.Time      `json:"as_of"`
	Considered int            `json:"considered"`
	Rejected   map[string]int `json:"rejected"`
	Rows       []Row          `json:"rows"`
	Cached     bool           `json:"cached"`
}

// toRow applies the null defaults. Missing profitability and leverage fall
// to 0 and missing multiples to a sentinel the ceilings reject.
func toRow(s Snapshot) Row {
	mv := s.TotalMV.ValueOrZero()
	mvYi, _ := decimal.NewFromFloat(mv / 10000).Round(2).Float64()

	return Row{
		TSCode:          s.TSCode,
		Name:            s.Name,
		Industry:        s.Industry,
		TradeDate:       s.TradeDate,
		CloseQFQ:        s.CloseQFQ,
		MA20:            s.MA20,
		PctChg:          s.PctChg,
		PETTM:           orDefault(s.PETTM, MissingValuation),
		PB:              orDefault(s.PB, MissingValuation),
		TotalMV:         mv,
		TotalMVY:        mvYi,
		LastReport:      s.LastReport,
		ROE:             orDefault(s.ROE, missingRatio),
		DebtToAssets:    orDefault(s.DebtToAssets, missingRatio),
		OCFToProfit:     orDefault(s.OCFToProfit, missingRatio),
		ToxicAssetRatio: orDefault(s.ToxicAssetRatio, missingRatio),
		GoodwillRatio:   orDefault(s.GoodwillRatio, missingRatio),
	}
}

func orDefault(v null.Float, def float64) float64 {
	if !v.Valid || math.IsNaN(v.Float64) {
		return def
	}
	return v.Float64
}

type predicate struct {
	name string
	pass func(r *Row) bool
}

// predicates builds the enabled filters in evaluation order
func predicates(f Filters) []predicate {
	var ps []predicate

	if !math.IsInf(f.MaxPE, 1) {
		ps = append(ps, predicate{FilterPE, func(r *Row) bool { return r.PETTM > 0 && r.PETTM < f.MaxPE }})
	}
	if !math.IsInf(f.MaxPB, 1) {
		ps = append(ps, predicate{FilterPB, func(r *Row) bool { return r.PB < f.MaxPB }})
	}
	if f.MinMV > 0 {
		ps = append(ps, predicate{FilterMarketCap, func(r *Row) bool { return r.TotalMV >= f.MinMV*10000 }})
	}
	if f.MinROE > 0 {
		ps = append(ps, predicate{FilterROE, func(r *Row) bool { return r.ROE >= f.MinROE }})
	}
	if !math.IsInf(f.MaxDebt, 1) {
		ps = append(ps, predicate{FilterDebt, func(r *Row) bool { return r.DebtToAssets <= f.MaxDebt }})
	}
	if f.MinOCFToProfit.Valid {
		floor := f.MinOCFToProfit.Float64
		ps = append(ps, predicate{FilterOCFToProfit, func(r *Row) bool { return r.OCFToProfit >= floor }})
	}
	if f.MaxToxicRatio.Valid {
		ceiling := f.MaxToxicRatio.Float64
		ps = append(ps, predicate{FilterToxicRatio, func(r *Row) bool { return r.ToxicAssetRatio <= ceiling }})
	}
	if f.MaxGoodwillRatio.Valid {
		ceiling := f.MaxGoodwillRatio.Float64
		ps = append(ps, predicate{FilterGoodwillRatio, func(r *Row) bool { return r.GoodwillRatio <= ceiling }})
	}
	if f.TrendUp {
		ps = append(ps, predicate{FilterTrend, func(r *Row) bool {
			return r.CloseQFQ.Valid && r.MA20.Valid && r.CloseQFQ.Float64 > r.MA20.Float64
		}})
	}
	return ps
}

// Screen filters, labels and ranks one as-of snapshot. It is a pure
// function of its inputs.
// ⭐ SSOT: radar filter semantics
func Screen(snapshots []Snapshot, f Filters, rules []strategyconfig.SignalRule) ([]Row, map[string]int) {
	ps := predicates(f)
	rejected := make(map[string]int)
	rows := make([]Row, 0, len(snapshots))

	for _, s := range snapshots {
		row := toRow(s)

		failed := ""
		for _, p := range ps {
			if !p.pass(&row) {
				failed = p.name
				break
			}
		}
		if failed != "" {
			rejected[failed]++
			continue
		}

		row.Signal = Signal(&row, rules)
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ROE != rows[j].ROE {
			return rows[i].ROE > rows[j].ROE
		}
		return rows[i].TSCode < rows[j].TSCode
	})
	return rows, rejected
}
