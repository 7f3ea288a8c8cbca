package selection

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/guregu/null/v6"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/strategyconfig"
)

// Filters are the radar thresholds of one query.
// A +Inf ceiling disables that ceiling, a floor at or below 0 disables that
// floor, and a null audit limit is disabled.
type Filters struct {
	MinROE  float64 // %
	MaxPE   float64
	MaxPB   float64
	MinMV   float64 // 亿 CNY, total_mv is stored in 万 CNY
	MaxDebt float64 // %

	MinOCFToProfit   null.Float
	MaxToxicRatio    null.Float
	MaxGoodwillRatio null.Float

	TrendUp bool
	Pool    contracts.Pool

	// PointInTime restricts the financial join to statements announced on
	// or before the as-of date
	PointInTime bool
}

// DefaultFilters returns the stock radar screen
func DefaultFilters() Filters {
	return Filters{
		MinROE:  8,
		MaxPE:   30,
		MaxPB:   3,
		MinMV:   100,
		MaxDebt: 60,
		TrendUp: true,
		Pool:    contracts.PoolIndex,
	}
}

// FiltersFromPreset converts a validated configuration preset
func FiltersFromPreset(p strategyconfig.FilterPreset) (Filters, error) {
	if err := strategyconfig.ValidatePreset("preset", p); err != nil {
		return Filters{}, err
	}
	pool, _ := contracts.ParsePool(p.Pool)

	return Filters{
		MinROE:           p.MinROE,
		MaxPE:            p.MaxPE,
		MaxPB:            p.MaxPB,
		MinMV:            p.MinMV,
		MaxDebt:          p.MaxDebt,
		MinOCFToProfit:   null.FloatFromPtr(p.MinOCFToProfit),
		MaxToxicRatio:    null.FloatFromPtr(p.MaxToxicRatio),
		MaxGoodwillRatio: null.FloatFromPtr(p.MaxGoodwillRatio),
		TrendUp:          p.TrendUp,
		Pool:             pool,
		PointInTime:      p.PointInTime,
	}, nil
}

// Validate rejects thresholds no row could be compared against
func (f Filters) Validate() error {
	for name, v := range map[string]float64{
		"min_roe":  f.MinROE,
		"max_pe":   f.MaxPE,
		"max_pb":   f.MaxPB,
		"min_mv":   f.MinMV,
		"max_debt": f.MaxDebt,
	} {
		if math.IsNaN(v) {
			return fmt.Errorf("filter %s is not a number", name)
		}
	}
	if _, ok := contracts.ParsePool(string(f.Pool)); !ok {
		return fmt.Errorf("unknown pool %q", f.Pool)
	}
	return nil
}

// Fingerprint identifies the filter set in cache keys
func (f Filters) Fingerprint() string {
	s := fmt.Sprintf("%g|%g|%g|%g|%g|%s|%s|%s|%t|%s|%t",
		f.MinROE, f.MaxPE, f.MaxPB, f.MinMV, f.MaxDebt,
		optional(f.MinOCFToProfit), optional(f.MaxToxicRatio), optional(f.MaxGoodwillRatio),
		f.TrendUp, f.Pool, f.PointInTime,
	)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

func optional(v null.Float) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%g", v.Float64)
}
