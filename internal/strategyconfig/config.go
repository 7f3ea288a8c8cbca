package strategyconfig

// Config is the radar screening configuration
type Config struct {
	Meta    Meta                    `yaml:"meta" json:"meta"`
	Filters FilterPreset            `yaml:"filters" json:"filters"`
	Presets map[string]FilterPreset `yaml:"presets" json:"presets"`
	Signals []SignalRule            `yaml:"signals" json:"signals"`
}

// Meta identifies a configuration document
type Meta struct {
	ConfigID string `yaml:"config_id" json:"config_id"`
	Version  string `yaml:"version" json:"version"`
}

// FilterPreset is one set of screening thresholds.
// Ceilings accept +Inf; the optional audit limits are nil when disabled.
type FilterPreset struct {
	MinROE  float64 `yaml:"min_roe" json:"min_roe"`   // %
	MaxPE   float64 `yaml:"max_pe" json:"max_pe"`     // pe_ttm
	MaxPB   float64 `yaml:"max_pb" json:"max_pb"`     // pb
	MinMV   float64 `yaml:"min_mv" json:"min_mv"`     // 亿 CNY
	MaxDebt float64 `yaml:"max_debt" json:"max_debt"` // debt_to_assets %

	MinOCFToProfit   *float64 `yaml:"min_ocf_to_profit,omitempty" json:"min_ocf_to_profit,omitempty"`
	MaxToxicRatio    *float64 `yaml:"max_toxic_ratio,omitempty" json:"max_toxic_ratio,omitempty"`
	MaxGoodwillRatio *float64 `yaml:"max_goodwill_ratio,omitempty" json:"max_goodwill_ratio,omitempty"`

	TrendUp     bool   `yaml:"trend_up" json:"trend_up"`
	Pool        string `yaml:"pool" json:"pool"`
	PointInTime bool   `yaml:"point_in_time" json:"point_in_time"`
}

// SignalRule labels a screened row when Metric Op Threshold holds
type SignalRule struct {
	Label     string  `yaml:"label" json:"label"`
	Metric    string  `yaml:"metric" json:"metric"`
	Op        string  `yaml:"op" json:"op"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// Metrics a signal rule may reference
const (
	MetricROE             = "roe"
	MetricPE              = "pe_ttm"
	MetricPB              = "pb"
	MetricTotalMV         = "total_mv"
	MetricDebtToAssets    = "debt_to_assets"
	MetricOCFToProfit     = "ocf_to_profit"
	MetricToxicAssetRatio = "toxic_asset_ratio"
	MetricGoodwillRatio   = "goodwill_ratio"
	MetricPctChg          = "pct_chg"
)

// Metrics is the closed set of rule metrics
var Metrics = []string{
	MetricROE,
	MetricPE,
	MetricPB,
	MetricTotalMV,
	MetricDebtToAssets,
	MetricOCFToProfit,
	MetricToxicAssetRatio,
	MetricGoodwillRatio,
	MetricPctChg,
}

// Ops is the closed set of rule comparisons
var Ops = []string{">=", ">", "<=", "<"}

// Compare applies op to v and threshold. Unknown ops never match.
func Compare(op string, v, threshold float64) bool {
	switch op {
	case ">=":
		return v >= threshold
	case ">":
		return v > threshold
	case "<=":
		return v <= threshold
	case "<":
		return v < threshold
	}
	return false
}

// Preset returns the named preset, or the default filters for ""
func (c *Config) Preset(name string) (FilterPreset, bool) {
	if name == "" || name == "default" {
		return c.Filters, true
	}
	p, ok := c.Presets[name]
	return p, ok
}
