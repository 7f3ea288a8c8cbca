package strategyconfig

import (
	"fmt"
	"math"
	"strings"

	"github.com/wonny/radar/backend/internal/contracts"
)

// ValidationError is a fatal configuration defect
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning is a non-fatal recommendation
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	if cfg.Meta.ConfigID == "" {
		return ValidationError{"meta.config_id", "required"}
	}

	if err := ValidatePreset("filters", cfg.Filters); err != nil {
		return err
	}
	for name, p := range cfg.Presets {
		if name == "" || name == "default" {
			return ValidationError{"presets", fmt.Sprintf("reserved preset name %q", name)}
		}
		if err := ValidatePreset("presets."+name, p); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(cfg.Signals))
	for i, rule := range cfg.Signals {
		field := fmt.Sprintf("signals[%d]", i)
		label := strings.TrimSpace(rule.Label)
		if label == "" {
			return ValidationError{field + ".label", "required"}
		}
		if label == "neutral" {
			return ValidationError{field + ".label", "neutral is reserved"}
		}
		if seen[label] {
			return ValidationError{field + ".label", fmt.Sprintf("duplicate label %q", label)}
		}
		seen[label] = true

		if !oneOf(Metrics, rule.Metric) {
			return ValidationError{field + ".metric", fmt.Sprintf("must be one of %v", Metrics)}
		}
		if !oneOf(Ops, rule.Op) {
			return ValidationError{field + ".op", fmt.Sprintf("must be one of %v", Ops)}
		}
		if math.IsNaN(rule.Threshold) || math.IsInf(rule.Threshold, 0) {
			return ValidationError{field + ".threshold", "must be finite"}
		}
	}

	return nil
}

// ValidatePreset checks one set of thresholds
func ValidatePreset(field string, p FilterPreset) error {
	for name, v := range map[string]float64{
		"min_roe":  p.MinROE,
		"max_pe":   p.MaxPE,
		"max_pb":   p.MaxPB,
		"min_mv":   p.MinMV,
		"max_debt": p.MaxDebt,
	} {
		if math.IsNaN(v) {
			return ValidationError{field + "." + name, "must be a number"}
		}
	}

	if p.MaxPE <= 0 {
		return ValidationError{field + ".max_pe", "must be > 0"}
	}
	if p.MaxPB <= 0 {
		return ValidationError{field + ".max_pb", "must be > 0"}
	}
	if p.MinMV < 0 {
		return ValidationError{field + ".min_mv", "must be >= 0"}
	}
	if p.MaxDebt < 0 {
		return ValidationError{field + ".max_debt", "must be >= 0"}
	}

	for name, v := range map[string]*float64{
		"min_ocf_to_profit":  p.MinOCFToProfit,
		"max_toxic_ratio":    p.MaxToxicRatio,
		"max_goodwill_ratio": p.MaxGoodwillRatio,
	} {
		if v != nil && (math.IsNaN(*v) || *v < 0) {
			return ValidationError{field + "." + name, "must be >= 0"}
		}
	}

	if _, ok := contracts.ParsePool(p.Pool); !ok {
		return ValidationError{field + ".pool", "must be index, watchlist or all"}
	}
	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if !cfg.Filters.PointInTime {
		warnings = append(warnings, Warning{
			Code:    "LOOK_AHEAD",
			Message: "point_in_time disabled: statements announced after the as-of date can pass the screen",
		})
	}

	if cfg.Filters.MaxPE > 100 && !math.IsInf(cfg.Filters.MaxPE, 1) {
		warnings = append(warnings, Warning{
			Code:    "WIDE_PE",
			Message: "max_pe > 100: the valuation ceiling barely filters",
		})
	}

	if len(cfg.Signals) == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_SIGNALS",
			Message: "no signal rules: every row is labelled neutral",
		})
	}

	return warnings
}

func oneOf(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
