package quality

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/pkg/logger"
)

// BarCoverage is one instrument's bar count and date span
type BarCoverage struct {
	TSCode string    `json:"ts_code"`
	Bars   int       `json:"bars"`
	First  time.Time `json:"first"`
	Last   time.Time `json:"last"`
}

// PeriodCoverage is the number of statement categories present for one period
type PeriodCoverage struct {
	TSCode     string    `json:"ts_code"`
	EndDate    time.Time `json:"end_date"`
	Categories int       `json:"categories"`
}

// Source provides the raw coverage the audit needs
type Source interface {
	BarCoverage(ctx context.Context) ([]BarCoverage, error)
	PeriodCoverage(ctx context.Context, since time.Time) ([]PeriodCoverage, error)
}

// Config holds audit thresholds
type Config struct {
	MinBars    int       `yaml:"min_bars"`    // 100
	Since      time.Time `yaml:"since"`       // financial periods before this are ignored
	SampleSize int       `yaml:"sample_size"` // incomplete periods kept in the report
}

// DefaultConfig returns the standard thresholds
func DefaultConfig(since time.Time) Config {
	return Config{MinBars: 100, Since: since, SampleSize: 20}
}

// MarketAudit summarizes bar continuity across the universe
type MarketAudit struct {
	Instruments int           `json:"instruments"`
	Missing     []string      `json:"missing"` // universe members without any bar
	Sparse      []BarCoverage `json:"sparse"`  // fewer than MinBars
	MeanBars    float64       `json:"mean_bars"`
	MinBars     float64       `json:"min_bars"`
	MaxBars     float64       `json:"max_bars"`
	P10Bars     float64       `json:"p10_bars"`
}

// FinancialAudit summarizes statement completeness
type FinancialAudit struct {
	Periods    int              `json:"periods"`
	Complete   int              `json:"complete"`
	Rate       float64          `json:"rate"` // percent
	Incomplete []PeriodCoverage `json:"incomplete"`
}

// AuditReport is the full data audit
type AuditReport struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Universe    int            `json:"universe"`
	Market      MarketAudit    `json:"market"`
	Financial   FinancialAudit `json:"financial"`
}

// Healthy reports whether nothing was flagged
func (r *AuditReport) Healthy() bool {
	return len(r.Market.Missing) == 0 && len(r.Market.Sparse) == 0 && r.Financial.Complete == r.Financial.Periods
}

// Auditor checks raw-layer coverage for the resolved universe
// ⭐ SSOT: raw-layer health checks
type Auditor struct {
	source   Source
	resolver contracts.UniverseResolver
	config   Config
	logger   *logger.Logger
}

// NewAuditor creates a new Auditor instance
func NewAuditor(source Source, resolver contracts.UniverseResolver, config Config, log *logger.Logger) *Auditor {
	return &Auditor{
		source:   source,
		resolver: resolver,
		config:   config,
		logger:   log.WithField("module", "quality"),
	}
}

// Audit runs market continuity and financial completeness checks
func (a *Auditor) Audit(ctx context.Context) (*AuditReport, error) {
	universe, err := a.resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve universe: %w", err)
	}

	bars, err := a.source.BarCoverage(ctx)
	if err != nil {
		return nil, err
	}
	periods, err := a.source.PeriodCoverage(ctx, a.config.Since)
	if err != nil {
		return nil, err
	}

	report := BuildReport(universe, bars, periods, a.config)
	report.GeneratedAt = time.Now()

	a.logger.WithFields(map[string]interface{}{
		"universe":       report.Universe,
		"sparse":         len(report.Market.Sparse),
		"missing":        len(report.Market.Missing),
		"financial_rate": report.Financial.Rate,
	}).Info("Data audit completed")

	return report, nil
}

// BuildReport computes the audit from coverage rows. Only universe members
// are audited.
func BuildReport(universe contracts.Universe, bars []BarCoverage, periods []PeriodCoverage, cfg Config) *AuditReport {
	report := &AuditReport{Universe: universe.Len()}

	seen := make(map[string]bool, len(bars))
	counts := make([]float64, 0, len(bars))
	for _, b := range bars {
		if !universe.Contains(b.TSCode) {
			continue
		}
		seen[b.TSCode] = true
		counts = append(counts, float64(b.Bars))
		if b.Bars < cfg.MinBars {
			report.Market.Sparse = append(report.Market.Sparse, b)
		}
	}
	for _, code := range universe.Codes() {
		if !seen[code] {
			report.Market.Missing = append(report.Market.Missing, code)
		}
	}

	report.Market.Instruments = len(counts)
	if len(counts) > 0 {
		sort.Float64s(counts)
		report.Market.MeanBars = stat.Mean(counts, nil)
		report.Market.MinBars = floats.Min(counts)
		report.Market.MaxBars = floats.Max(counts)
		report.Market.P10Bars = stat.Quantile(0.1, stat.Empirical, counts, nil)
	}

	required := len(contracts.StatementCategories)
	for _, p := range periods {
		if !universe.Contains(p.TSCode) {
			continue
		}
		report.Financial.Periods++
		if p.Categories >= required {
			report.Financial.Complete++
			continue
		}
		if cfg.SampleSize <= 0 || len(report.Financial.Incomplete) < cfg.SampleSize {
			report.Financial.Incomplete = append(report.Financial.Incomplete, p)
		}
	}
	if report.Financial.Periods > 0 {
		report.Financial.Rate = float64(report.Financial.Complete) / float64(report.Financial.Periods) * 100
	}

	return report
}
