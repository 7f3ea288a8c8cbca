package quality

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/pkg/logger"
)

type fakeSource struct {
	bars    []BarCoverage
	periods []PeriodCoverage
}

func (f *fakeSource) BarCoverage(ctx context.Context) ([]BarCoverage, error) { return f.bars, nil }

func (f *fakeSource) PeriodCoverage(ctx context.Context, since time.Time) ([]PeriodCoverage, error) {
	var out []PeriodCoverage
	for _, p := range f.periods {
		if !p.EndDate.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

type staticResolver struct{ universe contracts.Universe }

func (s staticResolver) Resolve(ctx context.Context) (contracts.Universe, error) { return s.universe, nil }

var since = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

func TestBuildReport_Market(t *testing.T) {
	universe := contracts.NewUniverse("A", "B", "C", "D")
	bars := []BarCoverage{
		{TSCode: "A", Bars: 2000},
		{TSCode: "B", Bars: 50},
		{TSCode: "C", Bars: 1000},
		{TSCode: "Z", Bars: 10}, // outside the universe
	}

	report := BuildReport(universe, bars, nil, DefaultConfig(since))

	assert.Equal(t, 4, report.Universe)
	assert.Equal(t, 3, report.Market.Instruments)
	assert.Equal(t, []string{"D"}, report.Market.Missing)
	require.Len(t, report.Market.Sparse, 1)
	assert.Equal(t, "B", report.Market.Sparse[0].TSCode)
	assert.InDelta(t, 3050.0/3, report.Market.MeanBars, 1e-9)
	assert.Equal(t, 50.0, report.Market.MinBars)
	assert.Equal(t, 2000.0, report.Market.MaxBars)
	assert.Equal(t, 50.0, report.Market.P10Bars)
	assert.False(t, report.Healthy())
}

func TestBuildReport_FinancialCompleteness(t *testing.T) {
	universe := contracts.NewUniverse("A", "B")
	end := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	periods := []PeriodCoverage{
		{TSCode: "A", EndDate: end, Categories: 4},
		{TSCode: "A", EndDate: end.AddDate(0, -3, 0), Categories: 4},
		{TSCode: "B", EndDate: end, Categories: 3},
		{TSCode: "Z", EndDate: end, Categories: 1},
	}

	report := BuildReport(universe, nil, periods, DefaultConfig(since))

	assert.Equal(t, 3, report.Financial.Periods)
	assert.Equal(t, 2, report.Financial.Complete)
	assert.InDelta(t, 66.6667, report.Financial.Rate, 1e-3)
	require.Len(t, report.Financial.Incomplete, 1)
	assert.Equal(t, "B", report.Financial.Incomplete[0].TSCode)
}

func TestBuildReport_Empty(t *testing.T) {
	report := BuildReport(contracts.NewUniverse(), nil, nil, DefaultConfig(since))
	assert.Equal(t, 0, report.Market.Instruments)
	assert.Zero(t, report.Financial.Rate)
	assert.True(t, report.Healthy())
}

func TestAuditor_Audit(t *testing.T) {
	source := &fakeSource{
		bars: []BarCoverage{{TSCode: "A", Bars: 500}},
		periods: []PeriodCoverage{
			{TSCode: "A", EndDate: time.Date(2014, 12, 31, 0, 0, 0, 0, time.UTC), Categories: 2},
			{TSCode: "A", EndDate: time.Date(2016, 12, 31, 0, 0, 0, 0, time.UTC), Categories: 4},
		},
	}

	auditor := NewAuditor(source, staticResolver{contracts.NewUniverse("A")}, DefaultConfig(since), logger.Nop())
	report, err := auditor.Audit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Financial.Periods, "periods before the start date are ignored")
	assert.Equal(t, 100.0, report.Financial.Rate)
	assert.True(t, report.Healthy())
	assert.False(t, report.GeneratedAt.IsZero())
}
