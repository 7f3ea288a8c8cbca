package commands

import (
	"math"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/strategyconfig"
)

func resetRadarFlags(t *testing.T) {
	t.Helper()
	radarCmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		require.NoError(t, f.Value.Set(f.DefValue))
	})
}

func TestRadarFilters(t *testing.T) {
	strategy, err := strategyconfig.Default()
	require.NoError(t, err)

	tests := []struct {
		name  string
		flags map[string]string
		check func(t *testing.T, minROE, maxPE float64, pool contracts.Pool, pit bool, ocf float64)
	}{
		{
			name:  "defaults",
			flags: nil,
			check: func(t *testing.T, minROE, maxPE float64, pool contracts.Pool, pit bool, ocf float64) {
				assert.Equal(t, 8.0, minROE)
				assert.Equal(t, 30.0, maxPE)
				assert.Equal(t, contracts.PoolIndex, pool)
				assert.False(t, pit)
			},
		},
		{
			name:  "overrides",
			flags: map[string]string{"min-roe": "15", "max-pe": "inf", "pool": "ALL", "pit": "true", "min-ocf": "0.8"},
			check: func(t *testing.T, minROE, maxPE float64, pool contracts.Pool, pit bool, ocf float64) {
				assert.Equal(t, 15.0, minROE)
				assert.True(t, math.IsInf(maxPE, 1))
				assert.Equal(t, contracts.PoolAll, pool)
				assert.True(t, pit)
				assert.Equal(t, 0.8, ocf)
			},
		},
		{
			name:  "preset",
			flags: map[string]string{"preset": "watchlist"},
			check: func(t *testing.T, minROE, maxPE float64, pool contracts.Pool, pit bool, ocf float64) {
				assert.Equal(t, contracts.PoolWatchlist, pool)
				assert.True(t, math.IsInf(maxPE, 1))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetRadarFlags(t)
			for k, v := range tt.flags {
				require.NoError(t, radarCmd.Flags().Set(k, v))
			}

			f, err := radarFilters(radarCmd, strategy)
			require.NoError(t, err)
			tt.check(t, f.MinROE, f.MaxPE, f.Pool, f.PointInTime, f.MinOCFToProfit.Float64)
		})
	}
}

func TestRadarFilters_Rejects(t *testing.T) {
	strategy, err := strategyconfig.Default()
	require.NoError(t, err)

	for _, flags := range []map[string]string{
		{"preset": "nope"},
		{"pool": "nasdaq"},
		{"max-pe": "NaN"},
	} {
		resetRadarFlags(t)
		for k, v := range flags {
			require.NoError(t, radarCmd.Flags().Set(k, v))
		}
		_, err := radarFilters(radarCmd, strategy)
		assert.Error(t, err, "%v", flags)
	}
	resetRadarFlags(t)
}

func TestDerivesData(t *testing.T) {
	assert.True(t, derivesData(contracts.ModeDaily))
	assert.True(t, derivesData(contracts.ModeDerive))
	assert.False(t, derivesData(contracts.ModeSnapshot))
	assert.False(t, derivesData(contracts.ModeAnnouncement))
}
