package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/pipeline"
	"github.com/wonny/radar/backend/internal/s1_universe"
	"github.com/wonny/radar/backend/pkg/logger"
)

type fakeDaily struct {
	report *contracts.RunReport
	err    error
	day    time.Time
}

func (f *fakeDaily) DailyRoutine(ctx context.Context, today time.Time, progress pipeline.ProgressFunc) (*contracts.RunReport, error) {
	f.day = today
	return f.report, f.err
}

type fakeSyncer struct{ err error }

func (f fakeSyncer) SyncStockList(ctx context.Context) (*s1_universe.StockListResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s1_universe.StockListResult{Instruments: 5000, IndexMembers: 800, MembersUpdated: true}, nil
}

func TestSchedules(t *testing.T) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	friday := time.Date(2024, 1, 12, 18, 0, 0, 0, time.Local)

	daily, err := parser.Parse(NewDailyRoutineJob(&fakeDaily{}, logger.Nop()).Schedule())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 17, 30, 0, 0, time.Local), daily.Next(friday), "skips the weekend")

	weekly, err := parser.Parse(NewStockListJob(fakeSyncer{}, logger.Nop()).Schedule())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 8, 0, 0, 0, time.Local), weekly.Next(friday))
}

func TestDailyRoutineJob(t *testing.T) {
	day := time.Date(2024, 1, 10, 17, 30, 0, 0, time.Local)

	tests := []struct {
		name    string
		runner  *fakeDaily
		wantErr bool
	}{
		{"clean run", &fakeDaily{report: &contracts.RunReport{Succeeded: 3}}, false},
		{"failed units do not fail the job", &fakeDaily{report: &contracts.RunReport{
			Succeeded: 2, Failed: 1,
			Failures: []contracts.UnitFailure{{Unit: "X", Stage: "fetch", Error: "boom"}},
		}}, false},
		{"aborted run", &fakeDaily{report: &contracts.RunReport{}, err: context.Canceled}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewDailyRoutineJob(tt.runner, logger.Nop())
			job.now = func() time.Time { return day }

			err := job.Run(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, day, tt.runner.day)
		})
	}
}

func TestStockListJob(t *testing.T) {
	assert.NoError(t, NewStockListJob(fakeSyncer{}, logger.Nop()).Run(context.Background()))

	err := NewStockListJob(fakeSyncer{err: errors.New("vendor down")}, logger.Nop()).Run(context.Background())
	assert.ErrorContains(t, err, "vendor down")
}
