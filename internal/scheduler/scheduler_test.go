package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/radar/backend/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
	failures int32
	calls    int32
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }

func (j *stubJob) Run(ctx context.Context) error {
	if atomic.AddInt32(&j.calls, 1) <= j.failures {
		return errors.New("vendor down")
	}
	return nil
}

func newTestScheduler() *Scheduler {
	s := New(logger.Nop())
	s.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return s
}

func TestNew_RetryPolicy(t *testing.T) {
	s := New(logger.Nop())
	assert.Equal(t, 2, s.maxRetries)
	assert.Equal(t, time.Minute, s.retryDelay)
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&stubJob{name: "b", schedule: "0 30 17 * * MON-FRI"}))
	require.NoError(t, s.AddJob(&stubJob{name: "a", schedule: "@daily"}))

	assert.Error(t, s.AddJob(&stubJob{name: "a", schedule: "@daily"}), "duplicate name")
	assert.Error(t, s.AddJob(&stubJob{name: "c", schedule: "not a cron"}))

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))
}

func TestRunJob_Retries(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		wantSuccess  bool
		wantAttempts int
	}{
		{"first try", 0, true, 1},
		{"recovers on last retry", 2, true, 3},
		{"gives up after two retries", 5, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler()
			job := &stubJob{name: "job", schedule: "@hourly", failures: tt.failures}
			require.NoError(t, s.AddJob(job))

			result, err := s.RunJob(context.Background(), "job")
			require.NoError(t, err)

			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantAttempts, result.Attempts)
			assert.Equal(t, int32(tt.wantAttempts), atomic.LoadInt32(&job.calls))
			if !tt.wantSuccess {
				assert.Equal(t, "vendor down", result.Error)
			}
		})
	}
}

func TestRunJob_Unknown(t *testing.T) {
	_, err := newTestScheduler().RunJob(context.Background(), "missing")
	assert.Error(t, err)
}

func TestRunJob_CancelledDuringRetryDelay(t *testing.T) {
	s := New(logger.Nop()).WithRetry(2, time.Hour)
	job := &stubJob{name: "job", schedule: "@hourly", failures: 5}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := s.RunJob(ctx, "job")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Contains(t, result.Error, "deadline")
}

func TestGetJobStats(t *testing.T) {
	s := newTestScheduler().WithRetry(0, 0)
	job := &stubJob{name: "job", schedule: "@hourly", failures: 1}
	require.NoError(t, s.AddJob(job))

	_, _ = s.RunJob(context.Background(), "job")
	_, _ = s.RunJob(context.Background(), "job")

	stats := s.GetJobStats()["job"]
	assert.Equal(t, "@hourly", stats.Schedule)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
	require.NotNil(t, stats.LastSuccess)
	require.NotNil(t, stats.LastFailure)
	assert.False(t, stats.LastSuccess.Before(*stats.LastFailure), "the failed run came first")

	history, err := s.GetJobHistory("job")
	require.NoError(t, err)
	require.Len(t, history.Results, 2)
	assert.False(t, history.Results[0].Success)
}

func TestJobHistory_Bounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+5; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(3))
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
}
