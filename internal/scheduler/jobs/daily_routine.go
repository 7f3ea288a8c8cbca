package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/pipeline"
	"github.com/wonny/radar/backend/pkg/logger"
)

// DailyRunner runs the end-of-day routine
type DailyRunner interface {
	DailyRoutine(ctx context.Context, today time.Time, progress pipeline.ProgressFunc) (*contracts.RunReport, error)
}

// DailyRoutineJob runs the daily sync after the close
// ⭐ SSOT: the end-of-day sync schedule lives in this job only
type DailyRoutineJob struct {
	runner DailyRunner
	logger *logger.Logger
	now    func() time.Time
}

// NewDailyRoutineJob creates a new daily routine job
func NewDailyRoutineJob(runner DailyRunner, log *logger.Logger) *DailyRoutineJob {
	return &DailyRoutineJob{
		runner: runner,
		logger: log.WithField("job", "daily_routine"),
		now:    time.Now,
	}
}

// Name returns the job name
func (j *DailyRoutineJob) Name() string {
	return "daily_routine"
}

// Schedule returns the cron schedule (weekdays 17:30, after the vendor
// publishes the day's tables)
func (j *DailyRoutineJob) Schedule() string {
	return "0 30 17 * * MON-FRI"
}

// Run executes the daily routine for today. Failed units are reported but
// do not fail the job; only an aborted run is retried.
func (j *DailyRoutineJob) Run(ctx context.Context) error {
	report, err := j.runner.DailyRoutine(ctx, j.now(), nil)
	if err != nil {
		return fmt.Errorf("daily routine: %w", err)
	}

	log := j.logger.WithFields(map[string]interface{}{
		"run_id":    report.RunID,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
	})
	if report.Failed > 0 {
		log.WithField("units", report.FailedUnits()).Warn("Daily routine finished with failed units")
		return nil
	}
	log.Info("Daily routine finished")
	return nil
}
