package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/pkg/logger"
)

// ProgressFunc receives the events of a run in order. It is never called
// concurrently.
type ProgressFunc func(contracts.ProgressEvent)

// Discard drops every event
func Discard(contracts.ProgressEvent) {}

// run tallies one sync run and emits its events
type run struct {
	mu     sync.Mutex
	report contracts.RunReport
	emit   ProgressFunc
	logger *logger.Logger
	now    func() time.Time
	done   bool
}

func newRun(mode contracts.SyncMode, progress ProgressFunc, log *logger.Logger, now func() time.Time) *run {
	if progress == nil {
		progress = Discard
	}
	id := uuid.NewString()
	return &run{
		report: contracts.RunReport{
			RunID:     id,
			Mode:      mode,
			StartedAt: now(),
		},
		emit:   progress,
		logger: log.WithFields(map[string]interface{}{"run_id": id, "mode": string(mode)}),
		now:    now,
	}
}

func (r *run) event(stage string, level contracts.ProgressLevel, step, total int, format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitLocked(contracts.ProgressEvent{
		Stage:   stage,
		Step:    step,
		Total:   total,
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
}

func (r *run) emitLocked(ev contracts.ProgressEvent) {
	if r.done {
		return
	}
	ev.RunID = r.report.RunID
	ev.Mode = r.report.Mode
	ev.Time = r.now()
	r.emit(ev)
}

func (r *run) info(stage, format string, args ...interface{}) {
	r.event(stage, contracts.LevelInfo, 0, 0, format, args...)
}

func (r *run) warn(stage, format string, args ...interface{}) {
	r.logger.WithField("stage", stage).Warnf(format, args...)
	r.event(stage, contracts.LevelWarn, 0, 0, format, args...)
}

func (r *run) succeeded() {
	r.mu.Lock()
	r.report.Succeeded++
	r.mu.Unlock()
}

func (r *run) skipped() {
	r.mu.Lock()
	r.report.Skipped++
	r.mu.Unlock()
}

// failed counts a failed unit, logs it and emits an error event
func (r *run) failed(unit, stage string, err error) {
	r.logger.WithError(err).WithFields(map[string]interface{}{
		"unit":  unit,
		"stage": stage,
	}).Warn("Unit failed")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Failed++
	r.report.Failures = append(r.report.Failures, contracts.UnitFailure{
		Unit:  unit,
		Stage: stage,
		Error: err.Error(),
	})
	r.emitLocked(contracts.ProgressEvent{
		Stage:   stage,
		Level:   contracts.LevelError,
		Message: fmt.Sprintf("%s failed: %v", unit, err),
	})
}

// finish closes the run with exactly one final event
func (r *run) finish(err error) *contracts.RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.report.EndedAt = r.now()
	if err != nil {
		r.report.Error = err.Error()
	}

	level := contracts.LevelSuccess
	switch {
	case err != nil:
		level = contracts.LevelError
	case r.report.Failed > 0:
		level = contracts.LevelWarn
	}

	report := r.report
	r.emitLocked(contracts.ProgressEvent{
		Level: level,
		Message: fmt.Sprintf("%s finished: %d succeeded, %d failed, %d skipped in %s",
			report.Mode, report.Succeeded, report.Failed, report.Skipped, report.Duration().Round(time.Millisecond)),
		Final:  true,
		Report: &report,
	})
	r.done = true

	fields := map[string]interface{}{
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
		"duration":  report.Duration(),
	}
	if err != nil {
		r.logger.WithError(err).WithFields(fields).Error("Sync run aborted")
	} else {
		r.logger.WithFields(fields).Info("Sync run completed")
	}
	return &report
}

// Stream runs fn in the background and adapts its progress callback into a
// channel. The channel carries every event up to and including the final one
// and is then closed. Once ctx is done undelivered events are dropped.
func Stream(ctx context.Context, fn func(ctx context.Context, progress ProgressFunc) (*contracts.RunReport, error)) <-chan contracts.ProgressEvent {
	events := make(chan contracts.ProgressEvent, 64)

	go func() {
		defer close(events)
		sawFinal := false
		_, err := fn(ctx, func(ev contracts.ProgressEvent) {
			if ev.Final {
				sawFinal = true
			}
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
		if err != nil && !sawFinal {
			select {
			case events <- contracts.ProgressEvent{
				Level:   contracts.LevelError,
				Message: err.Error(),
				Time:    time.Now(),
				Final:   true,
			}:
			case <-ctx.Done():
			}
		}
	}()

	return events
}
