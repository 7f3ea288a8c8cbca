package contracts

import "time"

// SyncMode names a scheduler mode
type SyncMode string

const (
	ModeFullBackfill     SyncMode = "full"
	ModeVerticalBackfill SyncMode = "vertical"
	ModeSnapshot         SyncMode = "snapshot"
	ModeAnnouncement     SyncMode = "announcement"
	ModeDaily            SyncMode = "daily"
	ModeDerive           SyncMode = "derive"
)

// ParseSyncMode validates a mode name
func ParseSyncMode(s string) (SyncMode, bool) {
	switch m := SyncMode(s); m {
	case ModeFullBackfill, ModeVerticalBackfill, ModeSnapshot, ModeAnnouncement, ModeDaily, ModeDerive:
		return m, true
	}
	return "", false
}

// ProgressLevel grades a progress event
type ProgressLevel string

const (
	LevelInfo    ProgressLevel = "info"
	LevelWarn    ProgressLevel = "warn"
	LevelError   ProgressLevel = "error"
	LevelSuccess ProgressLevel = "success"
)

// ProgressEvent is one human-readable status step of a sync run. A run emits
// exactly one event with Final set, and it carries the RunReport.
type ProgressEvent struct {
	RunID   string        `json:"run_id"`
	Mode    SyncMode      `json:"mode"`
	Stage   string        `json:"stage,omitempty"`
	Step    int           `json:"step,omitempty"`
	Total   int           `json:"total,omitempty"`
	Level   ProgressLevel `json:"level"`
	Message string        `json:"message"`
	Time    time.Time     `json:"time"`
	Final   bool          `json:"final,omitempty"`
	Report  *RunReport    `json:"report,omitempty"`
}

// UnitOutcome classifies how one unit of work ended
type UnitOutcome string

const (
	OutcomeSucceeded UnitOutcome = "succeeded"
	OutcomeFailed    UnitOutcome = "failed"
	OutcomeSkipped   UnitOutcome = "skipped"
)

// UnitFailure records one failed unit
type UnitFailure struct {
	Unit  string `json:"unit"`
	Stage string `json:"stage,omitempty"`
	Error string `json:"error"`
}

// RunReport summarizes a finished sync run
type RunReport struct {
	RunID     string        `json:"run_id"`
	Mode      SyncMode      `json:"mode"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Failures  []UnitFailure `json:"failures,omitempty"`
	Error     string        `json:"error,omitempty"` // run-level abort, e.g. cancellation
}

// Duration returns the wall time of the run
func (r *RunReport) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Total returns the number of units the run accounted for
func (r *RunReport) Total() int {
	return r.Succeeded + r.Failed + r.Skipped
}

// FailedUnits returns the ids of failed units in report order
func (r *RunReport) FailedUnits() []string {
	units := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		units = append(units, f.Unit)
	}
	return units
}
