package s0_data

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/radar/backend/internal/contracts"
)

// RunRepository implements contracts.RunRepository over sync_runs
type RunRepository struct {
	pool *pgxpool.Pool
}

var _ contracts.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new run repository
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// SaveRun records a finished run
func (r *RunRepository) SaveRun(ctx context.Context, report *contracts.RunReport) error {
	failures := report.Failures
	if failures == nil {
		failures = []contracts.UnitFailure{}
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}

	query := `
		INSERT INTO sync_runs (run_id, mode, started_at, finished_at, succeeded, failed, skipped, failures, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			succeeded = EXCLUDED.succeeded,
			failed = EXCLUDED.failed,
			skipped = EXCLUDED.skipped,
			failures = EXCLUDED.failures,
			error = EXCLUDED.error
	`
	_, err = r.pool.Exec(ctx, query,
		report.RunID, string(report.Mode), report.StartedAt, report.EndedAt,
		report.Succeeded, report.Failed, report.Skipped, failuresJSON, report.Error,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", report.RunID, err)
	}
	return nil
}

// RecentRuns returns the newest runs first
func (r *RunRepository) RecentRuns(ctx context.Context, limit int) ([]contracts.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT run_id::text, mode, started_at, finished_at, succeeded, failed, skipped, failures, error
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var reports []contracts.RunReport
	for rows.Next() {
		var rep contracts.RunReport
		var mode string
		var failures []byte
		if err := rows.Scan(&rep.RunID, &mode, &rep.StartedAt, &rep.EndedAt,
			&rep.Succeeded, &rep.Failed, &rep.Skipped, &failures, &rep.Error); err != nil {
			return nil, err
		}
		rep.Mode = contracts.SyncMode(mode)
		if err := json.Unmarshal(failures, &rep.Failures); err != nil {
			return nil, fmt.Errorf("unmarshal failures: %w", err)
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}
