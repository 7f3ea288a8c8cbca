package s0_data

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/pkg/database"
)

// FinancialRepository implements contracts.RawFinancialRepository
// ⭐ SSOT: vendor statements are stored only here, payloads kept as JSONB
type FinancialRepository struct {
	pool *pgxpool.Pool
}

var _ contracts.RawFinancialRepository = (*FinancialRepository)(nil)

// NewFinancialRepository creates a new financial repository
func NewFinancialRepository(pool *pgxpool.Pool) *FinancialRepository {
	return &FinancialRepository{pool: pool}
}

// SaveFinancials upserts statement snapshots keyed by
// (ts_code, end_date, report_type, update_flag, category). A re-delivered
// snapshot is merged into the stored payload and its null values never
// erase a stored one.
func (r *FinancialRepository) SaveFinancials(ctx context.Context, records []contracts.RawFinancialRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO ods_finance_report (ts_code, end_date, report_type, update_flag, category, ann_date, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ts_code, end_date, report_type, update_flag, category) DO UPDATE SET
			ann_date = COALESCE(EXCLUDED.ann_date, ods_finance_report.ann_date),
			data = ods_finance_report.data || jsonb_strip_nulls(EXCLUDED.data)
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s %s payload: %w", rec.TSCode, rec.Category, err)
		}
		batch.Queue(query, rec.TSCode, rec.EndDate, rec.ReportType, rec.UpdateFlag,
			string(rec.Category), rec.AnnDate, payload)
	}

	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := database.ExecBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("save financials: %w", err)
		}
		return nil
	})
}

// FinancialsByCode returns one instrument's snapshots of a report type.
// An empty reportType returns every type.
func (r *FinancialRepository) FinancialsByCode(ctx context.Context, code string, reportType string) ([]contracts.RawFinancialRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ts_code, end_date, report_type, update_flag, category, ann_date, data
		FROM ods_finance_report
		WHERE ts_code = $1 AND ($2 = '' OR report_type = $2)
		ORDER BY end_date ASC, category ASC, update_flag ASC
	`, code, reportType)
	if err != nil {
		return nil, fmt.Errorf("query financials %s: %w", code, err)
	}
	defer rows.Close()

	var records []contracts.RawFinancialRecord
	for rows.Next() {
		var rec contracts.RawFinancialRecord
		var category string
		var payload []byte
		if err := rows.Scan(&rec.TSCode, &rec.EndDate, &rec.ReportType, &rec.UpdateFlag,
			&category, &rec.AnnDate, &payload); err != nil {
			return nil, err
		}
		rec.Category = contracts.StatementCategory(category)
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", code, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
