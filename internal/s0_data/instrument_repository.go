package s0_data

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/pkg/database"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// InstrumentRepository implements contracts.InstrumentRepository and
// contracts.WatchlistRepository
// ⭐ SSOT: stock_basic and watchlist are written only here
type InstrumentRepository struct {
	pool *pgxpool.Pool
}

var (
	_ contracts.InstrumentRepository = (*InstrumentRepository)(nil)
	_ contracts.WatchlistRepository  = (*InstrumentRepository)(nil)
)

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(pool *pgxpool.Pool) *InstrumentRepository {
	return &InstrumentRepository{pool: pool}
}

// UpsertInstruments writes the master list. is_index_member is left as is.
func (r *InstrumentRepository) UpsertInstruments(ctx context.Context, instruments []contracts.Instrument) error {
	if len(instruments) == 0 {
		return nil
	}

	query := `
		INSERT INTO stock_basic (ts_code, symbol, name, area, industry, market, list_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (ts_code) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			area = EXCLUDED.area,
			industry = EXCLUDED.industry,
			market = EXCLUDED.market,
			list_date = EXCLUDED.list_date,
			updated_at = NOW()
	`

	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, in := range instruments {
			batch.Queue(query, in.TSCode, in.Symbol, in.Name, in.Area, in.Industry, in.Market, in.ListDate)
		}
		if err := database.ExecBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("upsert instruments: %w", err)
		}
		return nil
	})
}

// SetIndexMembers flags exactly codes as index members and clears the rest
func (r *InstrumentRepository) SetIndexMembers(ctx context.Context, codes []string) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE stock_basic SET is_index_member = FALSE WHERE is_index_member`); err != nil {
			return fmt.Errorf("clear index members: %w", err)
		}
		if len(codes) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx,
			`UPDATE stock_basic SET is_index_member = TRUE, updated_at = NOW() WHERE ts_code = ANY($1)`,
			codes,
		); err != nil {
			return fmt.Errorf("set index members: %w", err)
		}
		return nil
	})
}

// IndexMemberCodes returns flagged index members in code order
func (r *InstrumentRepository) IndexMemberCodes(ctx context.Context) ([]string, error) {
	return r.codes(ctx, `SELECT ts_code FROM stock_basic WHERE is_index_member ORDER BY ts_code`)
}

// GetInstrument returns one instrument, ErrNotFound when unknown
func (r *InstrumentRepository) GetInstrument(ctx context.Context, code string) (*contracts.Instrument, error) {
	query := `
		SELECT ts_code, symbol, name, area, industry, market, list_date, is_index_member
		FROM stock_basic
		WHERE ts_code = $1
	`

	var in contracts.Instrument
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&in.TSCode, &in.Symbol, &in.Name, &in.Area, &in.Industry, &in.Market, &in.ListDate, &in.IsIndexMember,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("instrument %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get instrument %s: %w", code, err)
	}
	return &in, nil
}

// AddWatchlist inserts or updates a watchlist entry
func (r *InstrumentRepository) AddWatchlist(ctx context.Context, entry contracts.WatchlistEntry) error {
	code := strings.TrimSpace(entry.TSCode)
	if code == "" {
		return fmt.Errorf("watchlist entry without ts_code")
	}
	group := entry.GroupName
	if group == "" {
		group = contracts.DefaultWatchlistGroup
	}
	weight := entry.Weight
	if weight == 0 {
		weight = 1.0
	}

	query := `
		INSERT INTO watchlist (ts_code, group_name, weight, added_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (ts_code) DO UPDATE SET
			group_name = EXCLUDED.group_name,
			weight = EXCLUDED.weight
	`
	if _, err := r.pool.Exec(ctx, query, code, group, weight); err != nil {
		return fmt.Errorf("add watchlist %s: %w", code, err)
	}
	return nil
}

// RemoveWatchlist deletes an entry and reports whether it existed
func (r *InstrumentRepository) RemoveWatchlist(ctx context.Context, code string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM watchlist WHERE ts_code = $1`, code)
	if err != nil {
		return false, fmt.Errorf("remove watchlist %s: %w", code, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListWatchlist returns every entry, oldest first
func (r *InstrumentRepository) ListWatchlist(ctx context.Context) ([]contracts.WatchlistEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ts_code, group_name, weight, added_at
		FROM watchlist
		ORDER BY added_at, ts_code
	`)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	entries := make([]contracts.WatchlistEntry, 0)
	for rows.Next() {
		var e contracts.WatchlistEntry
		if err := rows.Scan(&e.TSCode, &e.GroupName, &e.Weight, &e.AddedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// WatchlistCodes returns the watched codes in code order
func (r *InstrumentRepository) WatchlistCodes(ctx context.Context) ([]string, error) {
	return r.codes(ctx, `SELECT ts_code FROM watchlist ORDER BY ts_code`)
}

func (r *InstrumentRepository) codes(ctx context.Context, query string) ([]string, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query codes: %w", err)
	}
	defer rows.Close()

	codes := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
