package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/radar/backend/pkg/config"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	db, err := New(&config.Config{Database: config.DatabaseConfig{
		URL:             url,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	}})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{
		"stock_basic", "watchlist", "ods_market_daily", "ods_adj_factor",
		"ods_daily_basic", "ods_finance_report", "dws_market_indicators",
		"dws_finance_std", "sync_runs",
	} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table)
		assert.Contains(t, resetSQL, "DROP TABLE IF EXISTS "+table)
	}
}

func TestMigrateAndHealth(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "migrate must be repeatable")

	status, err := db.HealthCheck(ctx)
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Greater(t, status.TotalConns, int32(0))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))

	code := "TX_TEST.SZ"
	_, _ = db.Pool.Exec(ctx, `DELETE FROM watchlist WHERE ts_code = $1`, code)

	boom := errors.New("boom")
	err := WithTx(ctx, db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO watchlist (ts_code) VALUES ($1)`, code); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM watchlist WHERE ts_code = $1`, code).Scan(&count))
	assert.Equal(t, 0, count)
}
