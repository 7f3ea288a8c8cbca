package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/wonny/radar/backend/pkg/config"
	"github.com/wonny/radar/backend/pkg/database"
)

// rowTables lists every table keyed by ts_code
var rowTables = []string{
	"watchlist", "ods_market_daily", "ods_adj_factor", "ods_daily_basic",
	"ods_finance_report", "dws_market_indicators", "dws_finance_std", "stock_basic",
}

// OpenTestDB connects to TEST_DATABASE_URL and applies the schema. The test
// is skipped in -short mode or when the variable is unset.
func OpenTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	db, err := database.New(&config.Config{Database: config.DatabaseConfig{
		URL:             url,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: time.Minute,
	}})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, db.Migrate(ctx))
	return db.Pool
}

// PurgeCodes deletes every row of codes now and again when the test ends
func PurgeCodes(t *testing.T, pool *pgxpool.Pool, codes ...string) {
	t.Helper()
	purge := func() {
		for _, table := range rowTables {
			_, err := pool.Exec(context.Background(), "DELETE FROM "+table+" WHERE ts_code = ANY($1)", codes)
			require.NoError(t, err)
		}
	}
	purge()
	t.Cleanup(purge)
}
