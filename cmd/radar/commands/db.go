package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/radar/backend/pkg/config"
	"github.com/wonny/radar/backend/pkg/database"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the warehouse schema",
	Long: `Example:
  go run ./cmd/radar db migrate
  go run ./cmd/radar db status
  go run ./cmd/radar db reset --force`,
}

var dbResetForce bool

var (
	dbMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			PrintSuccess("Schema is up to date")
			return nil
		},
	}

	dbResetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate every table (destroys all data)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !dbResetForce {
				return fmt.Errorf("reset drops every table; pass --force to confirm")
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Reset(cmd.Context()); err != nil {
				return err
			}
			PrintSuccess("Database reset")
			return nil
		},
	}

	dbStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Check connectivity and pool usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			status, err := db.HealthCheck(cmd.Context())
			if err != nil {
				return err
			}
			PrintHeader("Database",
				fmt.Sprintf("Healthy   : %t", status.Healthy),
				fmt.Sprintf("Latency   : %s", status.ResponseTime),
				fmt.Sprintf("Conns     : %d total, %d acquired, %d idle", status.TotalConns, status.AcquiredConns, status.IdleConns),
			)
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd, dbResetCmd, dbStatusCmd)
	dbResetCmd.Flags().BoolVar(&dbResetForce, "force", false, "confirm dropping all data")
}

// openDB connects without wiring the rest of the app
func openDB() (*database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return database.New(cfg)
}
