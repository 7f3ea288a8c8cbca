package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "radar",
	Short: "A-share data warehouse and stock radar",
	Long: `Radar Unified CLI

Syncs Tushare Pro market and financial data into PostgreSQL, derives
adjusted indicators and standardized financials, and screens the result.

Usage:
  go run ./cmd/radar [command]

Examples:
  go run ./cmd/radar db migrate
  go run ./cmd/radar sync stocks
  go run ./cmd/radar sync daily
  go run ./cmd/radar radar --min-roe 15 --pool all
  go run ./cmd/radar api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
