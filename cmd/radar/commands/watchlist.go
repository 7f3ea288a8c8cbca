package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/pipeline"
)

// watchlistCmd represents the watchlist command
var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Manage the watchlist",
	Long: `Watchlist entries join the index constituents in the tracked universe.

Example:
  go run ./cmd/radar watchlist add 000001.SZ --group banks --backfill
  go run ./cmd/radar watchlist remove 000001.SZ
  go run ./cmd/radar watchlist list`,
}

var (
	watchGroup    string
	watchWeight   float64
	watchBackfill bool
)

var (
	watchlistAddCmd = &cobra.Command{
		Use:   "add <ts_code>",
		Short: "Add or update an entry",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatchlistAdd,
	}

	watchlistRemoveCmd = &cobra.Command{
		Use:   "remove <ts_code>",
		Short: "Remove an entry",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatchlistRemove,
	}

	watchlistListCmd = &cobra.Command{
		Use:   "list",
		Short: "List entries",
		Args:  cobra.NoArgs,
		RunE:  runWatchlistList,
	}
)

func init() {
	rootCmd.AddCommand(watchlistCmd)
	watchlistCmd.AddCommand(watchlistAddCmd, watchlistRemoveCmd, watchlistListCmd)

	watchlistAddCmd.Flags().StringVar(&watchGroup, "group", contracts.DefaultWatchlistGroup, "group name")
	watchlistAddCmd.Flags().Float64Var(&watchWeight, "weight", 1, "weight")
	watchlistAddCmd.Flags().BoolVar(&watchBackfill, "backfill", false, "backfill the instrument right away")
}

func normalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func runWatchlistAdd(cmd *cobra.Command, args []string) error {
	code := normalizeCode(args[0])
	if watchWeight < 0 {
		return fmt.Errorf("weight must not be negative")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	entry := contracts.WatchlistEntry{TSCode: code, GroupName: watchGroup, Weight: watchWeight}
	if err := a.repo.Instruments.AddWatchlist(ctx, entry); err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("Added %s to group %s", code, watchGroup))

	if !watchBackfill {
		return nil
	}
	return streamRun(ctx, a, func(ctx context.Context, progress pipeline.ProgressFunc) (*contracts.RunReport, error) {
		return a.pipeline.VerticalBackfill(ctx, []string{code}, progress)
	}, true)
}

func runWatchlistRemove(cmd *cobra.Command, args []string) error {
	code := normalizeCode(args[0])

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.repo.Instruments.RemoveWatchlist(cmd.Context(), code)
	if err != nil {
		return err
	}
	if !removed {
		PrintWarning(code + " is not on the watchlist")
		return nil
	}
	PrintSuccess("Removed " + code)
	return nil
}

func runWatchlistList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.repo.Instruments.ListWatchlist(cmd.Context())
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("Watchlist (%d)", len(entries)))
	for _, e := range entries {
		fmt.Printf("  %-12s %-12s %6.2f  %s\n", e.TSCode, e.GroupName, e.Weight, e.AddedAt.Format("2006-01-02"))
	}
	PrintSeparator()
	return nil
}
