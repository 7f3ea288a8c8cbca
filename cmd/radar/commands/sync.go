package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/pipeline"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync vendor data into the warehouse",
	Long: `Runs one sync mode and prints its progress.

Modes:
  full       Backfill every universe instrument from SYNC_START_DATE
  vertical   Backfill the given instruments
  snapshot   Full-market tables of one date, kept for the universe
  announce   Re-fetch instruments that disclosed on a date
  daily      Stock list, missing snapshots, announcements, derive
  derive     Recompute the derived layer
  stocks     Refresh the stock list and index membership

Ctrl+C stops the run after the instrument in progress.

Example:
  go run ./cmd/radar sync daily
  go run ./cmd/radar sync vertical 600000.SH 000001.SZ
  go run ./cmd/radar sync snapshot --date 20240105`,
}

var syncDate string

var (
	syncFullCmd = &cobra.Command{
		Use:   "full",
		Short: "Backfill the whole universe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(contracts.ModeFullBackfill, "", nil)
		},
	}

	syncVerticalCmd = &cobra.Command{
		Use:   "vertical <ts_code>...",
		Short: "Backfill specific instruments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(contracts.ModeVerticalBackfill, "", args)
		},
	}

	syncSnapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Snapshot one trade date (default today)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(contracts.ModeSnapshot, syncDate, nil)
		},
	}

	syncAnnounceCmd = &cobra.Command{
		Use:   "announce",
		Short: "Refresh instruments that disclosed on a date (default today)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(contracts.ModeAnnouncement, syncDate, nil)
		},
	}

	syncDailyCmd = &cobra.Command{
		Use:   "daily",
		Short: "Run the end-of-day routine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(contracts.ModeDaily, syncDate, nil)
		},
	}

	syncDeriveCmd = &cobra.Command{
		Use:   "derive [ts_code]...",
		Short: "Recompute the derived layer (default: whole universe)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(contracts.ModeDerive, "", args)
		},
	}

	syncStocksCmd = &cobra.Command{
		Use:   "stocks",
		Short: "Refresh the stock list and index membership",
		Args:  cobra.NoArgs,
		RunE:  runSyncStocks,
	}
)

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncFullCmd, syncVerticalCmd, syncSnapshotCmd, syncAnnounceCmd, syncDailyCmd, syncDeriveCmd, syncStocksCmd)

	for _, c := range []*cobra.Command{syncSnapshotCmd, syncAnnounceCmd, syncDailyCmd} {
		c.Flags().StringVar(&syncDate, "date", "", "trade date YYYYMMDD (default today)")
	}
}

// signalContext is cancelled by Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// derivesData reports whether a mode rewrites the derived layer
func derivesData(mode contracts.SyncMode) bool {
	switch mode {
	case contracts.ModeFullBackfill, contracts.ModeVerticalBackfill, contracts.ModeDaily, contracts.ModeDerive:
		return true
	}
	return false
}

func runSync(mode contracts.SyncMode, dateArg string, codes []string) error {
	var date time.Time
	if dateArg != "" {
		d, err := contracts.ParseDate(dateArg)
		if err != nil {
			return err
		}
		date = d
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	lines := []string{fmt.Sprintf("Mode      : %s", mode)}
	if !date.IsZero() {
		lines = append(lines, "Date      : "+contracts.FormatDate(date))
	}
	if len(codes) > 0 {
		lines = append(lines, "Codes     : "+joinCodes(codes))
	}
	PrintHeader("Sync", lines...)

	return streamRun(ctx, a, func(ctx context.Context, progress pipeline.ProgressFunc) (*contracts.RunReport, error) {
		return a.pipeline.Run(ctx, mode, date, codes, progress)
	}, derivesData(mode))
}

// streamRun prints every event of run and the final report. The printer
// keeps reading after a cancellation so the final event is never lost.
func streamRun(ctx context.Context, a *app, run func(ctx context.Context, progress pipeline.ProgressFunc) (*contracts.RunReport, error), invalidate bool) error {
	events := pipeline.Stream(context.WithoutCancel(ctx), func(_ context.Context, progress pipeline.ProgressFunc) (*contracts.RunReport, error) {
		return run(ctx, progress)
	})

	var final contracts.ProgressEvent
	for ev := range events {
		PrintEvent(ev)
		if ev.Final {
			final = ev
		}
	}

	if final.Report != nil {
		PrintReport(final.Report)
		if invalidate {
			a.invalidateRadar(context.Background())
		}
	}
	if final.Level == contracts.LevelError {
		return fmt.Errorf("sync aborted: %s", final.Message)
	}
	return nil
}

func runSyncStocks(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	res, err := a.resolver.SyncStockList(ctx)
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("Stock list synced: %d instruments, %d index members", res.Instruments, res.IndexMembers))
	if !res.MembersUpdated {
		PrintWarning("Index membership unchanged (no constituents returned)")
	}
	return nil
}
