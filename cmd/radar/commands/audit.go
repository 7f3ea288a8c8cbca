package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/s0_data/quality"
)

var auditJSON bool

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit raw-layer coverage",
	Long: `Checks market continuity (bars per universe instrument) and financial
completeness (statement categories per reporting period since SYNC_START_DATE).

Example:
  go run ./cmd/radar audit
  go run ./cmd/radar audit --json`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "print the report as JSON")
}

func runAudit(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	auditor := quality.NewAuditor(quality.NewRepository(a.db.Pool), a.resolver, quality.DefaultConfig(a.cfg.Sync.StartDate), a.log)
	report, err := auditor.Audit(cmd.Context())
	if err != nil {
		return err
	}

	if auditJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	m, f := report.Market, report.Financial
	PrintHeader("Data Audit",
		fmt.Sprintf("Universe  : %d instruments", report.Universe),
		"Since     : "+contracts.FormatDate(a.cfg.Sync.StartDate),
	)

	fmt.Println("  Market continuity")
	fmt.Printf("    With bars : %d\n", m.Instruments)
	fmt.Printf("    Bars      : mean %.1f  min %.0f  p10 %.0f  max %.0f\n", m.MeanBars, m.MinBars, m.P10Bars, m.MaxBars)
	fmt.Printf("    Missing   : %d\n", len(m.Missing))
	if len(m.Missing) > 0 {
		fmt.Printf("      %s\n", joinCodes(m.Missing))
	}
	fmt.Printf("    Sparse    : %d\n", len(m.Sparse))
	for _, s := range m.Sparse {
		fmt.Printf("      %-12s %5d bars  %s ~ %s\n", s.TSCode, s.Bars, contracts.FormatDate(s.First), contracts.FormatDate(s.Last))
	}

	fmt.Println()
	fmt.Println("  Financial completeness")
	fmt.Printf("    Periods   : %d (%d complete, %.1f%%)\n", f.Periods, f.Complete, f.Rate)
	for _, p := range f.Incomplete {
		fmt.Printf("      %-12s %s  %d/4 categories\n", p.TSCode, contracts.FormatDate(p.EndDate), p.Categories)
	}
	PrintSeparator()

	if report.Healthy() {
		PrintSuccess("No gaps found")
	} else {
		PrintWarning("Gaps found. Re-run a vertical backfill for the listed instruments.")
	}
	return nil
}
