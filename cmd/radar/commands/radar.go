package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/guregu/null/v6"
	"github.com/spf13/cobra"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/selection"
	"github.com/wonny/radar/backend/internal/strategyconfig"
)

// radarCmd represents the radar command
var radarCmd = &cobra.Command{
	Use:   "radar",
	Short: "Screen the derived layer",
	Long: `Screens the latest derived snapshot. A preset supplies the base
filters and every flag overrides one field. Ceilings accept "inf".

Example:
  go run ./cmd/radar radar
  go run ./cmd/radar radar --preset forensic
  go run ./cmd/radar radar --min-roe 15 --max-pe inf --pool all --pit`,
	Args: cobra.NoArgs,
	RunE: runRadar,
}

var (
	radarPreset string
	radarPool   string
	radarLimit  int
	radarJSON   bool

	radarMinROE, radarMaxPE, radarMaxPB, radarMinMV, radarMaxDebt float64
	radarMinOCF, radarMaxToxic, radarMaxGoodwill                  float64
	radarTrend, radarPIT                                          bool
)

func init() {
	rootCmd.AddCommand(radarCmd)

	f := radarCmd.Flags()
	f.StringVar(&radarPreset, "preset", "", "filter preset from the radar config")
	f.Float64Var(&radarMinROE, "min-roe", 0, "minimum ROE (%)")
	f.Float64Var(&radarMaxPE, "max-pe", 0, "maximum PE TTM")
	f.Float64Var(&radarMaxPB, "max-pb", 0, "maximum PB")
	f.Float64Var(&radarMinMV, "min-mv", 0, "minimum total market value (亿 CNY)")
	f.Float64Var(&radarMaxDebt, "max-debt", 0, "maximum debt to assets (%)")
	f.Float64Var(&radarMinOCF, "min-ocf", 0, "minimum operating cash flow to net profit")
	f.Float64Var(&radarMaxToxic, "max-toxic", 0, "maximum toxic asset ratio")
	f.Float64Var(&radarMaxGoodwill, "max-goodwill", 0, "maximum goodwill ratio")
	f.BoolVar(&radarTrend, "trend", false, "require close above MA20")
	f.StringVar(&radarPool, "pool", "", "index, watchlist or all")
	f.BoolVar(&radarPIT, "pit", false, "only statements announced by the as-of date")
	f.IntVar(&radarLimit, "limit", 50, "rows to print (0 = all)")
	f.BoolVar(&radarJSON, "json", false, "print the result as JSON")
}

// radarFilters builds filters from the preset and the flags that were set
func radarFilters(cmd *cobra.Command, strategy *strategyconfig.Config) (selection.Filters, error) {
	preset, ok := strategy.Preset(radarPreset)
	if !ok {
		return selection.Filters{}, fmt.Errorf("unknown preset %q", radarPreset)
	}
	filters, err := selection.FiltersFromPreset(preset)
	if err != nil {
		return selection.Filters{}, err
	}

	flags := cmd.Flags()
	for name, pair := range map[string][2]*float64{
		"min-roe":  {&filters.MinROE, &radarMinROE},
		"max-pe":   {&filters.MaxPE, &radarMaxPE},
		"max-pb":   {&filters.MaxPB, &radarMaxPB},
		"min-mv":   {&filters.MinMV, &radarMinMV},
		"max-debt": {&filters.MaxDebt, &radarMaxDebt},
	} {
		if flags.Changed(name) {
			*pair[0] = *pair[1]
		}
	}
	for name, pair := range map[string]struct {
		dst *null.Float
		v   float64
	}{
		"min-ocf":      {&filters.MinOCFToProfit, radarMinOCF},
		"max-toxic":    {&filters.MaxToxicRatio, radarMaxToxic},
		"max-goodwill": {&filters.MaxGoodwillRatio, radarMaxGoodwill},
	} {
		if flags.Changed(name) {
			*pair.dst = null.FloatFrom(pair.v)
		}
	}
	if flags.Changed("trend") {
		filters.TrendUp = radarTrend
	}
	if flags.Changed("pit") {
		filters.PointInTime = radarPIT
	}
	if flags.Changed("pool") {
		pool, ok := contracts.ParsePool(radarPool)
		if !ok {
			return selection.Filters{}, fmt.Errorf("invalid pool %q (valid: index, watchlist, all)", radarPool)
		}
		filters.Pool = pool
	}

	return filters, filters.Validate()
}

func runRadar(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	filters, err := radarFilters(cmd, a.strategy)
	if err != nil {
		return err
	}

	result, err := a.radar.Query(cmd.Context(), filters)
	if err != nil {
		return err
	}

	if radarJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.AsOf.IsZero() {
		PrintWarning("Derived layer is empty. Run a sync first.")
		return nil
	}

	PrintHeader("Stock Radar",
		"As of     : "+contracts.FormatDate(result.AsOf),
		fmt.Sprintf("Pool      : %s", filters.Pool),
		fmt.Sprintf("Passed    : %d of %d", len(result.Rows), result.Considered),
		fmt.Sprintf("Rejected  : %v", result.Rejected),
	)

	fmt.Printf("  %-10s %-10s %-8s %7s %7s %6s %9s %6s %6s  %s\n",
		"Code", "Name", "Industry", "ROE%", "PE", "PB", "MV(亿)", "Debt%", "OCF", "Signal")
	PrintSeparator()

	rows := result.Rows
	if radarLimit > 0 && len(rows) > radarLimit {
		rows = rows[:radarLimit]
	}
	for _, r := range rows {
		fmt.Printf("  %-10s %-10s %-8s %7.2f %7s %6s %9.2f %6.1f %6.2f  %s\n",
			r.TSCode, truncate(r.Name, 8), truncate(r.Industry, 6),
			r.ROE, formatFloat(r.PETTM, r.PETTM == selection.MissingValuation), formatFloat(r.PB, r.PB == selection.MissingValuation),
			r.TotalMVY, r.DebtToAssets, r.OCFToProfit, r.Signal)
	}
	if len(rows) < len(result.Rows) {
		fmt.Printf("  ... %d more (use --limit 0)\n", len(result.Rows)-len(rows))
	}
	if result.Cached {
		fmt.Println("  (cached)")
	}
	PrintSeparator()
	return nil
}
