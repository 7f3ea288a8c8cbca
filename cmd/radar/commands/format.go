package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/radar/backend/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common formatting shared by every command
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a titled block with key/value lines
func PrintHeader(title string, lines ...string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	if len(lines) > 0 {
		PrintSeparator()
		for _, l := range lines {
			fmt.Printf("  %s\n", l)
		}
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintEvent prints one sync progress event
func PrintEvent(ev contracts.ProgressEvent) {
	if ev.Final {
		return
	}
	tag := ev.Stage
	if tag == "" {
		tag = string(ev.Mode)
	}
	switch ev.Level {
	case contracts.LevelWarn:
		fmt.Printf("⚠️  [%s] %s\n", tag, ev.Message)
	case contracts.LevelError:
		fmt.Printf("❌ [%s] %s\n", tag, ev.Message)
	default:
		fmt.Printf("[%s] %s\n", tag, ev.Message)
	}
}

// PrintReport prints the summary of a finished run
func PrintReport(report *contracts.RunReport) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  Run %s (%s)\n", report.RunID, report.Mode)
	PrintSeparator()
	fmt.Printf("  Succeeded : %d\n", report.Succeeded)
	fmt.Printf("  Failed    : %d\n", report.Failed)
	fmt.Printf("  Skipped   : %d\n", report.Skipped)
	fmt.Printf("  Duration  : %s\n", report.Duration().Round(time.Millisecond))
	if report.Error != "" {
		fmt.Printf("  Aborted   : %s\n", report.Error)
	}
	for _, f := range report.Failures {
		fmt.Printf("  ❌ %-12s %-12s %s\n", f.Unit, f.Stage, f.Error)
	}
	PrintDoubleSeparator()
}

// formatFloat renders v with two decimals, "-" for sentinel values
func formatFloat(v float64, sentinel bool) string {
	if sentinel {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

// truncate shortens s to n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// joinCodes renders a code list for headers
func joinCodes(codes []string) string {
	if len(codes) > 8 {
		return strings.Join(codes[:8], ",") + fmt.Sprintf(" (+%d)", len(codes)-8)
	}
	return strings.Join(codes, ",")
}
