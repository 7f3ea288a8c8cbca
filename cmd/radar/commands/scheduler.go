package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/radar/backend/internal/scheduler"
	"github.com/wonny/radar/backend/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run or inspect the cron scheduler",
	Long: `Starts the scheduler daemon or manages its jobs.

Registered jobs:
  daily_routine    weekdays 17:30  end-of-day sync
  stock_list_sync  Mondays 08:00   stock list and index membership

A failed job is retried twice, one minute apart. On shutdown the daemon
prints each job's run statistics and latest results.

Example:
  go run ./cmd/radar scheduler start
  go run ./cmd/radar scheduler list
  go run ./cmd/radar scheduler run daily_routine`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		Args:  cobra.NoArgs,
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		Args:  cobra.NoArgs,
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run <job_name>",
		Short: "Run a job now and wait for it",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd, schedulerListCmd, schedulerRunCmd)
}

// initScheduler registers every job against the wired app
func initScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log)

	for _, job := range []scheduler.Job{
		jobs.NewDailyRoutineJob(a.pipeline, a.log),
		jobs.NewStockListJob(a.resolver, a.log),
	} {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	PrintSuccess("Scheduler started")
	for _, name := range sched.GetAllJobs() {
		next, _ := sched.NextRun(name)
		fmt.Printf("  - %-16s next %s\n", name, next.Format("2006-01-02 15:04:05"))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	printJobSummary(os.Stdout, sched)
	fmt.Println("Scheduler stopped")

	return nil
}

// recentResults is how many runs per job the shutdown summary lists
const recentResults = 3

// printJobSummary prints what each job did while the daemon ran
func printJobSummary(w io.Writer, sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		st := stats[name]
		if st.TotalRuns == 0 {
			fmt.Fprintf(w, "  %-16s no runs\n", name)
			continue
		}
		fmt.Fprintf(w, "  %-16s runs %-3d failed %-3d success %.0f%%  last ok %s  last failure %s\n",
			name, st.TotalRuns, st.FailureCount, st.SuccessRate*100,
			formatTime(st.LastSuccess), formatTime(st.LastFailure))

		history, err := sched.GetJobHistory(name)
		if err != nil {
			continue
		}
		for _, r := range history.GetLatestResults(recentResults) {
			status := "ok"
			if !r.Success {
				status = "failed: " + r.Error
			}
			fmt.Fprintf(w, "    %s  %-8s attempts %d  %s\n",
				r.StartTime.Format("2006-01-02 15:04"), r.Duration.Round(time.Second), r.Attempts, status)
		}
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.GetJobStats()
	fmt.Println("Registered jobs:")
	for _, name := range sched.GetAllJobs() {
		fmt.Printf("  - %-16s %s\n", name, stats[name].Schedule)
	}

	runs, err := a.repo.Runs.RecentRuns(cmd.Context(), 5)
	if err != nil {
		return err
	}
	if len(runs) > 0 {
		fmt.Println("\nRecent sync runs:")
		for _, r := range runs {
			fmt.Printf("  %s  %-12s ok %-5d failed %-4d skipped %-4d %s\n",
				r.StartedAt.Format("2006-01-02 15:04"), r.Mode, r.Succeeded, r.Failed, r.Skipped, r.Error)
		}
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("Running job: %s\n", jobName)
	result, err := sched.RunJob(ctx, jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		return fmt.Errorf("job %s failed after %d attempts: %s", jobName, result.Attempts, result.Error)
	}
	if jobName == "daily_routine" {
		a.invalidateRadar(ctx)
	}
	PrintSuccess(fmt.Sprintf("Job %s completed in %s", jobName, result.Duration))
	return nil
}
