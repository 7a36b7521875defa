package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ysnap/internal/app"
	"ysnap/internal/config"
	"ysnap/internal/ysnap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var verbose bool

// newApp reads the config and creates a YSnapApp. The caller must defer app.Close().
// requireConfig is false for commands that work from flags alone.
func newApp(requireConfig bool) (*app.YSnapApp, error) {
	cfg, err := app.LoadConfig(requireConfig)
	if err != nil {
		return nil, err
	}

	opts := app.Options{Verbose: verbose}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		opts.SyncOutput = os.Stdout
	}

	a, err := app.NewYSnapApp(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "ysnap",
	Short:        "Rotating hard-link snapshot backups with rsync",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Add [[jobs]] entries to run backups with `ysnap run` or `ysnap daemon`.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := app.LoadConfig(true)
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Database: %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Rsync:    %s\n", cfg.Rsync.Path)
		fmt.Printf("Prefix:   %s\n", cfg.Naming.Prefix)

		if len(cfg.Jobs) == 0 {
			fmt.Println("\nNo jobs configured.")
			return nil
		}
		fmt.Println("\nJobs:")
		for _, job := range cfg.Jobs {
			schedule := job.Schedule
			if schedule == "" {
				schedule = "manual"
			}
			fmt.Printf("  %-12s  %s -> %s  keep:%d  %s\n", job.Name, job.Source, job.Target, job.MaxToKeep, schedule)
		}
		return nil
	},
}

// backup command
var backupOpts app.BackupOptions

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a new snapshot of a source directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Backup(cmd.Context(), backupOpts)
		if res != nil {
			printResult(res)
		}
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Println("Done")
		return nil
	},
}

// printResult reports what a rotation did, or would have done.
func printResult(res *ysnap.RotationResult) {
	if res.DryRun {
		for _, a := range res.Actions {
			fmt.Println(a)
		}
		if res.State == ysnap.StateSkipped {
			fmt.Printf("Skipped: %s\n", res.SkipReason)
		}
		fmt.Println("Called with --dry-run, nothing was changed.")
		return
	}

	switch res.State {
	case ysnap.StateSkipped:
		fmt.Printf("Skipped: %s\n", res.SkipReason)
	case ysnap.StatePublished:
		fmt.Printf("Created snapshot %s\n", res.Snapshot.Path)
	case ysnap.StateFailed:
		fmt.Println(failureSummary(res))
	}
	for _, s := range res.Pruned {
		fmt.Printf("Removed old snapshot %s\n", s.Name)
	}
	for _, err := range res.PruneErrors {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// failureSummary describes where a failed rotation stopped.
func failureSummary(res *ysnap.RotationResult) string {
	msg := fmt.Sprintf("Rotation stopped after %d step(s)", len(res.Actions))
	if res.LeftIncomplete != "" {
		return msg + "; the incomplete snapshot was left in place at " + res.LeftIncomplete + "."
	}
	return msg + "."
}

// list command
var listTarget string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots in a backup directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		statuses, err := a.Snapshots(listTarget)
		if err != nil {
			return err
		}

		if len(statuses) == 0 {
			fmt.Println("No snapshots found.")
			return nil
		}

		for _, s := range statuses {
			source := s.Source
			if s.MetadataErr != nil {
				source = "[no metadata]"
			}
			fmt.Printf("%s  %s  %-12s  %s\n",
				s.Name,
				s.Taken.Format("2006-01-02 15:04:05"),
				formatAge(s.Age),
				source,
			)
		}
		return nil
	},
}

func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "in future"
	case d < time.Hour:
		return d.Truncate(time.Second).String() + " ago"
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View rotation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Println("No rotations recorded.")
			return nil
		}

		for _, r := range recs {
			duration := ""
			if r.FinishedAt.Valid {
				d := r.FinishedAt.Time.Sub(r.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %s  %-8s  %-8s  %s  %s\n",
				r.ID,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Status,
				duration,
				r.Target,
				r.Snapshot,
			)
			if r.Message != "" {
				fmt.Printf("      %s\n", r.Message)
			}
		}
		return nil
	},
}

// run command
var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run [JOB...]",
	Short: "Run configured jobs once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.RunJobs(cmd.Context(), args, runDryRun)
		for _, r := range results {
			fmt.Printf("== %s\n", r.Job)
			if r.Result != nil {
				printResult(r.Result)
			}
			if r.Err != nil {
				fmt.Printf("Failed: %v\n", r.Err)
			}
		}
		if err != nil {
			return fmt.Errorf("%d of %d job(s) failed", countFailed(results), len(results))
		}
		fmt.Println("Done")
		return nil
	},
}

func countFailed(results []app.JobResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run configured jobs on their schedules until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Scheduler running, press Ctrl-C to stop.")
		return a.Daemon(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// backup flags
	f := backupCmd.Flags()
	f.StringVar(&backupOpts.Source, "source", "", "Directory to back up")
	f.StringVar(&backupOpts.Target, "backup-path", "", "Directory holding the snapshots")
	f.IntVar(&backupOpts.MaxToKeep, "max-to-keep", -1, "Number of snapshots to keep (0 or less keeps all)")
	f.BoolVar(&backupOpts.DryRun, "dry-run", false, "Print the steps without changing anything")
	f.StringArrayVar(&backupOpts.Excludes, "exclude", nil, "rsync exclude pattern (repeatable)")
	f.StringVar(&backupOpts.ExcludeFrom, "exclude-from", "", "File with one exclude pattern per line")
	f.BoolVar(&backupOpts.OnlyIfChanged, "only-if-changed", false, "Skip the snapshot if nothing changed since the latest one")
	f.StringVar(&backupOpts.MinDelay, "min-delay", "", `Skip if the latest snapshot is younger than this, e.g. "2h" or "1 day"`)
	f.StringVar(&backupOpts.Incomplete, "incomplete", "resume", "What to do with a leftover incomplete snapshot: "+strings.Join([]string{
		string(ysnap.IncompleteResume), string(ysnap.IncompleteDiscard), string(ysnap.IncompleteFail),
	}, ", "))
	_ = backupCmd.MarkFlagRequired("source")
	_ = backupCmd.MarkFlagRequired("backup-path")

	listCmd.Flags().StringVar(&listTarget, "backup-path", "", "Directory holding the snapshots")
	_ = listCmd.MarkFlagRequired("backup-path")

	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of rotations to show")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print the steps without changing anything")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(daemonCmd)
}
