package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Dicklesworthstone/flowverify/internal/db"
	"github.com/Dicklesworthstone/flowverify/internal/output"
	"github.com/spf13/cobra"
)

var (
	flagHistoryScenario string
	flagHistoryStatus   string
	flagHistoryLimit    int
)

func init() {
	historyCmd.Flags().StringVarP(&flagHistoryScenario, "scenario", "s", "", "filter by scenario")
	historyCmd.Flags().StringVar(&flagHistoryStatus, "status", "", "filter by status (passed, failed, cancelled, running, pending)")
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "max results (0 = all)")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatsCmd)
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse recorded runs",
	Long: `List recorded runs, newest first.

Examples:
  flowverify history
  flowverify history --status failed -n 5
  flowverify history show 3f2a        # unique ID prefix
  flowverify history stats -j`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status := db.RunStatus(strings.ToLower(flagHistoryStatus))
		if status != "" && !status.Valid() {
			return fmt.Errorf("invalid status %q", flagHistoryStatus)
		}
		if flagHistoryLimit < 0 {
			return fmt.Errorf("--limit must be >= 0")
		}
		database, err := openHistory()
		if err != nil {
			return err
		}
		defer database.Close()

		runs, err := database.ListRuns(db.ListRunsOptions{
			Scenario: flagHistoryScenario,
			Status:   status,
			Limit:    flagHistoryLimit,
		})
		if err != nil {
			return err
		}
		if runs == nil {
			runs = []*db.Run{}
		}
		return newWriter(cmd).Write(RunList(runs))
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openHistory()
		if err != nil {
			return err
		}
		defer database.Close()

		run, err := database.FindRun(args[0])
		if err != nil {
			return err
		}
		steps, err := database.ListSteps(run.ID)
		if err != nil {
			return err
		}
		if steps == nil {
			steps = []*db.StepRecord{}
		}
		return newWriter(cmd).Write(RunDetail{Run: run, Steps: steps})
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run history totals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openHistory()
		if err != nil {
			return err
		}
		defer database.Close()

		stats, err := database.GetStats()
		if err != nil {
			return err
		}
		return newWriter(cmd).Write(HistoryStats(*stats))
	},
}

// openHistory opens the configured history database. It does not create one.
func openHistory() (*db.DB, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, err
	}
	path := cfg.History.DatabasePath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no run history at %s (run 'flowverify init' or 'flowverify run' first)", path)
	}
	return db.OpenAndMigrate(path)
}

// RunList renders runs as a table in text mode.
type RunList []*db.Run

func (l RunList) String() string {
	if len(l) == 0 {
		return "No runs recorded."
	}
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{
			shortRunID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Scenario,
			r.Driver,
			output.Badge(string(r.Status)),
			formatMillis(r.DurationMs),
			r.FailedStep,
		})
	}
	var b strings.Builder
	_ = output.WriteTable(&b, []string{"ID", "STARTED", "SCENARIO", "DRIVER", "STATUS", "DURATION", "FAILED STEP"}, rows)
	return strings.TrimRight(b.String(), "\n")
}

// RunDetail is a run with its recorded steps.
type RunDetail struct {
	Run   *db.Run          `json:"run" yaml:"run"`
	Steps []*db.StepRecord `json:"steps" yaml:"steps"`
}

func (d RunDetail) String() string {
	r := d.Run
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s  %s\n", r.ID, output.Badge(string(r.Status)))
	fmt.Fprintf(&b, "  Scenario:  %s\n", r.Scenario)
	fmt.Fprintf(&b, "  Driver:    %s\n", r.Driver)
	fmt.Fprintf(&b, "  Base URL:  %s\n", r.BaseURL)
	fmt.Fprintf(&b, "  Student:   %s\n", r.StudentEmail)
	fmt.Fprintf(&b, "  Started:   %s\n", r.StartedAt.Local().Format(time.RFC3339))
	if r.FinishedAt != nil {
		fmt.Fprintf(&b, "  Duration:  %s\n", formatMillis(r.DurationMs))
	}
	if r.FailedStep != "" {
		fmt.Fprintf(&b, "  Failed:    %s (%s)\n", r.FailedStep, r.FailureKind)
		fmt.Fprintf(&b, "  Error:     %s\n", r.Error)
	}
	if r.ScreenshotPath != "" {
		fmt.Fprintf(&b, "  Screenshot: %s\n", r.ScreenshotPath)
	}
	if r.LogPath != "" {
		fmt.Fprintf(&b, "  Log:       %s\n", r.LogPath)
	}
	if len(d.Steps) > 0 {
		b.WriteString("\nSteps:\n")
		rows := make([][]string, 0, len(d.Steps))
		for _, s := range d.Steps {
			rows = append(rows, []string{
				fmt.Sprintf("%d", s.Index+1),
				s.Name,
				output.Badge(string(s.Status)),
				formatMillis(s.DurationMs),
				s.Error,
			})
		}
		_ = output.WriteTable(&b, []string{"#", "STEP", "STATUS", "DURATION", "ERROR"}, rows)
	}
	return strings.TrimRight(b.String(), "\n")
}

// HistoryStats renders database totals.
type HistoryStats db.Stats

func (s HistoryStats) String() string {
	return fmt.Sprintf("Database:   %s (schema v%d)\nRuns:       %d (%d passed, %d failed, %d cancelled)\nSteps:      %d",
		s.Path, s.SchemaVersion, s.RunCount, s.PassedCount, s.FailedCount, s.CancelledCount, s.StepCount)
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).Round(time.Millisecond).String()
}
