package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dicklesworthstone/flowverify/internal/browser"
	"github.com/Dicklesworthstone/flowverify/internal/config"
	"github.com/Dicklesworthstone/flowverify/internal/core"
	"github.com/Dicklesworthstone/flowverify/internal/db"
	"github.com/Dicklesworthstone/flowverify/internal/flow"
	"github.com/Dicklesworthstone/flowverify/internal/identity"
	"github.com/Dicklesworthstone/flowverify/internal/notify"
	"github.com/Dicklesworthstone/flowverify/internal/tui"
	"github.com/Dicklesworthstone/flowverify/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagRunScenario   string
	flagRunDriver     string
	flagRunBaseURL    string
	flagRunHeadless   bool
	flagRunScreenshot string
	flagRunNoHistory  bool
	flagRunNoCapture  bool
	flagRunTimeout    time.Duration
)

func init() {
	addRunFlags(runCmd)
	runCmd.Flags().DurationVar(&flagRunTimeout, "timeout", 0, "abort the run after this long (0 = no limit)")
	rootCmd.AddCommand(runCmd)
}

// addRunFlags registers the flags shared by run and watch.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagRunScenario, "scenario", "s", flow.ScenarioApproval, "scenario to run (see 'flowverify scenarios')")
	cmd.Flags().StringVar(&flagRunDriver, "driver", "", "browser driver: chromedp, rod, playwright")
	cmd.Flags().StringVar(&flagRunBaseURL, "base-url", "", "application base URL")
	cmd.Flags().BoolVar(&flagRunHeadless, "headless", true, "run the browser without a window")
	cmd.Flags().StringVar(&flagRunScreenshot, "screenshot", "", "final screenshot path")
	cmd.Flags().BoolVar(&flagRunNoHistory, "no-history", false, "do not record the run in history")
	cmd.Flags().BoolVar(&flagRunNoCapture, "no-capture", false, "do not save a screenshot and HTML when a step fails")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a verification scenario",
	Long: `Run a verification scenario against the configured application.

A fresh student identity is generated for every run. Each step waits up to
browser.timeout_seconds for the expected text before failing. The final page
is saved to artifacts.screenshot_path; on failure a screenshot and the page
HTML are saved under artifacts.failure_dir instead.

Examples:
  flowverify run
  flowverify run --scenario rejection --driver rod
  flowverify run --base-url http://localhost:3000 --headless=false
  flowverify run -j > result.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(runOverrides(cmd))
		if err != nil {
			return err
		}
		projectDir, err := GetProject()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if flagRunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, flagRunTimeout)
			defer cancel()
		}

		res, err := executeRun(ctx, cmd, cfg, projectDir, flagRunScenario)
		if res == nil {
			return err
		}
		return reportRun(cmd, res, err)
	},
}

// runOverrides maps run flags onto config keys.
func runOverrides(cmd *cobra.Command) map[string]any {
	o := map[string]any{}
	if flagRunDriver != "" {
		o["browser.driver"] = flagRunDriver
	}
	if flagRunBaseURL != "" {
		o["target.base_url"] = flagRunBaseURL
	}
	if cmd.Flags().Changed("headless") {
		o["browser.headless"] = flagRunHeadless
	}
	if flagRunScreenshot != "" {
		o["artifacts.screenshot_path"] = flagRunScreenshot
	}
	if flagRunNoHistory {
		o["history.enabled"] = false
	}
	if flagRunNoCapture {
		o["artifacts.capture_on_failure"] = false
	}
	return o
}

// reportRun writes res and converts a non-passing run into an ExitError.
func reportRun(cmd *cobra.Command, res *flow.Result, runErr error) error {
	if err := newWriter(cmd).Write(res); err != nil {
		return err
	}
	if res.Passed() {
		return nil
	}
	if runErr == nil {
		runErr = fmt.Errorf("run %s", res.Status)
	}
	return &ExitError{Code: core.Outcome(res.Status), Err: runErr, Reported: true}
}

// usageChecker wraps the history store consulted for used emails.
var usageChecker = func(history *db.DB) identity.UsageChecker { return history }

// executeRun generates an identity, launches the configured driver and runs
// the scenario. A nil result means the run never started; failures after the
// history store opened, identity generation included, come back as a failed
// setup result.
func executeRun(ctx context.Context, cmd *cobra.Command, cfg config.Config, projectDir, scenario string) (*flow.Result, error) {
	def, err := flow.Lookup(scenario)
	if err != nil {
		return nil, err
	}

	var history *db.DB
	if cfg.History.Enabled {
		history, err = db.OpenAndMigrate(cfg.History.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("opening run history: %w", err)
		}
		defer history.Close()
	}

	gen := identity.NewGenerator(cfg.Student.Name, cfg.Student.Password, cfg.Student.EmailPattern, cfg.Student.Uniqueness)
	if history != nil {
		gen.Checker = usageChecker(history)
	}
	var setupErr error
	id, err := gen.Next(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		setupErr = fmt.Errorf("generating student identity: %w", err)
		id = identity.Identity{Name: cfg.Student.Name, Password: cfg.Student.Password}
	}
	sc := def.Scenario(cfg, id)

	runID := uuid.NewString()
	interactive := useTUI(cmd)
	var console io.Writer
	if !interactive {
		console = cmd.ErrOrStderr()
	}
	logger, logPath, closer, err := utils.InitRunLogger(cfg.Artifacts.LogDir, runID, console, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("creating run log: %w", err)
	}
	defer closer.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := []flow.Option{flow.WithLogger(logger)}
	if history != nil {
		opts = append(opts, flow.WithRecorder(flow.NewHistoryRecorder(history)))
	}
	if cfg.Artifacts.CaptureOnFailure {
		opts = append(opts, flow.WithFailureArtifacts(cfg.Artifacts.FailureDir))
	}
	var progress *tui.Progress
	if interactive {
		progress = tui.Start(tui.Options{
			Scenario:    sc.Name,
			Email:       id.Email,
			Driver:      cfg.Browser.Driver,
			OnInterrupt: cancel,
		}, sc.Steps, cmd.OutOrStdout(), os.Stdin)
		opts = append(opts, flow.WithObserver(progress))
	}

	runner := flow.NewRunner(openDriver(cfg, logger), opts...)
	res, err := runner.Run(runCtx, sc, flow.Meta{
		RunID:        runID,
		Driver:       cfg.Browser.Driver,
		BaseURL:      cfg.Target.BaseURL,
		StudentEmail: id.Email,
		LogPath:      logPath,
		SetupErr:     setupErr,
	})
	if progress != nil {
		if werr := progress.Wait(); werr != nil {
			logger.Warn("progress view", "error", werr)
		}
	}
	if res != nil && cfg.Notify.Enabled() {
		// Delivery failures are logged by the notifier and never change the outcome.
		_ = notify.New(cfg.Notify, projectDir, logger).RunFinished(ctx, res)
	}
	return res, err
}

// openDriver returns a launcher for the configured browser driver.
func openDriver(cfg config.Config, logger *log.Logger) flow.OpenFunc {
	return func(ctx context.Context) (browser.Driver, error) {
		opts, err := browser.OptionsFromConfig(cfg.Browser, logger)
		if err != nil {
			return nil, err
		}
		return browser.Open(ctx, cfg.Browser.Driver, opts)
	}
}

// useTUI reports whether the live progress view should render.
func useTUI(cmd *cobra.Command) bool {
	if flagNoTUI || GetOutput() != "text" {
		return false
	}
	if cmd.OutOrStdout() != os.Stdout {
		return false
	}
	return tui.IsTerminal(os.Stdout)
}
