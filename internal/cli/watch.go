package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Dicklesworthstone/flowverify/internal/config"
	"github.com/Dicklesworthstone/flowverify/internal/utils"
	"github.com/Dicklesworthstone/flowverify/internal/watch"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	flagWatchPaths    []string
	flagWatchDebounce time.Duration
)

func init() {
	addRunFlags(watchCmd)
	watchCmd.Flags().StringSliceVarP(&flagWatchPaths, "watch-path", "p", nil, "additional file or directory to watch (repeatable)")
	watchCmd.Flags().DurationVar(&flagWatchDebounce, "debounce", watch.DefaultDebounce, "quiet period before re-running")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run a scenario whenever configuration or watched files change",
	Long: `Run a scenario once, then again every time the config file or a
watched path changes. Bursts of changes within --debounce are coalesced into
one run. Stops on Ctrl+C.

Examples:
  flowverify watch
  flowverify watch -p ./frontend/src --debounce 1s
  flowverify watch -s rejection -j     # one JSON result per run`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	projectDir, err := GetProject()
	if err != nil {
		return err
	}
	paths := watchPaths(projectDir)
	if len(paths) == 0 {
		return fmt.Errorf("nothing to watch: create %s or pass --watch-path", config.ProjectConfigPath(projectDir, flagConfig))
	}

	logger := utils.InitConsoleLogger(cmd.ErrOrStderr(), flagLogLevel)
	w, err := watch.NewWatcher(paths, watch.WithDebounce(flagWatchDebounce), watch.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Stop()

	logger.Info("watching", "paths", paths)
	runs := 0
	trigger := func(reason string) error {
		runs++
		logger.Info("running scenario", "scenario", flagRunScenario, "trigger", reason, "run", runs)
		return watchOnce(ctx, cmd, projectDir, logger)
	}

	if err := trigger("start"); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped", "runs", runs)
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			if err := trigger(ev.Path); err != nil {
				return err
			}
		}
	}
}

// watchOnce runs the scenario and reports it. Run failures are reported and
// swallowed; only errors that would fail every run are returned.
func watchOnce(ctx context.Context, cmd *cobra.Command, projectDir string, logger *log.Logger) error {
	cfg, err := loadConfig(runOverrides(cmd))
	if err != nil {
		// A half-edited config file should not end the watch.
		logger.Error("invalid configuration", "error", err)
		return nil
	}
	res, runErr := executeRun(ctx, cmd, cfg, projectDir, flagRunScenario)
	if res == nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Error("run did not start", "error", runErr)
		return nil
	}
	return newWriter(cmd).Write(res)
}

// watchPaths returns the config files and --watch-path entries whose directory
// exists. Missing config files are still watched so creating them triggers a run.
func watchPaths(projectDir string) []string {
	user, project := config.ConfigPaths(projectDir, flagConfig)
	candidates := []string{project, user}
	for _, p := range flagWatchPaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(projectDir, p)
		}
		candidates = append(candidates, p)
	}
	var paths []string
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			paths = append(paths, p)
			continue
		}
		if info, err := os.Stat(filepath.Dir(p)); err == nil && info.IsDir() {
			paths = append(paths, p)
		}
	}
	return paths
}
