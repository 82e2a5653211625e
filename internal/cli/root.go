// Package cli implements the flowverify command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/Dicklesworthstone/flowverify/internal/config"
	"github.com/Dicklesworthstone/flowverify/internal/output"
	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagOutput   string
	flagJSON     bool
	flagProject  string
	flagDB       string
	flagLogLevel string
	flagNoTUI    bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file (default .flowverify/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "shorthand for --output=json")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "C", "", "project directory (defaults to current directory)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "run history database path")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagNoTUI, "no-tui", false, "disable the live progress view")
}

var rootCmd = &cobra.Command{
	Use:   "flowverify",
	Short: "Browser acceptance checks for the student registration and approval flow",
	Long: `flowverify drives a real browser through the student portal:
a new student signs up, an administrator approves them, and the student
signs in to see the approved status. Each step is asserted on visible text
and the final page is saved as a screenshot.

Exit status is 0 when every step passed, 1 when the run failed (a step,
or setup such as launching the browser or picking an unused student),
130 when the run was interrupted and 2 for configuration or usage errors.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: applyOutputMode,
}

func applyOutputMode(cmd *cobra.Command, args []string) error {
	f, err := output.ParseFormat(GetOutput())
	if err != nil {
		return err
	}
	output.SetOutputMode(f)
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	code := ExitCode(err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Reported {
		return code
	}
	if output.IsStructured() {
		_ = output.OutputStructuredError(err, code)
	} else {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return code
}

// GetOutput returns the selected output format.
func GetOutput() string {
	if flagJSON {
		return string(output.FormatJSON)
	}
	return flagOutput
}

// GetProject returns the project directory.
func GetProject() (string, error) {
	if flagProject != "" {
		return flagProject, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return wd, nil
}

// GetDB returns the --db override, if any.
func GetDB() string {
	return flagDB
}

// newWriter returns an output writer for cmd in the selected format.
func newWriter(cmd *cobra.Command) *output.Writer {
	return output.New(output.Format(GetOutput()), output.WithWriter(cmd.OutOrStdout()))
}

// loadConfig loads configuration for the project with global flag overrides
// plus extra command overrides.
func loadConfig(extra map[string]any) (config.Config, error) {
	projectDir, err := GetProject()
	if err != nil {
		return config.Config{}, err
	}
	overrides := map[string]any{}
	if flagLogLevel != "" {
		overrides["log.level"] = flagLogLevel
	}
	if flagDB != "" {
		overrides["history.database_path"] = flagDB
	}
	for k, v := range extra {
		overrides[k] = v
	}
	return config.Load(config.LoadOptions{
		ProjectDir:    projectDir,
		ConfigPath:    flagConfig,
		FlagOverrides: overrides,
	})
}
