package cli

import (
	"bytes"
	"testing"

	"github.com/Dicklesworthstone/flowverify/internal/browser"
	"github.com/Dicklesworthstone/flowverify/internal/flow"
	"github.com/Dicklesworthstone/flowverify/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// executeCommand runs root with args and captures stdout and stderr.
func executeCommand(root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

// newTestRoot builds a fresh root with the global flags and copies of cmds,
// so flag Changed state does not leak between tests. HOME points at an
// empty temp dir so no user config is read.
func newTestRoot(t *testing.T, cmds ...*cobra.Command) *cobra.Command {
	t.Helper()
	resetFlags()
	t.Setenv("HOME", t.TempDir())

	root := &cobra.Command{
		Use:               "flowverify",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: applyOutputMode,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file")
	root.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "output format")
	root.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "json output")
	root.PersistentFlags().StringVarP(&flagProject, "project", "C", "", "project directory")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "database path")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level")
	root.PersistentFlags().BoolVar(&flagNoTUI, "no-tui", false, "disable the live progress view")

	for _, c := range cmds {
		root.AddCommand(cloneCommand(c))
	}
	return root
}

func cloneCommand(src *cobra.Command) *cobra.Command {
	dst := &cobra.Command{
		Use:     src.Use,
		Aliases: src.Aliases,
		Short:   src.Short,
		Long:    src.Long,
		Args:    src.Args,
		RunE:    src.RunE,
	}
	src.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		dst.PersistentFlags().AddFlag(freshFlag(f))
	})
	src.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		dst.Flags().AddFlag(freshFlag(f))
	})
	for _, sub := range src.Commands() {
		dst.AddCommand(cloneCommand(sub))
	}
	return dst
}

func freshFlag(f *pflag.Flag) *pflag.Flag {
	nf := *f
	nf.Changed = false
	return &nf
}

func resetFlags() {
	flagConfig = ""
	flagOutput = "text"
	flagJSON = false
	flagProject = ""
	flagDB = ""
	flagLogLevel = ""
	flagNoTUI = false

	flagRunScenario = flow.ScenarioApproval
	flagRunDriver = ""
	flagRunBaseURL = ""
	flagRunHeadless = true
	flagRunScreenshot = ""
	flagRunNoHistory = false
	flagRunNoCapture = false
	flagRunTimeout = 0

	flagHistoryScenario = ""
	flagHistoryStatus = ""
	flagHistoryLimit = 20

	flagConfigGlobal = false
	flagInitForce = false

	flagWatchPaths = nil
	flagWatchDebounce = 0
}

// useFakePortal serves the chromedp driver name from an in-memory portal.
func useFakePortal(t *testing.T) *testutil.Portal {
	t.Helper()
	p := testutil.NewPortal()
	browser.Register(browser.DriverChromedp, p.Factory())
	return p
}
