package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

// VersionInfo is the output of the version command.
type VersionInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Go      string `json:"go" yaml:"go"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("flowverify %s (%s, %s)", v.Version, v.Commit, v.Go)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return newWriter(cmd).Write(VersionInfo{Version: Version, Commit: Commit, Go: runtime.Version()})
	},
}
