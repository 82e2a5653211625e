package cli

import (
	"strings"

	"github.com/Dicklesworthstone/flowverify/internal/config"
	"github.com/Dicklesworthstone/flowverify/internal/flow"
	"github.com/Dicklesworthstone/flowverify/internal/identity"
	"github.com/Dicklesworthstone/flowverify/internal/output"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scenariosCmd)
}

var scenariosCmd = &cobra.Command{
	Use:     "scenarios",
	Aliases: []string{"ls"},
	Short:   "List the available scenarios and their steps",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return newWriter(cmd).Write(listScenarios())
	},
}

// ScenarioInfo summarizes one scenario.
type ScenarioInfo struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Steps       []string `json:"steps" yaml:"steps"`
}

// ScenarioList renders as a table in text mode.
type ScenarioList []ScenarioInfo

func (l ScenarioList) String() string {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		rows = append(rows, []string{s.Name, strings.Join(s.Steps, " > "), s.Description})
	}
	var b strings.Builder
	_ = output.WriteTable(&b, []string{"SCENARIO", "STEPS", "DESCRIPTION"}, rows)
	return strings.TrimRight(b.String(), "\n")
}

func listScenarios() ScenarioList {
	cfg := config.DefaultConfig()
	placeholder := identity.Identity{Name: cfg.Student.Name, Email: cfg.Student.EmailPattern}
	var out ScenarioList
	for _, def := range flow.Definitions() {
		sc := def.Scenario(cfg, placeholder)
		info := ScenarioInfo{Name: def.Name, Description: def.Description}
		for _, st := range sc.Steps {
			info.Steps = append(info.Steps, st.Name)
		}
		out = append(out, info)
	}
	return out
}
