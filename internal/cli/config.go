package cli

import (
	"fmt"
	"strings"

	"github.com/Dicklesworthstone/flowverify/internal/config"
	"github.com/spf13/cobra"
)

var (
	flagConfigGlobal bool
)

func init() {
	configCmd.PersistentFlags().BoolVar(&flagConfigGlobal, "global", false, "operate on the user config (~/.flowverify/config.toml)")
	configCmd.AddCommand(configGetCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or modify flowverify configuration",
	Long: `Show the effective configuration or read and write single keys.

Precedence: defaults < user (~/.flowverify/config.toml) < project
(.flowverify/config.toml) < env (FLOWVERIFY_*) < flags.

Examples:
  flowverify config
  flowverify config get browser.driver
  flowverify config set target.base_url http://localhost:3000
  flowverify config set --global browser.headless false`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		return newWriter(cmd).Write(configView(cfg))
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		val, ok := config.GetValue(cfg, args[0])
		if !ok {
			return fmt.Errorf("unknown key %q (see 'flowverify config' for valid keys)", args[0])
		}
		return newWriter(cmd).Write(ConfigEntry{Key: args[0], Value: val})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, raw := args[0], args[1]
		val, err := config.ParseValue(key, raw)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		path, err := configTargetPath()
		if err != nil {
			return err
		}
		if err := config.WriteValue(path, key, val); err != nil {
			return err
		}
		// Reject values the loader would refuse on the next run.
		if !flagConfigGlobal {
			if _, err := loadConfig(nil); err != nil {
				return fmt.Errorf("%s written but configuration is now invalid: %w", path, err)
			}
		}
		return newWriter(cmd).Write(ConfigEntry{Key: key, Value: val, Path: path})
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file paths",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectDir, err := GetProject()
		if err != nil {
			return err
		}
		user, project := config.ConfigPaths(projectDir, flagConfig)
		return newWriter(cmd).Write(ConfigPaths{User: user, Project: project})
	},
}

func configTargetPath() (string, error) {
	projectDir, err := GetProject()
	if err != nil {
		return "", err
	}
	user, project := config.ConfigPaths(projectDir, flagConfig)
	if flagConfigGlobal {
		if user == "" {
			return "", fmt.Errorf("cannot locate home directory for --global")
		}
		return user, nil
	}
	return project, nil
}

// ConfigEntry is a single key and its value.
type ConfigEntry struct {
	Key   string `json:"key" yaml:"key"`
	Value any    `json:"value" yaml:"value"`
	Path  string `json:"path,omitempty" yaml:"path,omitempty"`
}

func (e ConfigEntry) String() string {
	if e.Path != "" {
		return fmt.Sprintf("Set %s = %v in %s", e.Key, e.Value, e.Path)
	}
	return fmt.Sprintf("%v", e.Value)
}

// ConfigPaths lists the files configuration is read from.
type ConfigPaths struct {
	User    string `json:"user" yaml:"user"`
	Project string `json:"project" yaml:"project"`
}

func (p ConfigPaths) String() string {
	return fmt.Sprintf("user:    %s\nproject: %s", p.User, p.Project)
}

// configDump prints every key in text mode and the nested structure otherwise.
type configDump struct {
	config.Config `yaml:",inline"`
}

func configView(cfg config.Config) configDump {
	return configDump{cfg}
}

func (d configDump) String() string {
	var b strings.Builder
	for _, key := range config.Keys() {
		val, _ := config.GetValue(d.Config, key)
		if strings.HasSuffix(key, "password") {
			val = "********"
		}
		fmt.Fprintf(&b, "%s = %v\n", key, val)
	}
	return strings.TrimRight(b.String(), "\n")
}
