package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Dicklesworthstone/flowverify/internal/config"
	"github.com/Dicklesworthstone/flowverify/internal/db"
	"github.com/spf13/cobra"
)

var (
	flagInitForce bool
)

func init() {
	initCmd.Flags().BoolVarP(&flagInitForce, "force", "f", false, "reinitialize even if .flowverify/ already exists")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize flowverify in the current project",
	Long: `Initialize the flowverify directory structure for a project.

Creates the following structure:
  .flowverify/
  ├── config.toml      # Project-specific configuration
  ├── history.db       # Run history (SQLite, WAL mode)
  ├── logs/            # Per-run debug logs
  └── failures/        # Screenshots and HTML captured on failure

Also adds .flowverify/ to .gitignore if not already present.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

// InitResult describes what init created.
type InitResult struct {
	Path        string   `json:"path" yaml:"path"`
	Config      string   `json:"config" yaml:"config"`
	ConfigNew   bool     `json:"config_written" yaml:"config_written"`
	Database    string   `json:"database" yaml:"database"`
	Directories []string `json:"directories" yaml:"directories"`
}

func (r InitResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Initialized flowverify in %s\n\n", r.Path)
	b.WriteString("Created:\n")
	if r.ConfigNew {
		fmt.Fprintf(&b, "  %s/config.toml   - Configuration file\n", config.DirName)
	} else {
		fmt.Fprintf(&b, "  %s/config.toml   - Configuration file (kept existing)\n", config.DirName)
	}
	fmt.Fprintf(&b, "  %s/history.db    - Run history\n", config.DirName)
	fmt.Fprintf(&b, "  %s/logs/         - Run logs\n", config.DirName)
	fmt.Fprintf(&b, "  %s/failures/     - Failure captures\n", config.DirName)
	b.WriteString("\nNext steps:\n")
	fmt.Fprintf(&b, "  1. Set target.base_url and the admin credentials in %s/config.toml\n", config.DirName)
	b.WriteString("  2. Run the approval flow: flowverify run")
	return b.String()
}

func runInit(cmd *cobra.Command, args []string) error {
	projectDir, err := GetProject()
	if err != nil {
		return err
	}
	stateDir := filepath.Join(projectDir, config.DirName)

	if info, err := os.Stat(stateDir); err == nil && info.IsDir() && !flagInitForce {
		return fmt.Errorf("already initialized: %s exists (use --force to reinitialize)", stateDir)
	}

	subdirs := []string{"logs", "failures"}
	for _, d := range append([]string{""}, subdirs...) {
		dir := filepath.Join(stateDir, d)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	dbPath := GetDB()
	if dbPath == "" {
		dbPath = filepath.Join(stateDir, "history.db")
	}
	database, err := db.OpenAndMigrate(dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	database.Close()

	configPath := config.ProjectConfigPath(projectDir, flagConfig)
	written, err := config.WriteDefault(configPath, flagInitForce)
	if err != nil {
		return fmt.Errorf("creating config: %w", err)
	}

	if err := addToGitignore(filepath.Join(projectDir, ".gitignore")); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not update .gitignore: %v\n", err)
	}

	return newWriter(cmd).Write(InitResult{
		Path:        stateDir,
		Config:      configPath,
		ConfigNew:   written,
		Database:    dbPath,
		Directories: subdirs,
	})
}

// addToGitignore ensures .flowverify/ is in .gitignore.
func addToGitignore(path string) error {
	entry := config.DirName + "/"

	if f, err := os.Open(path); err == nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == entry || line == config.DirName {
				return nil
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	content := ""
	if info.Size() > 0 {
		var buf [1]byte
		if _, err := f.ReadAt(buf[:], info.Size()-1); err == nil && buf[0] != '\n' {
			content = "\n"
		}
	}
	content += "\n# flowverify run history and artifacts\n" + entry + "\n"

	_, err = f.WriteString(content)
	return err
}
