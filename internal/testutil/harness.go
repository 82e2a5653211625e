package testutil

import (
	"path/filepath"
	"testing"

	"github.com/Dicklesworthstone/flowverify/internal/config"
	"github.com/Dicklesworthstone/flowverify/internal/db"
)

// Harness is an isolated project directory with its history database and a
// configuration whose artifact paths point inside it.
type Harness struct {
	ProjectDir string
	DBPath     string
	DB         *db.DB
	Config     config.Config
}

// NewHarness creates a harness rooted in t.TempDir. Everything is removed at cleanup.
func NewHarness(t testing.TB) *Harness {
	t.Helper()
	dir := t.TempDir()
	h := &Harness{
		ProjectDir: dir,
		DBPath:     filepath.Join(dir, config.DirName, "history.db"),
	}

	database, err := db.OpenAndMigrate(h.DBPath)
	if err != nil {
		t.Fatalf("opening history database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	h.DB = database

	cfg := config.DefaultConfig()
	cfg.Artifacts.ScreenshotPath = filepath.Join(dir, "verification", "verification.png")
	cfg.Artifacts.FailureDir = filepath.Join(dir, config.DirName, "failures")
	cfg.Artifacts.LogDir = filepath.Join(dir, config.DirName, "logs")
	cfg.History.DatabasePath = h.DBPath
	h.Config = cfg
	return h
}

// Path joins elems onto the project directory.
func (h *Harness) Path(elems ...string) string {
	return filepath.Join(append([]string{h.ProjectDir}, elems...)...)
}

// NewTestDB returns a migrated history database in a temp dir.
func NewTestDB(t testing.TB) *db.DB {
	t.Helper()
	database, err := db.OpenAndMigrate(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}
