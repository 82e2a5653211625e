// Package harness provides the E2E test environment infrastructure.
package harness

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dicklesworthstone/flowverify/internal/browser"
	"github.com/Dicklesworthstone/flowverify/internal/config"
	"github.com/Dicklesworthstone/flowverify/internal/db"
	"github.com/Dicklesworthstone/flowverify/internal/flow"
	"github.com/Dicklesworthstone/flowverify/internal/identity"
	"github.com/Dicklesworthstone/flowverify/internal/testapp"
	"github.com/Dicklesworthstone/flowverify/internal/utils"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/google/uuid"
)

// RunTimeout bounds a whole scenario run in a real browser.
const RunTimeout = 2 * time.Minute

// PlaywrightEnv must be set for playwright tests to run; they need the
// playwright driver and browsers installed.
const PlaywrightEnv = "FLOWVERIFY_E2E_PLAYWRIGHT"

// E2EEnvironment is the test environment for E2E tests.
//
// It provides an isolated project directory with:
//   - SQLite run history (migrated)
//   - The fixture portal served over httptest
//   - A config pointing at the fixture with artifacts inside the project
//   - Step logging for debugging
type E2EEnvironment struct {
	T *testing.T

	// ProjectDir is the root of the temp project
	ProjectDir string

	// StateDir is .flowverify within ProjectDir
	StateDir string

	// DB is the run history
	DB *db.DB

	// App is the fixture portal behind Server
	App    *testapp.App
	Server *httptest.Server

	// Config targets Server
	Config config.Config

	// Logger is the step logger
	Logger *StepLogger

	stepCount atomic.Int32
	startTime time.Time
}

// NewE2EEnvironment creates a new isolated test environment.
// All resources are cleaned up automatically via t.Cleanup.
func NewE2EEnvironment(t *testing.T) *E2EEnvironment {
	t.Helper()

	projectDir := t.TempDir()
	stateDir := filepath.Join(projectDir, config.DirName)
	for _, dir := range []string{stateDir, filepath.Join(stateDir, "logs"), filepath.Join(stateDir, "failures")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("E2E: creating %s: %v", dir, err)
		}
	}

	database, err := db.OpenAndMigrate(filepath.Join(stateDir, "history.db"))
	if err != nil {
		t.Fatalf("E2E: opening database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	logger := NewStepLogger(t)
	portalLog, closer, err := utils.InitFileLogger(filepath.Join(stateDir, "logs", "portal.log"), utils.LoggerOptions{Level: "debug", Prefix: "portal"})
	if err != nil {
		t.Fatalf("E2E: creating portal log: %v", err)
	}
	t.Cleanup(func() { _ = closer.Close() })
	app, err := testapp.New(testapp.Options{Logger: portalLog})
	if err != nil {
		t.Fatalf("E2E: creating fixture app: %v", err)
	}
	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)

	env := &E2EEnvironment{
		T:          t,
		ProjectDir: projectDir,
		StateDir:   stateDir,
		DB:         database,
		App:        app,
		Server:     srv,
		Config:     testConfig(projectDir, srv.URL),
		Logger:     logger,
		startTime:  time.Now(),
	}
	logger.Info("E2E environment created at %s (portal %s)", projectDir, srv.URL)
	return env
}

// Step logs a test step with automatic numbering.
func (env *E2EEnvironment) Step(format string, args ...any) {
	env.T.Helper()
	step := env.stepCount.Add(1)
	env.Logger.Step(int(step), format, args...)
}

// Result logs a step result.
func (env *E2EEnvironment) Result(format string, args ...any) {
	env.T.Helper()
	env.Logger.Result(format, args...)
}

// DBState logs current history counts.
func (env *E2EEnvironment) DBState() {
	env.T.Helper()
	stats, err := env.DB.GetStats()
	if err != nil {
		env.T.Fatalf("GetStats: %v", err)
	}
	env.Logger.DBState(stats.RunCount, stats.StepCount, len(env.App.Store().Pending()))
}

// Elapsed returns time since environment creation.
func (env *E2EEnvironment) Elapsed() time.Duration {
	return time.Since(env.startTime)
}

// RequireBrowser skips the test unless driver can run here.
func RequireBrowser(t *testing.T, driver string) {
	t.Helper()
	if testing.Short() {
		t.Skip("browser test skipped in -short mode")
	}
	switch driver {
	case browser.DriverChromedp, browser.DriverRod:
		if _, ok := launcher.LookPath(); !ok {
			t.Skip("no Chrome/Chromium found on this machine")
		}
	case browser.DriverPlaywright:
		if os.Getenv(PlaywrightEnv) == "" {
			t.Skipf("set %s=1 to run playwright tests", PlaywrightEnv)
		}
	default:
		t.Fatalf("unknown driver %q", driver)
	}
}

// Run executes scenario with driver against the fixture and records it in
// the environment's history.
func (env *E2EEnvironment) Run(scenario, driver string) (*flow.Result, error) {
	env.T.Helper()
	cfg := env.Config
	cfg.Browser.Driver = driver

	def, err := flow.Lookup(scenario)
	if err != nil {
		env.T.Fatalf("Lookup(%s): %v", scenario, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), RunTimeout)
	defer cancel()

	gen := identity.NewGenerator(cfg.Student.Name, cfg.Student.Password, cfg.Student.EmailPattern, cfg.Student.Uniqueness)
	gen.Checker = env.DB
	id, err := gen.Next(ctx)
	if err != nil {
		env.T.Fatalf("identity: %v", err)
	}

	runID := uuid.NewString()
	logger, logPath, closer, err := utils.InitRunLogger(cfg.Artifacts.LogDir, runID, nil, "info")
	if err != nil {
		env.T.Fatalf("run logger: %v", err)
	}
	defer closer.Close()

	opts, err := browser.OptionsFromConfig(cfg.Browser, logger)
	if err != nil {
		env.T.Fatalf("browser options: %v", err)
	}
	open := func(ctx context.Context) (browser.Driver, error) {
		return browser.Open(ctx, driver, opts)
	}
	runner := flow.NewRunner(open,
		flow.WithLogger(logger),
		flow.WithRecorder(flow.NewHistoryRecorder(env.DB)),
		flow.WithFailureArtifacts(cfg.Artifacts.FailureDir),
	)

	env.Result("Running %s with %s as %s", scenario, driver, id.Email)
	res, err := runner.Run(ctx, def.Scenario(cfg, id), flow.Meta{
		RunID:        runID,
		Driver:       driver,
		BaseURL:      cfg.Target.BaseURL,
		StudentEmail: id.Email,
		LogPath:      logPath,
	})
	env.Result("Run %s finished: %s in %s", runID[:8], res.Status, res.Duration.Round(time.Millisecond))
	return res, err
}

// AssertAccountStatus fails unless the fixture holds email with status.
func (env *E2EEnvironment) AssertAccountStatus(email, status string) {
	env.T.Helper()
	acct, ok := env.App.Store().Lookup(email)
	if !ok {
		env.T.Fatalf("account %s not registered", email)
	}
	if acct.Status != status {
		env.T.Fatalf("account %s status = %s, want %s", email, acct.Status, status)
	}
	env.Result("Account %s is %s", email, status)
}

// AssertPendingCount fails unless the pending list has n entries.
func (env *E2EEnvironment) AssertPendingCount(n int) {
	env.T.Helper()
	if got := len(env.App.Store().Pending()); got != n {
		env.T.Fatalf("pending accounts = %d, want %d", got, n)
	}
}

// AssertRunStatus fails unless history records runID with status.
func (env *E2EEnvironment) AssertRunStatus(runID string, status db.RunStatus) {
	env.T.Helper()
	run, err := env.DB.GetRun(runID)
	if err != nil {
		env.T.Fatalf("GetRun(%s): %v", runID, err)
	}
	if run.Status != status {
		env.T.Fatalf("run %s status = %s, want %s", runID, run.Status, status)
	}
}

// AssertFileExists fails unless path (absolute or project-relative) exists.
func (env *E2EEnvironment) AssertFileExists(path string) {
	env.T.Helper()
	if !filepath.IsAbs(path) {
		path = filepath.Join(env.ProjectDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		env.T.Fatalf("expected %s to exist: %v", path, err)
	}
}

// testConfig returns a config suitable for E2E tests.
func testConfig(projectDir, baseURL string) config.Config {
	cfg := config.DefaultConfig()
	cfg.Target.BaseURL = baseURL
	cfg.Student.Uniqueness = "uuid"

	cfg.Browser.Headless = true
	cfg.Browser.TimeoutSecs = 10
	cfg.Browser.NavigationTimeoutSecs = 20
	// Chrome refuses to start sandboxed as root (containers, CI).
	cfg.Browser.NoSandbox = os.Geteuid() == 0

	cfg.Artifacts.ScreenshotPath = filepath.Join(projectDir, "verification", "verification.png")
	cfg.Artifacts.FailureDir = filepath.Join(projectDir, config.DirName, "failures")
	cfg.Artifacts.LogDir = filepath.Join(projectDir, config.DirName, "logs")
	cfg.History.DatabasePath = filepath.Join(projectDir, config.DirName, "history.db")
	return cfg
}
