// Package db persists flowverify run history in SQLite.
//
// The driver is modernc.org/sqlite (pure Go, no cgo). Connections use WAL
// mode with a busy timeout so a watch loop and a history query can share
// one file.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the SQLite connection holding runs and their steps.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

func dsn(path string) string {
	q := make([]string, len(pragmas))
	for i, p := range pragmas {
		q[i] = "_pragma=" + p
	}
	return "file:" + path + "?" + strings.Join(q, "&")
}

// Open connects to the history file at path, creating its directory.
// The schema is left as found; see OpenAndMigrate.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database %s: %w", path, err)
	}
	return &DB{conn: conn, path: path}, nil
}

// OpenAndMigrate opens the history file and brings its schema up to date.
// A file migrated past SchemaVersion by a newer build is rejected.
func OpenAndMigrate(path string) (*DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	if err := db.ValidateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// GetSchemaVersion returns the highest applied migration.
func (db *DB) GetSchemaVersion() (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := ensureMigrationsTable(db.conn); err != nil {
		return 0, err
	}
	return currentVersion(db.conn)
}

// ValidateSchema ensures the database is at the expected schema version.
func (db *DB) ValidateSchema() error {
	version, err := db.GetSchemaVersion()
	if err != nil {
		return err
	}
	if version != SchemaVersion {
		return fmt.Errorf("schema version mismatch: have %d want %d", version, SchemaVersion)
	}
	return nil
}

// Exec executes a SQL statement.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns a single row.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRow(query, args...)
}

// Stats summarizes recorded history.
type Stats struct {
	Path           string `json:"path" yaml:"path"`
	SchemaVersion  int    `json:"schema_version" yaml:"schema_version"`
	RunCount       int    `json:"run_count" yaml:"run_count"`
	PassedCount    int    `json:"passed_count" yaml:"passed_count"`
	FailedCount    int    `json:"failed_count" yaml:"failed_count"`
	CancelledCount int    `json:"cancelled_count" yaml:"cancelled_count"`
	StepCount      int    `json:"step_count" yaml:"step_count"`
}

// GetStats counts runs by outcome and recorded steps.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{Path: db.path}

	version, err := db.GetSchemaVersion()
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = version

	db.mu.RLock()
	defer db.mu.RUnlock()

	byStatus := map[RunStatus]*int{
		RunPassed:    &stats.PassedCount,
		RunFailed:    &stats.FailedCount,
		RunCancelled: &stats.CancelledCount,
	}
	rows, err := db.conn.Query(`SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats.RunCount += n
		if dst, ok := byStatus[RunStatus(status)]; ok {
			*dst = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM run_steps`).Scan(&stats.StepCount); err != nil {
		return nil, fmt.Errorf("counting steps: %w", err)
	}
	return stats, nil
}
