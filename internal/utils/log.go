// Package utils provides structured logging for flowverify.
package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// LogLevelEnv overrides the configured log level when set.
const LogLevelEnv = "FLOWVERIFY_LOG_LEVEL"

// LoggerOptions configures the logger.
type LoggerOptions struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string
	// Output is the writer for log output (default: os.Stderr)
	Output io.Writer
	// Prefix is the component name prefix
	Prefix string
	// TimeFormat is the time format string (default: RFC3339)
	TimeFormat string
	// ReportCaller adds file:line to log entries
	ReportCaller bool
	// ReportTimestamp adds timestamps to log entries
	ReportTimestamp bool
}

// DefaultLoggerOptions returns sensible default options.
func DefaultLoggerOptions() LoggerOptions {
	return LoggerOptions{
		Level:           "info",
		Output:          os.Stderr,
		Prefix:          "",
		TimeFormat:      time.Kitchen,
		ReportCaller:    false,
		ReportTimestamp: true,
	}
}

// ParseLevel converts a string level to log.Level. Unknown values map to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// InitLogger creates a new logger with the given options.
func InitLogger(opts LoggerOptions) *log.Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	return log.NewWithOptions(opts.Output, log.Options{
		Level:           ParseLevel(opts.Level),
		Prefix:          opts.Prefix,
		TimeFormat:      opts.TimeFormat,
		ReportCaller:    opts.ReportCaller,
		ReportTimestamp: opts.ReportTimestamp,
	})
}

// InitConsoleLogger creates a logger writing to w (stderr when nil).
// A non-empty level wins, then FLOWVERIFY_LOG_LEVEL, then the default.
func InitConsoleLogger(w io.Writer, level string) *log.Logger {
	opts := DefaultLoggerOptions()
	if w != nil {
		opts.Output = w
	}
	if env := os.Getenv(LogLevelEnv); env != "" {
		opts.Level = env
	}
	if level != "" {
		opts.Level = level
	}
	return InitLogger(opts)
}

// InitFileLogger creates a logger that appends to a file.
// The returned closer must be called when the logger is no longer needed.
func InitFileLogger(path string, opts LoggerOptions) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, err
	}

	opts.Output = f
	return InitLogger(opts), f, nil
}

// InitRunLogger creates a per-run logger writing to <logDir>/run-<id>.log.
// Run logs capture everything at debug level. A non-nil console also receives
// entries at consoleLevel and above.
func InitRunLogger(logDir, runID string, console io.Writer, consoleLevel string) (*log.Logger, string, io.Closer, error) {
	path := filepath.Join(logDir, "run-"+runID+".log")

	prefix := runID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, "", nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, "", nil, err
	}

	opts := LoggerOptions{
		Level:           "debug",
		Output:          f,
		Prefix:          prefix,
		TimeFormat:      time.RFC3339,
		ReportCaller:    true,
		ReportTimestamp: true,
	}
	if console != nil {
		opts.Output = io.MultiWriter(f, &levelWriter{w: console, min: ParseLevel(consoleLevel)})
	}
	return InitLogger(opts), path, f, nil
}

// levelWriter forwards logfmt/text lines whose level is at least min.
type levelWriter struct {
	w   io.Writer
	min log.Level
}

var levelTags = []struct {
	tag   string
	level log.Level
}{
	{"DEBU", log.DebugLevel},
	{"INFO", log.InfoLevel},
	{"WARN", log.WarnLevel},
	{"ERRO", log.ErrorLevel},
	{"FATA", log.FatalLevel},
}

func (lw *levelWriter) Write(p []byte) (int, error) {
	line := string(p)
	at, level := -1, log.InfoLevel
	for _, lt := range levelTags {
		if i := strings.Index(line, lt.tag); i >= 0 && (at < 0 || i < at) {
			at, level = i, lt.level
		}
	}
	if at >= 0 && level < lw.min {
		return len(p), nil
	}
	if _, err := lw.w.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
