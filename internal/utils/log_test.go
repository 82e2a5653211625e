package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{" warn ", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"fatal", log.FatalLevel},
		{"bogus", log.InfoLevel},
		{"", log.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger(LoggerOptions{Level: "warn", Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown", "step", "register")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "step=register") {
		t.Errorf("expected warn line with key/value, got %q", out)
	}
}

func TestInitConsoleLogger_LevelPrecedence(t *testing.T) {
	t.Setenv(LogLevelEnv, "debug")

	var buf bytes.Buffer
	logger := InitConsoleLogger(&buf, "")
	if logger.GetLevel() != log.DebugLevel {
		t.Errorf("expected env level, got %v", logger.GetLevel())
	}

	logger = InitConsoleLogger(&buf, "error")
	if logger.GetLevel() != log.ErrorLevel {
		t.Errorf("expected explicit level to win, got %v", logger.GetLevel())
	}
	logger.Error("watch stopped")
	if !strings.Contains(buf.String(), "watch stopped") {
		t.Errorf("expected output on the given writer, got %q", buf.String())
	}
}

func TestInitRunLogger_WritesFile(t *testing.T) {
	dir := t.TempDir()

	logger, path, closer, err := InitRunLogger(dir, "0123456789abcdef", nil, "")
	if err != nil {
		t.Fatalf("InitRunLogger: %v", err)
	}
	logger.Debug("step started", "step", "register")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if path != filepath.Join(dir, "run-0123456789abcdef.log") {
		t.Errorf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "step started") {
		t.Errorf("log file missing entry: %s", data)
	}
	if !strings.Contains(string(data), "01234567") {
		t.Errorf("log file missing run prefix: %s", data)
	}
}

func TestInitRunLogger_ConsoleFiltersByLevel(t *testing.T) {
	dir := t.TempDir()
	var console strings.Builder

	logger, path, closer, err := InitRunLogger(dir, "abc", &console, "info")
	if err != nil {
		t.Fatalf("InitRunLogger: %v", err)
	}
	logger.Debug("fill field", "label", "Email Address")
	logger.Info("step passed", "step", "register")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if strings.Contains(console.String(), "fill field") {
		t.Errorf("debug entry reached console: %s", console.String())
	}
	if !strings.Contains(console.String(), "step passed") {
		t.Errorf("info entry missing from console: %s", console.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "fill field") || !strings.Contains(string(data), "step passed") {
		t.Errorf("run log missing entries: %s", data)
	}
}
