package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(LoadOptions{ProjectDir: dir, SkipUserConfig: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Target.BaseURL != "http://localhost:5173" {
		t.Fatalf("base_url = %q", cfg.Target.BaseURL)
	}
	if cfg.Browser.Timeout() != 5*time.Second {
		t.Fatalf("timeout = %v", cfg.Browser.Timeout())
	}
	want := filepath.Join(dir, DefaultScreenshotPath)
	if cfg.Artifacts.ScreenshotPath != want {
		t.Fatalf("screenshot path = %q, want %q", cfg.Artifacts.ScreenshotPath, want)
	}
	if cfg.Target.SignupURL() != "http://localhost:5173/signup" {
		t.Fatalf("signup url = %q", cfg.Target.SignupURL())
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, ProjectConfigPath(dir, ""), `
[target]
  base_url = "http://project:8080"

[browser]
  driver = "rod"
  timeout_seconds = 9
`)
	t.Setenv("FLOWVERIFY_BROWSER_TIMEOUT_SECONDS", "12")
	t.Setenv("FLOWVERIFY_DRIVER", "playwright")

	cfg, err := Load(LoadOptions{
		ProjectDir:     dir,
		SkipUserConfig: true,
		FlagOverrides:  map[string]any{"target.base_url": "http://flag:9000"},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Target.BaseURL != "http://flag:9000" {
		t.Fatalf("flag should win, got %q", cfg.Target.BaseURL)
	}
	if cfg.Browser.Driver != "playwright" {
		t.Fatalf("env alias should beat project file, got %q", cfg.Browser.Driver)
	}
	if cfg.Browser.TimeoutSecs != 12 {
		t.Fatalf("env should beat project file, got %d", cfg.Browser.TimeoutSecs)
	}
	if cfg.Student.Name != "Test Student" {
		t.Fatalf("untouched keys keep defaults, got %q", cfg.Student.Name)
	}
}

func TestLoadConfigOverridePath(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "custom.toml")
	writeFile(t, custom, "[student]\n  name = \"Override Student\"\n")

	cfg, err := Load(LoadOptions{ProjectDir: dir, ConfigPath: custom, SkipUserConfig: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Student.Name != "Override Student" {
		t.Fatalf("name = %q", cfg.Student.Name)
	}
}

func TestLoadRejectsBadEnvValue(t *testing.T) {
	t.Setenv("FLOWVERIFY_BROWSER_HEADLESS", "sometimes")
	_, err := Load(LoadOptions{ProjectDir: t.TempDir(), SkipUserConfig: true})
	if err == nil || !strings.Contains(err.Error(), "FLOWVERIFY_BROWSER_HEADLESS") {
		t.Fatalf("expected env parse error, got %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target.BaseURL = "localhost"
	cfg.Student.EmailPattern = "student@example.com"
	cfg.Browser.Driver = "selenium"
	cfg.Browser.TimeoutSecs = 0
	cfg.UI.ApprovedStatus = " "

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		"invalid config:",
		"target.base_url",
		"{token}",
		"browser.driver",
		"browser.timeout_seconds",
		"ui.approved_status",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestValidateNotify(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Notify.Enabled() {
		t.Fatal("notifications should be off by default")
	}

	cfg.Notify.WebhookURL = "ftp://hooks.example.com/x"
	cfg.Notify.On = "sometimes"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"notify.webhook_url", "notify.on"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}

	cfg.Notify.WebhookURL = "https://hooks.example.com/flowverify"
	cfg.Notify.On = "always"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !cfg.Notify.Enabled() {
		t.Error("webhook should enable notifications")
	}
}

func TestValidateExtraArgs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Browser.ExtraArgs = `--lang=en "--user-agent=flow verify`
	if err := Validate(cfg); err == nil {
		t.Fatal("expected unterminated quote to fail validation")
	}

	cfg.Browser.ExtraArgs = `--lang=en "--user-agent=flow verify"`
	args, err := cfg.Browser.Args()
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	if len(args) != 2 || args[1] != "--user-agent=flow verify" {
		t.Fatalf("args = %#v", args)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		key     string
		raw     string
		want    any
		wantErr bool
	}{
		{"browser.headless", "false", false, false},
		{"browser.timeout_seconds", "7", 7, false},
		{"browser.timeout_seconds", "seven", nil, true},
		{"target.base_url", "http://x", "http://x", false},
		{"nope.key", "1", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseValue(tt.key, tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseValue(%s, %s) expected error", tt.key, tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseValue(%s, %s): %v", tt.key, tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseValue(%s, %s) = %#v, want %#v", tt.key, tt.raw, got, tt.want)
		}
	}
}

func TestGetValue(t *testing.T) {
	cfg := DefaultConfig()
	v, ok := GetValue(cfg, "ui.admin_dashboard")
	if !ok || v != "Student Approval" {
		t.Fatalf("GetValue ui.admin_dashboard = %v, %v", v, ok)
	}
	section, ok := GetValue(cfg, "admin")
	if !ok {
		t.Fatal("expected admin section")
	}
	if m, isMap := section.(map[string]any); !isMap || m["email"] != "admin@example.com" {
		t.Fatalf("admin section = %#v", section)
	}
	if _, ok := GetValue(cfg, "ui.missing"); ok {
		t.Fatal("expected missing key")
	}
}

func TestWriteValueRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := ProjectConfigPath(dir, "")

	if err := WriteValue(path, "browser.driver", "rod"); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if err := WriteValue(path, "browser.timeout_seconds", 8); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if err := WriteValue(path, "browser.driver.name", "x"); err == nil {
		t.Fatal("expected error writing beneath a scalar")
	}

	cfg, err := Load(LoadOptions{ProjectDir: dir, SkipUserConfig: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Browser.Driver != "rod" || cfg.Browser.TimeoutSecs != 8 {
		t.Fatalf("browser = %+v", cfg.Browser)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), DirName, "config.toml")

	wrote, err := WriteDefault(path, false)
	if err != nil || !wrote {
		t.Fatalf("WriteDefault first call = %v, %v", wrote, err)
	}
	wrote, err = WriteDefault(path, false)
	if err != nil || wrote {
		t.Fatalf("WriteDefault without force should skip, got %v, %v", wrote, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `base_url = "http://localhost:5173"`) {
		t.Fatalf("unexpected default file:\n%s", data)
	}
}

func TestEnvName(t *testing.T) {
	if got := EnvName("browser.timeout_seconds"); got != "FLOWVERIFY_BROWSER_TIMEOUT_SECONDS" {
		t.Fatalf("EnvName = %q", got)
	}
}
