// Package config implements hierarchical configuration for flowverify.
// Precedence: defaults < user (~/.flowverify/config.toml) < project (.flowverify/config.toml) < env (FLOWVERIFY_*) < flags.
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	Target    TargetConfig    `toml:"target" mapstructure:"target" json:"target" yaml:"target"`
	Student   StudentConfig   `toml:"student" mapstructure:"student" json:"student" yaml:"student"`
	Admin     AdminConfig     `toml:"admin" mapstructure:"admin" json:"admin" yaml:"admin"`
	UI        UIConfig        `toml:"ui" mapstructure:"ui" json:"ui" yaml:"ui"`
	Browser   BrowserConfig   `toml:"browser" mapstructure:"browser" json:"browser" yaml:"browser"`
	Artifacts ArtifactsConfig `toml:"artifacts" mapstructure:"artifacts" json:"artifacts" yaml:"artifacts"`
	History   HistoryConfig   `toml:"history" mapstructure:"history" json:"history" yaml:"history"`
	Notify    NotifyConfig    `toml:"notify" mapstructure:"notify" json:"notify" yaml:"notify"`
	Log       LogConfig       `toml:"log" mapstructure:"log" json:"log" yaml:"log"`
}

// TargetConfig locates the application under test.
type TargetConfig struct {
	BaseURL    string `toml:"base_url" mapstructure:"base_url" json:"base_url" yaml:"base_url"`
	SignupPath string `toml:"signup_path" mapstructure:"signup_path" json:"signup_path" yaml:"signup_path"`
	SigninPath string `toml:"signin_path" mapstructure:"signin_path" json:"signin_path" yaml:"signin_path"`
}

// StudentConfig describes the account registered by each run.
type StudentConfig struct {
	Name         string `toml:"name" mapstructure:"name" json:"name" yaml:"name"`
	EmailPattern string `toml:"email_pattern" mapstructure:"email_pattern" json:"email_pattern" yaml:"email_pattern"` // must contain {token}
	Password     string `toml:"password" mapstructure:"password" json:"password" yaml:"password"`
	Uniqueness   string `toml:"uniqueness" mapstructure:"uniqueness" json:"uniqueness" yaml:"uniqueness"` // unix_time | unix_nano | uuid
	RejectReason string `toml:"reject_reason" mapstructure:"reject_reason" json:"reject_reason" yaml:"reject_reason"`
}

// AdminConfig holds the pre-existing administrator credentials.
type AdminConfig struct {
	Email    string `toml:"email" mapstructure:"email" json:"email" yaml:"email"`
	Password string `toml:"password" mapstructure:"password" json:"password" yaml:"password"`
}

// UIConfig holds the visible strings the verifier addresses and asserts on.
type UIConfig struct {
	FullNameLabel       string `toml:"full_name_label" mapstructure:"full_name_label" json:"full_name_label" yaml:"full_name_label"`
	EmailLabel          string `toml:"email_label" mapstructure:"email_label" json:"email_label" yaml:"email_label"`
	PasswordLabel       string `toml:"password_label" mapstructure:"password_label" json:"password_label" yaml:"password_label"`
	SignUpButton        string `toml:"sign_up_button" mapstructure:"sign_up_button" json:"sign_up_button" yaml:"sign_up_button"`
	SignInButton        string `toml:"sign_in_button" mapstructure:"sign_in_button" json:"sign_in_button" yaml:"sign_in_button"`
	SignOutButton       string `toml:"sign_out_button" mapstructure:"sign_out_button" json:"sign_out_button" yaml:"sign_out_button"`
	ApproveButton       string `toml:"approve_button" mapstructure:"approve_button" json:"approve_button" yaml:"approve_button"`
	RejectButton        string `toml:"reject_button" mapstructure:"reject_button" json:"reject_button" yaml:"reject_button"`
	RegistrationSuccess string `toml:"registration_success" mapstructure:"registration_success" json:"registration_success" yaml:"registration_success"`
	AdminDashboard      string `toml:"admin_dashboard" mapstructure:"admin_dashboard" json:"admin_dashboard" yaml:"admin_dashboard"`
	SignedOut           string `toml:"signed_out" mapstructure:"signed_out" json:"signed_out" yaml:"signed_out"`
	ApprovedStatus      string `toml:"approved_status" mapstructure:"approved_status" json:"approved_status" yaml:"approved_status"`
	PendingStatus       string `toml:"pending_status" mapstructure:"pending_status" json:"pending_status" yaml:"pending_status"`
	RejectedStatus      string `toml:"rejected_status" mapstructure:"rejected_status" json:"rejected_status" yaml:"rejected_status"`
}

// BrowserConfig selects and tunes the automation driver.
type BrowserConfig struct {
	Driver                string `toml:"driver" mapstructure:"driver" json:"driver" yaml:"driver"` // chromedp | rod | playwright
	Headless              bool   `toml:"headless" mapstructure:"headless" json:"headless" yaml:"headless"`
	Bin                   string `toml:"bin" mapstructure:"bin" json:"bin" yaml:"bin"`
	ExtraArgs             string `toml:"extra_args" mapstructure:"extra_args" json:"extra_args" yaml:"extra_args"`
	NoSandbox             bool   `toml:"no_sandbox" mapstructure:"no_sandbox" json:"no_sandbox" yaml:"no_sandbox"`
	WindowWidth           int    `toml:"window_width" mapstructure:"window_width" json:"window_width" yaml:"window_width"`
	WindowHeight          int    `toml:"window_height" mapstructure:"window_height" json:"window_height" yaml:"window_height"`
	TimeoutSecs           int    `toml:"timeout_seconds" mapstructure:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"`
	NavigationTimeoutSecs int    `toml:"navigation_timeout_seconds" mapstructure:"navigation_timeout_seconds" json:"navigation_timeout_seconds" yaml:"navigation_timeout_seconds"`
}

// ArtifactsConfig controls files written by a run.
type ArtifactsConfig struct {
	ScreenshotPath   string `toml:"screenshot_path" mapstructure:"screenshot_path" json:"screenshot_path" yaml:"screenshot_path"`
	FailureDir       string `toml:"failure_dir" mapstructure:"failure_dir" json:"failure_dir" yaml:"failure_dir"`
	CaptureOnFailure bool   `toml:"capture_on_failure" mapstructure:"capture_on_failure" json:"capture_on_failure" yaml:"capture_on_failure"`
	LogDir           string `toml:"log_dir" mapstructure:"log_dir" json:"log_dir" yaml:"log_dir"`
}

// HistoryConfig holds run history persistence settings.
type HistoryConfig struct {
	Enabled      bool   `toml:"enabled" mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	DatabasePath string `toml:"database_path" mapstructure:"database_path" json:"database_path" yaml:"database_path"`
}

// NotifyConfig controls run-finished notifications.
type NotifyConfig struct {
	WebhookURL  string `toml:"webhook_url" mapstructure:"webhook_url" json:"webhook_url" yaml:"webhook_url"`
	Desktop     bool   `toml:"desktop" mapstructure:"desktop" json:"desktop" yaml:"desktop"`
	On          string `toml:"on" mapstructure:"on" json:"on" yaml:"on"` // failure | always
	TimeoutSecs int    `toml:"timeout_seconds" mapstructure:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"`
}

// Enabled reports whether any notification channel is configured.
func (n NotifyConfig) Enabled() bool {
	return n.WebhookURL != "" || n.Desktop
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level" mapstructure:"level" json:"level" yaml:"level"`
}

// Timeout returns the bounded-wait duration for a single action.
func (b BrowserConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// NavigationTimeout returns the page-load budget.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	return time.Duration(b.NavigationTimeoutSecs) * time.Second
}

// SignupURL returns the absolute registration page URL.
func (t TargetConfig) SignupURL() string {
	return joinURL(t.BaseURL, t.SignupPath)
}

// SigninURL returns the absolute sign-in page URL.
func (t TargetConfig) SigninURL() string {
	return joinURL(t.BaseURL, t.SigninPath)
}

func joinURL(base, path string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	if path == "" {
		return base
	}
	if path[0] != '/' {
		path = "/" + path
	}
	return base + path
}
