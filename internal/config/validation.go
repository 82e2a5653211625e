package config

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Validate checks the configuration for semantic errors.
func Validate(cfg Config) error {
	var errs []string

	if strings.TrimSpace(cfg.Target.BaseURL) == "" {
		errs = append(errs, "target.base_url is required")
	} else if u, err := url.Parse(cfg.Target.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "target.base_url must be an absolute URL (e.g. http://localhost:5173)")
	}

	if strings.TrimSpace(cfg.Student.Name) == "" {
		errs = append(errs, "student.name is required")
	}
	if !strings.Contains(cfg.Student.EmailPattern, "{token}") {
		errs = append(errs, "student.email_pattern must contain {token}")
	} else if !strings.Contains(cfg.Student.EmailPattern, "@") {
		errs = append(errs, "student.email_pattern must be an email address")
	}
	if cfg.Student.Password == "" {
		errs = append(errs, "student.password is required")
	}
	if !oneOf(cfg.Student.Uniqueness, "unix_time", "unix_nano", "uuid") {
		errs = append(errs, "student.uniqueness must be one of unix_time|unix_nano|uuid")
	}

	if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		errs = append(errs, "admin.email and admin.password are required")
	}

	ui := map[string]string{
		"ui.full_name_label":      cfg.UI.FullNameLabel,
		"ui.email_label":          cfg.UI.EmailLabel,
		"ui.password_label":       cfg.UI.PasswordLabel,
		"ui.sign_up_button":       cfg.UI.SignUpButton,
		"ui.sign_in_button":       cfg.UI.SignInButton,
		"ui.sign_out_button":      cfg.UI.SignOutButton,
		"ui.approve_button":       cfg.UI.ApproveButton,
		"ui.registration_success": cfg.UI.RegistrationSuccess,
		"ui.admin_dashboard":      cfg.UI.AdminDashboard,
		"ui.signed_out":           cfg.UI.SignedOut,
		"ui.approved_status":      cfg.UI.ApprovedStatus,
		"ui.pending_status":       cfg.UI.PendingStatus,
		"ui.rejected_status":      cfg.UI.RejectedStatus,
		"ui.reject_button":        cfg.UI.RejectButton,
	}
	for _, key := range slices.Sorted(maps.Keys(ui)) {
		if strings.TrimSpace(ui[key]) == "" {
			errs = append(errs, key+" cannot be empty")
		}
	}

	if !oneOf(cfg.Browser.Driver, "chromedp", "rod", "playwright") {
		errs = append(errs, "browser.driver must be one of chromedp|rod|playwright")
	}
	if cfg.Browser.TimeoutSecs <= 0 {
		errs = append(errs, "browser.timeout_seconds must be > 0")
	}
	if cfg.Browser.NavigationTimeoutSecs <= 0 {
		errs = append(errs, "browser.navigation_timeout_seconds must be > 0")
	}
	if cfg.Browser.WindowWidth <= 0 || cfg.Browser.WindowHeight <= 0 {
		errs = append(errs, "browser.window_width and browser.window_height must be > 0")
	}
	if _, err := shellwords.Parse(cfg.Browser.ExtraArgs); err != nil {
		errs = append(errs, fmt.Sprintf("browser.extra_args: %v", err))
	}

	if strings.TrimSpace(cfg.Artifacts.ScreenshotPath) == "" {
		errs = append(errs, "artifacts.screenshot_path is required")
	}
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.DatabasePath) == "" {
		errs = append(errs, "history.database_path is required when history is enabled")
	}

	if cfg.Notify.WebhookURL != "" {
		if u, err := url.Parse(cfg.Notify.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "notify.webhook_url must be an http(s) URL")
		}
	}
	if !oneOf(cfg.Notify.On, "failure", "always") {
		errs = append(errs, "notify.on must be one of failure|always")
	}
	if cfg.Notify.TimeoutSecs <= 0 {
		errs = append(errs, "notify.timeout_seconds must be > 0")
	}

	if !oneOf(strings.ToLower(cfg.Log.Level), "debug", "info", "warn", "warning", "error") {
		errs = append(errs, "log.level must be one of debug|info|warn|error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func oneOf(val string, opts ...string) bool {
	for _, o := range opts {
		if val == o {
			return true
		}
	}
	return false
}
