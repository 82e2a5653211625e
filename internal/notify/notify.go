// Package notify announces finished runs over a webhook and the desktop.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/Dicklesworthstone/flowverify/internal/config"
	"github.com/Dicklesworthstone/flowverify/internal/db"
	"github.com/Dicklesworthstone/flowverify/internal/flow"
	"github.com/charmbracelet/log"
)

// UserAgent is sent with every webhook request.
const UserAgent = "flowverify-webhook/1.0"

// Event names the outcome being announced.
type Event string

const (
	EventRunPassed    Event = "run_passed"
	EventRunFailed    Event = "run_failed"
	EventRunCancelled Event = "run_cancelled"
)

// EventFor maps a terminal run status to its webhook event.
func EventFor(status db.RunStatus) Event {
	switch status {
	case db.RunPassed:
		return EventRunPassed
	case db.RunCancelled:
		return EventRunCancelled
	default:
		return EventRunFailed
	}
}

// Payload is the JSON body posted to the webhook URL.
type Payload struct {
	Event        Event  `json:"event"`
	RunID        string `json:"run_id"`
	Scenario     string `json:"scenario"`
	Driver       string `json:"driver"`
	BaseURL      string `json:"base_url"`
	StudentEmail string `json:"student_email,omitempty"`
	FailedStep   string `json:"failed_step,omitempty"`
	FailureKind  string `json:"failure_kind,omitempty"`
	Error        string `json:"error,omitempty"`
	Screenshot   string `json:"screenshot,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	Timestamp    string `json:"timestamp"`
	Project      string `json:"project,omitempty"`
}

// WebhookSender delivers a payload to a URL.
type WebhookSender interface {
	Send(ctx context.Context, url string, payload Payload) error
}

type DesktopNotifier interface {
	Notify(title, message string) error
}

type DesktopNotifierFunc func(title, message string) error

func (f DesktopNotifierFunc) Notify(title, message string) error {
	return f(title, message)
}

// HTTPWebhook posts payloads as JSON.
type HTTPWebhook struct {
	client *http.Client
}

// NewHTTPWebhook creates a webhook sender with a request timeout.
func NewHTTPWebhook(timeout time.Duration) *HTTPWebhook {
	return &HTTPWebhook{client: &http.Client{Timeout: timeout}}
}

// Send posts payload to url. Any non-2xx response is an error.
func (w *HTTPWebhook) Send(ctx context.Context, url string, payload Payload) error {
	if url == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Notifier sends run-finished notifications according to NotifyConfig.
type Notifier struct {
	cfg         config.NotifyConfig
	projectPath string
	logger      *log.Logger
	webhook     WebhookSender
	desktop     DesktopNotifier
	now         func() time.Time
}

// New builds a Notifier. A nil logger falls back to log.Default().
func New(cfg config.NotifyConfig, projectPath string, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.Default()
	}
	n := &Notifier{
		cfg:         cfg,
		projectPath: projectPath,
		logger:      logger,
		desktop:     DesktopNotifierFunc(SendDesktopNotification),
		now:         time.Now,
	}
	if cfg.WebhookURL != "" {
		n.webhook = NewHTTPWebhook(n.timeout())
	}
	return n
}

// WithWebhook replaces the webhook sender.
func (n *Notifier) WithWebhook(w WebhookSender) *Notifier {
	n.webhook = w
	return n
}

// WithDesktop replaces the desktop notifier.
func (n *Notifier) WithDesktop(d DesktopNotifier) *Notifier {
	n.desktop = d
	return n
}

func (n *Notifier) timeout() time.Duration {
	if n.cfg.TimeoutSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n.cfg.TimeoutSecs) * time.Second
}

// Wants reports whether a run with the given status should be announced.
func (n *Notifier) Wants(status db.RunStatus) bool {
	if n == nil || !n.cfg.Enabled() {
		return false
	}
	if n.cfg.On == "always" {
		return true
	}
	return status != db.RunPassed
}

// RunFinished announces res. Delivery failures are logged and joined into
// the returned error; they never change the run outcome.
func (n *Notifier) RunFinished(ctx context.Context, res *flow.Result) error {
	if res == nil || !n.Wants(res.Status) {
		return nil
	}

	var errs []error
	event := EventFor(res.Status)

	if n.cfg.Desktop && n.desktop != nil {
		title, message := desktopMessage(res)
		if err := n.desktop.Notify(title, message); err != nil {
			n.logger.Warn("desktop notification failed", "error", err)
			errs = append(errs, err)
		}
	}

	if n.cfg.WebhookURL != "" && n.webhook != nil {
		webhookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout())
		err := n.webhook.Send(webhookCtx, n.cfg.WebhookURL, n.payload(event, res))
		cancel()
		if err != nil {
			n.logger.Warn("webhook notification failed", "error", err, "run_id", res.RunID, "event", event)
			errs = append(errs, err)
		} else {
			n.logger.Debug("webhook notification sent", "run_id", res.RunID, "event", event)
		}
	}

	return errors.Join(errs...)
}

func (n *Notifier) payload(event Event, res *flow.Result) Payload {
	screenshot := res.Screenshot
	if screenshot == "" {
		screenshot = res.FailureScreenshot
	}
	return Payload{
		Event:        event,
		RunID:        res.RunID,
		Scenario:     res.Scenario,
		Driver:       res.Driver,
		BaseURL:      res.BaseURL,
		StudentEmail: res.StudentEmail,
		FailedStep:   res.FailedStep,
		FailureKind:  string(res.FailureKind),
		Error:        truncate(res.Error, 500),
		Screenshot:   screenshot,
		DurationMs:   res.Duration.Milliseconds(),
		Timestamp:    n.now().UTC().Format(time.RFC3339),
		Project:      n.projectPath,
	}
}

func desktopMessage(res *flow.Result) (string, string) {
	title := fmt.Sprintf("flowverify: %s %s", res.Scenario, strings.ToUpper(string(res.Status)))
	if res.Status == db.RunPassed {
		return title, fmt.Sprintf("All %d steps passed\n%s", len(res.Steps), res.StudentEmail)
	}
	msg := truncate(res.Error, 140)
	if res.FailedStep != "" {
		msg = res.FailedStep + ": " + msg
	}
	return title, msg
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// SendDesktopNotification sends a best-effort desktop notification on the current platform.
func SendDesktopNotification(title, message string) error {
	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if title == "" {
		title = "flowverify"
	}
	if message == "" {
		return fmt.Errorf("message is required")
	}

	switch runtime.GOOS {
	case "darwin":
		if _, err := exec.LookPath("osascript"); err != nil {
			return fmt.Errorf("osascript not found")
		}
		script := fmt.Sprintf(
			`display notification "%s" with title "%s"`,
			escapeAppleScript(message),
			escapeAppleScript(title),
		)
		return runNoOutput("osascript", "-e", script)
	case "linux":
		if _, err := exec.LookPath("notify-send"); err != nil {
			return fmt.Errorf("notify-send not found")
		}
		return runNoOutput("notify-send", title, message)
	default:
		return fmt.Errorf("desktop notifications unsupported on %s", runtime.GOOS)
	}
}

func runNoOutput(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Env = os.Environ()
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w (%s)", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
