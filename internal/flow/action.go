package flow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Dicklesworthstone/flowverify/internal/browser"
	"github.com/charmbracelet/log"
)

// ActionKind separates UI operations from the conditions checked after them.
// A failing interact action is an action failure; a failing assert action is
// an assertion failure.
type ActionKind string

const (
	KindInteract ActionKind = "interact"
	KindAssert   ActionKind = "assert"
)

// ErrUnexpectedText is returned when text that must be absent is rendered.
var ErrUnexpectedText = errors.New("unexpected text is visible")

// Session is the state shared by the actions of one run.
type Session struct {
	Driver      browser.Driver
	Logger      *log.Logger
	Screenshots []string
}

// Action is one UI operation or check.
type Action struct {
	Kind ActionKind
	Desc string
	Do   func(ctx context.Context, s *Session) error
}

// Navigate loads url.
func Navigate(url string) Action {
	return Action{
		Kind: KindInteract,
		Desc: "navigate to " + url,
		Do: func(ctx context.Context, s *Session) error {
			return s.Driver.Navigate(ctx, url)
		},
	}
}

// Fill types value into the field labelled label. secret hides the value in logs.
func Fill(label, value string, secret bool) Action {
	shown := value
	if secret {
		shown = "********"
	}
	return Action{
		Kind: KindInteract,
		Desc: fmt.Sprintf("fill %q with %q", label, shown),
		Do: func(ctx context.Context, s *Session) error {
			return s.Driver.Fill(ctx, label, value)
		},
	}
}

// Click presses the button named name.
func Click(name string) Action {
	return Action{
		Kind: KindInteract,
		Desc: fmt.Sprintf("click %q", name),
		Do: func(ctx context.Context, s *Session) error {
			return s.Driver.Click(ctx, name)
		},
	}
}

// ExpectText waits for text to become visible.
func ExpectText(text string) Action {
	return Action{
		Kind: KindAssert,
		Desc: fmt.Sprintf("expect %q visible", text),
		Do: func(ctx context.Context, s *Session) error {
			return s.Driver.WaitText(ctx, text)
		},
	}
}

// ExpectNoText checks that text is not currently rendered.
func ExpectNoText(text string) Action {
	return Action{
		Kind: KindAssert,
		Desc: fmt.Sprintf("expect %q not visible", text),
		Do: func(ctx context.Context, s *Session) error {
			visible, err := s.Driver.TextVisible(ctx, text)
			if err != nil {
				return err
			}
			if visible {
				return fmt.Errorf("%w: %q", ErrUnexpectedText, text)
			}
			return nil
		},
	}
}

// ClickInRow presses the button named name in the matching row.
func ClickInRow(row browser.Row, name string) Action {
	return Action{
		Kind: KindInteract,
		Desc: fmt.Sprintf("click %q in %s", name, row),
		Do: func(ctx context.Context, s *Session) error {
			return s.Driver.ClickInRow(ctx, row, name)
		},
	}
}

// ExpectRowGone waits for the matching row to disappear.
func ExpectRowGone(row browser.Row) Action {
	return Action{
		Kind: KindAssert,
		Desc: fmt.Sprintf("expect %s not visible", row),
		Do: func(ctx context.Context, s *Session) error {
			return s.Driver.WaitRowGone(ctx, row)
		},
	}
}

// AcceptDialogs auto-accepts later dialogs, answering prompts with promptText.
func AcceptDialogs(promptText string) Action {
	return Action{
		Kind: KindInteract,
		Desc: fmt.Sprintf("accept dialogs answering %q", promptText),
		Do: func(ctx context.Context, s *Session) error {
			return s.Driver.AcceptDialogs(ctx, promptText)
		},
	}
}

// Screenshot writes the current viewport to path, creating parent directories.
func Screenshot(path string) Action {
	return Action{
		Kind: KindInteract,
		Desc: "screenshot to " + path,
		Do: func(ctx context.Context, s *Session) error {
			buf, err := s.Driver.Screenshot(ctx)
			if err != nil {
				return err
			}
			if err := writeArtifact(path, buf); err != nil {
				return err
			}
			s.Screenshots = append(s.Screenshots, path)
			return nil
		},
	}
}

func writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
