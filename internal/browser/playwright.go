package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// DriverPlaywright drives Chromium through the Playwright node driver.
// The driver and browsers must be installed beforehand
// (go run github.com/playwright-community/playwright-go/cmd/playwright install chromium).
const DriverPlaywright = "playwright"

func init() {
	Register(DriverPlaywright, openPlaywright)
}

type playwrightDriver struct {
	opts    Options
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page

	dialogOnce   sync.Once
	dialogMu     sync.Mutex
	dialogPrompt string
}

func openPlaywright(ctx context.Context, o Options) (Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless:        playwright.Bool(o.Headless),
		Args:            o.ExtraArgs,
		ChromiumSandbox: playwright.Bool(!o.NoSandbox),
	}
	if o.Bin != "" {
		launch.ExecutablePath = playwright.String(o.Bin)
	}
	b, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launching chromium: %w", err)
	}
	p, err := b.NewPage(playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{Width: o.WindowWidth, Height: o.WindowHeight},
	})
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("opening page: %w", err)
	}
	p.SetDefaultTimeout(millis(o.Timeout))
	p.SetDefaultNavigationTimeout(millis(o.NavigationTimeout))

	o.Logger.Debug("chromium started", "driver", DriverPlaywright, "version", b.Version())
	return &playwrightDriver{opts: o, pw: pw, browser: b, page: p}, nil
}

func millis(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}

// budget returns the wait in milliseconds, shortened to ctx's deadline.
// Playwright calls take no context, so cancellation is checked up front.
func budget(ctx context.Context, d time.Duration) (*float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < d {
			d = left
		}
	}
	if d <= 0 {
		return nil, context.DeadlineExceeded
	}
	return playwright.Float(millis(d)), nil
}

// pwWrap maps Playwright timeouts onto ErrTimeout before wrapping.
func pwWrap(ctx context.Context, op, target string, err error) error {
	if err != nil && errors.Is(err, playwright.ErrTimeout) {
		err = fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return wrap(ctx, op, target, err)
}

func (d *playwrightDriver) Navigate(ctx context.Context, url string) error {
	t, err := budget(ctx, d.opts.NavigationTimeout)
	if err == nil {
		_, err = d.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateLoad,
			Timeout:   t,
		})
	}
	return pwWrap(ctx, "navigate", url, err)
}

func (d *playwrightDriver) Fill(ctx context.Context, label, value string) error {
	t, err := budget(ctx, d.opts.Timeout)
	if err == nil {
		err = d.page.GetByLabel(label, playwright.PageGetByLabelOptions{Exact: playwright.Bool(true)}).
			Fill(value, playwright.LocatorFillOptions{Timeout: t})
	}
	return pwWrap(ctx, "fill", label, err)
}

func (d *playwrightDriver) Click(ctx context.Context, name string) error {
	t, err := budget(ctx, d.opts.Timeout)
	if err == nil {
		err = d.page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
			Name:  name,
			Exact: playwright.Bool(true),
		}).Click(playwright.LocatorClickOptions{Timeout: t})
	}
	return pwWrap(ctx, "click", name, err)
}

func (d *playwrightDriver) WaitText(ctx context.Context, text string) error {
	t, err := budget(ctx, d.opts.Timeout)
	if err == nil {
		err = d.page.GetByText(text).First().WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: t,
		})
	}
	return pwWrap(ctx, "wait for text", text, err)
}

func (d *playwrightDriver) TextVisible(ctx context.Context, text string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrap(ctx, "check text", text, err)
	}
	res, err := d.page.Evaluate(textVisibleFunc, text)
	if err != nil {
		return false, pwWrap(ctx, "check text", text, err)
	}
	visible, _ := res.(bool)
	return visible, nil
}

func (d *playwrightDriver) row(row Row) playwright.Locator {
	loc := d.page.GetByRole(*playwright.AriaRoleRow)
	for _, c := range row.Cells {
		loc = loc.Filter(playwright.LocatorFilterOptions{HasText: c})
	}
	return loc
}

func (d *playwrightDriver) ClickInRow(ctx context.Context, row Row, name string) error {
	t, err := budget(ctx, d.opts.Timeout)
	if err == nil {
		err = d.row(row).First().GetByRole(*playwright.AriaRoleButton, playwright.LocatorGetByRoleOptions{
			Name:  name,
			Exact: playwright.Bool(true),
		}).Click(playwright.LocatorClickOptions{Timeout: t})
	}
	return pwWrap(ctx, "click in "+row.String(), name, err)
}

func (d *playwrightDriver) WaitRowGone(ctx context.Context, row Row) error {
	t, err := budget(ctx, d.opts.Timeout)
	if err == nil {
		err = d.row(row).First().WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateHidden,
			Timeout: t,
		})
	}
	return pwWrap(ctx, "wait for row to disappear", row.String(), err)
}

func (d *playwrightDriver) AcceptDialogs(ctx context.Context, promptText string) error {
	if err := ctx.Err(); err != nil {
		return wrap(ctx, "accept dialogs", "", err)
	}
	d.dialogMu.Lock()
	d.dialogPrompt = promptText
	d.dialogMu.Unlock()

	d.dialogOnce.Do(func() {
		d.page.OnDialog(func(dialog playwright.Dialog) {
			d.dialogMu.Lock()
			text := d.dialogPrompt
			d.dialogMu.Unlock()
			if err := dialog.Accept(text); err != nil {
				d.opts.Logger.Warn("accepting dialog failed", "type", dialog.Type(), "error", err)
			}
		})
	})
	return nil
}

func (d *playwrightDriver) Screenshot(ctx context.Context) ([]byte, error) {
	t, err := budget(ctx, d.opts.NavigationTimeout)
	if err != nil {
		return nil, wrap(ctx, "screenshot", "", err)
	}
	buf, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypePng,
		Timeout: t,
	})
	return buf, pwWrap(ctx, "screenshot", "", err)
}

func (d *playwrightDriver) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrap(ctx, "read html", "", err)
	}
	html, err := d.page.Content()
	return html, pwWrap(ctx, "read html", "", err)
}

func (d *playwrightDriver) Close() error {
	var errs []error
	if d.browser != nil {
		errs = append(errs, d.browser.Close())
	}
	if d.pw != nil {
		errs = append(errs, d.pw.Stop())
	}
	return errors.Join(errs...)
}
