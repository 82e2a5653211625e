package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// DriverRod drives Chromium through go-rod.
const DriverRod = "rod"

func init() {
	Register(DriverRod, openRod)
}

type rodDriver struct {
	opts     Options
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	dialogOnce   sync.Once
	dialogMu     sync.Mutex
	dialogPrompt string
}

func rodLauncher(o Options) *launcher.Launcher {
	l := launcher.New().
		Headless(o.Headless).
		NoSandbox(o.NoSandbox).
		Set("window-size", fmt.Sprintf("%d,%d", o.WindowWidth, o.WindowHeight))
	if o.Bin != "" {
		l = l.Bin(o.Bin)
	}
	for _, arg := range o.ExtraArgs {
		name, value := splitFlag(arg)
		if value == "" {
			l = l.Set(flags.Flag(name))
			continue
		}
		l = l.Set(flags.Flag(name), value)
	}
	return l
}

func openRod(ctx context.Context, o Options) (Driver, error) {
	l := rodLauncher(o)
	u, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("launching chromium: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to chromium: %w", err)
	}
	p, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("opening page: %w", err)
	}
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             o.WindowWidth,
		Height:            o.WindowHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		o.Logger.Warn("setting viewport failed", "error", err)
	}

	o.Logger.Debug("chromium started", "driver", DriverRod, "control_url", u)
	return &rodDriver{opts: o, launcher: l, browser: b, page: p}, nil
}

// bounded returns the page scoped to ctx with the action timeout applied.
func (d *rodDriver) bounded(ctx context.Context, timeout time.Duration) (*rod.Page, context.CancelFunc) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	return d.page.Context(actx), cancel
}

func (d *rodDriver) Navigate(ctx context.Context, url string) error {
	p, cancel := d.bounded(ctx, d.opts.NavigationTimeout)
	defer cancel()
	err := p.Navigate(url)
	if err == nil {
		err = p.WaitLoad()
	}
	return wrap(ctx, "navigate", url, err)
}

func (d *rodDriver) Fill(ctx context.Context, label, value string) error {
	p, cancel := d.bounded(ctx, d.opts.Timeout)
	defer cancel()
	err := func() error {
		el, err := p.ElementX(fieldXPath(label))
		if err != nil {
			return err
		}
		if err := el.WaitVisible(); err != nil {
			return err
		}
		if err := el.SelectAllText(); err != nil {
			return err
		}
		return el.Input(value)
	}()
	return wrap(ctx, "fill", label, err)
}

func (d *rodDriver) click(ctx context.Context, xpath string) error {
	p, cancel := d.bounded(ctx, d.opts.Timeout)
	defer cancel()
	el, err := p.ElementX(xpath)
	if err != nil {
		return err
	}
	if err := el.WaitVisible(); err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (d *rodDriver) Click(ctx context.Context, name string) error {
	return wrap(ctx, "click", name, d.click(ctx, buttonXPath(name)))
}

func (d *rodDriver) WaitText(ctx context.Context, text string) error {
	p, cancel := d.bounded(ctx, d.opts.Timeout)
	defer cancel()
	err := p.Wait(rod.Eval(textVisibleFunc, text))
	return wrap(ctx, "wait for text", text, err)
}

func (d *rodDriver) TextVisible(ctx context.Context, text string) (bool, error) {
	p, cancel := d.bounded(ctx, d.opts.Timeout)
	defer cancel()
	res, err := p.Eval(textVisibleFunc, text)
	if err != nil {
		return false, wrap(ctx, "check text", text, err)
	}
	return res.Value.Bool(), nil
}

func (d *rodDriver) ClickInRow(ctx context.Context, row Row, name string) error {
	return wrap(ctx, "click in "+row.String(), name, d.click(ctx, rowButtonXPath(row, name)))
}

func (d *rodDriver) WaitRowGone(ctx context.Context, row Row) error {
	p, cancel := d.bounded(ctx, d.opts.Timeout)
	defer cancel()
	err := p.Wait(rod.Eval(rowGoneFunc, rowXPath(row)))
	return wrap(ctx, "wait for row to disappear", row.String(), err)
}

func (d *rodDriver) AcceptDialogs(ctx context.Context, promptText string) error {
	if err := ctx.Err(); err != nil {
		return wrap(ctx, "accept dialogs", "", err)
	}
	d.dialogMu.Lock()
	d.dialogPrompt = promptText
	d.dialogMu.Unlock()

	d.dialogOnce.Do(func() {
		wait := d.page.EachEvent(func(e *proto.PageJavascriptDialogOpening) {
			d.dialogMu.Lock()
			text := d.dialogPrompt
			d.dialogMu.Unlock()
			go func() {
				err := proto.PageHandleJavaScriptDialog{Accept: true, PromptText: text}.Call(d.page)
				if err != nil {
					d.opts.Logger.Warn("accepting dialog failed", "type", e.Type, "error", err)
				}
			}()
		})
		go wait()
	})
	return nil
}

func (d *rodDriver) Screenshot(ctx context.Context) ([]byte, error) {
	p, cancel := d.bounded(ctx, d.opts.NavigationTimeout)
	defer cancel()
	buf, err := p.Screenshot(false, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
	return buf, wrap(ctx, "screenshot", "", err)
}

func (d *rodDriver) HTML(ctx context.Context) (string, error) {
	p, cancel := d.bounded(ctx, d.opts.Timeout)
	defer cancel()
	html, err := p.HTML()
	return html, wrap(ctx, "read html", "", err)
}

func (d *rodDriver) Close() error {
	var err error
	if d.browser != nil {
		err = d.browser.Close()
	}
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
	}
	return err
}
