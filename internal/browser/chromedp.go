package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// DriverChromedp is the default driver name.
const DriverChromedp = "chromedp"

func init() {
	Register(DriverChromedp, openChromedp)
}

type chromedpDriver struct {
	opts        Options
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	dialogMu     sync.Mutex
	dialogArmed  bool
	dialogPrompt string
}

func chromedpAllocatorOptions(o Options) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(o.WindowWidth, o.WindowHeight),
	)
	if o.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if o.Bin != "" {
		opts = append(opts, chromedp.ExecPath(o.Bin))
	}
	for _, arg := range o.ExtraArgs {
		name, value := splitFlag(arg)
		if value == "" {
			opts = append(opts, chromedp.Flag(name, true))
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

func openChromedp(ctx context.Context, o Options) (Driver, error) {
	// The browser outlives ctx: it is torn down by Close, not by the caller
	// cancelling the launch context.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), chromedpAllocatorOptions(o)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			o.Logger.Debugf("[chromedp] "+format, args...)
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			o.Logger.Warnf("[chromedp] "+format, args...)
		}),
	)

	d := &chromedpDriver{opts: o, allocCancel: allocCancel, tabCtx: tabCtx, tabCancel: tabCancel}

	// First Run on the tab context starts the browser.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()
	select {
	case err := <-started:
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("starting chrome: %w", err)
		}
	case <-ctx.Done():
		d.Close()
		return nil, ctx.Err()
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); !ok {
			return
		}
		d.dialogMu.Lock()
		armed, text := d.dialogArmed, d.dialogPrompt
		d.dialogMu.Unlock()
		if !armed {
			return
		}
		go func() {
			if err := chromedp.Run(tabCtx, page.HandleJavaScriptDialog(true).WithPromptText(text)); err != nil {
				o.Logger.Warn("accepting dialog failed", "error", err)
			}
		}()
	})

	o.Logger.Debug("chrome started", "headless", o.Headless, "bin", o.Bin)
	return d, nil
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (d *chromedpDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	actx, cancel := context.WithTimeout(d.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(actx, actions...)
}

func (d *chromedpDriver) Navigate(ctx context.Context, url string) error {
	return wrap(ctx, "navigate", url, d.run(ctx, d.opts.NavigationTimeout, chromedp.Navigate(url)))
}

func (d *chromedpDriver) Fill(ctx context.Context, label, value string) error {
	sel := fieldXPath(label)
	err := d.run(ctx, d.opts.Timeout,
		chromedp.WaitVisible(sel, chromedp.BySearch),
		chromedp.Clear(sel, chromedp.BySearch),
		chromedp.SendKeys(sel, value, chromedp.BySearch),
	)
	return wrap(ctx, "fill", label, err)
}

func (d *chromedpDriver) Click(ctx context.Context, name string) error {
	err := d.run(ctx, d.opts.Timeout, chromedp.Click(buttonXPath(name), chromedp.BySearch, chromedp.NodeVisible))
	return wrap(ctx, "click", name, err)
}

func (d *chromedpDriver) WaitText(ctx context.Context, text string) error {
	err := d.run(ctx, d.opts.Timeout, chromedp.WaitVisible(textXPath(text), chromedp.BySearch))
	return wrap(ctx, "wait for text", text, err)
}

func (d *chromedpDriver) TextVisible(ctx context.Context, text string) (bool, error) {
	var visible bool
	err := d.run(ctx, d.opts.Timeout, chromedp.Evaluate(callJS(textVisibleFunc, text), &visible))
	return visible, wrap(ctx, "check text", text, err)
}

func (d *chromedpDriver) ClickInRow(ctx context.Context, row Row, name string) error {
	err := d.run(ctx, d.opts.Timeout, chromedp.Click(rowButtonXPath(row, name), chromedp.BySearch, chromedp.NodeVisible))
	return wrap(ctx, "click in "+row.String(), name, err)
}

func (d *chromedpDriver) WaitRowGone(ctx context.Context, row Row) error {
	var gone bool
	err := d.run(ctx, d.opts.Timeout,
		chromedp.Poll(callJS(rowGoneFunc, rowXPath(row)), &gone, chromedp.WithPollingInterval(100*time.Millisecond)),
	)
	return wrap(ctx, "wait for row to disappear", row.String(), err)
}

func (d *chromedpDriver) AcceptDialogs(ctx context.Context, promptText string) error {
	if err := ctx.Err(); err != nil {
		return wrap(ctx, "accept dialogs", "", err)
	}
	d.dialogMu.Lock()
	d.dialogArmed = true
	d.dialogPrompt = promptText
	d.dialogMu.Unlock()
	return nil
}

func (d *chromedpDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := d.run(ctx, d.opts.NavigationTimeout, chromedp.CaptureScreenshot(&buf))
	return buf, wrap(ctx, "screenshot", "", err)
}

func (d *chromedpDriver) HTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, d.opts.Timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, wrap(ctx, "read html", "", err)
}

func (d *chromedpDriver) Close() error {
	if d.tabCancel != nil {
		d.tabCancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	return nil
}
