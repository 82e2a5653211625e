// Package browser abstracts the browser automation backends used by flows.
//
// Every backend addresses elements the way a user would: form fields by their
// visible label, buttons by their visible name, table rows by the cell texts
// they contain and indicators by visible text.
package browser

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dicklesworthstone/flowverify/internal/config"
	"github.com/charmbracelet/log"
)

// Driver is one live browser page.
type Driver interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// Fill replaces the value of the field labelled label.
	Fill(ctx context.Context, label, value string) error
	// Click presses the button named name.
	Click(ctx context.Context, name string) error
	// WaitText blocks until text is visible or the action timeout elapses.
	WaitText(ctx context.Context, text string) error
	// TextVisible reports whether text is currently rendered on the page.
	TextVisible(ctx context.Context, text string) (bool, error)
	// ClickInRow presses the button named name inside the row matching row.
	ClickInRow(ctx context.Context, row Row, name string) error
	// WaitRowGone blocks until no visible row matches row.
	WaitRowGone(ctx context.Context, row Row) error
	// AcceptDialogs accepts every subsequent alert, confirm or prompt,
	// answering prompts with promptText.
	AcceptDialogs(ctx context.Context, promptText string) error
	// Screenshot captures the current viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
	// Close releases the page and the browser process.
	Close() error
}

// Row identifies a table row by the texts its cells contain.
type Row struct {
	Cells []string
}

func (r Row) String() string {
	return "row[" + strings.Join(r.Cells, " | ") + "]"
}

// Options configures a driver at launch.
type Options struct {
	Headless          bool
	Bin               string
	ExtraArgs         []string
	NoSandbox         bool
	WindowWidth       int
	WindowHeight      int
	Timeout           time.Duration
	NavigationTimeout time.Duration
	Logger            *log.Logger
}

// DefaultOptions returns headless options with a 5s action timeout.
func DefaultOptions() Options {
	return Options{
		Headless:          true,
		WindowWidth:       1280,
		WindowHeight:      800,
		Timeout:           5 * time.Second,
		NavigationTimeout: 30 * time.Second,
	}
}

// OptionsFromConfig converts the [browser] config section into launch options.
func OptionsFromConfig(cfg config.BrowserConfig, logger *log.Logger) (Options, error) {
	args, err := cfg.Args()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Headless:          cfg.Headless,
		Bin:               cfg.Bin,
		ExtraArgs:         args,
		NoSandbox:         cfg.NoSandbox,
		WindowWidth:       cfg.WindowWidth,
		WindowHeight:      cfg.WindowHeight,
		Timeout:           cfg.Timeout(),
		NavigationTimeout: cfg.NavigationTimeout(),
		Logger:            logger,
	}, nil
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.WindowWidth <= 0 {
		o.WindowWidth = d.WindowWidth
	}
	if o.WindowHeight <= 0 {
		o.WindowHeight = d.WindowHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = d.NavigationTimeout
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Factory launches a driver.
type Factory func(ctx context.Context, opts Options) (Driver, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a driver available by name. Registering a name twice replaces it.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Drivers lists registered driver names.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open launches the named driver.
func Open(ctx context.Context, name string, opts Options) (Driver, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownDriver, name, strings.Join(Drivers(), ", "))
	}
	d, err := f(ctx, opts.withDefaults())
	if err != nil {
		return nil, fmt.Errorf("launching %s: %w", name, err)
	}
	return d, nil
}

// splitFlag turns "--name=value" into ("name", "value") and "--name" into ("name", "").
func splitFlag(arg string) (string, string) {
	arg = strings.TrimLeft(arg, "-")
	name, value, _ := strings.Cut(arg, "=")
	return name, value
}
