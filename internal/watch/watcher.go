// Package watch emits debounced change events for a set of files and
// directories using fsnotify.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of writes from editors and formatters.
const DefaultDebounce = 300 * time.Millisecond

// Event is one debounced change.
type Event struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

// Watcher watches files (through their parent directories) and whole directories.
type Watcher struct {
	logger         *log.Logger
	debounceWindow time.Duration

	files map[string]bool // watched files, absolute
	dirs  map[string]bool // directories whose every entry is relevant

	fsw    *fsnotify.Watcher
	events chan Event
	errors chan error

	mu      sync.Mutex
	pending map[string]fsnotify.Op
	timer   *time.Timer

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before events are emitted.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounceWindow = d }
}

// WithLogger sets the watcher logger.
func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher prepares a watcher for paths. Files that do not exist yet are
// watched through their parent directory.
func NewWatcher(paths []string, opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("watch: no paths")
	}
	w := &Watcher{
		logger:         log.Default(),
		debounceWindow: DefaultDebounce,
		files:          map[string]bool{},
		dirs:           map[string]bool{},
		events:         make(chan Event, 16),
		errors:         make(chan error, 4),
		pending:        map[string]fsnotify.Op{},
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			return nil, errors.New("watch: empty path")
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch: resolving %s: %w", p, err)
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			w.dirs[abs] = true
		} else {
			w.files[abs] = true
		}
	}
	return w, nil
}

// Start begins watching until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("watch: nil watcher")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: creating fsnotify watcher: %w", err)
	}
	for _, dir := range w.watchDirs() {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return fmt.Errorf("watch: adding %s: %w", dir, err)
		}
		w.logger.Debug("watching", "dir", dir)
	}
	w.fsw = fsw
	w.started = true

	go w.loop(ctx)
	return nil
}

func (w *Watcher) watchDirs() []string {
	seen := map[string]bool{}
	var out []string
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for d := range w.dirs {
		add(d)
	}
	for f := range w.files {
		add(filepath.Dir(f))
	}
	return out
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.isRelevant(ev.Name) {
				w.record(ev.Name, ev.Op)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

// isRelevant reports whether path is a watched file or lives in a watched directory.
func (w *Watcher) isRelevant(path string) bool {
	path = filepath.Clean(path)
	if w.files[path] {
		return true
	}
	return w.dirs[filepath.Dir(path)]
}

// record accumulates ops for path and restarts the debounce timer.
func (w *Watcher) record(path string, op fsnotify.Op) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] |= op
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceWindow, w.flush)
}

// flush emits every pending path. Events that do not fit the buffer are dropped.
func (w *Watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = map[string]fsnotify.Op{}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	now := time.Now()
	for path, op := range pending {
		select {
		case w.events <- Event{Path: path, Op: op, Time: now}:
		default:
			w.logger.Warn("dropping watch event", "path", path, "op", op)
		}
	}
}

func (w *Watcher) sendError(err error) {
	if err == nil {
		return
	}
	select {
	case w.errors <- err:
	default:
		w.logger.Warn("dropping watch error", "error", err)
	}
}

// Events returns debounced change events. A nil watcher returns a closed channel.
func (w *Watcher) Events() <-chan Event {
	if w == nil {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	return w.events
}

// Errors returns watcher errors. A nil watcher returns a closed channel.
func (w *Watcher) Errors() <-chan error {
	if w == nil {
		ch := make(chan error)
		close(ch)
		return ch
	}
	return w.errors
}

// Stop ends watching and releases the fsnotify watcher.
func (w *Watcher) Stop() error {
	if w == nil {
		return nil
	}
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.mu.Unlock()
		if w.started {
			<-w.doneCh
			err = w.fsw.Close()
		}
	})
	return err
}
