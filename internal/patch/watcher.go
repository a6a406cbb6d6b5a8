package patch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the Watcher waits for more changes before
// calling its handler.
const DefaultDebounce = 150 * time.Millisecond

// Watcher calls a handler when a patch file, or any .cue file in a patch
// directory, changes. Bursts of changes are debounced into one call.
//
// The directory is watched rather than the file because editors often save
// by renaming a temporary file over the original.
type Watcher struct {
	path     string
	dir      string
	isDir    bool
	debounce time.Duration
	handler  func()
	logger   *slog.Logger

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce window. Default: DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWatchLogger sets the logger for watch errors. Default: slog.Default().
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// NewWatcher creates a Watcher for path, which may be a .cue file or a
// directory of them. handler runs on the Watcher's goroutine.
func NewWatcher(path string, handler func(), opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		path:     abs,
		dir:      abs,
		isDir:    info.IsDir(),
		debounce: DefaultDebounce,
		handler:  handler,
		logger:   slog.Default(),
		watcher:  fw,
		done:     make(chan struct{}),
	}
	if !w.isDir {
		w.dir = filepath.Dir(abs)
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", w.dir, err)
	}
	return w, nil
}

// Run processes file events until ctx is cancelled or Stop is called.
// A pending debounced change is delivered before Run returns.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time
	pending := false

	flush := func() {
		if pending && w.handler != nil {
			w.handler()
		}
		pending = false
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				flush()
				return
			}
			if !w.relevant(event) {
				continue
			}
			pending = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				flush()
				return
			}
			w.logger.Warn("patch watch error", "path", w.path, "error", err)

		case <-timerC:
			flush()
		}
	}
}

// Stop stops the Watcher and releases its resources.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	if w.isDir {
		return filepath.Ext(name) == ".cue"
	}
	return name == w.path
}
