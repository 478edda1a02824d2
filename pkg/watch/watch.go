// Package watch turns edits of source files into debounced change
// notifications.
//
// Editors write a file in bursts (truncate, write, rename into place). A
// [Watcher] collects the events for the files it was given and calls its
// handler once the files have been quiet for the debounce window, so one
// save triggers one graph fetch.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a change is delivered.
const DefaultDebounce = 500 * time.Millisecond

// Handler receives the absolute paths changed during one quiet period,
// sorted.
type Handler func(paths []string)

// Options configures a [Watcher].
type Options struct {
	// Debounce is the quiet period. Zero uses [DefaultDebounce].
	Debounce time.Duration
	Logger   *log.Logger
}

// Watcher watches a fixed set of files.
//
// The parent directories are watched rather than the files themselves so
// that rename-on-save editors keep being observed. The handler is called from
// a single goroutine.
type Watcher struct {
	fs       *fsnotify.Watcher
	files    map[string]bool
	handler  Handler
	debounce time.Duration
	logger   *log.Logger

	changes  chan string
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// New creates a watcher for paths. Call [Watcher.Start] to begin.
func New(paths []string, handler Handler, opts Options) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("watch: no paths given")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	files := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		files[abs] = true
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	return &Watcher{
		fs:       fw,
		files:    files,
		handler:  handler,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		changes:  make(chan string, 64),
		done:     make(chan struct{}),
	}, nil
}

// Files returns the watched absolute paths, sorted.
func (w *Watcher) Files() []string {
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Start begins watching. It returns once the directories are registered;
// events are processed until ctx is cancelled or [Watcher.Stop] is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.started = true

	w.wg.Add(2)
	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop ends watching and waits for the handler goroutine to exit. Pending
// changes are delivered before Stop returns.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fs.Close()
	})
	w.wg.Wait()
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Clean(event.Name)
			if !w.files[name] {
				continue
			}
			select {
			case w.changes <- name:
			default:
				// the debouncer already holds a pending change for this burst
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// debounceLoop restarts the quiet-period timer on every change and flushes
// the collected paths when it fires.
func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(pending) == 0 {
			return
		}
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		clear(pending)
		w.logger.Debug("files changed", "paths", paths)
		if w.handler != nil {
			w.handler(paths)
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
		case p := <-w.changes:
			pending[p] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush()
		}
	}
}
