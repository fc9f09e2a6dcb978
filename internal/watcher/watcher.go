// Package watcher runs rename passes whenever new PDF reports appear in
// the target directory.
package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config contains watcher settings.
type Config struct {
	Debounce       time.Duration // Quiet period before a pass runs
	IgnorePatterns []string      // Glob patterns for partial downloads and temp files
	InitialPass    bool          // Run one pass right after Start
	// OnError receives errors reported by the file system watcher. They
	// do not stop the session. Nil discards them.
	OnError func(error)
}

// DefaultConfig returns a Config with a two second debounce and the
// default ignore patterns.
func DefaultConfig() Config {
	return Config{
		Debounce:       2 * time.Second,
		IgnorePatterns: DefaultIgnorePatterns(),
		InitialPass:    true,
	}
}

// PassStats is what one pass reports back to the watcher.
type PassStats struct {
	Renamed       int
	AlreadyExists int
	NotFound      int
	Errors        int
}

// PassFunc performs one full rename pass. It should stop at the next
// safe point when ctx is cancelled.
type PassFunc func(ctx context.Context) (PassStats, error)

// Summary contains stats from the watch session.
type Summary struct {
	Passes        int
	Renamed       int
	AlreadyExists int
	Errors        int
	Ignored       int // Create events skipped by the filter
	Duration      time.Duration
}

// Watcher monitors one directory and schedules rename passes.
type Watcher struct {
	config    Config
	pass      PassFunc
	fsWatcher *fsnotify.Watcher
	filter    *FileFilter
	debouncer *Debouncer
	trigger   chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
	startTime time.Time

	// passMu keeps passes strictly sequential.
	passMu sync.Mutex

	mu      sync.Mutex
	running bool
	summary Summary
	err     error
}

// New creates a Watcher that calls pass whenever activity settles.
func New(config Config, pass PassFunc) *Watcher {
	w := &Watcher{
		config:  config,
		pass:    pass,
		filter:  NewFileFilter(config.IgnorePatterns),
		trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	// Timers only schedule; the event loop runs the pass.
	w.debouncer = NewDebouncer(config.Debounce, func(string) { w.schedule() })
	return w
}

// Start begins watching dir. The watcher runs until Stop is called, ctx
// is cancelled, or a pass fails.
func (w *Watcher) Start(ctx context.Context, dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	w.fsWatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.fsWatcher.Add(absDir); err != nil {
		w.fsWatcher.Close()
		return err
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.startTime = time.Now()

	if w.config.InitialPass {
		w.schedule()
	}

	w.mu.Lock()
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Run watches dir until ctx is cancelled or a pass fails, then returns
// the session summary and the failure, if any.
func (w *Watcher) Run(ctx context.Context, dir string) (*Summary, error) {
	if err := w.Start(ctx, dir); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
	case <-w.stopped:
	}

	summary := w.Stop()
	return summary, w.Err()
}

// Stop shuts the watcher down and returns a summary of the session. A
// pass in progress is cancelled and waited for.
func (w *Watcher) Stop() *Summary {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
		w.debouncer.CancelAll()
		if w.fsWatcher != nil {
			w.fsWatcher.Close()
		}
	})

	w.mu.Lock()
	defer w.mu.Unlock()

	summary := w.summary
	summary.Duration = time.Since(w.startTime)
	return &summary
}

// Err returns the error that ended the session, if any.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// schedule requests a pass. Requests made while one is pending collapse
// into it.
func (w *Watcher) schedule() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// processEvents handles file system events and runs scheduled passes.
func (w *Watcher) processEvents() {
	defer w.wg.Done()
	defer close(w.stopped)
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	for {
		select {
		case <-w.done:
			return
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			// Files moved into the directory arrive as Create too.
			if event.Op&fsnotify.Create == fsnotify.Create {
				w.handleFileEvent(event.Name)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			if w.config.OnError != nil {
				w.config.OnError(err)
			}
		case <-w.trigger:
			if err := w.runPass(); err != nil {
				w.mu.Lock()
				w.err = err
				w.mu.Unlock()
				return
			}
		}
	}
}

// handleFileEvent arms the debouncer for PDFs that are not partial
// downloads. The debouncer is keyed by directory so a burst of files
// leads to a single pass.
func (w *Watcher) handleFileEvent(path string) {
	if !w.filter.Accepts(path) {
		w.mu.Lock()
		w.summary.Ignored++
		w.mu.Unlock()
		return
	}
	w.debouncer.Add(filepath.Dir(path))
}

func (w *Watcher) runPass() error {
	w.passMu.Lock()
	defer w.passMu.Unlock()

	stats, err := w.pass(w.ctx)

	w.mu.Lock()
	w.summary.Passes++
	w.summary.Renamed += stats.Renamed
	w.summary.AlreadyExists += stats.AlreadyExists
	w.summary.Errors += stats.Errors
	w.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
