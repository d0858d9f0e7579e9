package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/drhuang0922/ngic/internal/logging"
)

// DefaultDebounce is how long a path must be quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

const queueSize = 256

// Options configures a Watcher.
type Options struct {
	// Dir is the directory to watch. Sub-directories are ignored.
	Dir string
	// Accept filters paths. Nil accepts everything.
	Accept func(path string) bool
	// Handle is called once per settled path, from a single goroutine.
	Handle func(path string)
	// Debounce overrides DefaultDebounce when > 0.
	Debounce time.Duration
	// ProcessExisting queues accepted files already in Dir at Start.
	ProcessExisting bool
}

// Watcher turns fsnotify events in one directory into debounced Handle calls.
type Watcher struct {
	opts  Options
	fsw   *fsnotify.Watcher
	queue chan string

	mu      sync.Mutex
	timers  map[string]*time.Timer
	started bool
	stopped bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a new Watcher instance. The directory must exist.
func New(opts Options) (*Watcher, error) {
	if opts.Handle == nil {
		return nil, fmt.Errorf("handle func cannot be nil")
	}
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("cannot watch %s: %w", opts.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cannot watch %s: not a directory", opts.Dir)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Accept == nil {
		opts.Accept = func(string) bool { return true }
	}

	return &Watcher{
		opts:   opts,
		queue:  make(chan string, queueSize),
		timers: make(map[string]*time.Timer),
		stopCh: make(chan struct{}),
	}, nil
}

// Start subscribes to events and starts the event loop and handler worker.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("watcher already started")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(w.opts.Dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.opts.Dir, err)
	}
	w.fsw = fsw
	w.started = true

	w.wg.Add(2)
	go w.runEvents()
	go w.runHandler()

	if w.opts.ProcessExisting {
		entries, err := os.ReadDir(w.opts.Dir)
		if err != nil {
			logging.Logger().Warnf("watcher: initial scan of %s: %v", w.opts.Dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			path := filepath.Join(w.opts.Dir, e.Name())
			if w.opts.Accept(path) {
				w.scheduleLocked(path)
			}
		}
	}

	logging.Logger().Infof("watcher: watching %s", w.opts.Dir)
	return nil
}

// runEvents drains fsnotify until stopped.
func (w *Watcher) runEvents() {
	defer w.wg.Done()
	log := logging.Logger()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !w.opts.Accept(ev.Name) {
				log.Debugf("watcher: ignoring %s", ev.Name)
				continue
			}
			if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
				continue
			}
			w.schedule(ev.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("watcher: fsnotify error: %v", err)

		case <-w.stopCh:
			return
		}
	}
}

// runHandler calls Handle for each settled path until stopped.
func (w *Watcher) runHandler() {
	defer w.wg.Done()

	for {
		select {
		case path := <-w.queue:
			w.opts.Handle(path)
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scheduleLocked(path)
}

// scheduleLocked (re)arms the debounce timer for path. Must be called with
// w.mu held.
func (w *Watcher) scheduleLocked(path string) {
	if w.stopped {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.opts.Debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			return
		}

		select {
		case w.queue <- path:
		case <-w.stopCh:
		default:
			logging.Logger().Warnf("watcher: queue full, dropping %s", path)
		}
	})
}

// Stop halts the watcher. Paths still waiting on their debounce timer are
// dropped. Safe to call before Start and more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	started := w.started
	w.mu.Unlock()

	close(w.stopCh)
	if !started {
		return nil
	}

	err := w.fsw.Close()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close fsnotify watcher: %w", err)
	}
	return nil
}

// Run starts the watcher and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop()
}
