package localstore

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"snapgrid/internal/logging"
)

// Watcher watches the storage file for writes by another process and reports
// them on Changes so the TUI can refresh a stale feed. Events are debounced:
// sqlite checkpoints produce bursts of writes that should collapse into one
// notification.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	target      string // storage file being watched
	debounceDur time.Duration
	lastEvent   time.Time
	changes     chan struct{}
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a Watcher for the given storage file.
// The parent directory is watched because editors and sqlite replace files
// rather than writing them in place.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fw,
		target:      filepath.Clean(path),
		debounceDur: 500 * time.Millisecond,
		changes:     make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Changes delivers at most one pending notification; receivers that lag do
// not queue stale refreshes.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Start begins watching. Non-blocking; the watch loop runs in a goroutine
// until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.target)
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	logging.Store("watcher: watching %s for external changes", dir)

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}

			w.mu.Lock()
			if time.Since(w.lastEvent) < w.debounceDur {
				w.mu.Unlock()
				continue
			}
			w.lastEvent = time.Now()
			w.mu.Unlock()

			logging.StoreDebug("watcher: external change %s %s", event.Op, event.Name)
			select {
			case w.changes <- struct{}{}:
			default: // notification already pending
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.StoreWarn("watcher error: %v", err)
		}
	}
}

// relevant reports whether the event concerns the storage file itself
// (including its sqlite -wal sidecar).
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == w.target || name == w.target+"-wal"
}

// Stop stops the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}
