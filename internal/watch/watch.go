// Package watch reports changes to a single file. It watches the file's
// parent directory with fsnotify, so editors and atomic writers that replace
// the file by rename are still seen, and falls back to polling the file's
// modification time when fsnotify is unavailable.
package watch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the stat interval in polling mode.
const DefaultPollInterval = 2 * time.Second

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Watcher signals on [Watcher.Changes] whenever the watched file is written,
// created or renamed into place.
type Watcher struct {
	// path is the cleaned path of the watched file.
	path string
	// changes is buffered to 1 so back-to-back writes coalesce.
	changes chan struct{}
	// done is closed by Close.
	done chan struct{}
	once sync.Once
	// fsw is nil in polling mode.
	fsw          *fsnotify.Watcher
	polling      atomic.Bool
	pollInterval time.Duration
}

// New starts watching path. The file need not exist yet, but its directory
// must.
func New(path string) (*Watcher, error) {
	return newWatcher(path, DefaultPollInterval)
}

func newWatcher(path string, pollInterval time.Duration) (*Watcher, error) {
	path = filepath.Clean(path)
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w := &Watcher{
		path:         path,
		changes:      make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: pollInterval,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, polling for changes", "path", path, "error", err)
		w.startPolling()
		return w, nil
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		slog.Info("cannot watch directory, polling for changes", "path", path, "error", err)
		fsw.Close()
		w.startPolling()
		return w, nil
	}

	w.fsw = fsw
	go w.watch()
	return w, nil
}

// Changes delivers one signal per burst of changes.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Polling reports whether the watcher fell back to stat polling.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Close stops the watcher. It is idempotent.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil {
			if cerr := w.fsw.Close(); cerr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", cerr)
			}
		}
	})
	return err
}

// ///////////////////////////////////////////////
// Event Loops
// ///////////////////////////////////////////////

// watch forwards directory events that concern the watched file. On an
// fsnotify error it hands over to polling.
func (w *Watcher) watch() {
	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == w.path && ev.Op&relevant != 0 {
				w.notify()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error, switching to polling", "path", w.path, "error", err)
			w.startPolling()
			return
		}
	}
}

func (w *Watcher) startPolling() {
	w.polling.Store(true)
	go w.poll()
}

// poll stats the file every pollInterval and signals when its modification
// time or size changes.
func (w *Watcher) poll() {
	lastMod, lastSize := w.stat()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			mod, size := w.stat()
			if !mod.Equal(lastMod) || size != lastSize {
				lastMod, lastSize = mod, size
				w.notify()
			}
		}
	}
}

func (w *Watcher) stat() (time.Time, int64) {
	info, err := os.Stat(w.path)
	if err != nil {
		return time.Time{}, -1
	}
	return info.ModTime(), info.Size()
}

// notify queues a signal unless one is already pending.
func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}
