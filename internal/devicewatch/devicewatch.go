// Package devicewatch watches the device mount and PC library root for
// changes, driving --watch mode. Grounded on the teacher's
// internal/itunes/library_watcher.go, generalized from watching one
// fixed Library.xml path to watching arbitrary directories with a
// debounce window.
package devicewatch

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports that at least one watched path changed, debounced so
// a burst of filesystem events (a whole album being copied in) only
// triggers one pending sync.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending bool

	stop chan struct{}
	done chan struct{}
}

// New creates a Watcher over the given paths (files or directories).
// Events within debounce of one another are coalesced into one signal.
func New(debounce time.Duration, paths ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if err := fsw.Add(p); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	w := &Watcher{fsw: fsw, debounce: debounce, stop: make(chan struct{}), done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			}
		case <-timerC:
			w.mu.Lock()
			w.pending = true
			w.mu.Unlock()
			timerC = nil
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-w.stop:
			return
		}
	}
}

// Pending returns whether a debounced change is waiting to be handled,
// clearing the flag as it does (consume-once semantics for a poll loop).
func (w *Watcher) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.pending {
		return false
	}
	w.pending = false
	return true
}

// Close stops the watcher and releases its fsnotify handle.
func (w *Watcher) Close() error {
	close(w.stop)
	<-w.done
	return w.fsw.Close()
}
