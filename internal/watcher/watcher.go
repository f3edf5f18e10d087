// Package watcher emits debounced change notifications for the Anki
// collection file.
package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gamagoat/anki-toggl/internal/loggy"
)

// Watcher watches the directory holding the collection file and coalesces
// bursts of writes into single notifications. Anki rewrites the collection
// through temp files and WAL companions, so the directory is watched rather
// than the file itself.
type Watcher struct {
	path     string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	events   chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	logger   *loggy.Logger
}

// New creates a watcher for the given collection file. It must be started
// with Start before it emits anything.
func New(path string, debounce time.Duration, logger *loggy.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("collection path is required")
	}
	if debounce <= 0 {
		return nil, fmt.Errorf("debounce must be positive, got %s", debounce)
	}
	if logger == nil {
		logger = loggy.NewNoopLogger()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     path,
		debounce: debounce,
		fsw:      fsw,
		events:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		logger:   logger,
	}, nil
}

// Start begins watching the collection's directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	dir := filepath.Dir(w.path)
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.loop()

	w.logger.Debug("watching collection directory", "dir", dir, "debounce", w.debounce)
	return nil
}

// Events returns the notification channel. The channel has capacity one and
// further notifications are dropped until the pending one is consumed, so a
// slow consumer sees at most one queued signal.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Close stops the watcher and blocks until the event loop has exited.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.fsw.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	// Armed only after a relevant event; starts drained
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("collection changed", "file", filepath.Base(event.Name), "op", event.Op.String())
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			select {
			case w.events <- struct{}{}:
			default:
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// relevant reports whether the event concerns the collection file or one of
// its SQLite companions (-wal, -shm, -journal).
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	return strings.HasPrefix(filepath.Base(event.Name), filepath.Base(w.path))
}
