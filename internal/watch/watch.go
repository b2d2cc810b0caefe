// Package watch reports changes to individual files using fsnotify.
package watch

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// FileEvent is a change to a watched file.
type FileEvent struct {
	Path string
	Op   string // "create", "write", "rename"
}

// Watcher delivers change events for registered files. Parent directories
// are watched so editors that replace files by renaming are still seen.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	log       logr.Logger

	mu       sync.RWMutex
	channels map[string]chan FileEvent
	dirs     map[string]int
}

// New creates a watcher and starts its dispatch loop.
func New(log logr.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsWatcher: fsw,
		log:       log,
		channels:  make(map[string]chan FileEvent),
		dirs:      make(map[string]int),
	}
	go w.dispatch()
	return w, nil
}

// WatchFile returns a channel of events for path, closed when ctx ends.
// Bursts of events are coalesced: at most one event is queued at a time.
func (w *Watcher) WatchFile(ctx context.Context, path string) (<-chan FileEvent, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(absPath)

	w.mu.Lock()
	if w.dirs[dir] == 0 {
		if err := w.fsWatcher.Add(dir); err != nil {
			w.mu.Unlock()
			return nil, err
		}
	}
	w.dirs[dir]++
	ch := make(chan FileEvent, 1)
	w.channels[absPath] = ch
	w.mu.Unlock()

	go func() {
		<-ctx.Done()
		w.mu.Lock()
		delete(w.channels, absPath)
		w.dirs[dir]--
		if w.dirs[dir] == 0 {
			delete(w.dirs, dir)
			_ = w.fsWatcher.Remove(dir)
		}
		close(ch)
		w.mu.Unlock()
	}()

	return ch, nil
}

func (w *Watcher) dispatch() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			var op string
			switch {
			case event.Has(fsnotify.Create):
				op = "create"
			case event.Has(fsnotify.Write):
				op = "write"
			case event.Has(fsnotify.Rename):
				op = "rename"
			default:
				continue
			}

			path := filepath.Clean(event.Name)
			w.mu.RLock()
			if ch, ok := w.channels[path]; ok {
				select {
				case ch <- FileEvent{Path: path, Op: op}:
				default:
					w.log.V(1).Info("Change already queued, coalescing", "path", path)
				}
			}
			w.mu.RUnlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Error(err, "file watcher error")
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}
