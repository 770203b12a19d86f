// Package watcher implements the Session Watcher: a recursive,
// fsnotify-based observer that hands changed file paths to the Indexing
// Service (SPEC_FULL.md §4.6). Grounded directly on the teacher's
// internal/skills/watcher.go fsnotify + debounce loop, generalized from a
// single version-bump callback to an event channel carrying per-path
// add/remove notifications, and from a fixed dir set to dynamically
// added/removed roots.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventKind enumerates the change kinds the watcher reports.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventChanged EventKind = "changed"
	EventRemoved EventKind = "removed"
)

// Event is a single file-level change handed to the Indexing Service.
type Event struct {
	Path string
	Kind EventKind
}

// Watcher recursively observes a set of root directories, ignoring any
// path segment beginning with a dot, and emits Events on Changes().
type Watcher struct {
	fsw     *fsnotify.Watcher
	changes chan Event
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu    sync.Mutex
	roots map[string]bool
}

// New creates a Watcher. Call AddPath for each root before Start, or
// afterward via the dynamic add/remove methods.
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:     fsw,
		changes: make(chan Event, 256),
		roots:   make(map[string]bool),
	}, nil
}

// Changes returns the channel of file-level events.
func (w *Watcher) Changes() <-chan Event {
	return w.changes
}

// AddPath begins watching root (and all its non-dotfile subdirectories),
// performing an initial full scan that emits EventAdded for every existing
// file found.
func (w *Watcher) AddPath(root string) error {
	w.mu.Lock()
	w.roots[root] = true
	w.mu.Unlock()

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if isDotfileSegment(path, root) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil && !os.IsNotExist(err) {
				slog.Warn("watcher: cannot watch dir", "path", path, "error", err)
			}
			return nil
		}
		w.emit(Event{Path: path, Kind: EventAdded})
		return nil
	})
}

// RemovePath stops watching root; in-flight events for paths under it are
// still delivered.
func (w *Watcher) RemovePath(root string) {
	w.mu.Lock()
	delete(w.roots, root)
	w.mu.Unlock()
	for _, dir := range w.fsw.WatchList() {
		if dir == root || strings.HasPrefix(dir, root+string(filepath.Separator)) {
			_ = w.fsw.Remove(dir)
		}
	}
}

// Start launches the event loop.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop shuts the watcher down and closes the Changes channel.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.fsw.Close()
	close(w.changes)
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher: fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if w.isIgnored(path) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.fsw.Add(path); err == nil {
				slog.Debug("watcher: watching new dir", "path", path)
			}
			return
		}
		w.emit(Event{Path: path, Kind: EventAdded})
		return
	}
	if event.Has(fsnotify.Write) {
		w.emit(Event{Path: path, Kind: EventChanged})
		return
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.emit(Event{Path: path, Kind: EventRemoved})
	}
}

func (w *Watcher) isIgnored(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for root := range w.roots {
		if strings.HasPrefix(path, root) {
			return isDotfileSegment(path, root)
		}
	}
	return false
}

func isDotfileSegment(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(seg, ".") && seg != "." {
			return true
		}
	}
	return false
}

func (w *Watcher) emit(e Event) {
	select {
	case w.changes <- e:
	default:
		slog.Warn("watcher: changes channel full, dropping event", "path", e.Path)
	}
}
