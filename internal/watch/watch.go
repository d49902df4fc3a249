// Package watch keeps one filesystem watcher per connection and turns raw
// filesystem events into repository change events.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thiagokokada/gitrelay/internal/debounce"
	"github.com/thiagokokada/gitrelay/internal/hub"
	"github.com/thiagokokada/gitrelay/internal/repopath"
)

const (
	DefaultDebounce = 350 * time.Millisecond
	// maxWatchedDirs caps the working tree directories added to one watcher.
	maxWatchedDirs = 4096
)

type Kind int

const (
	WorkingTreeChanged Kind = iota
	GitDirectoryChanged
)

// Event returns the event name sent to clients.
func (k Kind) Event() string {
	switch k {
	case GitDirectoryChanged:
		return "git-directory-changed"
	default:
		return "working-tree-changed"
	}
}

// Change is the payload of every change event.
type Change struct {
	Repository string `json:"repository"`
}

// Emitter delivers an event to one connection.
type Emitter interface {
	Emit(connID, event string, data any) error
}

type watcher struct {
	connID   string
	path     string
	fs       *fsnotify.Watcher
	debounce *debounce.Keyed[Kind]
}

type Registry struct {
	mu      sync.Mutex
	emitter Emitter
	delay   time.Duration
	byConn  map[string]*watcher
	closed  bool
}

func New(emitter Emitter, delay time.Duration) *Registry {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Registry{emitter: emitter, delay: delay, byConn: map[string]*watcher{}}
}

// Watch points connID's watcher at path, replacing any previous one. It
// returns the canonical repository path.
func (r *Registry) Watch(connID, path string) (string, error) {
	key, err := repopath.Key(path)
	if err != nil {
		return "", err
	}
	r.Unwatch(connID)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return "", fmt.Errorf("fsnotify: %w", err)
	}
	for _, dir := range watchPaths(key) {
		slog.Debug("adding path to FS watcher", slog.String("path", dir))
		if err := fsw.Add(dir); err != nil {
			err := errors.Join(err, fsw.Close())
			return "", fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w := &watcher{connID: connID, path: key, fs: fsw}
	w.debounce = debounce.NewKeyed(r.delay, func(kind Kind) {
		r.emit(connID, key, kind)
	})

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		w.debounce.Stop()
		return "", errors.Join(errors.New("watch registry closed"), fsw.Close())
	}
	// A concurrent Watch for the same connection may have won the race.
	old := r.byConn[connID]
	r.byConn[connID] = w
	r.mu.Unlock()
	if old != nil {
		old.stop()
	}
	go r.watchLoop(w)
	slog.Debug("watching repository", slog.String("conn", connID), slog.String("path", key))
	return key, nil
}

// Unwatch tears down connID's watcher, if any.
func (r *Registry) Unwatch(connID string) {
	r.mu.Lock()
	w := r.byConn[connID]
	delete(r.byConn, connID)
	r.mu.Unlock()
	if w != nil {
		w.stop()
	}
}

// Watching returns the repository connID watches.
func (r *Registry) Watching(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	return w.path, true
}

// Notify sends kind to every connection watching path.
func (r *Registry) Notify(path string, kind Kind) {
	key, err := repopath.Key(path)
	if err != nil {
		key = filepath.Clean(path)
	}
	r.mu.Lock()
	var conns []string
	for id, w := range r.byConn {
		if w.path == key {
			conns = append(conns, id)
		}
	}
	r.mu.Unlock()
	for _, id := range conns {
		r.emit(id, key, kind)
	}
}

func (r *Registry) WorkingTreeChanged(path string) { r.Notify(path, WorkingTreeChanged) }

func (r *Registry) GitDirectoryChanged(path string) { r.Notify(path, GitDirectoryChanged) }

// Close stops every watcher.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	watchers := make([]*watcher, 0, len(r.byConn))
	for id, w := range r.byConn {
		watchers = append(watchers, w)
		delete(r.byConn, id)
	}
	r.mu.Unlock()
	for _, w := range watchers {
		w.stop()
	}
}

func (r *Registry) emit(connID, path string, kind Kind) {
	err := r.emitter.Emit(connID, kind.Event(), Change{Repository: path})
	if errors.Is(err, hub.ErrNoConnection) {
		slog.Debug("change event for gone connection", slog.String("conn", connID))
		return
	}
	if err != nil {
		slog.Error("emit change event", slog.String("conn", connID), slog.Any("error", err))
	}
}

func (w *watcher) stop() {
	w.debounce.Stop()
	if err := w.fs.Close(); err != nil {
		slog.Error("watcher close", slog.Any("error", err))
	}
}

func (r *Registry) watchLoop(w *watcher) {
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			kind, ok := classify(w.path, ev.Name)
			if !ok {
				continue
			}
			slog.Debug("fsnotify event",
				slog.String("op", ev.Op.String()),
				slog.String("path", ev.Name),
			)
			if ev.Has(fsnotify.Create) {
				addNewDir(w.fs, ev.Name)
			}
			w.debounce.Trigger(kind)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

// addNewDir watches a directory created after the watcher started, together
// with any subdirectories that appeared before the watch was in place. This
// covers both working tree folders and new namespaces below .git/refs.
func addNewDir(fsw *fsnotify.Watcher, name string) {
	info, err := os.Stat(name)
	if err != nil || !info.IsDir() {
		return
	}
	_ = filepath.WalkDir(name, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			slog.Debug("watch new directory", slog.String("path", p), slog.Any("error", err))
		}
		return nil
	})
}

// gitDirFiles are the files below .git whose changes matter to clients.
// Everything else there (index, objects, logs, lock files) changes as a side
// effect of reading commands and is ignored.
var gitDirFiles = map[string]bool{
	"HEAD":             true,
	"packed-refs":      true,
	"MERGE_HEAD":       true,
	"CHERRY_PICK_HEAD": true,
	"REVERT_HEAD":      true,
	"REBASE_HEAD":      true,
	"FETCH_HEAD":       true,
}

// classify maps a raw event below root to a change kind. ok is false for
// events that must not reach clients.
func classify(root, name string) (kind Kind, ok bool) {
	if shouldIgnoreWatchPath(name) {
		return 0, false
	}
	rel, err := filepath.Rel(root, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return 0, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if parts[0] == ".git" {
		sub := strings.Join(parts[1:], "/")
		if gitDirFiles[sub] || strings.HasPrefix(sub, "refs/") {
			return GitDirectoryChanged, true
		}
		return 0, false
	}
	for _, part := range parts[1:] {
		if part == ".git" {
			// Metadata of a nested repository.
			return 0, false
		}
	}
	return WorkingTreeChanged, true
}

func shouldIgnoreWatchPath(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".lock" || ext == ".ipc"
}

// watchPaths lists the directories a watcher on root covers: the working tree
// (without any .git directory) plus the git directory and its refs.
func watchPaths(root string) []string {
	var paths []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if len(paths) >= maxWatchedDirs {
			slog.Debug("watch directory limit reached", slog.String("path", root))
			return filepath.SkipAll
		}
		paths = append(paths, p)
		return nil
	})

	gitDir := filepath.Join(root, ".git")
	if info, err := os.Stat(gitDir); err != nil || !info.IsDir() {
		return paths
	}
	paths = append(paths, gitDir)
	_ = filepath.WalkDir(filepath.Join(gitDir, "refs"), func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			paths = append(paths, p)
		}
		return nil
	})
	return paths
}
