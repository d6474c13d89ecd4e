// Package watcher watches repository roots with fsnotify and triggers debounced rebuilds.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/codelens/internal/source"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

var errNotStarted = errors.New("watcher not started")

// rootState is what the watcher tracks for one repository root.
type rootState struct {
	dirs    []string    // directories registered with fsnotify
	pending *time.Timer // scheduled rebuild, nil when quiet
}

// Watcher watches repository roots recursively. Any relevant change under a root
// schedules one onChange(root) call after the root has been quiet for the debounce period.
type Watcher struct {
	mu         sync.Mutex
	order      []string // roots in the order they were added
	roots      map[string]*rootState
	extensions []string
	onChange   func(root string)
	debounce   time.Duration
	logger     *zap.Logger

	fs       *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger. If nil, a no-op logger is used.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long a root must be quiet before onChange runs.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher. roots are the initial repository roots; extensions
// filter which files count as changes (empty = source.DefaultExtensions).
func NewWatcher(roots []string, extensions []string, onChange func(root string), opts ...WatcherOption) *Watcher {
	if len(extensions) == 0 {
		extensions = source.DefaultExtensions
	}
	w := &Watcher{
		roots:      make(map[string]*rootState),
		extensions: extensions,
		onChange:   onChange,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		done:       make(chan struct{}),
	}
	for _, r := range roots {
		abs, err := cleanRoot(r)
		if err != nil {
			continue
		}
		if _, dup := w.roots[abs]; !dup {
			w.roots[abs] = &rootState{}
			w.order = append(w.order, abs)
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func cleanRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// Start registers every root with fsnotify and processes events until ctx is
// cancelled or Stop is called. Calling Start again is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.fs != nil {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w.fs = fsw
	w.logger.Debug("watcher starting", zap.Strings("roots", w.order), zap.Strings("extensions", w.extensions))
	for _, root := range w.order {
		dirs, err := w.watchTree(root, true)
		if err != nil {
			_ = fsw.Close()
			w.fs = nil
			w.mu.Unlock()
			return fmt.Errorf("watch %s: %w", root, err)
		}
		w.roots[root].dirs = dirs
	}
	w.mu.Unlock()

	go w.loop(ctx, fsw.Events, fsw.Errors)
	return nil
}

func (w *Watcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			w.logger.Debug("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	root := w.rootOf(path)
	if root == "" || skippedPath(root, path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Op.Has(fsnotify.Create) && isDir(path):
		if source.SkipDir(filepath.Base(path)) {
			return
		}
		w.mu.Lock()
		if st, ok := w.roots[root]; ok && w.fs != nil {
			dirs, _ := w.watchTree(path, false)
			st.dirs = append(st.dirs, dirs...)
		}
		w.mu.Unlock()
		w.scheduleRebuild(root)
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		// A removed directory has no extension and cannot be stat'ed; rebuild anyway.
		if source.ExtensionAllowed(path, w.extensions) || filepath.Ext(path) == "" {
			w.scheduleRebuild(root)
		}
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		if source.ExtensionAllowed(path, w.extensions) {
			w.scheduleRebuild(root)
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// skippedPath reports whether any directory between root and path is one the source walker skips.
func skippedPath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, p := range parts[:len(parts)-1] {
		if source.SkipDir(p) {
			return true
		}
	}
	return false
}

// watchTree registers dir and its non-skipped subdirectories with fsnotify and
// returns them. With strict set, the first failure undoes the registrations and
// is returned; otherwise failures are logged and skipped. Caller holds w.mu.
func (w *Watcher) watchTree(dir string, strict bool) ([]string, error) {
	var added []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if strict {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && source.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			if strict {
				return err
			}
			w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
			return nil
		}
		added = append(added, path)
		return nil
	})
	if err != nil {
		for _, p := range added {
			_ = w.fs.Remove(p)
		}
		return nil, err
	}
	if !strict {
		w.logger.Debug("watcher added new directory", zap.String("path", dir), zap.Int("dirs", len(added)))
	}
	return added, nil
}

// rootOf returns the deepest watched root containing path, or "".
func (w *Watcher) rootOf(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	best := ""
	for _, root := range w.order {
		if (root == path || inDir(root, path)) && len(root) > len(best) {
			best = root
		}
	}
	return best
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// scheduleRebuild (re)arms the root's debounce timer.
func (w *Watcher) scheduleRebuild(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.roots[root]
	if !ok || w.fs == nil {
		return
	}
	if st.pending != nil {
		st.pending.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		// A newer event may have replaced this timer, or the root may be gone.
		if cur, ok := w.roots[root]; !ok || cur.pending != timer {
			w.mu.Unlock()
			return
		}
		st.pending = nil
		onChange := w.onChange
		w.mu.Unlock()

		w.logger.Debug("watcher rebuilding root (debounced)", zap.String("root", root))
		if onChange != nil {
			onChange(root)
		}
	})
	st.pending = timer
}

// AddDirectory adds a repository root to watch. When rebuild is set, onChange runs for it once.
func (w *Watcher) AddDirectory(root string, rebuild bool) error {
	abs, err := cleanRoot(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	if w.fs == nil {
		w.mu.Unlock()
		return errNotStarted
	}
	if _, ok := w.roots[abs]; ok {
		w.mu.Unlock()
		return nil
	}
	info, err := os.Stat(abs)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if !info.IsDir() {
		w.mu.Unlock()
		return fmt.Errorf("not a directory: %s", abs)
	}
	dirs, err := w.watchTree(abs, true)
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", abs, err)
	}
	w.roots[abs] = &rootState{dirs: dirs}
	w.order = append(w.order, abs)
	onChange := w.onChange
	w.mu.Unlock()

	w.logger.Info("watching directory", zap.String("path", abs), zap.Bool("rebuild", rebuild))
	if rebuild && onChange != nil {
		go onChange(abs)
	}
	return nil
}

// RemoveDirectory stops watching the given root. It does not remove anything indexed.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := cleanRoot(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.roots[abs]
	if !ok || w.fs == nil {
		return nil
	}
	for _, d := range st.dirs {
		_ = w.fs.Remove(d)
	}
	if st.pending != nil {
		st.pending.Stop()
	}
	delete(w.roots, abs)
	for i, r := range w.order {
		if r == abs {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	w.logger.Info("stopped watching directory", zap.String("path", abs))
	return nil
}

// Directories returns the watched roots in the order they were added.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.order...)
}

// RebuildAll calls onChange for every watched root, in order. Call it after Start to
// catch up on changes made while nothing was watching.
func (w *Watcher) RebuildAll() {
	w.mu.Lock()
	roots := append([]string(nil), w.order...)
	onChange := w.onChange
	w.mu.Unlock()
	if onChange == nil {
		return
	}
	w.logger.Debug("watcher rebuilding all roots", zap.Strings("roots", roots))
	for _, root := range roots {
		onChange(root)
	}
}

// Stop cancels pending rebuilds and closes fsnotify. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.fs == nil {
		w.mu.Unlock()
		return
	}
	for _, st := range w.roots {
		if st.pending != nil {
			st.pending.Stop()
			st.pending = nil
		}
		st.dirs = nil
	}
	_ = w.fs.Close()
	w.fs = nil
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
