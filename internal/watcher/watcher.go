// Package watcher keeps watched directories ingested: changed files are
// re-added and removed files are deleted from the collection.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/ragchat/internal/config"
	"go.uber.org/zap"
)

// Handler receives debounced file events.
type Handler interface {
	FileChanged(ctx context.Context, path string)
	FileRemoved(ctx context.Context, path string)
}

// Watcher watches root directories with fsnotify.
type Watcher struct {
	handler    Handler
	extensions []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	roots   map[string][]string // root -> directories added to fsnotify
	order   []string
	pending map[string]*time.Timer
	fs      *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher for cfg's directories. Nothing is watched until Start.
func New(cfg *config.WatchConfig, handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		handler:    handler,
		extensions: cfg.Extensions,
		recursive:  cfg.RecursiveOrDefault(),
		debounce:   cfg.Debounce(),
		logger:     zap.NewNop(),
		roots:      make(map[string][]string),
		pending:    make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.order = append(w.order, cfg.Directories...)
	return w
}

// Start begins watching. Events are handled until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fs != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fs = fsw
	initial := w.order
	w.order = nil
	for _, root := range initial {
		abs, err := filepath.Abs(root)
		if err == nil {
			if _, ok := w.roots[abs]; ok {
				continue
			}
			err = w.addRootLocked(abs)
		}
		if err != nil {
			_ = fsw.Close()
			w.fs = nil
			w.roots = make(map[string][]string)
			w.order = initial
			return err
		}
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(w.ctx, fsw)
	w.logger.Info("watching directories", zap.Strings("roots", w.order), zap.Strings("extensions", w.extensions))
	return nil
}

// Stop stops watching and cancels pending events. It waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.fs == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.cancel()
	_ = w.fs.Close()
	w.fs = nil
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watch event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelPending(path)
		if matchExtension(path, w.extensions) {
			w.handler.FileRemoved(ctx, path)
		}
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if ev.Has(fsnotify.Create) && w.recursive {
				w.addSubdirectory(ctx, path)
			}
			return
		}
		if matchExtension(path, w.extensions) {
			w.schedule(ctx, path)
		}
	}
}

// schedule delivers FileChanged once path has been quiet for the debounce interval.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if ctx.Err() == nil {
			w.handler.FileChanged(ctx, path)
		}
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// addSubdirectory watches a directory created under a recursive root and ingests
// the files already inside it, since their create events may have been missed.
func (w *Watcher) addSubdirectory(ctx context.Context, dir string) {
	w.mu.Lock()
	if w.fs == nil {
		w.mu.Unlock()
		return
	}
	root := w.rootOf(dir)
	added, err := w.watchTree(dir)
	if err != nil {
		w.logger.Warn("failed to watch directory", zap.String("path", dir), zap.Error(err))
	}
	w.roots[root] = append(w.roots[root], added...)
	w.mu.Unlock()
	w.sync(ctx, dir)
}

// AddDirectory starts watching root. With syncExisting, files already in root
// are ingested in the background.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	if _, ok := w.roots[abs]; ok {
		w.mu.Unlock()
		return nil
	}
	if w.fs == nil {
		if !containsString(w.order, abs) {
			w.order = append(w.order, abs)
		}
		w.mu.Unlock()
		return nil
	}
	if err := w.addRootLocked(abs); err != nil {
		w.mu.Unlock()
		return err
	}
	ctx := w.ctx
	w.mu.Unlock()
	w.logger.Info("directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.sync(ctx, abs)
		}()
	}
	return nil
}

// RemoveDirectory stops watching root. Documents already ingested are kept.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	dirs, ok := w.roots[abs]
	if !ok {
		w.order = removeString(w.order, abs)
		return nil
	}
	if w.fs != nil {
		for _, d := range dirs {
			_ = w.fs.Remove(d)
		}
	}
	delete(w.roots, abs)
	w.order = removeString(w.order, abs)
	w.logger.Info("directory removed", zap.String("path", abs))
	return nil
}

// Directories returns the watched roots in the order they were added.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.order...)
}

// SyncExisting ingests every matching file under all roots.
func (w *Watcher) SyncExisting(ctx context.Context) {
	for _, root := range w.Directories() {
		w.sync(ctx, root)
	}
}

func (w *Watcher) sync(ctx context.Context, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.Type().IsRegular() && matchExtension(path, w.extensions) {
			w.handler.FileChanged(ctx, path)
		}
		return nil
	})
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	dirs, err := w.watchTree(root)
	if err != nil {
		for _, d := range dirs {
			_ = w.fs.Remove(d)
		}
		return err
	}
	w.roots[root] = dirs
	w.order = append(w.order, root)
	return nil
}

// watchTree adds dir, and its subdirectories when recursive, to fsnotify.
func (w *Watcher) watchTree(dir string) ([]string, error) {
	if !w.recursive {
		if err := w.fs.Add(dir); err != nil {
			return nil, err
		}
		return []string{dir}, nil
	}
	var added []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			return err
		}
		added = append(added, path)
		return nil
	})
	return added, err
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rootOf(path) != ""
}

// rootOf returns the watched root containing path, or "". Callers hold mu.
func (w *Watcher) rootOf(path string) string {
	for root := range w.roots {
		if root == path || inDir(root, path) {
			return root
		}
	}
	return ""
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
