// Package watcher keeps the index in step with profile files on disk using fsnotify.
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
	"go.uber.org/zap"

	"github.com/hyperjump/saiyo/internal/profile"
)

const defaultDebounce = 400 * time.Millisecond

// ProfileIndexer is the part of indexer.Manager the watcher drives.
type ProfileIndexer interface {
	IndexFile(ctx context.Context, path string) ([]string, error)
	RemoveCandidate(ctx context.Context, identity string) (int, error)
}

// Watcher watches profile directories. A created or written profile file is indexed after a
// debounce; a removed or renamed one removes the candidates last indexed from that path.
type Watcher struct {
	roots     []string
	recursive bool
	debounce  time.Duration
	indexer   ProfileIndexer
	logger    *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	watcher *fsnotify.Watcher
	pending map[string]*time.Timer
	// seen maps a file to the identities it held when last indexed.
	seen     map[string][]string
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long a file must stay quiet before it is indexed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithRecursive controls whether subdirectories are watched too. Default true.
func WithRecursive(recursive bool) Option {
	return func(w *Watcher) { w.recursive = recursive }
}

// New creates a watcher over roots. Roots that do not exist are created on Start.
func New(roots []string, indexer ProfileIndexer, opts ...Option) *Watcher {
	w := &Watcher{
		recursive: true,
		debounce:  defaultDebounce,
		indexer:   indexer,
		logger:    zap.NewNop(),
		pending:   make(map[string]*time.Timer),
		seen:      make(map[string][]string),
		done:      make(chan struct{}),
	}
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			w.roots = append(w.roots, filepath.Clean(abs))
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	w.ctx = ctx
	w.started = true
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = fw.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	w.logger.Info("watching profile directories", zap.Strings("roots", w.roots), zap.Bool("recursive", w.recursive))
	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.String("stage", "watch"), zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelPending(path)
		if profile.IsProfileFile(path) {
			w.removeFile(path)
		}
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if profile.IsProfileFile(path) {
			w.schedule(path)
		}
	}
}

// handleNewDirectory watches a directory created or moved under a root and indexes its files.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	fw := w.watcher
	recursive := w.recursive
	w.mu.Unlock()
	if fw == nil || !recursive {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				w.logger.Warn("watcher failed to add directory", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
	w.syncDirectory(w.context(), dir)
}

func (w *Watcher) underRoot(path string) bool {
	for _, root := range w.roots {
		if root == path || inDir(root, path) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.indexFile(w.context(), path)
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

func (w *Watcher) context() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		return context.Background()
	}
	return w.ctx
}

// indexFile indexes path and removes candidates the file no longer contains.
func (w *Watcher) indexFile(ctx context.Context, path string) {
	ids, err := w.indexer.IndexFile(ctx, path)
	if err != nil {
		w.logger.Warn("profile file not indexed",
			zap.String("stage", "watch"), zap.String("path", path), zap.Error(err))
	}
	if len(ids) == 0 {
		return
	}
	w.mu.Lock()
	previous := w.seen[path]
	w.seen[path] = ids
	w.mu.Unlock()

	current := make(map[string]bool, len(ids))
	for _, id := range ids {
		current[id] = true
	}
	for _, id := range previous {
		if !current[id] {
			w.removeIdentity(ctx, path, id)
		}
	}
}

func (w *Watcher) removeFile(path string) {
	w.mu.Lock()
	ids := w.seen[path]
	delete(w.seen, path)
	w.mu.Unlock()
	ctx := w.context()
	for _, id := range ids {
		w.removeIdentity(ctx, path, id)
	}
}

func (w *Watcher) removeIdentity(ctx context.Context, path, identity string) {
	if _, err := w.indexer.RemoveCandidate(ctx, identity); err != nil {
		w.logger.Warn("candidate not removed",
			zap.String("stage", "watch"), zap.String("path", path), zap.String("identity", identity), zap.Error(err))
		return
	}
	w.logger.Info("candidate removed with its profile file",
		zap.String("path", path), zap.String("identity", identity))
}

func (w *Watcher) addRootLocked(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	if !w.recursive {
		return w.watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) syncDirectory(ctx context.Context, root string) int {
	n := 0
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !w.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if profile.IsProfileFile(path) {
			w.indexFile(ctx, filepath.Clean(path))
			n++
		}
		return nil
	})
	return n
}

// SyncExisting indexes every profile file already present under the roots and returns how many
// files were visited. Call it after Start so later edits are not missed.
func (w *Watcher) SyncExisting(ctx context.Context) int {
	n := 0
	for _, root := range w.roots {
		n += w.syncDirectory(ctx, root)
	}
	w.logger.Info("profile directories synced", zap.Int("files", n))
	return n
}

// Directories returns the watched root directories.
func (w *Watcher) Directories() []string {
	return append([]string(nil), w.roots...)
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
