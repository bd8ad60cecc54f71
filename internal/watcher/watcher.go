// Package watcher watches the corpus directory and reports new or changed
// documents so they can be indexed. The index is append-only, so removals
// are logged but not propagated.
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
)

const defaultDebounce = 400 * time.Millisecond

// supportedChecker reports whether a file extension can be extracted.
type supportedChecker interface {
	Supported(ext string) bool
}

// Watcher watches one corpus root and invokes onIndex for extractable files
// that appear or change. Rapid write bursts for the same file are debounced
// into one callback.
type Watcher struct {
	root    string
	checker supportedChecker
	onIndex func(path string)
	logger  *zap.Logger

	debounce    time.Duration
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	watcher     *fsnotify.Watcher
	started     bool
	done        chan struct{}
	stopOnce    sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over root. onIndex is called with the path of every
// new or rewritten extractable file.
func New(root string, checker supportedChecker, onIndex func(path string), opts ...Option) *Watcher {
	w := &Watcher{
		root:        root,
		checker:     checker,
		onIndex:     onIndex,
		logger:      zap.NewNop(),
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It returns once the watcher is running; events are
// handled in the background until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	w.mu.Unlock()

	// Watch the root and every subdirectory.
	err = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		w.Stop()
		return err
	}
	w.logger.Debug("watcher started", zap.String("root", w.root))

	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		if w.isNewDirectory(ev.Name) {
			return
		}
		if w.checker.Supported(strings.ToLower(filepath.Ext(ev.Name))) {
			w.debounceIndex(ev.Name)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancelDebounce(ev.Name)
		w.logger.Info("corpus file removed, index entries retained", zap.String("path", ev.Name))
	}
}

// isNewDirectory adds newly created directories to the watch and reports
// whether the path was a directory.
func (w *Watcher) isNewDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	w.mu.Lock()
	fsw := w.watcher
	w.mu.Unlock()
	if fsw != nil {
		if err := fsw.Add(path); err != nil {
			w.logger.Debug("failed to watch new directory", zap.String("path", path), zap.Error(err))
		}
	}
	return true
}

func (w *Watcher) debounceIndex(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.logger.Debug("indexing changed file", zap.String("path", path))
		if w.onIndex != nil {
			w.onIndex(path)
		}
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
