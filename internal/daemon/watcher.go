package daemon

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/heefoo/codeoracle/internal/config"
	"github.com/heefoo/codeoracle/internal/extractor"
	"github.com/heefoo/codeoracle/internal/indexer"
	"github.com/heefoo/codeoracle/internal/util"
)

type EventKind string

const (
	EventAnalyzed EventKind = "analyzed"
	EventRemoved  EventKind = "removed"
	EventError    EventKind = "error"
)

// Event is delivered to the sink once per settled change.
type Event struct {
	Kind   EventKind         `json:"kind"`
	Path   string            `json:"path"`
	Record *extractor.Record `json:"record,omitempty"`
	Err    error             `json:"-"`
	Error  string            `json:"error,omitempty"`
	At     time.Time         `json:"at"`
}

// Sink receives watcher events. It is called from a single goroutine.
type Sink func(Event)

type pendingChange struct {
	queuedAt time.Time
	removed  bool
}

type Watcher struct {
	watcher          *fsnotify.Watcher
	indexer          *indexer.Indexer
	logger           *slog.Logger
	excludes         *util.PatternSet
	sink             Sink
	debounceMs       atomic.Int64
	analyzeTimeoutMs atomic.Int64

	mu       sync.Mutex
	roots    []string
	pending  map[string]pendingChange
	hashes   map[string]string // last analyzed content hash per path
	stopCh   chan struct{}
	stopOnce sync.Once
}

type WatcherConfig struct {
	Indexer          *indexer.Indexer
	Logger           *slog.Logger
	ExcludePatterns  []string
	DebounceMs       int
	AnalyzeTimeoutMs int
	Sink             Sink
}

func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Indexer == nil {
		return nil, errors.New("watcher requires an indexer")
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounceMs := cfg.DebounceMs
	if debounceMs == 0 {
		debounceMs = 100 // Default 100ms debounce
	}

	analyzeTimeoutMs := cfg.AnalyzeTimeoutMs
	if analyzeTimeoutMs == 0 {
		analyzeTimeoutMs = 10000
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	patterns := cfg.ExcludePatterns
	if patterns == nil {
		patterns = config.DefaultExcludePatterns()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = func(Event) {}
	}

	w := &Watcher{
		watcher:  fsWatcher,
		indexer:  cfg.Indexer,
		logger:   logger,
		excludes: util.CompilePatterns(patterns, logger),
		sink:     sink,
		pending:  make(map[string]pendingChange),
		hashes:   make(map[string]string),
		stopCh:   make(chan struct{}),
	}
	w.debounceMs.Store(int64(debounceMs))
	w.analyzeTimeoutMs.Store(int64(analyzeTimeoutMs))
	return w, nil
}

// Watch registers dirs recursively and delivers events until ctx is done or
// Stop is called.
func (w *Watcher) Watch(ctx context.Context, dirs []string) error {
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			w.logger.Warn("failed to resolve watch directory", "dir", dir, "error", err)
			continue
		}
		w.mu.Lock()
		w.roots = append(w.roots, abs)
		w.mu.Unlock()
		if err := w.addDirRecursive(abs, false); err != nil {
			w.logger.Warn("failed to watch directory", "dir", abs, "error", err)
		}
	}

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// Stop is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})
}

// addDirRecursive registers dir and its subdirectories. With queueFiles set,
// supported files already inside are queued, which covers files written
// before a freshly created directory was registered.
func (w *Watcher) addDirRecursive(dir string, queueFiles bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if w.shouldExclude(path) {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		if queueFiles && d.Type().IsRegular() && w.accepts(path) {
			w.queue(path, false)
		}
		return nil
	})
}

// shouldExclude matches path relative to the watched root containing it.
func (w *Watcher) shouldExclude(path string) bool {
	w.mu.Lock()
	roots := w.roots
	w.mu.Unlock()

	for _, root := range roots {
		if rel, err := filepath.Rel(root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return w.excludes.Match(rel)
		}
	}
	return w.excludes.Match(filepath.Base(path))
}

func (w *Watcher) accepts(path string) bool {
	return !w.shouldExclude(path) && w.indexer.Supported(path)
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.shouldExclude(event.Name) {
		return
	}

	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addDirRecursive(event.Name, true); err != nil {
				w.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
			}
			return
		}
	}

	if !w.indexer.Supported(event.Name) {
		return
	}

	switch {
	case event.Op&fsnotify.Write == fsnotify.Write,
		event.Op&fsnotify.Create == fsnotify.Create:
		w.queue(event.Name, false)

	case event.Op&fsnotify.Remove == fsnotify.Remove,
		event.Op&fsnotify.Rename == fsnotify.Rename:
		w.queue(event.Name, true)
	}
}

func (w *Watcher) queue(path string, removed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = pendingChange{queuedAt: time.Now(), removed: removed}
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(w.debounceMs.Load()) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

func (w *Watcher) processPending(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	debounceThreshold := time.Duration(w.debounceMs.Load()) * time.Millisecond

	ready := make(map[string]pendingChange)
	for path, change := range w.pending {
		if now.Sub(change.queuedAt) >= debounceThreshold {
			ready[path] = change
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for path, change := range ready {
		if change.removed {
			w.handleRemove(path)
			continue
		}
		w.handleChange(ctx, path)
	}
}

func (w *Watcher) handleChange(ctx context.Context, path string) {
	analyzeCtx, cancel := context.WithTimeout(ctx, time.Duration(w.analyzeTimeoutMs.Load())*time.Millisecond)
	defer cancel()

	rec, changed, err := w.analyzeFile(analyzeCtx, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// written then removed inside one debounce window
		w.handleRemove(path)
	case err != nil && rec == nil:
		w.logger.Warn("failed to analyze file", "file", path, "error", err)
		w.emit(Event{Kind: EventError, Path: path, Err: err})
	case !changed:
		w.logger.Debug("content unchanged, skipping", "file", path)
	default:
		if err != nil {
			w.logger.Warn("analysis fault", "file", path, "error", err)
		}
		w.logger.Info("analyzed",
			"file", path,
			"language", string(rec.Language),
			"functions", rec.FunctionCount(),
			"classes", rec.ClassCount(),
			"imports", rec.ImportCount())
		w.emit(Event{Kind: EventAnalyzed, Path: path, Record: rec})
	}
}

// analyzeFile returns changed=false when the content hash matches the last
// analyzed version of path.
func (w *Watcher) analyzeFile(ctx context.Context, path string) (*extractor.Record, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	hash, err := indexer.HashFile(ctx, path)
	if err != nil {
		return nil, false, err
	}
	w.mu.Lock()
	unchanged := w.hashes[path] == hash
	w.mu.Unlock()
	if unchanged {
		return nil, false, nil
	}

	rec, err := w.indexer.AnalyzeFile(ctx, path)
	var fault *extractor.FaultError
	if err != nil && !errors.As(err, &fault) {
		return nil, false, err
	}

	w.mu.Lock()
	w.hashes[path] = hash
	w.mu.Unlock()
	return &rec, true, err
}

func (w *Watcher) handleRemove(path string) {
	if path == "" {
		w.logger.Warn("skipping removal with empty path")
		return
	}
	// A rename can be followed by a create on the same path.
	if _, err := os.Stat(path); err == nil {
		w.handleChange(context.Background(), path)
		return
	}

	w.mu.Lock()
	delete(w.hashes, path)
	w.mu.Unlock()

	w.logger.Info("removed", "file", path)
	w.emit(Event{Kind: EventRemoved, Path: path})
}

func (w *Watcher) emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.Err != nil {
		e.Error = e.Err.Error()
	}
	w.sink(e)
}
