package template

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"glance/internal/logging"
)

// Watcher hot-reloads custom template YAML files from a directory. Rapid
// editor saves are debounced so a half-written file is not parsed mid-save.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	registry    *Registry
	dir         string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity for status output and debugging.
type WatcherStats struct {
	FilesLoaded     int
	TemplatesLoaded int
	FilesRemoved    int
	Errors          int
	LastEventTime   time.Time
	LastEventPath   string
}

// NewWatcher creates a watcher for the given template directory.
func NewWatcher(dir string, registry *Registry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fsw,
		registry:    registry,
		dir:         dir,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start loads the existing template files, then begins watching the
// directory. Non-blocking; the event loop runs in a goroutine until Stop
// or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		logging.Get(logging.CategoryPrompt).Warn("Template watcher: cannot create %s: %v (continuing)", w.dir, err)
	}

	w.loadExisting()

	if err := w.watcher.Add(w.dir); err != nil {
		logging.Get(logging.CategoryPrompt).Warn("Template watcher: initial watch failed: %v", err)
	} else {
		logging.Prompt("Template watcher: watching %s", w.dir)
	}

	go w.run(ctx)
	return nil
}

// Stop halts the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryPrompt).Error("Template watcher: close: %v", err)
	}
	logging.Prompt("Template watcher: stopped")
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// loadExisting loads every template file already present in the directory.
func (w *Watcher) loadExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Get(logging.CategoryPrompt).Warn("Template watcher: read dir: %v", err)
		}
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isTemplateFile(entry.Name()) {
			continue
		}
		w.reload(filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryPrompt).Error("Template watcher: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebounced()
		}
	}
}

func isTemplateFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// handleEvent records a settled-later reload for writes and creates;
// removals take effect immediately.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !isTemplateFile(event.Name) {
		return
	}

	w.mu.Lock()
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.mu.Unlock()

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.mu.Lock()
		w.debounceMap[event.Name] = time.Now()
		w.mu.Unlock()

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.mu.Lock()
		delete(w.debounceMap, event.Name)
		w.stats.FilesRemoved++
		w.mu.Unlock()
		if err := w.registry.UnloadFile(event.Name); err != nil {
			logging.Get(logging.CategoryPrompt).Error("Template watcher: unload %s: %v", event.Name, err)
		}
	}
}

// processDebounced reloads files whose last event settled past the
// debounce window.
func (w *Watcher) processDebounced() {
	w.mu.Lock()
	now := time.Now()
	var toReload []string
	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			toReload = append(toReload, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range toReload {
		w.reload(path)
	}
}

func (w *Watcher) reload(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Deleted between the event and the debounce window.
		if err := w.registry.UnloadFile(path); err != nil {
			logging.Get(logging.CategoryPrompt).Error("Template watcher: unload %s: %v", path, err)
		}
		return
	}

	n, err := w.registry.LoadYAMLFile(path)
	w.mu.Lock()
	if err != nil {
		w.stats.Errors++
	} else {
		w.stats.FilesLoaded++
		w.stats.TemplatesLoaded += n
	}
	w.mu.Unlock()
	if err != nil {
		logging.Get(logging.CategoryPrompt).Error("Template watcher: reload %s: %v", path, err)
	}
}
