package fs

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/trackship/internal/ports"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 100 * time.Millisecond

// ConfigWatcher calls a reload function whenever a config file changes.
type ConfigWatcher struct {
	path     string
	debounce time.Duration
	reload   func(ctx context.Context)
	logger   ports.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewConfigWatcher watches path. reload runs on its own goroutine after each
// debounced burst of writes.
func NewConfigWatcher(path string, reload func(ctx context.Context), logger ports.Logger) *ConfigWatcher {
	return &ConfigWatcher{
		path:     path,
		debounce: DefaultDebounce,
		reload:   reload,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled. The parent directory is watched rather
// than the file so atomic-rename saves are seen.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.logger.Info("watching config file", ports.String("path", w.path))

	name := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", ports.Err(err))
		}
	}
}

func (w *ConfigWatcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.logger.Info("config file changed, reloading", ports.String("path", w.path))
		w.reload(ctx)
	})
}

func (w *ConfigWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
