package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher re-invokes onChanged, debounced, whenever the watched
// descriptor file is written or replaced — the one place the bootstrap
// binary watches the filesystem, grounded on the teacher's
// FileWatcher/Debouncer pair but reduced to a single file with no git-refs
// or polling fallback.
type ConfigWatcher struct {
	watcher   *fsnotify.Watcher
	path      string
	onChanged func()
	logger    *slog.Logger
	debounce  time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
}

// NewConfigWatcher builds a watcher over path's parent directory (so
// create/replace events are caught even before the file first exists).
func NewConfigWatcher(path string, onChanged func(), logger *slog.Logger) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	cw := &ConfigWatcher{
		watcher:   w,
		path:      path,
		onChanged: onChanged,
		logger:    logger,
		debounce:  250 * time.Millisecond,
	}
	return cw, nil
}

// Start begins watching in the background until ctx is canceled.
func (cw *ConfigWatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	cw.cancel = cancel

	if err := cw.watcher.Add(filepath.Dir(cw.path)); err != nil {
		cw.logger.Warn("watching descriptor failed", "path", cw.path, "error", err)
	}

	go func() {
		for {
			select {
			case event, ok := <-cw.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(cw.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					cw.trigger()
				}
			case err, ok := <-cw.watcher.Errors:
				if !ok {
					return
				}
				cw.logger.Warn("descriptor watcher error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (cw *ConfigWatcher) trigger() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, cw.onChanged)
}

// Close stops watching and releases the underlying fsnotify watcher.
func (cw *ConfigWatcher) Close() error {
	if cw.cancel != nil {
		cw.cancel()
	}
	cw.mu.Lock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.mu.Unlock()
	return cw.watcher.Close()
}
