package cliconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/loopleak/pkg/log"
)

// DefaultDebounce coalesces bursts of file events into one reload.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads the config file when it changes and hands every valid
// result to onChange. Invalid edits are logged and ignored.
type Watcher struct {
	loader   Loader
	onChange func(Config)
	logger   log.Logger
	delay    time.Duration

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher creates a watcher for loader.Path.
func NewWatcher(loader Loader, onChange func(Config), logger log.Logger) *Watcher {
	return &Watcher{
		loader:   loader,
		onChange: onChange,
		logger:   log.With(logger, log.Component("config-watcher")),
		delay:    DefaultDebounce,
	}
}

// Run watches until ctx is done. The parent directory is watched so editors
// that replace the file are seen.
func (w *Watcher) Run(ctx context.Context) error {
	if w.loader.Path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: create: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.loader.Path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config watcher: watch %s: %w", dir, err)
	}
	name := filepath.Base(w.loader.Path)
	w.logger.Debug("watching config", log.String("path", w.loader.Path))

	for {
		select {
		case <-ctx.Done():
			w.stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, w.reload)
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Warn("config reload rejected", log.Err(err))
		return
	}
	w.logger.Info("config reloaded", log.String("path", w.loader.Path))
	w.onChange(cfg)
}
