package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// ChangeFunc is called after a source file is reloaded. config is nil when the file was removed.
type ChangeFunc func(name string, config *Config)

// Watcher keeps a ConfigCache in sync with its directory.
type Watcher struct {
	cache    *ConfigCache
	fsw      *fsnotify.Watcher
	onChange ChangeFunc
}

func NewWatcher(cache *ConfigCache, onChange ChangeFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := fsw.Add(cache.Dir()); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", cache.Dir(), err)
	}

	return &Watcher{cache: cache, fsw: fsw, onChange: onChange}, nil
}

// Run blocks until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("Source watcher error", "error", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name, ok := NameFromPath(event.Name)
	if !ok {
		return
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		config, err := w.cache.LoadConfig(name)
		if err != nil {
			// The previous version stays active until the file is fixed.
			slog.Error("Failed to reload source config", "source", name, "error", err)
			return
		}
		slog.Info("Source config reloaded", "source", name, "enabled", config.Settings.Enabled)
		w.notify(name, config)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if w.cache.RemoveConfig(name) {
			slog.Info("Source config removed", "source", name)
			w.notify(name, nil)
		}
	}
}

func (w *Watcher) notify(name string, config *Config) {
	if w.onChange != nil {
		w.onChange(name, config)
	}
}
