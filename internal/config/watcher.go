package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/nghyane/authfailover/internal/cooldown"
	"github.com/nghyane/authfailover/internal/logging"
)

// WatchCooldownConfig reloads the cooldown config from path whenever it
// changes on disk and invokes onChange with the freshly resolved value. It
// runs until ctx is cancelled. Reload failures are logged and otherwise
// ignored — the previously resolved config stays in effect.
func WatchCooldownConfig(ctx context.Context, path string, onChange func(cooldown.Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadCooldownConfig(path)
			if err != nil {
				logging.WithError(err).Warn("reload cooldown config")
				continue
			}
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.WithError(err).Warn("cooldown config watcher")
		}
	}
}
