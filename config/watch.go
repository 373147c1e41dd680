package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Carmen-Shannon/oxy-deferred/log"
)

var logger = log.New("config")

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 100 * time.Millisecond

// Watch reloads the file whenever it changes and passes each valid configuration to onChange.
// Invalid documents are logged and skipped. The directory is watched rather than the file so that
// atomic rename-on-save is seen. Watch blocks until ctx is cancelled.
//
// Parameters:
//   - ctx: cancels the watch
//   - path: the config file
//   - onChange: receives every successfully reloaded configuration
//
// Returns:
//   - error: error if the watcher cannot be created
func Watch(ctx context.Context, path string, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warningf("config watcher error: %v", err)
		case <-pending:
			pending = nil
			cfg, err := Load(abs)
			if err != nil {
				logger.Warningf("ignoring config reload: %v", err)
				continue
			}
			logger.Infof("reloaded %s", abs)
			onChange(cfg)
		}
	}
}
