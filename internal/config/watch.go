package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/mbrgrep/internal/debug"
)

// DefaultWatchDebounce batches the bursts of events editors produce on save
const DefaultWatchDebounce = 200 * time.Millisecond

// Watch reloads the settings in dir whenever a settings file there changes
// and passes the validated result, or the load error, to onChange. The
// directory is watched rather than the file so atomic renames are seen.
// Watch blocks until ctx is done.
func Watch(ctx context.Context, dir string, onChange func(*Config, error)) error {
	return WatchWithDebounce(ctx, dir, DefaultWatchDebounce, onChange)
}

// WatchWithDebounce is Watch with an explicit quiet period
func WatchWithDebounce(ctx context.Context, dir string, debounce time.Duration, onChange func(*Config, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	debug.LogConfig("watching %s for settings changes\n", dir)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isSettingsFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			debug.LogConfig("settings event %v for %s\n", event.Op, event.Name)
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			debug.LogConfig("settings watcher error: %v\n", err)

		case <-timer.C:
			cfg, err := Load(dir)
			onChange(cfg, err)
		}
	}
}

func isSettingsFile(path string) bool {
	name := filepath.Base(path)
	return name == KDLFileName || name == TOMLFileName
}
