package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bastiangx/ordsok/pkg/debounce"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// reloadQuiet coalesces the burst of events editors produce for one save.
const reloadQuiet = 100 * time.Millisecond

// Watch reloads configPath whenever it changes and hands the new config to onReload.
// The parent dir is watched so that atomic rename-on-save still triggers a reload.
// Watch blocks until ctx is done.
func Watch(ctx context.Context, configPath string, onReload func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(configPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	reload := debounce.New(reloadQuiet, func(path string) {
		cfg, err := LoadConfig(path)
		if err != nil {
			log.Warnf("Config reload failed for %s: %v", path, err)
			return
		}
		log.Debugf("Reloaded config from %s", path)
		onReload(cfg)
	})
	defer reload.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				reload.Trigger(target)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("Config watcher error: %v", err)
		}
	}
}
