package landmark

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pretty-meaw/Drowsiness-Detection-System-Using-Pi/internal/logger"
)

// reloadDebounce coalesces the burst of write events a cascade copy
// produces into a single reload.
const reloadDebounce = 500 * time.Millisecond

// WatchCascades reloads the pigo detector behind sw whenever files in
// the cascade directory change, so models can be swapped without a
// restart. Blocks until ctx is cancelled.
func WatchCascades(ctx context.Context, sw *Swappable, cfg PigoConfig) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create cascade watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.CascadeDir); err != nil {
		return fmt.Errorf("watch %s: %w", cfg.CascadeDir, err)
	}

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("Landmark", "Cascade change: %s", event)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Landmark", "Cascade watcher error: %v", err)

		case <-reload:
			det, err := NewPigoDetector(cfg)
			if err != nil {
				logger.Error("Landmark", "Cascade reload failed, keeping previous models: %v", err)
				continue
			}
			if prev := sw.Swap(det); prev != nil {
				_ = prev.Close()
			}
			logger.Info("Landmark", "Cascades reloaded from %s", cfg.CascadeDir)
		}
	}
}
