package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the given files for changes and calls onChange with the
// path each time one is written. It runs until ctx is cancelled.
//
// Instrumentation points are immutable once loaded, so varwatch does not
// hot-reload; callers use onChange to warn that a restart is required and
// to flip the staleness gauge.
func Watch(ctx context.Context, paths []string, onChange func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := watcher.Add(p); err != nil {
			return err
		}
	}

	slog.Info("config: watching for changes", "paths", paths)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename (atomic replace), so catch
			// Create as well as Write.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			onChange(event.Name)

			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
