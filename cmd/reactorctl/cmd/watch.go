package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watch calls rerun for a scenario each time its file is written or
// recreated, until ctx is cancelled. Parent directories are watched so
// editors that save by rename are picked up.
func watch(ctx context.Context, log *zap.SugaredLogger, paths []string, rerun func(context.Context, string) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reactorctl: watch: %w", err)
	}
	defer watcher.Close()

	targets := make(map[string]string, len(paths))
	dirs := map[string]struct{}{}
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("reactorctl: watch %s: %w", path, err)
		}
		targets[abs] = path
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("reactorctl: watch %s: %w", dir, err)
		}
	}
	log.Infow("watching", "files", len(targets))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			path, ok := targets[abs]
			if !ok {
				continue
			}
			if err := rerun(ctx, path); err != nil {
				log.Warnw("scenario failed", "scenario", path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnw("watch error", "error", err)
		}
	}
}
