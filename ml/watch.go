package ml

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchArtifact warns when the artifact at path changes while it is being
// served. The loaded model is kept; a restart is needed to pick up a new one.
// It blocks until ctx is done.
func WatchArtifact(ctx context.Context, path string, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory; editors and deploy tools often replace the file.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

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
			switch {
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				logger.Warn("model artifact removed while serving; keeping loaded model",
					zap.String("path", path), zap.String("op", event.Op.String()))
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				logger.Warn("model artifact changed on disk; restart to load it",
					zap.String("path", path), zap.String("op", event.Op.String()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("model watcher error", zap.Error(err))
		}
	}
}
