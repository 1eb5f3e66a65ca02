package scoring

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/KhubaibAhamed/SentinelAI/internal/trigger"
)

// WatchLexicon reloads classifier whenever the lexicon file at path changes. Bursts of
// editor writes are debounced by delay. It blocks until ctx is cancelled.
func WatchLexicon(ctx context.Context, path string, classifier *LexiconClassifier, delay time.Duration) error {
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create lexicon watcher: %w", err)
	}
	defer watcher.Close()

	// editors often replace the file, so watch the directory and filter by name
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch lexicon dir: %w", err)
	}

	reload := trigger.New(trigger.Options{
		Delay:     delay,
		MinLength: trigger.NoMinLength,
		Fire: func(name string) {
			if err := classifier.Reload(name); err != nil {
				logrus.WithError(err).WithField("path", name).Warn("lexicon reload failed")
			}
		},
	})
	defer reload.Close()

	logrus.WithField("path", path).Info("watching lexicon")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("lexicon watcher events closed")
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logrus.WithFields(logrus.Fields{"path": event.Name, "op": event.Op.String()}).Debug("lexicon changed")
			reload.Update(path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("lexicon watcher errors closed")
			}
			logrus.WithError(err).Warn("lexicon watcher error")
		}
	}
}
