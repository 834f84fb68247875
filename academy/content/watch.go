package content

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the bank whenever the content directory changes, until ctx
// is done. Bursts of events within the debounce window trigger one reload.
// onReload, when non-nil, receives the result of every reload.
func (b *Bank) Watch(ctx context.Context, onReload func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := b.watchTree(watcher, b.dir); err != nil {
		return err
	}
	b.logger.Info().Str("dir", b.dir).Msg("Watching content directory")

	timer := time.NewTimer(b.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := b.watchTree(watcher, ev.Name); err != nil {
						b.logger.Warn().Err(err).Str("path", ev.Name).Msg("Failed to watch new directory")
					}
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			timer.Reset(b.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.logger.Warn().Err(err).Msg("Content watcher error")

		case <-timer.C:
			err := b.Reload()
			if err != nil {
				b.logger.Warn().Err(err).Msg("Content reload reported problems")
			}
			if onReload != nil {
				onReload(err)
			}
		}
	}
}

func (b *Bank) watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
