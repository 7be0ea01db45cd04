package library

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"
)

// reloadDelay coalesces the burst of events a single save produces.
const reloadDelay = 200 * time.Millisecond

// Watch reloads the library whenever one of its files changes, until ctx is
// done. The directory is watched so that atomic replaces are seen.
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	defer watcher.Close()

	dir := filepath.Dir(l.tracksPath)
	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", dir)
	}
	if pdir := filepath.Dir(l.playlistsPath); pdir != dir {
		if err := watcher.Add(pdir); err != nil {
			return errors.Wrapf(err, "failed to watch %s", pdir)
		}
	}
	zlog.Info().Msgf("library: watching for changes: dir=%s", dir)

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !l.isLibraryFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			zlog.Debug().Msgf("library: file changed: name=%s op=%s", event.Name, event.Op)
			timer.Reset(reloadDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Msgf("library: watcher error: %v", err)
		case <-timer.C:
			if err := l.Reload(); err != nil {
				zlog.Warn().Msgf("library: reload failed, keeping previous contents: %v", err)
			}
		}
	}
}

func (l *Library) isLibraryFile(name string) bool {
	name = filepath.Clean(name)
	return name == filepath.Clean(l.tracksPath) || name == filepath.Clean(l.playlistsPath)
}
