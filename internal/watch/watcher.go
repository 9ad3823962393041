// Package watch notifies the admin server when the collection file or the
// asset directory changes on disk outside the tool (a text editor, git
// checkout, rsync). The store itself never watches anything; this is an
// admin-server convenience feeding the SSE live-reload stream.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Callback is invoked after a debounced batch of file-system changes.
type Callback func()

// debounce window: editors fire bursts of Write/Rename/Chmod per save.
const settle = 200 * time.Millisecond

// Run starts an fsnotify watcher over the site directory and invokes cb
// after changes to the projects file or the assets directory settle. It
// blocks until ctx is cancelled.
func Run(ctx context.Context, siteRoot, projectsFile, assetsDir string, logger *slog.Logger, cb Callback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the site root rather than the file itself: atomic saves replace
	// the inode, which silently detaches a file-level watch.
	if err := w.Add(siteRoot); err != nil {
		return err
	}
	assetsPath := filepath.Join(siteRoot, assetsDir)
	if info, statErr := os.Stat(assetsPath); statErr == nil && info.IsDir() {
		if err := w.Add(assetsPath); err != nil {
			return err
		}
	}

	logger.Info("watcher: started", slog.String("root", siteRoot))

	projectsPath := filepath.Join(siteRoot, projectsFile)

	var settleTimer *time.Timer
	var settleCh <-chan time.Time
	schedule := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settle)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			logger.Debug("watcher: change settled")
			if cb != nil {
				cb()
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, projectsPath, assetsPath) {
				continue
			}
			// The assets dir may appear after startup; start watching it.
			if ev.Op&fsnotify.Create != 0 && ev.Name == assetsPath {
				if info, statErr := os.Stat(assetsPath); statErr == nil && info.IsDir() {
					if addErr := w.Add(assetsPath); addErr != nil {
						logger.Warn("watcher: add assets dir failed",
							slog.String("path", assetsPath),
							slog.String("error", addErr.Error()))
					}
				}
			}
			logger.Debug("watcher: event", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant filters events down to the projects file and asset files.
func relevant(ev fsnotify.Event, projectsPath, assetsPath string) bool {
	if ev.Op&fsnotify.Chmod == ev.Op {
		return false
	}
	if ev.Name == projectsPath || ev.Name == assetsPath {
		return true
	}
	return filepath.Dir(ev.Name) == assetsPath
}
