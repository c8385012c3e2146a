package repo

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDelay is how long the watcher lets events settle before
// invoking the callback.
const DefaultWatchDelay = 350 * time.Millisecond

// Watcher invokes a callback once the working tree has settled after a
// burst of filesystem changes. Close releases the underlying watcher
// handle; the callback fires on the watcher's own goroutine.
type Watcher struct {
	guard Guard[*fsnotify.Watcher]

	mu    sync.Mutex
	timer *time.Timer
	delay time.Duration
	fn    func()
}

// Watch registers the repository's working tree (the .git directory is
// skipped) and returns a running Watcher. delay <= 0 picks
// DefaultWatchDelay.
func (s *Session) Watch(delay time.Duration, onChange func()) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w := &Watcher{
		guard: NewGuard(fw, fw.Close),
		delay: delay,
		fn:    onChange,
	}
	err = filepath.WalkDir(s.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == gitDirName && path != s.path {
			return filepath.SkipDir
		}
		slog.Debug("watching path", slog.String("path", path))
		return fw.Add(path)
	})
	if err != nil {
		werr := w.guard.Release()
		if werr != nil {
			slog.Error("watcher close", slog.Any("error", werr))
		}
		return nil, fmt.Errorf("watch %s: %w", s.path, err)
	}
	go w.loop(fw)
	return w, nil
}

const gitDirName = ".git"

func (w *Watcher) loop(fw *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ignoreWatchPath(ev.Name) {
				continue
			}
			slog.Debug("fsnotify event",
				slog.String("op", ev.Op.String()),
				slog.String("path", ev.Name),
			)
			w.trigger()
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

// trigger restarts the settle timer, so the callback runs once per burst.
func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.fn)
}

// Close stops the settle timer and releases the watcher handle. It is safe
// to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	return w.guard.Release()
}

func ignoreWatchPath(name string) bool {
	if strings.HasSuffix(name, ".lock") {
		return true
	}
	sep := string(filepath.Separator)
	return strings.Contains(name, sep+gitDirName+sep) || strings.HasSuffix(name, sep+gitDirName)
}
