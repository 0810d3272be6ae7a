package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tbalint/repovector-mcp/ignore"
)

// IgnoreChecker filters paths before they enter the coalescing buffer and
// reloads rules when an ignore file changes on disk.
type IgnoreChecker interface {
	ShouldIgnore(absolutePath string) bool
	ShouldIgnoreDir(absolutePath string) bool
	Reload()
}

// Watcher subscribes to native filesystem notifications for a directory
// tree, normalizes and filters them, and coalesces them into a bounded
// event queue. fsnotify delivers on its own goroutine; the coalescer is the
// thread-safe bridge into the rest of the pipeline.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	coalescer    *Coalescer
	checker      IgnoreChecker
	rootDir      string
	logger       *slog.Logger
	dispatchDone chan struct{}
}

// Options configures a Watcher.
type Options struct {
	RootDir         string
	CoalesceWindow  time.Duration
	QueueCapacity   int
	Checker         IgnoreChecker
	Logger          *slog.Logger
}

// New creates a watcher over every non-ignored directory under the root.
// Failure to establish the native subscription is returned to the caller;
// per-directory registration failures are only logged.
func New(options Options) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher:    fsWatcher,
		coalescer:    NewCoalescer(options.CoalesceWindow, options.QueueCapacity, options.Logger),
		checker:      options.Checker,
		rootDir:      options.RootDir,
		logger:       options.Logger,
		dispatchDone: make(chan struct{}),
	}

	if err := w.watchTree(options.RootDir); err != nil {
		fsWatcher.Close()
		w.coalescer.Stop()
		return nil, err
	}

	return w, nil
}

// watchTree registers dir and all non-ignored directories beneath it.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("watcher: cannot read directory", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.rootDir && w.checker.ShouldIgnoreDir(path) {
			return filepath.SkipDir
		}
		if watchErr := w.fsWatcher.Add(path); watchErr != nil {
			w.logger.Warn("watcher: failed to watch directory", "path", path, "error", watchErr)
		}
		return nil
	})
}

// Events returns the bounded queue of coalesced events.
func (w *Watcher) Events() <-chan Event {
	return w.coalescer.Events()
}

// Start dispatches native notifications until the watcher is stopped. Run it
// in its own goroutine.
func (w *Watcher) Start() {
	defer close(w.dispatchDone)
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher: notification error", "error", err)
		}
	}
}

// handleEvent normalizes one fsnotify event and hands it to the coalescer.
func (w *Watcher) handleEvent(raw fsnotify.Event) {
	path := raw.Name

	// Newly created directories join the watch set; directory creation
	// itself does not reach the queue.
	if raw.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.checker.ShouldIgnoreDir(path) {
				if err := w.watchTree(path); err != nil {
					w.logger.Warn("watcher: failed to watch new directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	// A change to an ignore file re-loads the rule set.
	if filepath.Base(path) == ignore.IgnoreFileName {
		w.checker.Reload()
		w.logger.Info("watcher: reloaded ignore rules", "trigger", path)
		return
	}

	if w.checker.ShouldIgnore(path) {
		return
	}

	event := Event{Path: path, Time: time.Now()}
	switch {
	case raw.Has(fsnotify.Create):
		event.Kind = KindCreated
	case raw.Has(fsnotify.Write):
		event.Kind = KindModified
	case raw.Has(fsnotify.Remove):
		event.Kind = KindDeleted
	case raw.Has(fsnotify.Rename):
		// fsnotify reports the origin of a rename; the destination arrives
		// as a separate create.
		event.Kind = KindMoved
		event.PrevPath = path
	default:
		return
	}

	relPath, err := filepath.Rel(w.rootDir, path)
	if err != nil {
		relPath = path
	}
	event.RelPath = filepath.ToSlash(relPath)

	if event.Kind == KindCreated || event.Kind == KindModified {
		if info, err := os.Stat(path); err == nil {
			event.IsDir = info.IsDir()
			event.Size = info.Size()
		}
	}

	w.coalescer.Add(event)
}

// Stop unsubscribes from native notifications, waits for the dispatch
// goroutine, then flushes the coalescing buffer and closes the event queue.
// Consumers observe the close after draining every remaining event.
func (w *Watcher) Stop() error {
	err := w.fsWatcher.Close()
	<-w.dispatchDone
	w.coalescer.Stop()
	return err
}
