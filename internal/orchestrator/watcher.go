// pattern: Imperative Shell

package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"cgwt/internal/gitx"
	"cgwt/internal/logging"
)

// watcherPollInterval is the polling safeguard for filesystems that miss
// inotify events (network mounts, some container bind mounts).
const watcherPollInterval = 5 * time.Second

// Watcher observes the administrative worktree registry of a container and
// signals whenever worktrees are added or removed outside this process, so
// session listings can be refreshed.
type Watcher struct {
	dir     string // <container>/.bare/worktrees
	fw      *fsnotify.Watcher
	events  chan struct{}
	log     *logging.ScopedLogger
	watched bool
	known   int // last observed entry count, for the polling safeguard
}

// NewWatcher creates a watcher for the container at basePath. The registry
// directory may not exist yet (git creates it on the first worktree add);
// Run picks it up when it appears.
func NewWatcher(basePath string, log *logging.ScopedLogger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &Watcher{
		dir:    filepath.Join(basePath, gitx.BareDirName, "worktrees"),
		fw:     fw,
		events: make(chan struct{}, 1),
		log:    log,
	}, nil
}

// Events signals worktree registry changes. The channel has capacity one
// and notifications coalesce; consumers re-list on each signal.
func (w *Watcher) Events() <-chan struct{} { return w.events }

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fw.Close() }()

	w.tryWatch()
	w.known = w.countEntries()

	ticker := time.NewTicker(watcherPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				w.known = w.countEntries()
				w.notify()
			}

		case <-ticker.C:
			if !w.watched {
				w.tryWatch()
			}
			if n := w.countEntries(); n != w.known {
				w.known = n
				w.notify()
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Debug("watch error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) tryWatch() {
	if err := w.fw.Add(w.dir); err == nil {
		w.watched = true
		w.log.Debug("watching worktree registry", "dir", w.dir)
	}
}

func (w *Watcher) countEntries() int {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0
	}
	return len(entries)
}

// notify coalesces: a pending signal that has not been consumed yet already
// covers this change.
func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
