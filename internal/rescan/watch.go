package rescan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/agentic-research/tagfs/internal/memo"
)

// DefaultDebounce coalesces bursts of filesystem events into one rescan.
const DefaultDebounce = 250 * time.Millisecond

// Watch invalidates the snapshot when the items root or any item directory
// changes. Tag files live directly inside item directories, so one level
// below the root is watched.
type Watch struct {
	Root     string
	Debounce time.Duration
	Log      *zap.Logger
}

// WatchOption configures a Watch policy.
type WatchOption func(*Watch)

func WithDebounce(d time.Duration) WatchOption { return func(w *Watch) { w.Debounce = d } }

func WithLogger(l *zap.Logger) WatchOption { return func(w *Watch) { w.Log = l } }

func NewWatch(root string, opts ...WatchOption) Watch {
	w := Watch{Root: filepath.Clean(root), Debounce: DefaultDebounce, Log: zap.NewNop()}
	for _, o := range opts {
		o(&w)
	}
	return w
}

func (Watch) Strategy() memo.Strategy { return memo.NoReload{} }

func (w Watch) Run(ctx context.Context, invalidate func()) error {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.Root); err != nil {
		return fmt.Errorf("watch %s: %w", w.Root, err)
	}
	entries, err := os.ReadDir(w.Root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.Root, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.add(watcher, filepath.Join(w.Root, e.Name()), log)
		}
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Has(fsnotify.Create) && filepath.Dir(ev.Name) == w.Root {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					w.add(watcher, ev.Name, log)
				}
			}
			log.Debug("items changed", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				timer.Reset(w.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			log.Info("items changed, snapshot invalidated")
			invalidate()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w Watch) add(watcher *fsnotify.Watcher, dir string, log *zap.Logger) {
	if err := watcher.Add(dir); err != nil {
		log.Warn("cannot watch item", zap.String("dir", dir), zap.Error(err))
	}
}
