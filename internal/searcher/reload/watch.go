package reload

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads after the snapshot files stop changing for debounce. It
// returns once the watcher is running; the watcher stops with ctx.
func (r *Reloader) Watch(ctx context.Context, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	dir := filepath.Dir(r.dictPath)
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	if pd := filepath.Dir(r.postingsPath); pd != dir {
		if err := w.Add(pd); err != nil {
			w.Close()
			return fmt.Errorf("watching %s: %w", pd, err)
		}
	}
	r.logger.Info("watching snapshot", "dictionary", r.dictPath, "postings", r.postingsPath, "debounce", debounce)
	go r.watch(ctx, w, debounce)
	return nil
}

func (r *Reloader) watch(ctx context.Context, w *fsnotify.Watcher, debounce time.Duration) {
	defer w.Close()
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !r.watched(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			r.logger.Error("watcher error", "error", err)
		case <-fire:
			fire = nil
			// Failures are logged and counted by Reload.
			_, _ = r.Reload(ctx, "watch")
		}
	}
}

func (r *Reloader) watched(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	name := filepath.Clean(ev.Name)
	return name == filepath.Clean(r.dictPath) || name == filepath.Clean(r.postingsPath)
}
