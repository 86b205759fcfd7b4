// internal/watch/watch.go
//
// Change triggers for cache reconciliation.
//
// Context
// -------
// A file-backed store is watched with fsnotify.  Editors rarely write a
// file in place: most write a temp sibling and rename it over the target,
// which removes the inode fsnotify was watching.  We therefore watch the
// parent directory and filter events on the file's base name.
//
// Bursts of events are collapsed by a debounce timer, and fn runs on the
// watch goroutine, so two passes never overlap.
//
// SQL-backed stores have nothing to watch; Poll calls fn on a ticker
// instead.
//
// Usage
// -----
//
//	go watch.Watch(ctx, path, 100*time.Millisecond, func(ctx context.Context) {
//		svc.Sync(ctx)
//	})
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce applies when Watch is given a non-positive debounce.
const DefaultDebounce = 100 * time.Millisecond

// Watch calls fn after path is written, created, renamed, or removed.  It
// blocks until ctx is cancelled and returns nil then.  An error is only
// returned when the watcher cannot be set up.
func Watch(ctx context.Context, path string, debounce time.Duration, fn func(context.Context)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	fire := make(chan struct{}, 1)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op == fsnotify.Chmod {
				continue
			}

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default: // a pass is already queued
				}
			})
			mu.Unlock()

		case <-fire:
			fn(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			zap.S().Warnw("store watcher error", "path", abs, "err", err)
		}
	}
}

// Poll calls fn every interval until ctx is cancelled.
func Poll(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}
