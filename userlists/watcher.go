package userlists

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch keeps the cache in sync with the flag file until ctx is cancelled. Filesystem
// notifications on the flag's directory trigger an early poll; a ticker polls every
// PollInterval regardless, so reloads still happen when notifications are unavailable.
// Cache.Poll enforces the at-most-once-per-interval rule for both paths.
func Watch(ctx context.Context, c *Cache) {
	logger := slog.Default().With(slog.String("component", "userlists"))

	var events <-chan fsnotify.Event
	var errs <-chan error
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("fs notifications unavailable; polling only", slog.Any("err", err))
	} else {
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("close fs watcher", slog.Any("err", err))
			}
		}()
		if err := w.Add(filepath.Dir(c.flagFile)); err != nil {
			logger.Warn("watch data dir failed; polling only", slog.Any("err", err))
		} else {
			events, errs = w.Events, w.Errors
		}
	}

	poll := func() {
		if _, err := c.Poll(); err != nil {
			logger.Warn("user list reload failed", slog.Any("err", err))
		}
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	// pending is armed when a notification arrives inside the current interval.
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending = nil
			poll()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != filepath.Clean(c.flagFile) || !ev.Has(fsnotify.Create|fsnotify.Write) {
				continue
			}
			if pending == nil {
				pending = time.After(c.untilNextPoll())
			}
		case <-pending:
			pending = nil
			poll()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("fs watcher error", slog.Any("err", err))
		}
	}
}

func (c *Cache) untilNextPoll() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastPoll.IsZero() {
		return 0
	}
	return max(0, PollInterval-c.now().Sub(c.lastPoll))
}
