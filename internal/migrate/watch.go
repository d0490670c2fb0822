package migrate

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/tracmark/internal/apperr"
)

// DefaultDebounce is how long Watch waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watch reruns the migration whenever the Trac database at dbPath changes,
// until ctx is cancelled. Bursts of writes within debounce trigger one run.
func (s *Service) Watch(ctx context.Context, dbPath string, opts Options, debounce time.Duration, emit EventFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// SQLite replaces journal files next to the database, so watch the
	// directory rather than the file.
	dir, base := filepath.Split(dbPath)
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		return err
	}
	s.logger.Info("watcher: started", slog.String("db", dbPath))

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			_, err := s.Run(ctx, opts, emit)
			switch {
			case errors.Is(err, apperr.ErrRunInProgress):
				s.logger.Debug("watcher: run in progress, retrying")
				schedule()
			case err != nil:
				s.logger.Warn("watcher: run failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				s.logger.Debug("watcher: database changed", slog.String("path", ev.Name))
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
