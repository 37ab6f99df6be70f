package session

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce coalesces bursts of file events from a single registry
// rewrite into one refresh.
const defaultDebounce = 250 * time.Millisecond

// Watcher refreshes the session provider when the registry file changes
// out of process, so a concurrent activation from another invocation is
// picked up without polling.
type Watcher struct {
	provider *Provider
	path     string
	logger   *slog.Logger
	debounce time.Duration
}

// NewWatcher creates a watcher for the registry file at path.
func NewWatcher(provider *Provider, path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		provider: provider,
		path:     path,
		logger:   logger,
		debounce: defaultDebounce,
	}
}

// Start begins watching until ctx is cancelled. The registry file may not
// exist yet, so the containing directory is watched and events are
// filtered by file name.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return err
	}

	go w.loop(ctx, fsw)
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer func() {
		_ = fsw.Close()
	}()

	base := filepath.Base(w.path)
	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			w.logger.Debug("registry file changed, refreshing sessions", "path", w.path)
			w.provider.Refresh(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("registry watcher error", "error", err)
		}
	}
}
