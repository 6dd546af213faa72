package suppliers

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/domain/order"
	"orderbot/internal/errs"
)

const reloadDelay = 200 * time.Millisecond

// Watcher reloads a supplier file into a catalog whenever it changes. A file
// that fails to load keeps the previous list.
type Watcher struct {
	path    string
	catalog *order.SupplierCatalog
}

func NewWatcher(path string, catalog *order.SupplierCatalog) *Watcher {
	return &Watcher{path: filepath.Clean(path), catalog: catalog}
}

// Reload loads the file once and swaps the catalog contents.
func (w *Watcher) Reload(ctx context.Context) error {
	names, err := Load(w.path)
	if err != nil {
		return err
	}
	w.catalog.Replace(names)
	logging.Info(ctx, "suppliers reloaded",
		slog.String("path", w.path),
		slog.Int("count", w.catalog.Len()),
	)
	return nil
}

// Run watches the file's directory until ctx is done. Editors that replace
// the file by rename are covered because the directory is watched.
func (w *Watcher) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create file watcher")
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return errs.Wrapf(err, "watch %q", filepath.Dir(w.path))
	}

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Coalesce the burst of events a single save produces.
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			if err := w.Reload(ctx); err != nil {
				logging.Warn(ctx, "suppliers reload failed",
					slog.String("path", w.path),
					slog.Any("err", errs.Loggable(err)),
				)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn(ctx, "suppliers watcher error", slog.Any("err", errs.Loggable(err)))
		}
	}
}
