package library

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/shelf/internal/storage"
)

// EventCallback is called after a watcher-driven store change.
// kind is one of "created", "updated", "deleted"; path is the record path.
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch follows the catalog directory with fsnotify and applies record
// changes to the store until ctx is cancelled. New directories are added to
// the watch list; renames trigger a debounced reconciliation pass.
func Watch(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	root := store.Root()
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}
	notify := func(kind, rel string) {
		if cb != nil {
			cb(kind, rel)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, db, store, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed", slog.String("path", ev.Name), slog.String("error", addErr.Error()))
					}
					scheduleReconcile()
					continue
				}
			}
			rel, ok := recordPath(root, ev.Name)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				known, _ := db.GetChecksum(ctx, rel)
				if _, idxErr := IndexRecord(ctx, db, rel, data); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if known == "" {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				notify(kind, rel)

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteBySource(ctx, rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", rel))
				notify("deleted", rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports the old name only; the new name arrives as
				// a Create if it stays inside a watched directory.
				if delErr := db.DeleteBySource(ctx, rel); delErr == nil {
					notify("deleted", rel)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// recordPath maps an absolute event path to a catalog-relative record path.
func recordPath(root, abs string) (string, bool) {
	if !strings.HasSuffix(abs, storage.RecordExt) || strings.HasPrefix(filepath.Base(abs), ".") {
		return "", false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// reconcile removes books whose record disappeared and indexes records the
// store has not seen, reporting each change through notify.
func reconcile(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger, notify EventCallback) {
	before, err := db.AllChecksums(ctx)
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	if _, err := Sync(ctx, db, store, logger); err != nil {
		logger.Warn("reconcile: sync failed", slog.String("error", err.Error()))
		return
	}
	after, err := db.AllChecksums(ctx)
	if err != nil {
		return
	}
	for p := range before {
		if _, ok := after[p]; !ok {
			notify("deleted", p)
		}
	}
	for p, cs := range after {
		old, ok := before[p]
		switch {
		case !ok:
			notify("created", p)
		case old != cs:
			notify("updated", p)
		}
	}
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
