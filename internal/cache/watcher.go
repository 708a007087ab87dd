package cache

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/storage"
)

// Event kinds passed to an EventCallback.
const (
	KindCreated     = "created"
	KindUpdated     = "updated"
	KindDeleted     = "deleted"
	KindInvalidated = "invalidated"
)

// EventCallback is called after a watcher-driven cache change. kind is one
// of the Kind constants; invalidations are reported once per affected path.
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on the vault root and processes file
// change events until ctx is cancelled.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that forgets documents
// whose files no longer exist on disk. Changes to hidden files (attachments)
// only invalidate the documents including them.
func Watch(ctx context.Context, db Store, vault *storage.FS, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := vault.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	notify := func(kind, p string, affected []string) {
		if cb == nil {
			return
		}
		cb(kind, p)
		for _, a := range affected {
			cb(KindInvalidated, a)
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
			reconcile(ctx, db, vault, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					refreshNewDir(ctx, db, vault, absPath, logger, notify)
					continue
				}
			}

			if contenttype.ForName(absPath) == "" {
				continue
			}
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			p := "/" + filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := KindUpdated
				if ev.Op&fsnotify.Create != 0 {
					kind = KindCreated
				}
				if hidden(p) {
					affected, err := db.Invalidate(ctx, p)
					if err != nil {
						logger.Warn("watcher: invalidate failed", slog.String("path", p), slog.String("error", err.Error()))
						continue
					}
					notify(kind, p, affected)
					continue
				}
				data, readErr := vault.Read(p)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", p), slog.String("error", readErr.Error()))
					continue
				}
				affected, err := db.Refresh(ctx, vault.Document(p), data)
				if err != nil {
					logger.Warn("watcher: refresh failed", slog.String("path", p), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: refreshed", slog.String("path", p), slog.String("op", kind))
				notify(kind, p, affected)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify fires Rename on the old path only. The new path
				// arrives as a separate Create event when it stays within a
				// watched dir; the reconciliation pass catches the rest.
				affected, err := db.Forget(ctx, p)
				if err != nil {
					logger.Warn("watcher: forget failed", slog.String("path", p), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: forgotten", slog.String("path", p))
				notify(KindDeleted, p, affected)
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile forgets documents without a file on disk and records files
// that are unknown or changed.
func reconcile(ctx context.Context, db Store, vault *storage.FS, logger *slog.Logger, notify func(string, string, []string)) {
	checksums, err := db.AllChecksums(ctx)
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := vault.List("/")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if affected, err := db.Forget(ctx, p); err == nil {
				logger.Debug("reconcile: removed stale", slog.String("path", p))
				notify(KindDeleted, p, affected)
			}
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		data, readErr := vault.Read(p)
		if readErr != nil {
			continue
		}
		if affected, err := db.Refresh(ctx, vault.Document(p), data); err == nil {
			logger.Debug("reconcile: recorded", slog.String("path", p))
			notify(KindCreated, p, affected)
		}
	}
}

// refreshNewDir records the documents found in a newly created directory.
func refreshNewDir(ctx context.Context, db Store, vault *storage.FS, dirPath string, logger *slog.Logger, notify func(string, string, []string)) {
	root := vault.Root()
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || contenttype.ForName(path) == "" {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		p := "/" + filepath.ToSlash(rel)
		if hidden(p) {
			return nil
		}
		data, readErr := vault.Read(p)
		if readErr != nil {
			return nil
		}
		if affected, err := db.Refresh(ctx, vault.Document(p), data); err == nil {
			logger.Debug("watcher: recorded from new dir", slog.String("path", p))
			notify(KindCreated, p, affected)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
