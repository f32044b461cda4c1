package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/noteintel/internal/storage"
)

// Watcher event kinds passed to EventCallback.
const (
	EventIndexed = "indexed"
	EventRemoved = "removed"
)

// EventCallback is called after a watcher-driven index change with the
// event kind and the affected note id.
type EventCallback func(kind, noteID string)

const reconcileDelay = 200 * time.Millisecond

// Watch runs an fsnotify watcher on the vault root until ctx is cancelled.
//
// New directories are added to the watch list as they appear. fsnotify only
// reports renames on the old path, so a rename deletes the old note and
// schedules a debounced Sync that picks up the new location.
func (ix *Indexer) Watch(ctx context.Context, root string, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	ix.logger.Info("watcher: started", slog.String("root", root))

	emit := func(kind, id string) {
		if cb != nil {
			cb(kind, id)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
			return
		}
		reconcileTimer.Reset(reconcileDelay)
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			ix.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			ix.reconcile(ctx, emit)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if !storage.IsHidden(filepath.Base(ev.Name)) {
						if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
							ix.logger.Warn("watcher: add new dir failed",
								slog.String("path", ev.Name),
								slog.String("error", addErr.Error()))
						}
						scheduleReconcile()
					}
					continue
				}
			}

			if !storage.IsNoteFile(filepath.Base(ev.Name)) {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := ix.vault.Read(ctx, rel)
				if readErr != nil {
					ix.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				id, idxErr := ix.IndexFile(ctx, rel, data, time.Now().UTC())
				if idxErr != nil {
					ix.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				ix.logger.Debug("watcher: indexed", slog.String("note_id", id))
				emit(EventIndexed, id)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				id, delErr := ix.Remove(ctx, rel)
				if delErr != nil {
					ix.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				ix.logger.Debug("watcher: removed", slog.String("note_id", id))
				emit(EventRemoved, id)
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			ix.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile runs a full Sync and reports every note it touched.
func (ix *Indexer) reconcile(ctx context.Context, emit func(kind, id string)) {
	before, err := ix.db.AllChecksums(ctx)
	if err != nil {
		ix.logger.Warn("reconcile: checksums failed", slog.String("error", err.Error()))
		return
	}
	if _, err := ix.Sync(ctx); err != nil {
		ix.logger.Warn("reconcile: sync failed", slog.String("error", err.Error()))
		return
	}
	after, err := ix.db.AllChecksums(ctx)
	if err != nil {
		ix.logger.Warn("reconcile: checksums failed", slog.String("error", err.Error()))
		return
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			emit(EventRemoved, id)
		}
	}
	for id, cs := range after {
		if before[id] != cs {
			emit(EventIndexed, id)
		}
	}
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && storage.IsHidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
