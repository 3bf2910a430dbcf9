package taskindex

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event kinds reported to an EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventRenamed = "renamed"
)

// Event describes one change applied to the index by the watcher.
type Event struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	OldPath string `json:"old_path,omitempty"`
}

// EventCallback is called after each watcher-driven index change.
type EventCallback func(Event)

const renameWindow = 200 * time.Millisecond

// Watch starts an fsnotify watcher on vaultRoot and feeds file changes to
// idx until ctx is cancelled. cb (if non-nil) runs after every change.
//
// fsnotify reports a rename as Rename on the old path followed by Create on
// the new one. The old path is held for a short window: a Create arriving in
// that window becomes a single HandleRename, otherwise the old path is
// deleted when the window closes.
func Watch(ctx context.Context, idx *Index, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	emit := func(ev Event) {
		if cb != nil {
			cb(ev)
		}
	}

	var (
		pending     string
		renameTimer *time.Timer
		renameCh    <-chan time.Time
	)

	holdRename := func(rel string) {
		pending = rel
		if renameTimer == nil {
			renameTimer = time.NewTimer(renameWindow)
			renameCh = renameTimer.C
		} else {
			renameTimer.Reset(renameWindow)
		}
	}

	flushRename := func() {
		if pending == "" {
			return
		}
		for _, p := range idx.pathsAt(pending) {
			if idx.HandleDelete(p) {
				logger.Debug("watcher: renamed away", slog.String("path", p))
				emit(Event{Kind: EventDeleted, Path: p})
			}
		}
		pending = ""
	}

	for {
		select {
		case <-ctx.Done():
			if renameTimer != nil {
				renameTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-renameCh:
			flushRename()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			rel, relErr := filepath.Rel(vaultRoot, ev.Name)
			if relErr != nil || strings.HasPrefix(rel, "..") {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&fsnotify.Create != 0:
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", rel),
							slog.String("error", addErr.Error()))
					}
					if _, isTask := idx.Task(pending); isTask {
						flushRename()
					} else if pending != "" {
						renameFolder(ctx, idx, pending, rel, emit)
						pending = ""
					}
					indexNewDir(ctx, idx, vaultRoot, ev.Name, emit)
					continue
				}
				if pending != "" && isMarkdown(rel) {
					from := pending
					pending = ""
					switch {
					case !idx.HandleRename(ctx, from, rel):
					case from == rel:
						// Editors that save by renaming over the original.
						emit(Event{Kind: EventUpdated, Path: rel})
					default:
						emit(Event{Kind: EventRenamed, Path: rel, OldPath: from})
					}
					continue
				}
				if idx.HandleCreate(ctx, rel) {
					emit(Event{Kind: EventCreated, Path: rel})
				}

			case ev.Op&fsnotify.Write != 0:
				if idx.HandleModify(ctx, rel) {
					emit(Event{Kind: EventUpdated, Path: rel})
				}

			case ev.Op&fsnotify.Remove != 0:
				for _, p := range idx.pathsAt(rel) {
					if idx.HandleDelete(p) {
						emit(Event{Kind: EventDeleted, Path: p})
					}
				}

			case ev.Op&fsnotify.Rename != 0:
				flushRename()
				holdRename(rel)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// renameFolder moves every task under oldDir to the same relative place under newDir.
func renameFolder(ctx context.Context, idx *Index, oldDir, newDir string, emit EventCallback) {
	for _, p := range idx.pathsAt(oldDir) {
		np := newDir + strings.TrimPrefix(p, oldDir)
		if idx.HandleRename(ctx, p, np) {
			emit(Event{Kind: EventRenamed, Path: np, OldPath: p})
		}
	}
}

// indexNewDir indexes markdown files in a newly created directory that are
// not tracked yet.
func indexNewDir(ctx context.Context, idx *Index, vaultRoot, dirPath string, emit EventCallback) {
	_ = filepath.WalkDir(dirPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isMarkdown(p) {
			return nil
		}
		rel, relErr := filepath.Rel(vaultRoot, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if _, tracked := idx.Task(rel); tracked {
			return nil
		}
		if idx.HandleCreate(ctx, rel) {
			emit(Event{Kind: EventCreated, Path: rel})
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
