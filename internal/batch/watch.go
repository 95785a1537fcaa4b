package batch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/FocuswithJustin/deckir/core/cache"
	"github.com/FocuswithJustin/deckir/core/errors"
	"github.com/FocuswithJustin/deckir/internal/archive"
	"github.com/FocuswithJustin/deckir/internal/logging"
	"github.com/FocuswithJustin/deckir/internal/validation"
)

// DefaultDebounce is how long Watch waits after the last change to a deck
// before re-extracting it.
const DefaultDebounce = 200 * time.Millisecond

// WatchOptions tunes Watch.
type WatchOptions struct {
	Debounce time.Duration

	// Initial runs a full Extract before watching.
	Initial bool

	// OnResult, when set, is called after each deck is re-extracted or
	// its record removed.
	OnResult func(WatchEvent)

	// ready is closed once the watcher is installed; tests use it.
	ready chan struct{}
}

// WatchEvent reports what Watch did for one deck.
type WatchEvent struct {
	Removed bool
	Result  FileResult
}

// Watch keeps the records in cfg.OutDir current while decks under
// cfg.InRoot change. New, modified and renamed decks are re-extracted
// once they have been quiet for the debounce interval; removed decks have
// their record (and catalog entry) deleted. A parse cache is created when
// cfg.Cache is nil. Watch returns when ctx is done.
func Watch(ctx context.Context, cfg Config, opts WatchOptions) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewParseCache(cache.DefaultConfig())
	}
	ctx = logging.WithRunID(ctx, cfg.RunID)

	if opts.Initial {
		if _, err := Extract(ctx, cfg); err != nil && !errors.Is(err, errors.ErrNotFound) {
			return err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewIO("create watcher", cfg.InRoot, err)
	}
	defer watcher.Close()
	if err := addWatchRecursive(watcher, cfg.InRoot); err != nil {
		return errors.NewIO("watch", cfg.InRoot, err)
	}
	if opts.ready != nil {
		close(opts.ready)
	}
	logging.LoggerFromContext(ctx).Info("watching", "root", cfg.InRoot, "debounce_ms", opts.Debounce.Milliseconds())

	ext := strings.ToLower(cfg.dialect().FileExtension())
	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	enqueue := func(path string) {
		pending[path] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(opts.Debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(opts.Debounce)
		}
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("watcher error", "error", err.Error(), "run_id", logging.GetRunID(ctx))

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if evt.Op&fsnotify.Create != 0 {
				if fi, statErr := os.Stat(evt.Name); statErr == nil && fi.IsDir() {
					if addErr := addWatchRecursive(watcher, evt.Name); addErr != nil {
						logging.LoggerFromContext(ctx).Warn("add watch failed", "path", evt.Name, "error", addErr.Error())
					}
					// Decks may have landed in the directory before its watch existed.
					found, _ := FindDecks(evt.Name, ext)
					for _, rel := range found {
						enqueue(filepath.Join(evt.Name, rel))
					}
					continue
				}
			}
			if isDeckEvent(evt, ext) {
				enqueue(evt.Name)
			}

		case <-timerC:
			timerC = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			for _, p := range paths {
				handleChange(ctx, cfg, p, opts.OnResult)
			}
		}
	}
}

func handleChange(ctx context.Context, cfg Config, path string, onResult func(WatchEvent)) {
	rel, err := validation.RelWithin(cfg.InRoot, path)
	if err != nil {
		logging.Warn("ignoring change outside input root", "path", path, "root", cfg.InRoot, "run_id", logging.GetRunID(ctx))
		return
	}

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		removeRecord(ctx, cfg, rel)
		if onResult != nil {
			onResult(WatchEvent{Removed: true, Result: FileResult{RelPath: rel, ID: archive.RecordName(rel)}})
		}
		return
	}

	res := ExtractFile(ctx, cfg, rel)
	if onResult != nil {
		onResult(WatchEvent{Result: res})
	}
}

func removeRecord(ctx context.Context, cfg Config, rel string) {
	id := archive.RecordName(rel)
	out := filepath.Join(cfg.OutDir, id+cfg.recordExt())
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		logging.DeckFailed(ctx, rel, "remove", err)
	}
	if cfg.Cache != nil {
		cfg.Cache.Forget(filepath.Join(cfg.InRoot, rel))
	}
	if cfg.Catalog != nil {
		if err := cfg.Catalog.Delete(ctx, id); err != nil && !errors.Is(err, errors.ErrNotFound) {
			logging.DeckFailed(ctx, rel, "catalog", err)
		}
	}
	logging.LoggerFromContext(ctx).Info("deck_removed", "rel_path", filepath.ToSlash(rel), "id", id)
}

func isDeckEvent(evt fsnotify.Event, ext string) bool {
	if strings.TrimSpace(evt.Name) == "" {
		return false
	}
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(evt.Name)
	return !strings.HasPrefix(base, ".") && strings.HasSuffix(strings.ToLower(base), ext)
}

func addWatchRecursive(watcher *fsnotify.Watcher, root string) error {
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
		return watcher.Add(path)
	})
}
