// Package watchfolder turns files appearing under watched directories into
// quiet import batches.
package watchfolder

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Sink receives one debounced batch of new or rewritten files.
type Sink func(ctx context.Context, paths []string) error

// Options tune Watch.
type Options struct {
	// Debounce is how long the folders must stay quiet before a batch is
	// flushed. Defaults to 500ms.
	Debounce time.Duration
	// Extensions restricts batches to these file extensions (without the
	// dot, case-insensitive). Empty accepts every file.
	Extensions []string
	// ScanExisting queues the files already present at start.
	ScanExisting bool
	Logger       *slog.Logger
}

type filter struct {
	exts map[string]bool
}

func newFilter(exts []string) filter {
	f := filter{exts: make(map[string]bool, len(exts))}
	for _, e := range exts {
		f.exts[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	return f
}

func (f filter) accepts(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if len(f.exts) == 0 {
		return true
	}
	return f.exts[strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))]
}

// Watch watches roots recursively until ctx is cancelled. Created and
// written files are collected and handed to sink once the folders have been
// quiet for the debounce interval. Directories created at runtime are
// watched too and their files queued.
func Watch(ctx context.Context, roots []string, sink Sink, opts Options) error {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger
	accept := newFilter(opts.Extensions)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watchfolder: %w", err)
	}
	defer w.Close()

	pending := make(map[string]struct{})
	queue := func(path string) {
		if accept.accepts(path) {
			pending[path] = struct{}{}
		}
	}

	for _, root := range roots {
		if err := addDirsRecursive(w, root); err != nil {
			return fmt.Errorf("watchfolder: watch %s: %w", root, err)
		}
		if opts.ScanExisting {
			walkFiles(root, queue)
		}
		logger.Info("watchfolder: started", slog.String("root", root))
	}

	var flushTimer *time.Timer
	var flushCh <-chan time.Time
	scheduleFlush := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(opts.Debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(opts.Debounce)
		}
	}
	if len(pending) > 0 {
		scheduleFlush()
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watchfolder: stopped")
			return nil

		case <-flushCh:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			if len(paths) == 0 {
				continue
			}
			slices.Sort(paths)
			logger.Debug("watchfolder: flushing batch", slog.Int("files", len(paths)))
			if err := sink(ctx, paths); err != nil {
				logger.Warn("watchfolder: import failed",
					slog.Int("files", len(paths)), slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			info, statErr := os.Stat(ev.Name)
			if statErr != nil {
				continue
			}
			if info.IsDir() {
				if ev.Op&fsnotify.Create == 0 {
					continue
				}
				if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
					logger.Warn("watchfolder: add new dir failed",
						slog.String("path", ev.Name),
						slog.String("error", addErr.Error()))
					continue
				}
				logger.Debug("watchfolder: watching new dir", slog.String("path", ev.Name))
				walkFiles(ev.Name, queue)
			} else if info.Mode().IsRegular() {
				queue(ev.Name)
			}
			if len(pending) > 0 {
				scheduleFlush()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watchfolder: error", slog.String("error", watchErr.Error()))
		}
	}
}

// walkFiles calls fn for every regular file under root.
func walkFiles(root string, fn func(string)) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			fn(path)
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
