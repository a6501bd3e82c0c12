package watcher

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.trai.ch/tint/internal/core/domain"
	"go.trai.ch/tint/internal/core/ports"
)

var _ ports.Watcher = (*Watcher)(nil)

// skipDirectories are directory names that are never watched.
var skipDirectories = map[string]bool{
	".git":         true,
	".jj":          true,
	".sass-cache":  true,
	"node_modules": true,
}

// styleExtensions are the file extensions the watcher reports events for.
var styleExtensions = map[string]bool{
	".scss": true,
	".sass": true,
	".css":  true,
}

const eventChannelBuffer = 100

// Watcher watches a directory tree for stylesheet changes using fsnotify.
// Events for files that are not stylesheets (and not the config file) are
// dropped before they reach the consumer.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	logger    ports.Logger
	events    chan ports.WatchEvent
}

// NewWatcher creates a new stylesheet watcher.
func NewWatcher(logger ports.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		logger:    logger,
		events:    make(chan ports.WatchEvent, eventChannelBuffer),
	}, nil
}

// Start begins watching the given root directory recursively and spawns the
// event loop. The loop runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context, root string) error {
	for dir := range directoriesUnder(root) {
		if err := w.fsWatcher.Add(dir); err != nil {
			return err
		}
	}

	go w.run(ctx)

	return nil
}

// Stop stops the watcher and releases all resources.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// Events returns an iterator of stylesheet file events.
func (w *Watcher) Events() iter.Seq[ports.WatchEvent] {
	return func(yield func(ports.WatchEvent) bool) {
		for event := range w.events {
			if !yield(event) {
				return
			}
		}
	}
}

// directoriesUnder walks the tree below root and yields every directory that
// should be watched.
func directoriesUnder(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable directories are skipped, not fatal.
				return nil //nolint:nilerr
			}
			if !d.IsDir() {
				return nil
			}
			if skipDirectories[d.Name()] {
				return fs.SkipDir
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleRaw(ctx, raw)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file system watch error", "error", err)
		}
	}
}

func (w *Watcher) handleRaw(ctx context.Context, raw fsnotify.Event) {
	op, ok := convertOp(raw.Op)
	if !ok {
		return
	}

	// A freshly created directory needs its own watches before any file
	// inside it can be observed.
	if op == ports.OpCreate {
		if info, err := os.Stat(raw.Name); err == nil && info.IsDir() {
			if !skipDirectories[info.Name()] {
				for dir := range directoriesUnder(raw.Name) {
					_ = w.fsWatcher.Add(dir)
				}
			}
			return
		}
	}

	if !w.relevant(raw.Name) {
		return
	}

	select {
	case w.events <- ports.WatchEvent{Path: raw.Name, Operation: op}:
	case <-ctx.Done():
	}
}

// relevant reports whether a file path matters to the build: stylesheet
// sources and the project config file.
func (w *Watcher) relevant(path string) bool {
	base := filepath.Base(path)
	if base == domain.ConfigFileName {
		return true
	}
	return styleExtensions[strings.ToLower(filepath.Ext(base))]
}

func convertOp(op fsnotify.Op) (ports.WatchOp, bool) {
	switch {
	case op&fsnotify.Write != 0:
		return ports.OpWrite, true
	case op&fsnotify.Create != 0:
		return ports.OpCreate, true
	case op&fsnotify.Remove != 0:
		return ports.OpRemove, true
	case op&fsnotify.Rename != 0:
		return ports.OpRename, true
	default:
		return 0, false
	}
}
