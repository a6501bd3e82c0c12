// Package watch drives incremental rebuilds: it keeps the stylesheet graph
// in sync with file system events and recompiles the entry points whose
// transitive imports changed since their last successful compile.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/tint/internal/adapters/fs"
	"go.trai.ch/tint/internal/adapters/importcache"
	"go.trai.ch/tint/internal/adapters/parser"
	"go.trai.ch/tint/internal/adapters/watcher"
	"go.trai.ch/tint/internal/core/domain"
	"go.trai.ch/tint/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Engine owns the stylesheet graph for a watch session. It consumes debounced
// file system events, applies them to the graph, and recompiles stale entry
// points. All graph mutation happens on the engine's rebuild goroutine, so
// the graph needs no locking.
type Engine struct {
	cfg      *domain.Config
	compiler ports.Compiler
	watcher  ports.Watcher
	logger   ports.Logger

	importer domain.Importer
	cache    *importcache.Cache
	graph    *domain.StylesheetGraph

	// lastCompile records, per entry source, the instant the staleness check
	// preceding its last successful compile started. Anything modified after
	// it makes the entry stale again.
	lastCompile map[string]time.Time
}

// New creates an Engine for cfg. Imports resolve against the project root
// first, then the configured load paths in order.
func New(cfg *domain.Config, compiler ports.Compiler, w ports.Watcher, logger ports.Logger) (*Engine, error) {
	importer, err := fs.NewImporter(append([]string{cfg.Root}, cfg.LoadPaths...)...)
	if err != nil {
		return nil, err
	}

	cache := importcache.New(importer)
	return &Engine{
		cfg:         cfg,
		compiler:    compiler,
		watcher:     w,
		logger:      logger,
		importer:    importer,
		cache:       cache,
		graph:       domain.NewStylesheetGraph(cache, parser.NewScanner()),
		lastCompile: make(map[string]time.Time),
	}, nil
}

// Graph exposes the engine's stylesheet graph. Callers must not mutate it
// while Run is active.
func (e *Engine) Graph() *domain.StylesheetGraph {
	return e.graph
}

// RebuildAll runs a single staleness pass: every entry whose transitive
// imports changed since its output was written is recompiled. It returns the
// number of entries compiled and the first compile error, if any.
func (e *Engine) RebuildAll(ctx context.Context) (int, error) {
	e.primeLastCompile()
	return e.rebuildStale(ctx)
}

// Run performs an initial rebuild, then watches the project root and
// recompiles stale entries on every debounced batch of events. It blocks
// until ctx is cancelled; compile failures are reported and watching
// continues.
func (e *Engine) Run(ctx context.Context) error {
	e.primeLastCompile()
	if _, err := e.rebuildStale(ctx); err != nil {
		e.logger.Error(err)
	}

	if err := e.watcher.Start(ctx, e.cfg.Root); err != nil {
		return zerr.Wrap(err, "failed to start file watcher")
	}

	batches := make(chan []ports.WatchEvent, 1)
	debouncer := watcher.NewDebouncer(e.cfg.Debounce, func(events []ports.WatchEvent) {
		select {
		case batches <- events:
		case <-ctx.Done():
		}
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Ends when the watcher closes its event channel on shutdown.
		for event := range e.watcher.Events() {
			debouncer.Add(event)
		}
		return nil
	})

	g.Go(func() error {
		defer func() {
			_ = e.watcher.Stop()
		}()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case events := <-batches:
				e.applyEvents(events)
				if _, err := e.rebuildStale(ctx); err != nil {
					e.logger.Error(err)
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// applyEvents folds a debounced batch of file system events into the graph.
func (e *Engine) applyEvents(events []ports.WatchEvent) {
	for _, event := range events {
		e.applyEvent(event)
	}
}

func (e *Engine) applyEvent(event ports.WatchEvent) {
	if filepath.Base(event.Path) == domain.ConfigFileName {
		e.logger.Warn("configuration changed, restart watch to apply", "path", event.Path)
		return
	}

	canonical := domain.NewCanonicalURL(filepath.Clean(event.Path))

	switch event.Operation {
	case ports.OpRemove, ports.OpRename:
		if e.graph.Contains(canonical) {
			e.graph.Remove(canonical)
			e.logger.Info("stylesheet removed", "path", event.Path)
		}
	case ports.OpCreate:
		e.handleCreate()
	default:
		if e.graph.Contains(canonical) && e.graph.Reload(canonical) == nil {
			e.logger.Warn("stylesheet became unreadable", "path", event.Path)
		}
	}
}

// handleCreate reacts to a new file appearing. A new file can satisfy an
// import that previously failed to resolve, so memoized canonicalization
// failures are dropped and every registered node is re-resolved to pick up
// edges that are now satisfiable.
func (e *Engine) handleCreate() {
	e.cache.ClearFailures()

	urls := make([]domain.CanonicalURL, 0, e.graph.Len())
	for node := range e.graph.Nodes() {
		urls = append(urls, node.CanonicalURL())
	}
	for _, url := range urls {
		// A reload can drop nodes that no longer load; skip those.
		if e.graph.Contains(url) {
			e.graph.Reload(url)
		}
	}
}

// rebuildStale recompiles every entry whose transitive modification time is
// later than its last successful compile. It returns the number of entries
// compiled and the first compile error; later entries are still attempted
// after a failure.
func (e *Engine) rebuildStale(ctx context.Context) (int, error) {
	stamp := time.Now()
	e.graph.ClearModificationCache()

	compiled := 0
	var firstErr error
	for _, entry := range e.cfg.Entries {
		source := filepath.Join(e.cfg.Root, entry.Source)
		if !e.graph.ModifiedSince(source, e.lastCompile[entry.Source], e.importer, e.cfg.Root) {
			continue
		}

		if err := e.compiler.Compile(ctx, e.cfg, entry); err != nil {
			err = zerr.With(zerr.Wrap(err, "failed to rebuild entry"), "entry", entry.Source)
			if firstErr == nil {
				firstErr = err
			} else {
				e.logger.Error(err)
			}
			continue
		}

		e.logger.Info("compiled "+entry.Source, "output", entry.Output)
		e.lastCompile[entry.Source] = stamp
		compiled++
	}
	return compiled, firstErr
}

// primeLastCompile seeds the per-entry compile stamps from the output files
// already on disk, so an up-to-date project does not recompile on startup.
// Entries without a stamp keep the zero time and always count as stale.
func (e *Engine) primeLastCompile() {
	for _, entry := range e.cfg.Entries {
		if _, ok := e.lastCompile[entry.Source]; ok {
			continue
		}
		if info, err := os.Stat(filepath.Join(e.cfg.Root, entry.Output)); err == nil {
			e.lastCompile[entry.Source] = info.ModTime()
		}
	}
}
