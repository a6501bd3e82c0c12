// Package app implements the application layer for tint.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/muesli/termenv"
	"go.trai.ch/tint/internal/adapters/fs"
	"go.trai.ch/tint/internal/adapters/importcache"
	"go.trai.ch/tint/internal/adapters/parser"
	"go.trai.ch/tint/internal/core/domain"
	"go.trai.ch/tint/internal/core/ports"
	"go.trai.ch/tint/internal/engine/watch"
	"go.trai.ch/tint/internal/ui/output"
	"go.trai.ch/tint/internal/ui/style"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	compiler     ports.Compiler
	watcher      ports.Watcher
	logger       ports.Logger
	stdout       io.Writer
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	compiler ports.Compiler,
	watcher ports.Watcher,
	log ports.Logger,
) *App {
	return &App{
		configLoader: loader,
		compiler:     compiler,
		watcher:      watcher,
		logger:       log,
		stdout:       os.Stdout,
	}
}

// WithStdout redirects the App's command output.
// This is primarily used for testing.
func (a *App) WithStdout(w io.Writer) *App {
	a.stdout = w
	return a
}

// CheckOptions configuration for the Check method.
type CheckOptions struct {
	// Quiet suppresses per-entry output; only the returned error reports
	// staleness.
	Quiet bool
}

// Check reports, per entry, whether the compiled output is older than the
// entry's transitive imports. It compiles nothing. If at least one entry is
// out of date it returns ErrCheckStale.
func (a *App) Check(_ context.Context, opts CheckOptions) error {
	cfg, err := a.configLoader.Load(".")
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	graph, importer, err := buildGraph(cfg)
	if err != nil {
		return err
	}

	out := output.New(a.stdout)
	mark := func(icon string, color termenv.Color) termenv.Style {
		return out.String(icon).Foreground(color)
	}
	dim := func(s string) termenv.Style {
		return out.String(s).Foreground(out.Color(string(style.Slate)))
	}

	stale := 0
	for _, entry := range cfg.Entries {
		source := filepath.Join(cfg.Root, entry.Source)
		outputPath := filepath.Join(cfg.Root, entry.Output)

		entryStale := true
		note := "missing"
		if info, statErr := os.Stat(outputPath); statErr == nil {
			entryStale = graph.ModifiedSince(source, info.ModTime(), importer, cfg.Root)
			note = "out of date"
		}

		switch {
		case entryStale:
			stale++
			if !opts.Quiet {
				fmt.Fprintf(a.stdout, "%s %s %s\n",
					mark(style.Cross, out.Color(string(style.Red))), entry.Output, dim(note))
			}
		case !opts.Quiet:
			fmt.Fprintf(a.stdout, "%s %s %s\n",
				mark(style.Check, out.Color(string(style.Green))), entry.Output, dim("up to date"))
		}
	}

	if stale > 0 {
		return domain.ErrCheckStale
	}
	return nil
}

// Build compiles every stale entry once and exits. Entries whose output is
// already newer than their transitive imports are skipped.
func (a *App) Build(ctx context.Context) error {
	cfg, err := a.configLoader.Load(".")
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	engine, err := watch.New(cfg, a.compiler, a.watcher, a.logger)
	if err != nil {
		return err
	}

	compiled, err := engine.RebuildAll(ctx)
	if err != nil {
		return err
	}
	if compiled == 0 {
		a.logger.Info("everything up to date")
	}
	return nil
}

// Watch rebuilds stale entries, then keeps them fresh until ctx is
// cancelled.
func (a *App) Watch(ctx context.Context) error {
	cfg, err := a.configLoader.Load(".")
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	engine, err := watch.New(cfg, a.compiler, a.watcher, a.logger)
	if err != nil {
		return err
	}

	a.logger.Info("watching "+cfg.Root, "entries", len(cfg.Entries))
	return engine.Run(ctx)
}

// Graph resolves every entry point and writes the import graph in Graphviz
// DOT format to the App's output.
func (a *App) Graph(_ context.Context) error {
	cfg, err := a.configLoader.Load(".")
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	graph, _, err := buildGraph(cfg)
	if err != nil {
		return err
	}

	for _, entry := range cfg.Entries {
		source := filepath.Join(cfg.Root, entry.Source)
		if graph.Add(source, nil, "") == nil {
			a.logger.Warn("could not resolve entry", "source", entry.Source)
		}
	}

	_, err = io.WriteString(a.stdout, graph.Dot())
	return err
}

// buildGraph constructs an empty stylesheet graph resolving imports against
// the project root and the configured load paths.
func buildGraph(cfg *domain.Config) (*domain.StylesheetGraph, domain.Importer, error) {
	importer, err := fs.NewImporter(append([]string{cfg.Root}, cfg.LoadPaths...)...)
	if err != nil {
		return nil, nil, err
	}
	return domain.NewStylesheetGraph(importcache.New(importer), parser.NewScanner()), importer, nil
}
