package domain

import "go.trai.ch/zerr"

var (
	// ErrNotRegistered is used when Reload or Remove is called with a
	// canonical URL that has no node in the registry. This is a caller bug,
	// so the graph panics with it rather than returning it.
	ErrNotRegistered = zerr.New("canonical url is not registered in the graph")

	// ErrCannotResolve is returned when no importer can resolve a URL.
	ErrCannotResolve = zerr.New("no importer can resolve url")

	// ErrLoadFailed is returned when a canonical resource cannot be read.
	ErrLoadFailed = zerr.New("failed to load stylesheet")

	// ErrConfigNotFound is returned when no tint.yaml can be found.
	ErrConfigNotFound = zerr.New("could not find tint.yaml")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrNoEntries is returned when the config declares no entry points.
	ErrNoEntries = zerr.New("no entries declared in config")

	// ErrInvalidEntry is returned when an entry is missing a source or output.
	ErrInvalidEntry = zerr.New("entry must declare both source and output")

	// ErrNoCompilerCommand is returned when compilation is requested but the
	// config declares no compiler command.
	ErrNoCompilerCommand = zerr.New("no compiler command configured")

	// ErrCompileFailed is returned when the external compiler command fails.
	ErrCompileFailed = zerr.New("compiler command failed")

	// ErrCheckStale is returned by the check command when at least one output
	// is out of date.
	ErrCheckStale = zerr.New("outputs are out of date")
)
