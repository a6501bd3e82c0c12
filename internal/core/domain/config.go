package domain

import "time"

// ConfigFileName is the configuration file tint looks for, walking up from
// the working directory.
const ConfigFileName = "tint.yaml"

// DefaultDebounce is the watch-mode debounce window used when the config
// does not set one.
const DefaultDebounce = 50 * time.Millisecond

// Entry maps a stylesheet entry point to its compiled output.
type Entry struct {
	// Source is the entry point stylesheet path, relative to Root.
	Source string
	// Output is the compiled CSS path, relative to Root.
	Output string
}

// Config is the resolved tint configuration.
type Config struct {
	// Root is the directory containing the config file. All relative paths
	// resolve against it.
	Root string
	// Entries are the entry points to keep fresh.
	Entries []Entry
	// LoadPaths are additional directories imports are resolved against,
	// after the importing file's own directory.
	LoadPaths []string
	// Compiler is the external compiler command; source and output paths are
	// appended per invocation.
	Compiler []string
	// Env holds extra environment variables for compiler invocations.
	Env map[string]string
	// Debounce is the watch-mode event coalescing window.
	Debounce time.Duration
}
