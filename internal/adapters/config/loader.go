// Package config provides the configuration loader for tint.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/tint/internal/core/domain"
	"go.trai.ch/tint/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
	FS     FileSystem
}

// NewLoader creates a new Loader reading from the real filesystem.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger, FS: NewOSFS()}
}

// Load walks up from cwd looking for tint.yaml, parses the first one found
// and resolves all paths against the config file's directory.
func (l *Loader) Load(cwd string) (*domain.Config, error) {
	configPath, err := l.findConfiguration(cwd)
	if err != nil {
		return nil, err
	}

	var file Tintfile
	if err := l.readAndUnmarshal(configPath, &file); err != nil {
		return nil, err
	}

	return l.resolve(configPath, &file)
}

func (l *Loader) findConfiguration(cwd string) (string, error) {
	currentDir := cwd

	for {
		configPath := filepath.Join(currentDir, domain.ConfigFileName)
		if _, err := l.FS.Stat(configPath); err == nil {
			return configPath, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}

	return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
}

func (l *Loader) readAndUnmarshal(configPath string, target *Tintfile) error {
	raw, err := l.FS.ReadFile(configPath)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	if parseErr := yaml.Unmarshal(raw, target); parseErr != nil {
		return zerr.Wrap(parseErr, domain.ErrConfigParseFailed.Error())
	}

	return nil
}

func (l *Loader) resolve(configPath string, file *Tintfile) (*domain.Config, error) {
	root := resolveRoot(configPath, file.Root)

	entries, err := resolveEntries(file.Entries)
	if err != nil {
		return nil, err
	}

	if len(file.Compiler) == 0 {
		return nil, zerr.With(domain.ErrNoCompilerCommand, "config", configPath)
	}

	if file.Version != "" && file.Version != "1" {
		l.Logger.Warn(fmt.Sprintf("unknown config version %q, continuing anyway", file.Version))
	}

	return &domain.Config{
		Root:      root,
		Entries:   entries,
		LoadPaths: resolvePaths(root, file.LoadPaths),
		Compiler:  file.Compiler,
		Env:       file.Env,
		Debounce:  resolveDebounce(file.DebounceMS),
	}, nil
}

func resolveEntries(dtos []EntryDTO) ([]domain.Entry, error) {
	if len(dtos) == 0 {
		return nil, domain.ErrNoEntries
	}

	seen := make(map[string]bool, len(dtos))
	entries := make([]domain.Entry, 0, len(dtos))

	for _, dto := range dtos {
		if dto.Source == "" || dto.Output == "" {
			err := zerr.With(domain.ErrInvalidEntry, "source", dto.Source)
			return nil, zerr.With(err, "output", dto.Output)
		}
		if strings.HasPrefix(filepath.Base(dto.Source), "_") {
			err := zerr.With(domain.ErrInvalidEntry, "source", dto.Source)
			return nil, zerr.Wrap(err, "partials cannot be entry points")
		}
		if seen[dto.Output] {
			return nil, zerr.With(domain.ErrInvalidEntry, "duplicate_output", dto.Output)
		}
		seen[dto.Output] = true

		entries = append(entries, domain.Entry{
			Source: filepath.Clean(dto.Source),
			Output: filepath.Clean(dto.Output),
		})
	}

	return entries, nil
}

// resolveRoot always yields an absolute root. Canonical URLs and watch event
// paths are absolute, so a relative root (the usual `Load(".")` case) would
// never match them.
func resolveRoot(configPath, configuredRoot string) string {
	configDir := filepath.Dir(configPath)
	root := configuredRoot
	switch {
	case root == "":
		root = configDir
	case !filepath.IsAbs(root):
		root = filepath.Join(configDir, root)
	}
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return filepath.Clean(root)
}

func resolvePaths(root string, paths []string) []string {
	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		if filepath.IsAbs(p) {
			resolved = append(resolved, filepath.Clean(p))
			continue
		}
		resolved = append(resolved, filepath.Clean(filepath.Join(root, p)))
	}
	return resolved
}

func resolveDebounce(ms int) time.Duration {
	if ms <= 0 {
		return domain.DefaultDebounce
	}
	return time.Duration(ms) * time.Millisecond
}
