// Package fs implements the filesystem importer: URL canonicalization
// against load paths, stylesheet loading, and modification times.
package fs

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/tint/internal/core/domain"
	"go.trai.ch/zerr"
)

var _ domain.Importer = (*Importer)(nil)

// Importer resolves import URLs against an ordered list of load paths. The
// canonical URL of a stylesheet is its cleaned absolute file path.
type Importer struct {
	loadPaths []string
}

// NewImporter creates an Importer resolving URLs against the given load
// paths, in order. Paths are made absolute eagerly so canonical URLs do not
// depend on the process working directory.
func NewImporter(loadPaths ...string) (*Importer, error) {
	abs := make([]string, 0, len(loadPaths))
	for _, p := range loadPaths {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to absolutize load path"), "path", p)
		}
		abs = append(abs, a)
	}
	return &Importer{loadPaths: abs}, nil
}

// Canonicalize resolves url to the cleaned absolute path of an existing
// stylesheet file. Absolute URLs resolve directly; relative ones are tried
// against each load path in order. Partials, extension probing and index
// files follow the usual stylesheet conventions (see resolvePath).
func (i *Importer) Canonicalize(url string) (domain.CanonicalURL, error) {
	if filepath.IsAbs(url) {
		if resolved, ok := resolvePath(url); ok {
			return domain.NewCanonicalURL(filepath.Clean(resolved)), nil
		}
		return domain.CanonicalURL{}, zerr.With(domain.ErrCannotResolve, "url", url)
	}

	for _, loadPath := range i.loadPaths {
		if resolved, ok := resolvePath(filepath.Join(loadPath, url)); ok {
			return domain.NewCanonicalURL(filepath.Clean(resolved)), nil
		}
	}
	return domain.CanonicalURL{}, zerr.With(domain.ErrCannotResolve, "url", url)
}

// Load reads the stylesheet at a canonical URL.
func (i *Importer) Load(canonical domain.CanonicalURL) (*domain.ImporterResult, error) {
	path := canonical.String()
	contents, err := os.ReadFile(path) //nolint:gosec // Canonical URLs are resolved file paths
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrLoadFailed.Error()), "path", path)
	}
	return &domain.ImporterResult{
		Contents: string(contents),
		Syntax:   syntaxForPath(path),
	}, nil
}

// ModificationTime returns the file's last-modified time.
func (i *Importer) ModificationTime(canonical domain.CanonicalURL) (time.Time, error) {
	info, err := os.Stat(canonical.String())
	if err != nil {
		return time.Time{}, zerr.With(zerr.Wrap(err, "failed to stat stylesheet"), "path", canonical.String())
	}
	return info.ModTime(), nil
}

// resolvePath maps an extensionless or partial-less path to the file that
// actually holds the stylesheet. Candidates, in order:
//
//   - the path itself (when it already carries a stylesheet extension),
//     preferring the partial form _name.ext in the same directory;
//   - the path with .scss, .sass and .css probed, partials first;
//   - the path as a directory containing an _index.scss or _index.sass.
func resolvePath(path string) (string, bool) {
	switch filepath.Ext(path) {
	case ".scss", ".sass", ".css":
		return exactOrPartial(path)
	}

	for _, ext := range []string{".scss", ".sass", ".css"} {
		if resolved, ok := exactOrPartial(path + ext); ok {
			return resolved, true
		}
	}

	for _, index := range []string{"_index.scss", "_index.sass"} {
		candidate := filepath.Join(path, index)
		if isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// exactOrPartial probes the partial form (_name.ext) before the plain one.
func exactOrPartial(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "_") {
		partial := filepath.Join(filepath.Dir(path), "_"+base)
		if isFile(partial) {
			return partial, true
		}
	}
	if isFile(path) {
		return path, true
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func syntaxForPath(path string) domain.Syntax {
	switch filepath.Ext(path) {
	case ".sass":
		return domain.SyntaxIndented
	case ".css":
		return domain.SyntaxCSS
	default:
		return domain.SyntaxSCSS
	}
}
