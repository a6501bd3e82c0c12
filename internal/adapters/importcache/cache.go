// Package importcache implements the import cache: canonicalization and
// parse-result memoization shared by every graph resolution.
package importcache

import (
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/tint/internal/core/domain"
	"go.trai.ch/zerr"
)

var _ domain.ImportCache = (*Cache)(nil)

// canonicalKey identifies one canonicalization request: the URL as written
// plus the URL of the stylesheet it was written in, if any.
type canonicalKey struct {
	url     string
	baseURL string
}

type canonicalEntry struct {
	res domain.Resolution
	err error
}

// Cache canonicalizes URLs through an ordered importer list and loads
// canonical resources, memoizing both. Successful canonicalizations and
// parses are cached until ClearCanonical; failed canonicalizations are
// cached only on the Canonicalize path, never on CanonicalizeRetry, and
// failed loads are never cached at all.
type Cache struct {
	importers []domain.Importer

	canonical map[canonicalKey]canonicalEntry
	sheets    map[domain.CanonicalURL]*domain.Stylesheet
}

// New creates a Cache resolving URLs through the given importers, in order.
func New(importers ...domain.Importer) *Cache {
	return &Cache{
		importers: importers,
		canonical: make(map[canonicalKey]canonicalEntry),
		sheets:    make(map[domain.CanonicalURL]*domain.Stylesheet),
	}
}

// Canonicalize resolves url, trying the base importer with a base-relative
// URL first and the configured importers after it. The result is memoized,
// including failures: a URL that cannot be resolved keeps failing until the
// cache entry is cleared.
func (c *Cache) Canonicalize(url string, baseImporter domain.Importer, baseURL string) (domain.Resolution, error) {
	key := canonicalKey{url: url, baseURL: baseURL}
	if entry, ok := c.canonical[key]; ok {
		return entry.res, entry.err
	}
	res, err := c.canonicalize(url, baseImporter, baseURL)
	c.canonical[key] = canonicalEntry{res: res, err: err}
	return res, err
}

// CanonicalizeRetry behaves like Canonicalize but re-attempts previously
// failed resolutions on every call. Successes are still memoized.
func (c *Cache) CanonicalizeRetry(url string, baseImporter domain.Importer, baseURL string) (domain.Resolution, error) {
	key := canonicalKey{url: url, baseURL: baseURL}
	if entry, ok := c.canonical[key]; ok && entry.err == nil {
		return entry.res, nil
	}
	res, err := c.canonicalize(url, baseImporter, baseURL)
	if err == nil {
		c.canonical[key] = canonicalEntry{res: res}
	}
	return res, err
}

func (c *Cache) canonicalize(url string, baseImporter domain.Importer, baseURL string) (domain.Resolution, error) {
	if baseImporter != nil && baseURL != "" && !filepath.IsAbs(url) {
		relative := filepath.Join(filepath.Dir(baseURL), url)
		if canonical, err := baseImporter.Canonicalize(relative); err == nil {
			return domain.Resolution{Importer: baseImporter, CanonicalURL: canonical}, nil
		}
	}

	for _, importer := range c.importers {
		if canonical, err := importer.Canonicalize(url); err == nil {
			return domain.Resolution{Importer: importer, CanonicalURL: canonical}, nil
		}
	}
	return domain.Resolution{}, zerr.With(domain.ErrCannotResolve, "url", url)
}

// ImportCanonical loads and parses the resource at a canonical URL,
// memoizing the parsed stylesheet. Load failures are returned to the caller
// and never cached, so the next call re-reads.
func (c *Cache) ImportCanonical(importer domain.Importer, canonical domain.CanonicalURL, originalURL string) (*domain.Stylesheet, error) {
	if sheet, ok := c.sheets[canonical]; ok {
		return sheet, nil
	}

	result, err := importer.Load(canonical)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrLoadFailed.Error()), "canonical_url", canonical.String())
	}

	sheet := &domain.Stylesheet{
		URL:          originalURL,
		CanonicalURL: canonical,
		Syntax:       result.Syntax,
		Source:       result.Contents,
		ContentHash:  xxhash.Sum64String(result.Contents),
	}
	c.sheets[canonical] = sheet
	return sheet, nil
}

// ClearCanonical evicts the parse result for a canonical URL along with
// every canonicalization entry that resolved to it, forcing the next import
// to re-read and re-resolve.
func (c *Cache) ClearCanonical(canonical domain.CanonicalURL) {
	delete(c.sheets, canonical)
	for key, entry := range c.canonical {
		if entry.err == nil && entry.res.CanonicalURL == canonical {
			delete(c.canonical, key)
		}
	}
}

// ClearFailures evicts every memoized canonicalization failure. The watch
// engine calls this when files appear, since a new file can make a
// previously unresolvable URL resolvable.
func (c *Cache) ClearFailures() {
	for key, entry := range c.canonical {
		if entry.err != nil {
			delete(c.canonical, key)
		}
	}
}
