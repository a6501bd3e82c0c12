package domain

import (
	"iter"
	"time"
)

// Importer resolves import URLs to canonical URLs and loads resource contents
// and timestamps. Implementations are pluggable strategies (file system, in
// memory, ...); the graph treats them as opaque collaborators.
type Importer interface {
	// Canonicalize resolves url to a canonical URL, or returns an error if
	// this importer cannot resolve it.
	Canonicalize(url string) (CanonicalURL, error)

	// Load reads the resource at a canonical URL previously returned by
	// Canonicalize.
	Load(canonical CanonicalURL) (*ImporterResult, error)

	// ModificationTime returns the last-modified time of the resource at a
	// canonical URL.
	ModificationTime(canonical CanonicalURL) (time.Time, error)
}

// ImporterResult is the raw outcome of loading a canonical URL.
type ImporterResult struct {
	// Contents is the raw source text of the resource.
	Contents string
	// Syntax is the syntax the contents should be parsed as.
	Syntax Syntax
}

// Resolution pairs a canonical URL with the importer responsible for it.
type Resolution struct {
	Importer     Importer
	CanonicalURL CanonicalURL
}

// ImportCache canonicalizes URLs and loads canonical resources, memoizing
// results so repeated resolutions of the same URL are cheap.
//
// Canonicalize and CanonicalizeRetry differ only in how canonicalization
// failures behave across calls: Canonicalize memoizes failures (a URL that
// once failed to resolve keeps failing until the relevant cache entries are
// cleared), while CanonicalizeRetry re-attempts a previously failed URL on
// every call. The graph's top-level entry points use the former and its
// nested resolver the latter.
type ImportCache interface {
	// Canonicalize resolves a possibly-relative URL to a canonical identifier
	// and the importer responsible for it. A non-nil error means no importer
	// can resolve the URL; that failure is memoized.
	Canonicalize(url string, baseImporter Importer, baseURL string) (Resolution, error)

	// CanonicalizeRetry behaves like Canonicalize but never memoizes
	// failures: every call re-attempts resolution.
	CanonicalizeRetry(url string, baseImporter Importer, baseURL string) (Resolution, error)

	// ImportCanonical loads and parses the resource at a canonical URL.
	// Successful results are cached per canonical URL; failures are not.
	ImportCanonical(importer Importer, canonical CanonicalURL, originalURL string) (*Stylesheet, error)

	// ClearCanonical invalidates any cached result for a canonical URL,
	// forcing the next ImportCanonical to re-read the resource.
	ClearCanonical(canonical CanonicalURL)
}

// ImportExtractor produces the statically declared import URLs of a parsed
// stylesheet, in source order. The sequence is lazy and is consumed at most
// once per resolution.
type ImportExtractor interface {
	FindImports(sheet *Stylesheet) iter.Seq[ImportDecl]
}
