package domain_test

import (
	"iter"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.trai.ch/tint/internal/core/domain"
	"go.trai.ch/zerr"
)

// memoryImporter serves stylesheets from an in-memory map. The canonical URL
// of a resource is its map key.
type memoryImporter struct {
	sources map[string]string
	mtimes  map[string]time.Time
}

func newMemoryImporter() *memoryImporter {
	return &memoryImporter{
		sources: make(map[string]string),
		mtimes:  make(map[string]time.Time),
	}
}

func (m *memoryImporter) put(url, source string, mtime time.Time) {
	m.sources[url] = source
	m.mtimes[url] = mtime
}

func (m *memoryImporter) Canonicalize(url string) (domain.CanonicalURL, error) {
	if _, ok := m.sources[url]; !ok {
		return domain.CanonicalURL{}, zerr.With(domain.ErrCannotResolve, "url", url)
	}
	return domain.NewCanonicalURL(url), nil
}

func (m *memoryImporter) Load(canonical domain.CanonicalURL) (*domain.ImporterResult, error) {
	source, ok := m.sources[canonical.String()]
	if !ok {
		return nil, zerr.With(domain.ErrLoadFailed, "canonical_url", canonical.String())
	}
	return &domain.ImporterResult{Contents: source, Syntax: domain.SyntaxSCSS}, nil
}

func (m *memoryImporter) ModificationTime(canonical domain.CanonicalURL) (time.Time, error) {
	mtime, ok := m.mtimes[canonical.String()]
	if !ok {
		return time.Time{}, zerr.With(domain.ErrLoadFailed, "canonical_url", canonical.String())
	}
	return mtime, nil
}

type canonEntry struct {
	res domain.Resolution
	err error
}

// memoryCache implements domain.ImportCache over a memoryImporter with the
// same memoization contract as the real import cache adapter: Canonicalize
// memoizes failures, CanonicalizeRetry does not, and parse results are
// cached per canonical URL until cleared.
type memoryCache struct {
	importer  *memoryImporter
	canonical map[string]canonEntry
	sheets    map[domain.CanonicalURL]*domain.Stylesheet
	loads     map[string]int
}

func newMemoryCache(importer *memoryImporter) *memoryCache {
	return &memoryCache{
		importer:  importer,
		canonical: make(map[string]canonEntry),
		sheets:    make(map[domain.CanonicalURL]*domain.Stylesheet),
		loads:     make(map[string]int),
	}
}

func (c *memoryCache) Canonicalize(url string, _ domain.Importer, _ string) (domain.Resolution, error) {
	if entry, ok := c.canonical[url]; ok {
		return entry.res, entry.err
	}
	res, err := c.canonicalize(url)
	c.canonical[url] = canonEntry{res: res, err: err}
	return res, err
}

func (c *memoryCache) CanonicalizeRetry(url string, _ domain.Importer, _ string) (domain.Resolution, error) {
	if entry, ok := c.canonical[url]; ok && entry.err == nil {
		return entry.res, nil
	}
	res, err := c.canonicalize(url)
	if err == nil {
		c.canonical[url] = canonEntry{res: res}
	}
	return res, err
}

func (c *memoryCache) canonicalize(url string) (domain.Resolution, error) {
	canonical, err := c.importer.Canonicalize(url)
	if err != nil {
		return domain.Resolution{}, err
	}
	return domain.Resolution{Importer: c.importer, CanonicalURL: canonical}, nil
}

func (c *memoryCache) ImportCanonical(importer domain.Importer, canonical domain.CanonicalURL, originalURL string) (*domain.Stylesheet, error) {
	if sheet, ok := c.sheets[canonical]; ok {
		return sheet, nil
	}
	result, err := importer.Load(canonical)
	if err != nil {
		return nil, err
	}
	c.loads[canonical.String()]++
	sheet := &domain.Stylesheet{
		URL:          originalURL,
		CanonicalURL: canonical,
		Syntax:       result.Syntax,
		Source:       result.Contents,
	}
	c.sheets[canonical] = sheet
	return sheet, nil
}

func (c *memoryCache) ClearCanonical(canonical domain.CanonicalURL) {
	delete(c.sheets, canonical)
	for url, entry := range c.canonical {
		if entry.err == nil && entry.res.CanonicalURL == canonical {
			delete(c.canonical, url)
		}
	}
}

// fieldExtractor treats a stylesheet's source as a whitespace-separated list
// of import URLs, which keeps graph tests independent of any real parser.
type fieldExtractor struct{}

func (fieldExtractor) FindImports(sheet *domain.Stylesheet) iter.Seq[domain.ImportDecl] {
	return func(yield func(domain.ImportDecl) bool) {
		for _, url := range strings.Fields(sheet.Source) {
			if !yield(domain.ImportDecl{URL: url, Rule: domain.RuleUse}) {
				return
			}
		}
	}
}

type graphFixture struct {
	importer *memoryImporter
	cache    *memoryCache
	graph    *domain.StylesheetGraph
}

func newGraphFixture() *graphFixture {
	importer := newMemoryImporter()
	cache := newMemoryCache(importer)
	return &graphFixture{
		importer: importer,
		cache:    cache,
		graph:    domain.NewStylesheetGraph(cache, fieldExtractor{}),
	}
}

// requireEdgeSymmetry checks that for all registered nodes A and B, A is in
// B's upstream exactly when B is in A's downstream.
func requireEdgeSymmetry(t *testing.T, g *domain.StylesheetGraph) {
	t.Helper()
	for node := range g.Nodes() {
		for _, up := range node.Upstream() {
			found := false
			for _, down := range up.Downstream() {
				if down == node {
					found = true
					break
				}
			}
			require.True(t, found,
				"%s imports %s but is missing from its downstream set",
				node.CanonicalURL(), up.CanonicalURL())
		}
		for _, down := range node.Downstream() {
			require.True(t, down.Imports(node.CanonicalURL()),
				"%s is downstream of %s but does not import it",
				down.CanonicalURL(), node.CanonicalURL())
		}
	}
}

func upstreamURLs(node *domain.StylesheetNode) []string {
	var urls []string
	for _, up := range node.Upstream() {
		urls = append(urls, up.CanonicalURL().String())
	}
	return urls
}

func TestGraph_AddResolvesTransitiveImports(t *testing.T) {
	f := newGraphFixture()
	f.importer.put("a", "b", time.Unix(100, 0))
	f.importer.put("b", "c", time.Unix(100, 0))
	f.importer.put("c", "", time.Unix(100, 0))

	a := f.graph.Add("a", nil, "")
	require.NotNil(t, a)
	require.Equal(t, 3, f.graph.Len())
	require.Equal(t, []string{"b"}, upstreamURLs(a))

	b, ok := f.graph.Node(domain.NewCanonicalURL("b"))
	require.True(t, ok)
	require.Equal(t, []string{"c"}, upstreamURLs(b))

	requireEdgeSymmetry(t, f.graph)
}

func TestGraph_AddIsIdempotent(t *testing.T) {
	f := newGraphFixture()
	f.importer.put("a", "b", time.Unix(100, 0))
	f.importer.put("b", "", time.Unix(100, 0))

	first := f.graph.Add("a", nil, "")
	require.NotNil(t, first)
	second := f.graph.Add("a", nil, "")
	require.Same(t, first, second)
	require.Equal(t, 1, f.cache.loads["a"], "second add must not re-resolve")
}

func TestGraph_AddUnresolvableReturnsNil(t *testing.T) {
	f := newGraphFixture()

	require.Nil(t, f.graph.Add("missing", nil, ""))
	require.Equal(t, 0, f.graph.Len(), "failed add must not touch the registry")
}

func TestGraph_CyclicImportsTerminate(t *testing.T) {
	f := newGraphFixture()
	f.importer.put("a", "b", time.Unix(100, 0))
	f.importer.put("b", "a", time.Unix(100, 0))

	a := f.graph.Add("a", nil, "")
	require.NotNil(t, a)
	require.Equal(t, []string{"b"}, upstreamURLs(a))

	b, ok := f.graph.Node(domain.NewCanonicalURL("b"))
	require.True(t, ok)
	require.Empty(t, upstreamURLs(b), "cycle-closing edge must be omitted")

	requireEdgeSymmetry(t, f.graph)
}

func TestGraph_ReloadKeepsCycleEdgeOmitted(t *testing.T) {
	f := newGraphFixture()
	f.importer.put("a", "b", time.Unix(100, 0))
	f.importer.put("b", "a", time.Unix(100, 0))

	a := f.graph.Add("a", nil, "")
	require.NotNil(t, a)
	b, ok := f.graph.Node(domain.NewCanonicalURL("b"))
	require.True(t, ok)

	// Reloading either side of the cycle must not resurrect the dropped
	// edge: the reloading node is registered, but it is also on the active
	// resolution chain.
	require.Same(t, b, f.graph.Reload(domain.NewCanonicalURL("b")))
	require.Empty(t, upstreamURLs(b), "cycle-closing edge must stay omitted on reload")

	require.Same(t, a, f.graph.Reload(domain.NewCanonicalURL("a")))
	require.Equal(t, []string{"b"}, upstreamURLs(a))
	require.Empty(t, upstreamURLs(b))
	requireEdgeSymmetry(t, f.graph)

	f.graph.ClearModificationCache()
	require.False(t, f.graph.ModifiedSince("a", time.Unix(150, 0), nil, ""))
}

func TestGraph_ReloadKeepsTransitiveCycleEdgeOmitted(t *testing.T) {
	f := newGraphFixture()
	f.importer.put("a", "b", time.Unix(100, 0))
	f.importer.put("b", "c", time.Unix(100, 0))
	f.importer.put("c", "a", time.Unix(100, 0))

	require.NotNil(t, f.graph.Add("a", nil, ""))
	c, ok := f.graph.Node(domain.NewCanonicalURL("c"))
	require.True(t, ok)
	require.Empty(t, upstreamURLs(c))

	// c's back-edge targets a node two materialized hops away from c, so
	// the reload has to follow upstream edges to see the cycle.
	require.Same(t, c, f.graph.Reload(domain.NewCanonicalURL("c")))
	require.Empty(t, upstreamURLs(c), "transitive cycle edge must stay omitted on reload")
	requireEdgeSymmetry(t, f.graph)

	f.graph.ClearModificationCache()
	require.False(t, f.graph.ModifiedSince("a", time.Unix(150, 0), nil, ""))
}

func TestGraph_ReloadSelfImportTerminates(t *testing.T) {
	f := newGraphFixture()
	f.importer.put("a", "a", time.Unix(100, 0))

	a := f.graph.Add("a", nil, "")
	require.NotNil(t, a)

	require.Same(t, a, f.graph.Reload(domain.NewCanonicalURL("a")))
	require.Empty(t, upstreamURLs(a), "self-import must stay omitted on reload")

	f.graph.ClearModificationCache()
	require.False(t, f.graph.ModifiedSince("a", time.Unix(150, 0), nil, ""))
}

func TestGraph_SelfImportTerminates(t *testing.T) {
	f := newGraphFixture()
	f.importer.put("a", "a", time.Unix(100, 0))

	a := f.graph.Add("a", nil, "")
	require.NotNil(t, a)
	require.Empty(t, upstreamURLs(a))
}

func TestGraph_ModifiedSince(t *testing.T) {
	f := newGraphFixture()
	f.importer.put("a", "b", time.Unix(100, 0))
	f.importer.put("b", "c", time.Unix(100, 0))
	f.importer.put("c", "", time.Unix(100, 0))

	require.True(t, f.graph.ModifiedSince("a", time.Unix(50, 0), nil, ""))

	// Bump only the transitive leaf.
	f.importer.mtimes["c"] = time.Unix(200, 0)
	f.graph.ClearModificationCache()

	require.True(t, f.graph.ModifiedSince("a", time.Unix(150, 0), nil, ""))
	require.False(t, f.graph.ModifiedSince("a", time.Unix(250, 0), nil, ""))
}

func TestGraph_ModifiedSinceUnresolvable(t *testing.T) {
	f := newGraphFixture()

	require.True(t, f.graph.ModifiedSince("missing", time.Unix(0, 0), nil, ""),
		"an unconfirmable resource must be treated as changed")
}

func TestGraph_ModificationTimeMemoSurvivesMutation(t *testing.T) {
	f := newGraphFixture()
	f.importer.put("a", "b", time.Unix(100, 0))
	f.importer.put("b", "", time.Unix(100, 0))

	require.False(t, f.graph.ModifiedSince("a", time.Unix(150, 0), nil, ""))

	// Without an explicit cache clear the memoized time keeps answering,
	// even though the underlying resource moved. Callers either rebuild the
	// graph per check or clear the memo themselves.
	f.importer.mtimes["b"] = time.Unix(200, 0)
	require.False(t, f.graph.ModifiedSince("a", time.Unix(150, 0), nil, ""))

	f.graph.ClearModificationCache()
	require.True(t, f.graph.ModifiedSince("a", time.Unix(150, 0), nil, ""))
}

func TestGraph_ReloadPreservesIdentityAndEdges(t *testing.T) {
	f := newGraphFixture()
	f.importer.put("a", "b", time.Unix(100, 0))
	f.importer.put("b", "", time.Unix(100, 0))

	a := f.graph.Add("a", nil, "")
	require.NotNil(t, a)
	b, _ := f.graph.Node(domain.NewCanonicalURL("b"))

	reloaded := f.graph.Reload(domain.NewCanonicalURL("a"))
	require.Same(t, a, reloaded)
	require.Equal(t, []string{"b"}, upstreamURLs(reloaded))
	require.Equal(t, []*domain.StylesheetNode{a}, b.Downstream())
	requireEdgeSymmetry(t, f.graph)
}

func TestGraph_ReloadReplacesEdges(t *testing.T) {
	f := newGraphFixture()
	f.importer.put("a", "b", time.Unix(100, 0))
	f.importer.put("b", "", time.Unix(100, 0))
	f.importer.put("c", "", time.Unix(100, 0))

	a := f.graph.Add("a", nil, "")
	require.NotNil(t, a)

	f.importer.sources["a"] = "c"
	reloaded := f.graph.Reload(domain.NewCanonicalURL("a"))
	require.Same(t, a, reloaded)
	require.Equal(t, []string{"c"}, upstreamURLs(a))

	b, ok := f.graph.Node(domain.NewCanonicalURL("b"))
	require.True(t, ok, "b stays registered even with no dependents")
	require.Empty(t, b.Downstream())
	requireEdgeSymmetry(t, f.graph)
}

func TestGraph_ReloadMissingResourceRemovesNode(t *testing.T) {
	f := newGraphFixture()
	f.importer.put("a", "b", time.Unix(100, 0))
	f.importer.put("b", "", time.Unix(100, 0))

	a := f.graph.Add("a", nil, "")
	require.NotNil(t, a)

	delete(f.importer.sources, "b")
	require.Nil(t, f.graph.Reload(domain.NewCanonicalURL("b")))
	require.False(t, f.graph.Contains(domain.NewCanonicalURL("b")))

	// The dependent keeps its now-dangling upstream reference.
	require.Equal(t, []string{"b"}, upstreamURLs(a))
}

func TestGraph_RemoveLeavesDanglingUpstreamReferences(t *testing.T) {
	f := newGraphFixture()
	f.importer.put("a", "b", time.Unix(100, 0))
	f.importer.put("b", "", time.Unix(100, 0))

	a := f.graph.Add("a", nil, "")
	require.NotNil(t, a)
	oldB, _ := f.graph.Node(domain.NewCanonicalURL("b"))

	f.graph.Remove(domain.NewCanonicalURL("b"))
	require.False(t, f.graph.Contains(domain.NewCanonicalURL("b")))
	require.Equal(t, []string{"b"}, upstreamURLs(a),
		"removal must not cascade into dependents")

	newB := f.graph.Add("b", nil, "")
	require.NotNil(t, newB)
	require.NotSame(t, oldB, newB, "re-adding a removed URL creates a fresh node")
}

func TestGraph_RemoveDetachesFromUpstreamPeers(t *testing.T) {
	f := newGraphFixture()
	f.importer.put("a", "b", time.Unix(100, 0))
	f.importer.put("b", "", time.Unix(100, 0))

	require.NotNil(t, f.graph.Add("a", nil, ""))
	b, _ := f.graph.Node(domain.NewCanonicalURL("b"))

	f.graph.Remove(domain.NewCanonicalURL("a"))
	require.Empty(t, b.Downstream())
	requireEdgeSymmetry(t, f.graph)
}

func TestGraph_ReloadPanicsWhenUnregistered(t *testing.T) {
	f := newGraphFixture()
	require.Panics(t, func() {
		f.graph.Reload(domain.NewCanonicalURL("nope"))
	})
}

func TestGraph_RemovePanicsWhenUnregistered(t *testing.T) {
	f := newGraphFixture()
	require.Panics(t, func() {
		f.graph.Remove(domain.NewCanonicalURL("nope"))
	})
}

func TestGraph_FailureCachingAsymmetry(t *testing.T) {
	t.Run("top-level add does not retry a failed url", func(t *testing.T) {
		f := newGraphFixture()
		require.Nil(t, f.graph.Add("late", nil, ""))

		f.importer.put("late", "", time.Unix(100, 0))
		require.Nil(t, f.graph.Add("late", nil, ""),
			"canonicalization failure is memoized at the top level")
	})

	t.Run("nested resolution retries on every call", func(t *testing.T) {
		f := newGraphFixture()
		f.importer.put("a", "late", time.Unix(100, 0))

		a := f.graph.Add("a", nil, "")
		require.NotNil(t, a)
		require.Empty(t, upstreamURLs(a))

		f.importer.put("late", "", time.Unix(100, 0))
		reloaded := f.graph.Reload(domain.NewCanonicalURL("a"))
		require.Equal(t, []string{"late"}, upstreamURLs(reloaded),
			"nested resolver must pick up a previously failed import")
	})
}
