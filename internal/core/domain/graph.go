// Package domain contains the core domain model for tint: the incremental
// dependency graph between stylesheet source files used to decide which
// compiled outputs are stale and to resolve import cycles safely.
package domain

import (
	"iter"
	"slices"
	"time"

	"go.trai.ch/zerr"
)

// StylesheetGraph is the registry of every known stylesheet node, keyed by
// canonical URL, plus a memoized computation of transitive modification
// times. It orchestrates node construction, reload, and removal through an
// ImportCache and ImportExtractor; the collaborators never call back into
// the graph.
//
// The graph is plain shared mutable state with no internal locking. Hosts
// that drive it from multiple goroutines must serialize Add, Reload, Remove,
// and ModifiedSince externally.
type StylesheetGraph struct {
	nodes       map[CanonicalURL]*StylesheetNode
	importCache ImportCache
	extractor   ImportExtractor

	// transitiveModificationTimes memoizes the transitive modification time
	// per canonical URL. Reload and Remove do not invalidate it; callers that
	// mutate the graph between staleness checks call ClearModificationCache.
	transitiveModificationTimes map[CanonicalURL]time.Time
}

// NewStylesheetGraph creates an empty graph that resolves imports through
// the given cache and extractor.
func NewStylesheetGraph(cache ImportCache, extractor ImportExtractor) *StylesheetGraph {
	return &StylesheetGraph{
		nodes:                       make(map[CanonicalURL]*StylesheetNode),
		importCache:                 cache,
		extractor:                   extractor,
		transitiveModificationTimes: make(map[CanonicalURL]time.Time),
	}
}

// Node returns the registered node for a canonical URL, if any.
func (g *StylesheetGraph) Node(url CanonicalURL) (*StylesheetNode, bool) {
	node, ok := g.nodes[url]
	return node, ok
}

// Contains reports whether a node is registered for a canonical URL.
func (g *StylesheetGraph) Contains(url CanonicalURL) bool {
	_, ok := g.nodes[url]
	return ok
}

// Len returns the number of registered nodes.
func (g *StylesheetGraph) Len() int {
	return len(g.nodes)
}

// Nodes yields every registered node, ordered by canonical URL.
func (g *StylesheetGraph) Nodes() iter.Seq[*StylesheetNode] {
	urls := make([]CanonicalURL, 0, len(g.nodes))
	for url := range g.nodes {
		urls = append(urls, url)
	}
	slices.SortFunc(urls, compareURLs)
	return func(yield func(*StylesheetNode) bool) {
		for _, url := range urls {
			if !yield(g.nodes[url]) {
				return
			}
		}
	}
}

// Add canonicalizes url (optionally relative to baseImporter and baseURL),
// loads it, resolves its imports recursively, and registers the resulting
// node. It returns nil if the URL cannot be canonicalized or loaded; in that
// case the registry is left exactly as it was. Adding an already-registered
// URL returns the existing node without re-resolving anything.
func (g *StylesheetGraph) Add(url string, baseImporter Importer, baseURL string) *StylesheetNode {
	res, err := g.importCache.Canonicalize(url, baseImporter, baseURL)
	if err != nil {
		return nil
	}
	if node, ok := g.nodes[res.CanonicalURL]; ok {
		return node
	}

	sheet, err := g.importCache.ImportCanonical(res.Importer, res.CanonicalURL, url)
	if err != nil {
		return nil
	}

	active := map[CanonicalURL]struct{}{res.CanonicalURL: {}}
	node := newStylesheetNode(sheet, res.Importer, res.CanonicalURL,
		g.resolveImports(sheet, res.Importer, active))
	g.nodes[res.CanonicalURL] = node
	return node
}

// Reload re-reads the stylesheet at an already-registered canonical URL and
// recomputes its upstream edges in place, so peer references to the node
// stay valid. If the resource can no longer be loaded, the node is removed
// from the graph entirely and nil is returned.
//
// Reload panics if no node is registered for the URL: that is a programming
// error in the caller, not a recoverable condition.
func (g *StylesheetGraph) Reload(canonical CanonicalURL) *StylesheetNode {
	node, ok := g.nodes[canonical]
	if !ok {
		panic(zerr.With(ErrNotRegistered, "canonical_url", canonical.String()))
	}

	g.importCache.ClearCanonical(canonical)
	sheet, err := g.importCache.ImportCanonical(node.importer, canonical, node.stylesheet.URL)
	if err != nil {
		g.removeNode(node)
		return nil
	}

	node.stylesheet = sheet
	active := map[CanonicalURL]struct{}{canonical: {}}
	node.replaceUpstream(g.resolveImports(sheet, node.importer, active))
	return node
}

// Remove deletes the node for a canonical URL from the registry and detaches
// it from its upstream peers. Nodes that import the removed one keep their
// now-dangling upstream reference until they are themselves reloaded or
// removed; the graph does not cascade.
//
// Remove panics if no node is registered for the URL.
func (g *StylesheetGraph) Remove(canonical CanonicalURL) {
	node, ok := g.nodes[canonical]
	if !ok {
		panic(zerr.With(ErrNotRegistered, "canonical_url", canonical.String()))
	}
	g.removeNode(node)
}

func (g *StylesheetGraph) removeNode(node *StylesheetNode) {
	g.importCache.ClearCanonical(node.canonicalURL)
	node.remove()
	delete(g.nodes, node.canonicalURL)
}

// ModifiedSince reports whether the stylesheet at url, or anything it
// transitively imports, was modified after since. If the URL cannot be
// resolved at all it returns true: an unconfirmable resource must be treated
// as changed.
func (g *StylesheetGraph) ModifiedSince(url string, since time.Time, baseImporter Importer, baseURL string) bool {
	node := g.Add(url, baseImporter, baseURL)
	if node == nil {
		return true
	}
	return g.transitiveModificationTime(node).After(since)
}

// ClearModificationCache discards all memoized transitive modification
// times. Callers that mutate the graph between ModifiedSince checks use this
// to start the next check from fresh timestamps.
func (g *StylesheetGraph) ClearModificationCache() {
	clear(g.transitiveModificationTimes)
}

// transitiveModificationTime returns the maximum of the node's own resource
// modification time and the transitive times of everything upstream of it,
// memoized per canonical URL. The upstream relation is acyclic, so the
// recursion terminates.
func (g *StylesheetGraph) transitiveModificationTime(node *StylesheetNode) time.Time {
	if t, ok := g.transitiveModificationTimes[node.canonicalURL]; ok {
		return t
	}

	latest, err := node.importer.ModificationTime(node.canonicalURL)
	if err != nil {
		// The resource cannot be statted, so it cannot be confirmed
		// unchanged; treat it as modified now.
		latest = time.Now()
	}
	for _, up := range node.upstream {
		if t := g.transitiveModificationTime(up); t.After(latest) {
			latest = t
		}
	}

	g.transitiveModificationTimes[node.canonicalURL] = latest
	return latest
}

// resolveImports resolves every statically declared import of sheet into a
// node, preserving source order. Imports that cannot be resolved, and
// imports whose resolution would close a cycle, are omitted.
func (g *StylesheetGraph) resolveImports(sheet *Stylesheet, baseImporter Importer, active map[CanonicalURL]struct{}) []*StylesheetNode {
	var upstream []*StylesheetNode
	for decl := range g.extractor.FindImports(sheet) {
		if node := g.resolve(decl.URL, baseImporter, sheet.CanonicalURL.String(), active); node != nil {
			upstream = append(upstream, node)
		}
	}
	return upstream
}

// resolve is the recursive resolver behind Add and Reload. active is the
// cycle guard: the set of canonical URLs currently being resolved along this
// import chain. A URL re-encountered while in the guard means a cycle; the
// edge that would close it is simply dropped, leaving the eventual
// compilation stage to produce a descriptive error. Guard membership is
// path-scoped: a URL is removed again as soon as its subtree is resolved.
//
// Unlike the top-level entry points, resolution failures here are retried on
// every call.
func (g *StylesheetGraph) resolve(url string, baseImporter Importer, baseURL string, active map[CanonicalURL]struct{}) *StylesheetNode {
	res, err := g.importCache.CanonicalizeRetry(url, baseImporter, baseURL)
	if err != nil {
		return nil
	}
	// The guard wins over the registry: during Reload the reloading node is
	// both registered and on the active chain, and returning it here would
	// materialize the cycle-closing edge.
	if _, resolving := active[res.CanonicalURL]; resolving {
		return nil
	}
	if node, ok := g.nodes[res.CanonicalURL]; ok {
		// An already-registered node may still have a materialized upstream
		// path back into the active chain. Linking it would close a cycle the
		// same way, so that edge is dropped too.
		if g.reachesActive(node, active, make(map[CanonicalURL]struct{})) {
			return nil
		}
		return node
	}

	sheet, err := g.importCache.ImportCanonical(res.Importer, res.CanonicalURL, url)
	if err != nil {
		return nil
	}

	active[res.CanonicalURL] = struct{}{}
	upstream := g.resolveImports(sheet, res.Importer, active)
	delete(active, res.CanonicalURL)

	node := newStylesheetNode(sheet, res.Importer, res.CanonicalURL, upstream)
	g.nodes[res.CanonicalURL] = node
	return node
}

// reachesActive reports whether node can reach a canonical URL in active
// through materialized upstream edges. visited keeps the walk linear and
// guards against dangling references left behind by Remove.
func (g *StylesheetGraph) reachesActive(node *StylesheetNode, active, visited map[CanonicalURL]struct{}) bool {
	if _, ok := active[node.canonicalURL]; ok {
		return true
	}
	if _, ok := visited[node.canonicalURL]; ok {
		return false
	}
	visited[node.canonicalURL] = struct{}{}
	for _, up := range node.upstream {
		if g.reachesActive(up, active, visited) {
			return true
		}
	}
	return false
}
