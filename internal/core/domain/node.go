package domain

import (
	"fmt"
	"slices"
)

// StylesheetNode pairs a parsed stylesheet with its resolved dependency
// edges. Nodes are owned exclusively by the graph registry; upstream and
// downstream references between nodes are non-owning, and a node's lifetime
// is governed entirely by registry membership.
//
// A node's importer and canonical URL never change after construction. The
// stylesheet reference is replaced on reload, but the Stylesheet value itself
// is immutable, so the node object stays valid for anyone holding it across
// a reload.
type StylesheetNode struct {
	stylesheet   *Stylesheet
	importer     Importer
	canonicalURL CanonicalURL

	// upstream holds the stylesheets this one imports, in source order.
	upstream []*StylesheetNode
	// downstream holds the stylesheets that import this one.
	downstream map[CanonicalURL]*StylesheetNode
}

// newStylesheetNode constructs a node from an already-resolved upstream list
// and registers it as downstream on each upstream peer.
func newStylesheetNode(
	sheet *Stylesheet,
	importer Importer,
	canonical CanonicalURL,
	upstream []*StylesheetNode,
) *StylesheetNode {
	n := &StylesheetNode{
		stylesheet:   sheet,
		importer:     importer,
		canonicalURL: canonical,
		upstream:     upstream,
		downstream:   make(map[CanonicalURL]*StylesheetNode),
	}
	for _, up := range upstream {
		up.downstream[canonical] = n
	}
	return n
}

// Stylesheet returns the most recently parsed stylesheet for this node.
func (n *StylesheetNode) Stylesheet() *Stylesheet {
	return n.stylesheet
}

// Importer returns the importer that loaded this node.
func (n *StylesheetNode) Importer() Importer {
	return n.importer
}

// CanonicalURL returns the node's registry key.
func (n *StylesheetNode) CanonicalURL() CanonicalURL {
	return n.canonicalURL
}

// Upstream returns the stylesheets this node imports, in source order.
// The returned slice is a copy; mutating it does not affect the graph.
func (n *StylesheetNode) Upstream() []*StylesheetNode {
	return slices.Clone(n.upstream)
}

// Downstream returns the stylesheets that import this node, ordered by
// canonical URL for determinism.
func (n *StylesheetNode) Downstream() []*StylesheetNode {
	nodes := make([]*StylesheetNode, 0, len(n.downstream))
	for _, node := range n.downstream {
		nodes = append(nodes, node)
	}
	slices.SortFunc(nodes, func(a, b *StylesheetNode) int {
		return compareURLs(a.canonicalURL, b.canonicalURL)
	})
	return nodes
}

// Imports reports whether url is among this node's upstream edges.
func (n *StylesheetNode) Imports(url CanonicalURL) bool {
	return slices.ContainsFunc(n.upstream, func(up *StylesheetNode) bool {
		return up.canonicalURL == url
	})
}

// replaceUpstream installs a new upstream list, adjusting peer downstream
// sets by set difference rather than tearing everything down: peers present
// in both the old and new lists are untouched.
func (n *StylesheetNode) replaceUpstream(upstream []*StylesheetNode) {
	oldSet := upstreamSet(n.upstream)
	newSet := upstreamSet(upstream)

	for url, old := range oldSet {
		if _, kept := newSet[url]; kept {
			continue
		}
		if _, ok := old.downstream[n.canonicalURL]; !ok {
			panic(fmt.Sprintf(
				"graph edge desync: %s is upstream of %s but missing the downstream edge",
				url, n.canonicalURL,
			))
		}
		delete(old.downstream, n.canonicalURL)
	}

	for url, added := range newSet {
		if _, kept := oldSet[url]; kept {
			continue
		}
		if _, ok := added.downstream[n.canonicalURL]; ok {
			panic(fmt.Sprintf(
				"graph edge desync: %s already has a downstream edge to %s",
				url, n.canonicalURL,
			))
		}
		added.downstream[n.canonicalURL] = n
	}

	n.upstream = upstream
}

// remove detaches this node from its upstream peers' downstream sets. It
// deliberately leaves the node's own downstream set alone: nodes that still
// list this one as upstream keep a dangling edge until their caller reloads
// or removes them. That contract is the graph's, not an oversight here.
func (n *StylesheetNode) remove() {
	for _, up := range n.upstream {
		if _, ok := up.downstream[n.canonicalURL]; !ok {
			panic(fmt.Sprintf(
				"graph edge desync: %s is upstream of %s but missing the downstream edge",
				up.canonicalURL, n.canonicalURL,
			))
		}
		delete(up.downstream, n.canonicalURL)
	}
}

func upstreamSet(nodes []*StylesheetNode) map[CanonicalURL]*StylesheetNode {
	set := make(map[CanonicalURL]*StylesheetNode, len(nodes))
	for _, node := range nodes {
		set[node.canonicalURL] = node
	}
	return set
}

func compareURLs(a, b CanonicalURL) int {
	switch {
	case a.String() < b.String():
		return -1
	case a.String() > b.String():
		return 1
	default:
		return 0
	}
}
