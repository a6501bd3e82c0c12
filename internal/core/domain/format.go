package domain

import (
	"fmt"
	"strings"
)

// Dot renders the graph in Graphviz DOT format, one edge per upstream
// relation. Output is deterministic: nodes and edges are ordered by
// canonical URL.
func (g *StylesheetGraph) Dot() string {
	var b strings.Builder
	b.WriteString("digraph stylesheets {\n")
	b.WriteString("  rankdir=LR;\n")

	for node := range g.Nodes() {
		fmt.Fprintf(&b, "  %q;\n", node.CanonicalURL().String())
	}
	for node := range g.Nodes() {
		for _, up := range node.Upstream() {
			fmt.Fprintf(&b, "  %q -> %q;\n",
				node.CanonicalURL().String(), up.CanonicalURL().String())
		}
	}

	b.WriteString("}\n")
	return b.String()
}
