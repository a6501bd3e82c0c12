package domain

// Syntax identifies the source syntax of a stylesheet.
type Syntax string

const (
	// SyntaxSCSS is the brace-delimited SCSS syntax.
	SyntaxSCSS Syntax = "scss"
	// SyntaxIndented is the whitespace-sensitive indented syntax.
	SyntaxIndented Syntax = "indented"
	// SyntaxCSS is plain CSS. Plain CSS cannot load other stylesheets, so its
	// imports are never followed by the graph.
	SyntaxCSS Syntax = "css"
)

// ImportRule identifies which at-rule declared an import.
type ImportRule uint8

const (
	// RuleUse is a @use rule.
	RuleUse ImportRule = iota
	// RuleForward is a @forward rule.
	RuleForward
	// RuleImport is an @import rule.
	RuleImport
)

// ImportDecl is a statically declared import in a stylesheet, in source order.
type ImportDecl struct {
	// URL is the import URL as written in the source, before canonicalization.
	URL string
	// Rule is the at-rule the import was declared with.
	Rule ImportRule
}

// Stylesheet is a loaded and parsed stylesheet resource. It is immutable
// after construction; a reload produces a fresh Stylesheet rather than
// mutating an existing one.
type Stylesheet struct {
	// URL is the URL the stylesheet was requested as, before canonicalization.
	URL string
	// CanonicalURL is the fully resolved identifier of the resource.
	CanonicalURL CanonicalURL
	// Syntax is the source syntax the contents were parsed as.
	Syntax Syntax
	// Source is the raw source text.
	Source string
	// ContentHash is a hash of Source, used to detect no-op reloads.
	ContentHash uint64
}
