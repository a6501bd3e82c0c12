// Package parser implements static import extraction for stylesheets.
package parser

import (
	"iter"
	"strings"

	"go.trai.ch/tint/internal/core/domain"
)

var _ domain.ImportExtractor = (*Scanner)(nil)

// Scanner extracts the statically declared import URLs (@use, @forward and
// @import rules) from stylesheet source, in source order. It is a single
// forward pass over the text, not a full parse: comments and string literals
// are skipped, everything else only matters insofar as it contains an
// at-rule.
type Scanner struct{}

// NewScanner creates a new Scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// FindImports returns a lazy sequence of the import declarations in sheet.
// Plain CSS stylesheets yield nothing: CSS cannot load other stylesheets, so
// its @import rules are passed through to the output untouched.
func (s *Scanner) FindImports(sheet *domain.Stylesheet) iter.Seq[domain.ImportDecl] {
	return func(yield func(domain.ImportDecl) bool) {
		if sheet.Syntax == domain.SyntaxCSS {
			return
		}
		scanSource(sheet.Source, yield)
	}
}

func scanSource(src string, yield func(domain.ImportDecl) bool) {
	i := 0
	for i < len(src) {
		switch c := src[i]; {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			i = skipLineComment(src, i)
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i = skipBlockComment(src, i)
		case c == '"' || c == '\'':
			_, i = scanString(src, i)
		case c == '@':
			name, next := scanIdentifier(src, i+1)
			rule, ok := importRule(name)
			if !ok {
				i = next
				continue
			}
			next, done := scanRuleURLs(src, next, rule, yield)
			if done {
				return
			}
			i = next
		default:
			i++
		}
	}
}

func importRule(name string) (domain.ImportRule, bool) {
	switch name {
	case "use":
		return domain.RuleUse, true
	case "forward":
		return domain.RuleForward, true
	case "import":
		return domain.RuleImport, true
	default:
		return 0, false
	}
}

// scanRuleURLs consumes the URLs of a single @use/@forward/@import rule,
// yielding each followable one. @import takes a comma-separated list; the
// other rules take exactly one URL. Returns the position after the rule and
// whether the consumer stopped the iteration.
func scanRuleURLs(src string, i int, rule domain.ImportRule, yield func(domain.ImportDecl) bool) (int, bool) {
	for {
		i = skipSpace(src, i)
		if i >= len(src) {
			return i, false
		}

		if src[i] != '"' && src[i] != '\'' {
			// Unquoted argument, e.g. @import url(...). That form is plain
			// CSS; skip the whole rule.
			return skipToRuleEnd(src, i), false
		}

		url, next := scanString(src, i)
		i = next
		if !plainCSSImport(url, rule) {
			if !yield(domain.ImportDecl{URL: url, Rule: rule}) {
				return i, true
			}
		}

		// @use and @forward allow trailing clauses (as, with, show, hide)
		// but only a single URL.
		if rule != domain.RuleImport {
			return skipToRuleEnd(src, i), false
		}

		i = skipSpace(src, i)
		if i < len(src) && src[i] == ',' {
			i++
			continue
		}
		return skipToRuleEnd(src, i), false
	}
}

// plainCSSImport reports whether an @import URL is a plain CSS import that
// the compiler passes through rather than loading.
func plainCSSImport(url string, rule domain.ImportRule) bool {
	if rule != domain.RuleImport {
		return false
	}
	return strings.HasSuffix(url, ".css") ||
		strings.HasPrefix(url, "http://") ||
		strings.HasPrefix(url, "https://") ||
		strings.HasPrefix(url, "//")
}

func skipLineComment(src string, i int) int {
	for i < len(src) && src[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(src string, i int) int {
	i += 2
	for i+1 < len(src) {
		if src[i] == '*' && src[i+1] == '/' {
			return i + 2
		}
		i++
	}
	return len(src)
}

// scanString consumes a quoted string starting at i and returns its contents
// with escapes left as written.
func scanString(src string, i int) (string, int) {
	quote := src[i]
	i++
	start := i
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
			continue
		case quote:
			return src[start:i], i + 1
		case '\n':
			// Unterminated string; stop at the line break.
			return src[start:i], i
		}
		i++
	}
	return src[start:], i
}

func scanIdentifier(src string, i int) (string, int) {
	start := i
	for i < len(src) && (isAlpha(src[i]) || src[i] == '-') {
		i++
	}
	return src[start:i], i
}

func skipSpace(src string, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	return i
}

// skipToRuleEnd consumes everything up to and including the rule terminator:
// a semicolon in SCSS, a newline in the indented syntax.
func skipToRuleEnd(src string, i int) int {
	for i < len(src) {
		switch src[i] {
		case ';', '\n':
			return i + 1
		case '"', '\'':
			_, i = scanString(src, i)
		default:
			i++
		}
	}
	return i
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
