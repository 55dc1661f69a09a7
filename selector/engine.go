// Package selector implements the XPath/selector runtime (C1): evaluating
// an Expression against a loaded page's DOM and yielding a Value shaped as
// a node list, string, number, or boolean (§3.3, §4.1).
//
// Two backends share one contract (§4.1[FULL]): CSS, built on cascadia +
// golang.org/x/net/html, and XPath, built on github.com/antchfx/htmlquery +
// github.com/antchfx/xpath. Both operate over the same golang.org/x/net/html
// tree and return htmlutil.Node-wrapped results, so C2 through C8 never know
// which backend ran.
package selector

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/starlitlog/dr-web-engine/query"
)

// Engine evaluates expressions against a DOM tree (§4.1's contract).
type Engine struct{}

// New returns a stateless Engine. Expressions are not cached across calls
// in this implementation (§4.1 allows, but does not require, caching); the
// antchfx/cascadia compile cost is small relative to a network round trip.
func New() *Engine { return &Engine{} }

// Evaluate runs expr against root (the document, or an anchor node for a
// relative expression such as one beginning with "./" or ".//", or a field
// map / link expression evaluated against an extracted anchor, §3.3). It
// takes no separate relative/absolute flag; the caller picks root.
func (e *Engine) Evaluate(root *html.Node, expr query.Expression) (query.Value, error) {
	s := strings.TrimSpace(string(expr))
	if s == "" {
		return query.Value{Kind: query.ValueNodes}, nil
	}
	if looksLikeXPath(s) {
		return evaluateXPath(root, s)
	}
	// Try CSS first; an expression that isn't valid CSS either is almost
	// certainly meant as XPath (e.g. axis syntax cascadia can't parse),
	// so fall back rather than surfacing a spurious CSS syntax error.
	v, err := evaluateCSS(root, s)
	if err == nil {
		return v, nil
	}
	if v2, err2 := evaluateXPath(root, s); err2 == nil {
		return v2, nil
	}
	return query.Value{}, err
}

// looksLikeXPath is a cheap heuristic: XPath axis/predicate/function syntax
// that CSS selectors never produce.
func looksLikeXPath(s string) bool {
	switch {
	case strings.HasPrefix(s, "."), strings.HasPrefix(s, "/"):
		return true
	case strings.Contains(s, "//"), strings.Contains(s, "::"):
		return true
	case strings.HasPrefix(s, "text()"), strings.HasPrefix(s, "@"):
		return true
	}
	return false
}
