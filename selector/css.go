package selector

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/starlitlog/dr-web-engine/internal/htmlutil"
	"github.com/starlitlog/dr-web-engine/query"
)

// evaluateCSS implements the CSS backend (§4.1[FULL]), grounded on
// cleaner/selector.go's ApplyCSSSelector (cascadia.Compile + QueryAll over
// an x/net/html tree). Two scalar-yielding pseudo-suffixes are recognized,
// a common ecosystem convention (e.g. Scrapy) for expressing §3.3's "text"
// and "attribute" yield shapes in a selector language that otherwise has no
// native equivalent to XPath's text()/@attr:
//
//	"sel::text"       -> string: text content of each match
//	"sel::attr(name)" -> string: attribute value of each match
func evaluateCSS(root *html.Node, s string) (query.Value, error) {
	raw, suffixKind, attrName := splitPseudo(s)

	sel, err := cascadia.Parse(raw)
	if err != nil {
		return query.Value{}, &query.EvalError{
			Code:    query.ErrExpressionSyntaxError,
			Message: fmt.Sprintf("invalid CSS selector %q", s),
			Err:     err,
		}
	}

	matches := cascadia.QueryAll(root, sel)
	switch suffixKind {
	case "text":
		return stringsValue(matches, func(n *html.Node) string { return (htmlutil.Node{N: n}).Text() }), nil
	case "attr":
		return stringsValue(matches, func(n *html.Node) string {
			v, _ := (htmlutil.Node{N: n}).Attr(attrName)
			return v
		}), nil
	default:
		nodes := make([]query.Node, 0, len(matches))
		for _, m := range matches {
			nodes = append(nodes, htmlutil.Node{N: m})
		}
		return query.Value{Kind: query.ValueNodes, Nodes: nodes}, nil
	}
}

func stringsValue(matches []*html.Node, render func(*html.Node) string) query.Value {
	if len(matches) == 0 {
		return query.Value{Kind: query.ValueString, Str: ""}
	}
	if len(matches) == 1 {
		return query.Value{Kind: query.ValueString, Str: render(matches[0])}
	}
	nodes := make([]query.Node, 0, len(matches))
	for _, m := range matches {
		nodes = append(nodes, stringNode(render(m)))
	}
	return query.Value{Kind: query.ValueNodes, Nodes: nodes}
}

// stringNode lets a rendered string (e.g. "sel::text" over many matches)
// flow back through the same Node interface as a real element, so C2's
// node-count rules apply uniformly regardless of which path produced them.
type stringNode string

func (s stringNode) Text() string              { return string(s) }
func (s stringNode) Attr(string) (string, bool) { return "", false }
func (s stringNode) OuterHTML() string         { return string(s) }
func (s stringNode) InnerHTML() string         { return string(s) }

func splitPseudo(s string) (raw, kind, attrName string) {
	if idx := strings.LastIndex(s, "::text"); idx >= 0 && idx == len(s)-len("::text") {
		return s[:idx], "text", ""
	}
	if idx := strings.Index(s, "::attr("); idx >= 0 && strings.HasSuffix(s, ")") {
		return s[:idx], "attr", s[idx+len("::attr(") : len(s)-1]
	}
	return s, "", ""
}
