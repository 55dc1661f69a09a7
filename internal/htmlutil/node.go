// Package htmlutil adapts golang.org/x/net/html nodes to query.Node, the
// opaque node handle the evaluator core talks to. It is shared by both
// selector backends (CSS and XPath, C1) and by the static-HTML driver.
package htmlutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Node wraps a single *html.Node (which may be an element, text, or
// synthetic attribute node produced by the XPath backend) as a query.Node.
type Node struct {
	N *html.Node
}

// Text returns the node's rendered text content, concatenating descendant
// text nodes (or, for a bare text/attribute node, its own data).
func (n Node) Text() string {
	if n.N.Type == html.TextNode && n.N.FirstChild == nil {
		return n.N.Data
	}
	return goquery.NewDocumentFromNode(n.N).Text()
}

// Attr returns the named attribute's value on the wrapped element.
func (n Node) Attr(name string) (string, bool) {
	for _, a := range n.N.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// OuterHTML serializes the node including itself.
func (n Node) OuterHTML() string {
	s, err := goquery.OuterHtml(goquery.NewDocumentFromNode(n.N).Selection)
	if err != nil {
		return ""
	}
	return s
}

// InnerHTML serializes the node's children only.
func (n Node) InnerHTML() string {
	s, err := goquery.NewDocumentFromNode(n.N).Html()
	if err != nil {
		return ""
	}
	return s
}

// Parse parses a full HTML document into a tree.
func Parse(r *strings.Reader) (*html.Node, error) {
	return html.Parse(r)
}
