package rod

import (
	"github.com/go-rod/rod"
)

// elementNode wraps a live *rod.Element. It is the only Node variant that
// may later be handed back in as a Query anchor, since only a live element
// can scope a further relative query (§4.1, §4.7's per-anchor field
// extraction).
type elementNode struct {
	el *rod.Element
}

func (n elementNode) Text() string {
	t, err := n.el.Text()
	if err != nil {
		return ""
	}
	return t
}

func (n elementNode) Attr(name string) (string, bool) {
	v, err := n.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (n elementNode) OuterHTML() string {
	h, err := n.el.HTML()
	if err != nil {
		return ""
	}
	return h
}

func (n elementNode) InnerHTML() string {
	res, err := n.el.Eval(`() => this.innerHTML`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// snapshotNode is a read-only rendering of a non-element XPath/CSS result
// (an attribute node, a text node, or a ::text/::attr pseudo-selector
// projection) captured once via JS and never re-queryable, mirroring
// selector/css.go's stringNode for the static driver.
type snapshotNode struct {
	text, html, inner string
	attrs             map[string]string
}

func (n snapshotNode) Text() string      { return n.text }
func (n snapshotNode) OuterHTML() string { return n.html }
func (n snapshotNode) InnerHTML() string { return n.inner }

func (n snapshotNode) Attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}
