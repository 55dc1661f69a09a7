package rod

import (
	"context"
	"strings"

	"github.com/go-rod/rod"

	"github.com/starlitlog/dr-web-engine/query"
)

// Query implements the two-backend selector contract (§4.1[FULL]) against a
// live page. Element-producing expressions return live elementNodes so they
// can later be reused as an anchor (e.g. an ExtractStep's per-record
// fields); scalar/attribute/text results are rendered once into
// snapshotNodes, mirroring selector/css.go and selector/xpath.go's shapes
// for the static driver but resolved by the browser's own DOM instead of a
// Go HTML parser.
func (c *Controller) Query(ctx context.Context, expr query.Expression, anchor query.Node) (query.Value, error) {
	s := strings.TrimSpace(string(expr))
	if s == "" {
		return query.Value{}, &query.EvalError{Code: query.ErrExpressionSyntaxError, Message: "empty expression"}
	}
	scope, _ := anchor.(elementNode)

	if looksLikeXPath(s) {
		return c.queryXPath(ctx, s, scope, anchor != nil)
	}
	return c.queryCSS(ctx, s, scope, anchor != nil)
}

// QueryScalar is Query restricted to string/number/boolean yields; the rod
// driver shares one implementation since both XPath and the pseudo-suffix
// CSS convention already resolve to a scalar Value when the expression asks
// for one (§3.3).
func (c *Controller) QueryScalar(ctx context.Context, expr query.Expression, anchor query.Node) (query.Value, error) {
	return c.Query(ctx, expr, anchor)
}

func (c *Controller) queryCSS(ctx context.Context, s string, scope elementNode, scoped bool) (query.Value, error) {
	raw, suffix, attrName := splitPseudo(s)

	if suffix == "" {
		var els rod.Elements
		var err error
		if scoped {
			els, err = scope.el.Context(ctx).Elements(raw)
		} else {
			els, err = c.page.Context(ctx).Elements(raw)
		}
		if err != nil {
			return query.Value{}, &query.EvalError{Code: query.ErrExpressionSyntaxError, Message: "css selector failed: " + raw, Err: err}
		}
		nodes := make([]query.Node, 0, len(els))
		for _, e := range els {
			nodes = append(nodes, elementNode{el: e})
		}
		return query.Value{Kind: query.ValueNodes, Nodes: nodes}, nil
	}

	var els rod.Elements
	var err error
	if scoped {
		els, err = scope.el.Context(ctx).Elements(raw)
	} else {
		els, err = c.page.Context(ctx).Elements(raw)
	}
	if err != nil {
		return query.Value{}, &query.EvalError{Code: query.ErrExpressionSyntaxError, Message: "css selector failed: " + raw, Err: err}
	}

	render := func(e *rod.Element) string { return elementNode{el: e}.Text() }
	if suffix == "attr" {
		render = func(e *rod.Element) string {
			v, _ := elementNode{el: e}.Attr(attrName)
			return v
		}
	}

	switch len(els) {
	case 0:
		return query.Value{Kind: query.ValueString, Str: ""}, nil
	case 1:
		return query.Value{Kind: query.ValueString, Str: render(els[0])}, nil
	default:
		nodes := make([]query.Node, 0, len(els))
		for _, e := range els {
			nodes = append(nodes, snapshotNode{text: render(e)})
		}
		return query.Value{Kind: query.ValueNodes, Nodes: nodes}, nil
	}
}

const xpathDocumentJS = `(expr) => { return __drweb_evalXPath(document, expr); }`
const xpathElementJS = `(expr) => { return __drweb_evalXPath(this, expr); }`

// xpathRuntime is evaluated before every XPath query and defines
// __drweb_evalXPath on the page the first time; it dispatches on
// document.evaluate's result type, returning JSON shaped like {kind, value} so the Go side can
// type-switch exactly as selector/xpath.go does for the static engine.
const xpathRuntime = `
window.__drweb_evalXPath = window.__drweb_evalXPath || function(root, expr) {
	var doc = root.ownerDocument || document;
	var r = doc.evaluate(expr, root, null, XPathResult.ANY_TYPE, null);
	if (r.resultType === XPathResult.NUMBER_TYPE) return {kind: "number", value: r.numberValue};
	if (r.resultType === XPathResult.STRING_TYPE) return {kind: "string", value: r.stringValue};
	if (r.resultType === XPathResult.BOOLEAN_TYPE) return {kind: "boolean", value: r.booleanValue};
	var snap = doc.evaluate(expr, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	var out = [];
	for (var i = 0; i < snap.snapshotLength; i++) {
		var n = snap.snapshotItem(i);
		if (n.nodeType === 2) {
			out.push({text: n.value, html: n.value, inner: n.value, attrs: {}, element: false});
		} else if (n.nodeType === 3) {
			out.push({text: n.nodeValue, html: n.nodeValue, inner: n.nodeValue, attrs: {}, element: false});
		} else {
			var attrs = {};
			if (n.attributes) { for (var j = 0; j < n.attributes.length; j++) attrs[n.attributes[j].name] = n.attributes[j].value; }
			out.push({text: n.textContent, html: n.outerHTML || n.textContent, inner: n.innerHTML || "", attrs: attrs, element: true});
		}
	}
	return {kind: "nodes", value: out};
};
`

func (c *Controller) queryXPath(ctx context.Context, expr string, scope elementNode, scoped bool) (query.Value, error) {
	if _, err := c.page.Eval(xpathRuntime); err != nil {
		return query.Value{}, &query.EvalError{Code: query.ErrExpressionSyntaxError, Message: "xpath runtime injection failed", Err: err}
	}

	var res *rod.Eval
	var err error
	if scoped {
		res, err = scope.el.Context(ctx).Eval(xpathElementJS, expr)
	} else {
		res, err = c.page.Context(ctx).Eval(xpathDocumentJS, expr)
	}
	if err != nil {
		return query.Value{}, &query.EvalError{Code: query.ErrExpressionSyntaxError, Message: "xpath evaluation failed: " + expr, Err: err}
	}

	kind := res.Value.Get("kind").Str()
	switch kind {
	case "number":
		return query.Value{Kind: query.ValueNumber, Num: res.Value.Get("value").Num()}, nil
	case "string":
		return query.Value{Kind: query.ValueString, Str: res.Value.Get("value").Str()}, nil
	case "boolean":
		return query.Value{Kind: query.ValueBoolean, Bool: res.Value.Get("value").Bool()}, nil
	default:
		items := res.Value.Get("value").Arr()
		nodes := make([]query.Node, 0, len(items))
		for _, item := range items {
			attrs := map[string]string{}
			for k, v := range item.Get("attrs").Map() {
				attrs[k] = v.Str()
			}
			nodes = append(nodes, snapshotNode{
				text:  item.Get("text").Str(),
				html:  item.Get("html").Str(),
				inner: item.Get("inner").Str(),
				attrs: attrs,
			})
		}
		return query.Value{Kind: query.ValueNodes, Nodes: nodes}, nil
	}
}

func looksLikeXPath(s string) bool {
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, ".") {
		return true
	}
	if strings.Contains(s, "//") || strings.Contains(s, "::") {
		return true
	}
	if strings.HasPrefix(s, "text()") || strings.HasPrefix(s, "@") {
		return true
	}
	return false
}

func splitPseudo(s string) (raw, kind, attrName string) {
	if idx := strings.LastIndex(s, "::text"); idx >= 0 && idx == len(s)-len("::text") {
		return s[:idx], "text", ""
	}
	if idx := strings.Index(s, "::attr("); idx >= 0 && strings.HasSuffix(s, ")") {
		return s[:idx], "attr", s[idx+len("::attr(") : len(s)-1]
	}
	return s, "", ""
}
