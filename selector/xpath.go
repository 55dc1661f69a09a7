package selector

import (
	"fmt"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/starlitlog/dr-web-engine/internal/htmlutil"
	"github.com/starlitlog/dr-web-engine/query"
)

// evaluateXPath implements the XPath backend (§4.1). A node-set expression
// ("//div", ".//text()", "@href") yields ValueNodes; a function expression
// that reduces to a scalar ("count(...)", "boolean(...)") yields the
// matching scalar Kind, letting C4's count/boolean conditions and C1's
// "text()"/"@attr" shapes share one code path.
func evaluateXPath(root *html.Node, s string) (query.Value, error) {
	expr, err := xpath.Compile(s)
	if err != nil {
		return query.Value{}, &query.EvalError{
			Code:    query.ErrExpressionSyntaxError,
			Message: fmt.Sprintf("invalid XPath expression %q", s),
			Err:     err,
		}
	}

	nav := htmlquery.CreateXPathNavigator(root)
	result := expr.Evaluate(nav)

	switch v := result.(type) {
	case *xpath.NodeIterator:
		return nodeIteratorValue(v)
	case float64:
		return query.Value{Kind: query.ValueNumber, Num: v}, nil
	case bool:
		return query.Value{Kind: query.ValueBoolean, Bool: v}, nil
	case string:
		return query.Value{Kind: query.ValueString, Str: v}, nil
	default:
		return query.Value{}, &query.EvalError{
			Code:    query.ErrExpressionSyntaxError,
			Message: fmt.Sprintf("xpath expression %q yielded an unsupported result type %T", s, result),
		}
	}
}

func nodeIteratorValue(it *xpath.NodeIterator) (query.Value, error) {
	var nodes []query.Node
	for it.MoveNext() {
		cur := it.Current()
		hn, ok := cur.(*htmlquery.NodeNavigator)
		if !ok {
			continue
		}
		nodes = append(nodes, htmlutil.Node{N: hn.Current()})
	}
	return query.Value{Kind: query.ValueNodes, Nodes: nodes}, nil
}
