// Package fields implements the field extractor (C2): given an anchor node
// and a map of field-name to relative expression, produce one record (§4.2).
package fields

import (
	"context"
	"fmt"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/starlitlog/dr-web-engine/query"
)

// markdownConverter is shared across all field conversions; html-to-markdown
// converters are documented as goroutine-safe once constructed, and the
// evaluator only ever runs one field extraction at a time regardless (§5).
var markdownConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// Extract runs every (name, spec) pair in fields against anchor, applying
// the 0/1/>1 node-count rule (§4.2) and the format transform (§3.3[FULL]).
// A per-field ExpressionSyntaxError omits that field and is reported as a
// diagnostic; the record is still produced with the remaining fields.
func Extract(ctx context.Context, controller query.PageController, anchor query.Node, specs map[string]query.FieldSpec) (map[string]any, []query.Diagnostic) {
	record := make(map[string]any, len(specs))
	var diags []query.Diagnostic

	for name, spec := range specs {
		val, err := controller.Query(ctx, spec.Expr, anchor)
		if err != nil {
			diags = append(diags, query.Diagnostic{
				Code:    query.ErrExpressionSyntaxError,
				Message: fmt.Sprintf("field %q: %v", name, err),
			})
			continue
		}
		record[name] = renderField(val, spec.Format)
	}
	return record, diags
}

// renderField applies §4.2's node-count rule: 0 matches -> "", 1 match ->
// the rendered scalar, >1 -> a list of rendered strings in DOM order.
func renderField(val query.Value, format string) any {
	if val.Kind != query.ValueNodes {
		// Conditions/count expressions never reach here in practice, but a
		// scalar-yielding expression used as a field value is passed through.
		switch val.Kind {
		case query.ValueNumber:
			return val.Num
		case query.ValueBoolean:
			return val.Bool
		default:
			return val.Str
		}
	}

	render := renderText
	switch format {
	case "html":
		render = renderOuterHTML
	case "markdown":
		render = renderMarkdown
	}

	switch len(val.Nodes) {
	case 0:
		return ""
	case 1:
		return render(val.Nodes[0])
	default:
		out := make([]string, len(val.Nodes))
		for i, n := range val.Nodes {
			out[i] = render(n)
		}
		return out
	}
}

func renderText(n query.Node) string      { return n.Text() }
func renderOuterHTML(n query.Node) string { return n.OuterHTML() }

// renderMarkdown converts the node's outer HTML to Markdown (§4.2[FULL]),
// applied per-field instead of to a whole document.
func renderMarkdown(n query.Node) string {
	out, err := markdownConverter.ConvertString(n.OuterHTML())
	if err != nil {
		return n.Text()
	}
	return out
}
