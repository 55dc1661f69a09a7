// Package structureddata implements the StructuredDataStep plugin (§3.2/§4.5
// [FULL]): it extracts and parses `<script type="application/ld+json">`
// blocks under an anchor, yielding one record per JSON-LD object found.
// Grounded on cleaner/extract.go's goquery-based metadata scanning, pointed
// at a different tag instead of `meta[property]`.
package structureddata

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/starlitlog/dr-web-engine/query"
)

// Step selects JSON-LD blocks under an optional anchor XPath (empty anchors
// the document root).
type Step struct {
	XPath query.Expression `json:"xpath,omitempty"`
	Name  string           `json:"name,omitempty"`
}

func (Step) StepKind() string { return "structured_data" }

// Processor runs Step against the current page's outer HTML, parsing it
// with goquery the same way cleaner/extract.go reads meta tags.
type Processor struct{}

func New() *Processor { return &Processor{} }

func (p *Processor) Name() string     { return "plugin.structured_data" }
func (p *Processor) Kinds() []string  { return []string{"structured_data"} }
func (p *Processor) Priority() int    { return 100 }
func (p *Processor) CanHandle(s query.Step) bool {
	_, ok := s.(Step)
	return ok
}

func (p *Processor) Execute(ctx context.Context, ec query.EvalContext, controller query.PageController, step query.Step) ([]any, error) {
	sd, ok := step.(Step)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Path: ec.Path, Message: "structured_data: wrong step type"}
	}

	var anchor query.Node
	if !sd.XPath.Empty() {
		val, err := controller.Query(ctx, sd.XPath, nil)
		if err != nil {
			return nil, &query.EvalError{Code: query.ErrExpressionSyntaxError, Path: ec.Path, Message: "structured_data: anchor xpath failed", Err: err}
		}
		if val.Kind != query.ValueNodes || len(val.Nodes) == 0 {
			return []any{}, nil
		}
		anchor = val.Nodes[0]
	}

	var outerHTML string
	if anchor != nil {
		outerHTML = anchor.OuterHTML()
	} else {
		rootVal, err := controller.Query(ctx, "/*", nil)
		if err != nil {
			return nil, &query.EvalError{Code: query.ErrExpressionSyntaxError, Path: ec.Path, Message: "structured_data: could not read document root", Err: err}
		}
		if rootVal.Kind == query.ValueNodes && len(rootVal.Nodes) > 0 {
			outerHTML = rootVal.Nodes[0].OuterHTML()
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outerHTML))
	if err != nil {
		ec.ReportSoftFail(query.ErrExpressionSyntaxError, "structured_data: could not parse anchor HTML")
		return []any{}, nil
	}

	var records []any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}
		var obj any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			ec.ReportSoftFail(query.ErrExpressionSyntaxError, "structured_data: invalid JSON-LD block")
			return
		}
		switch v := obj.(type) {
		case []any:
			records = append(records, v...)
		default:
			records = append(records, v)
		}
	})

	return records, nil
}
