// Package processors implements the four core step processors (C6):
// extract, conditional, follow and script. Each processor handles exactly
// one case of the step union instead of one fixed pipeline shape.
package processors

import (
	"context"

	"github.com/starlitlog/dr-web-engine/actions"
	"github.com/starlitlog/dr-web-engine/fields"
	"github.com/starlitlog/dr-web-engine/query"
)

// Follower runs a FollowSpec's recursive navigation (C7). It is injected
// rather than imported directly so this package never depends on the follow
// package, which itself depends back on a dispatcher to run a followed
// page's steps — keeping the dependency graph acyclic (registry -> follow ->
// processors -> registry would otherwise cycle).
type Follower interface {
	Follow(ctx context.Context, ec query.EvalContext, controller query.PageController, anchor query.Node, spec query.FollowSpec) ([]any, error)
}

// ExtractStepProcessor implements C1+C2+C3 composed into one step: locate
// anchors, run any pre-extraction actions, extract fields per anchor, and
// optionally recurse into a nested follow (§4.1/§4.2/§4.3 wired together,
// grounded on scraper/scraper.go's per-item extract-then-act loop).
type ExtractStepProcessor struct {
	follower Follower
}

// NewExtractStepProcessor builds the processor. follower may be nil if no
// ExtractStep in the loaded query ever sets Follow (Execute only consults it
// when Follow != nil).
func NewExtractStepProcessor(follower Follower) *ExtractStepProcessor {
	return &ExtractStepProcessor{follower: follower}
}

func (p *ExtractStepProcessor) Name() string    { return "core.extract" }
func (p *ExtractStepProcessor) Kinds() []string { return []string{"extract"} }
func (p *ExtractStepProcessor) Priority() int    { return 0 }

func (p *ExtractStepProcessor) CanHandle(step query.Step) bool {
	_, ok := step.(query.ExtractStep)
	return ok
}

func (p *ExtractStepProcessor) Execute(ctx context.Context, ec query.EvalContext, controller query.PageController, step query.Step) ([]any, error) {
	es, ok := step.(query.ExtractStep)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Path: ec.Path, Message: "extract processor received a non-extract step"}
	}
	if len(es.Actions) > 0 {
		if err := actions.Run(ctx, controller, es.Actions); err != nil {
			return nil, wrapActionErr(ec, err)
		}
	}

	anchorsVal, err := controller.Query(ctx, es.XPath, nil)
	if err != nil {
		return nil, &query.EvalError{Code: query.ErrExpressionSyntaxError, Path: ec.Path, Message: "extract anchor expression failed", Err: err}
	}

	var anchors []query.Node
	if anchorsVal.Kind == query.ValueNodes {
		anchors = anchorsVal.Nodes
	}

	records := make([]any, 0, len(anchors))
	for i, anchor := range anchors {
		anchorEC := ec.AtStep(i)
		record, diags := fields.Extract(ctx, controller, anchor, es.Fields)
		for _, d := range diags {
			anchorEC.ReportSoftFail(d.Code, d.Message)
		}

		if es.Follow != nil {
			if p.follower == nil {
				anchorEC.ReportSoftFail(query.ErrFatal, "extract step has a follow spec but no follower is wired")
			} else {
				followed, ferr := p.follower.Follow(ctx, anchorEC, controller, anchor, *es.Follow)
				if ferr != nil {
					if ee, ok := ferr.(*query.EvalError); ok && query.IsFatal(ee.Code) {
						return records, ferr
					}
					anchorEC.ReportSoftFail(query.ErrFatal, ferr.Error())
				} else if len(followed) > 0 {
					key := es.Follow.Name
					if key == "" {
						key = "follow"
					}
					record[key] = followed
				}
			}
		}

		records = append(records, record)
	}

	return records, nil
}

func wrapActionErr(ec query.EvalContext, err error) error {
	if ee, ok := err.(*query.EvalError); ok {
		return ee
	}
	return &query.EvalError{Code: query.ErrActionTimeout, Path: ec.Path, Message: "pre-extraction action failed", Err: err}
}
