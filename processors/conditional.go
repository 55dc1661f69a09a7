package processors

import (
	"context"

	"github.com/starlitlog/dr-web-engine/condition"
	"github.com/starlitlog/dr-web-engine/query"
	"github.com/starlitlog/dr-web-engine/registry"
)

// ConditionalStepProcessor implements C4 wired to recursive dispatch: it
// evaluates the condition, then runs the matching branch's step list through
// the same registry that dispatched it, so nesting is unbounded (§4.4).
type ConditionalStepProcessor struct {
	reg *registry.Registry
}

func NewConditionalStepProcessor(reg *registry.Registry) *ConditionalStepProcessor {
	return &ConditionalStepProcessor{reg: reg}
}

func (p *ConditionalStepProcessor) Name() string    { return "core.conditional" }
func (p *ConditionalStepProcessor) Kinds() []string { return []string{"conditional"} }
func (p *ConditionalStepProcessor) Priority() int    { return 0 }

func (p *ConditionalStepProcessor) CanHandle(step query.Step) bool {
	_, ok := step.(query.ConditionalStep)
	return ok
}

func (p *ConditionalStepProcessor) Execute(ctx context.Context, ec query.EvalContext, controller query.PageController, step query.Step) ([]any, error) {
	cs, ok := step.(query.ConditionalStep)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Path: ec.Path, Message: "conditional processor received a non-conditional step"}
	}

	matched, err := condition.Evaluate(ctx, controller, cs.Condition)
	if err != nil {
		return nil, &query.EvalError{Code: query.ErrExpressionSyntaxError, Path: ec.Path, Message: "condition evaluation failed", Err: err}
	}

	branch := cs.Else
	if matched {
		branch = cs.Then
	}
	if len(branch) == 0 {
		return nil, nil
	}

	outputs, err := p.reg.Dispatch(ctx, ec, controller, branch)
	if err != nil {
		return nil, err
	}

	assembled := registry.Assemble(outputs)
	switch v := assembled.(type) {
	case []any:
		return v, nil
	case nil:
		return nil, nil
	default:
		return []any{v}, nil
	}
}
