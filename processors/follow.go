package processors

import (
	"context"

	"github.com/starlitlog/dr-web-engine/query"
)

// FollowStepProcessor runs a top-level FollowStep, i.e. a follow that is not
// scoped to a particular extracted anchor — the link expression is
// evaluated against the document root (anchor=nil) instead of a field's
// anchor node (§3.2, §4.7).
type FollowStepProcessor struct {
	follower Follower
}

func NewFollowStepProcessor(follower Follower) *FollowStepProcessor {
	return &FollowStepProcessor{follower: follower}
}

func (p *FollowStepProcessor) Name() string    { return "core.follow" }
func (p *FollowStepProcessor) Kinds() []string { return []string{"follow"} }
func (p *FollowStepProcessor) Priority() int    { return 0 }

func (p *FollowStepProcessor) CanHandle(step query.Step) bool {
	_, ok := step.(query.FollowStep)
	return ok
}

func (p *FollowStepProcessor) Execute(ctx context.Context, ec query.EvalContext, controller query.PageController, step query.Step) ([]any, error) {
	fs, ok := step.(query.FollowStep)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Path: ec.Path, Message: "follow processor received a non-follow step"}
	}
	if p.follower == nil {
		return nil, &query.EvalError{Code: query.ErrFatal, Path: ec.Path, Message: "follow step present but no follower is wired"}
	}
	return p.follower.Follow(ctx, ec, controller, nil, fs.Spec)
}
