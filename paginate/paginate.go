// Package paginate implements the top-level-only pagination driver (C8):
// run a query's step list against the current page, follow the pagination
// link expression, and repeat until the link yields nothing, max_pages is
// hit, or navigation fails. Structurally similar to follow's navigate-and-
// rerun loop but intentionally kept separate, since pagination is
// top-level-only (§9) while follow is recursive — folding the two together
// would blur that invariant.
package paginate

import (
	"context"

	"github.com/starlitlog/dr-web-engine/query"
	"github.com/starlitlog/dr-web-engine/registry"
)

const defaultMaxPages = 20

// Run executes steps against the current page, then repeatedly resolves
// spec's link expression, opens the next page, and re-runs steps, collecting
// every page's assembled output in page order (§4.8).
func Run(ctx context.Context, ec query.EvalContext, reg *registry.Registry, controller query.PageController, steps []query.Step, spec *query.Pagination) ([]any, error) {
	outputs, err := reg.Dispatch(ctx, ec, controller, steps)
	if err != nil {
		return nil, err
	}
	results := appendAssembled(nil, registry.Assemble(outputs))

	if spec == nil || spec.LinkExpr.Empty() {
		return results, nil
	}

	maxPages := spec.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	for page := 1; page < maxPages; page++ {
		select {
		case <-ctx.Done():
			return results, &query.EvalError{Code: query.ErrCancelled, Path: ec.Path, Message: "pagination cancelled"}
		default:
		}

		val, err := controller.Query(ctx, spec.LinkExpr, nil)
		if err != nil {
			return results, &query.EvalError{Code: query.ErrExpressionSyntaxError, Path: ec.Path, Message: "pagination link expression failed", Err: err}
		}

		next := firstLink(val)
		if next == "" {
			break
		}

		if err := controller.Open(ctx, next, 30_000); err != nil {
			ec.ReportSoftFail(query.ErrNavigationError, "pagination: failed to open "+next)
			break
		}

		pageEC := ec.AtStep(page)
		outputs, err := reg.Dispatch(ctx, pageEC, controller, steps)
		if err != nil {
			return results, err
		}
		results = appendAssembled(results, registry.Assemble(outputs))
	}

	return results, nil
}

func firstLink(val query.Value) string {
	if val.Kind != query.ValueNodes {
		strs := val.Strings()
		if len(strs) == 0 {
			return ""
		}
		return strs[0]
	}
	if len(val.Nodes) == 0 {
		return ""
	}
	if href, ok := val.Nodes[0].Attr("href"); ok {
		return href
	}
	return ""
}

func appendAssembled(results []any, assembled any) []any {
	switch v := assembled.(type) {
	case []any:
		return append(results, v...)
	case nil:
		return results
	default:
		return append(results, v)
	}
}
