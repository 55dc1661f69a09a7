// Package condition implements the condition evaluator (C4): boolean
// predicates over the current page. Conditions never mutate the page and
// never wait; a locator yielding zero nodes evaluates to false rather than
// erroring, so "exists" is safe to use as a branch discriminator (§4.4).
package condition

import (
	"context"
	"strings"

	"github.com/starlitlog/dr-web-engine/query"
)

// Evaluate runs cond against the current page via controller (§3.6, §4.4).
func Evaluate(ctx context.Context, controller query.PageController, cond query.Condition) (bool, error) {
	switch cond.Kind {
	case query.ConditionExists:
		n, err := count(ctx, controller, cond.Locator)
		if err != nil {
			return false, err
		}
		return n > 0, nil

	case query.ConditionNotExists:
		n, err := count(ctx, controller, cond.Locator)
		if err != nil {
			return false, err
		}
		return n == 0, nil

	case query.ConditionContains:
		return evaluateContains(ctx, controller, cond)

	case query.ConditionCountEq:
		n, err := count(ctx, controller, cond.Locator)
		if err != nil {
			return false, err
		}
		return n == cond.Count, nil

	case query.ConditionCountMin:
		n, err := count(ctx, controller, cond.Locator)
		if err != nil {
			return false, err
		}
		return n >= cond.Count, nil

	case query.ConditionCountMax:
		n, err := count(ctx, controller, cond.Locator)
		if err != nil {
			return false, err
		}
		return n <= cond.Count, nil
	}
	return false, &query.EvalError{Code: query.ErrSchemaError, Message: "unknown condition kind: " + string(cond.Kind)}
}

// count returns the number of matching nodes; a missing locator counts zero,
// which is not an error (§3.6).
func count(ctx context.Context, controller query.PageController, loc query.Locator) (int, error) {
	if loc.Empty() {
		return 0, nil
	}
	val, err := controller.Query(ctx, loc.Expr(), nil)
	if err != nil {
		return 0, err
	}
	return val.Len(), nil
}

func evaluateContains(ctx context.Context, controller query.PageController, cond query.Condition) (bool, error) {
	if cond.Locator.Empty() {
		val, err := controller.Query(ctx, "//body", nil)
		if err != nil {
			return false, err
		}
		for _, n := range val.Nodes {
			if strings.Contains(n.Text(), cond.Text) {
				return true, nil
			}
		}
		return false, nil
	}
	val, err := controller.Query(ctx, cond.Locator.Expr(), nil)
	if err != nil {
		return false, err
	}
	for _, n := range val.Nodes {
		if strings.Contains(n.Text(), cond.Text) {
			return true, nil
		}
	}
	return false, nil
}
