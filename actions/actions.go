// Package actions implements the action pipeline (C3): an ordered list of
// browser actions executed strictly in sequence before extraction, grounded
// on scraper/actions.go's per-action-timeout dispatch (§4.3).
package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/starlitlog/dr-web-engine/query"
)

// Run executes actions strictly in order (§4.3's ordering guarantee: action
// i+1 begins only after i has fully resolved). It stops at the first action
// that returns an error and returns that error, wrapped with the action's
// index and kind; the caller (a step processor) applies the soft-fail policy
// of §7.
func Run(ctx context.Context, controller query.PageController, acts []query.Action) error {
	for i, a := range acts {
		actCtx, cancel := context.WithTimeout(ctx, time.Duration(a.EffectiveTimeout())*time.Millisecond)
		err := runOne(actCtx, controller, a)
		cancel()
		if err != nil {
			return fmt.Errorf("action %d (%s): %w", i, a.Kind, err)
		}
	}
	return nil
}

func runOne(ctx context.Context, controller query.PageController, a query.Action) error {
	switch a.Kind {
	case query.ActionClick:
		return interact(ctx, controller, query.InteractClick, a)
	case query.ActionHover:
		return interact(ctx, controller, query.InteractHover, a)
	case query.ActionFill:
		if a.Value == "" {
			return &query.EvalError{Code: query.ErrSchemaError, Message: "fill action requires value"}
		}
		return interact(ctx, controller, query.InteractFill, a)
	case query.ActionScroll:
		return runScroll(ctx, controller, a)
	case query.ActionWait:
		return runWait(ctx, controller, a)
	case query.ActionScript:
		return runScript(ctx, controller, a)
	default:
		return &query.EvalError{Code: query.ErrSchemaError, Message: "unknown action kind: " + string(a.Kind)}
	}
}

func interact(ctx context.Context, controller query.PageController, kind query.InteractKind, a query.Action) error {
	if a.Locator.Empty() {
		return &query.EvalError{Code: query.ErrSchemaError, Message: string(kind) + " action requires a locator"}
	}
	return controller.Interact(ctx, kind, a.Locator, query.InteractPayload{Value: a.Value}, a.EffectiveTimeout())
}

// runScroll defaults Direction to "down" and passes the locator through to
// the controller: an empty locator scrolls the viewport, and on the browser
// driver a locator that matches nothing is logged at warning level and
// skipped instead of being returned as an error.
func runScroll(ctx context.Context, controller query.PageController, a query.Action) error {
	payload := query.InteractPayload{Direction: a.Direction, Pixels: a.Pixels}
	if payload.Direction == "" {
		payload.Direction = "down"
	}
	return controller.Interact(ctx, query.InteractScroll, a.Locator, payload, a.EffectiveTimeout())
}

func runWait(ctx context.Context, controller query.PageController, a query.Action) error {
	until := a.Until
	if until == "" {
		until = query.WaitTimeout
	}
	pred := query.WaitPredicate{Until: until, Locator: a.Locator, Text: a.Text}
	return controller.Wait(ctx, pred, a.EffectiveTimeout())
}

func runScript(ctx context.Context, controller query.PageController, a query.Action) error {
	if a.Code == "" {
		return &query.EvalError{Code: query.ErrSchemaError, Message: "script action requires code"}
	}
	if a.WaitFor != "" {
		if err := pollUntilTruthy(ctx, controller, a.WaitFor, a.EffectiveTimeout()); err != nil {
			return err
		}
	}
	_, err := controller.RunScript(ctx, a.Code)
	if err != nil {
		return &query.EvalError{Code: query.ErrScriptError, Message: truncate(err.Error(), 500), Err: err}
	}
	return nil
}

// pollCadence is the fixed polling cadence for wait_for predicates (§4.3:
// "polled at a fixed cadence (≤ 250 ms)").
const pollCadence = 200 * time.Millisecond

func pollUntilTruthy(ctx context.Context, controller query.PageController, predicate string, timeoutMS int) error {
	deadline := time.Now().Add(time.Duration(timeoutMS) * time.Millisecond)
	ticker := time.NewTicker(pollCadence)
	defer ticker.Stop()
	for {
		val, err := controller.RunScript(ctx, predicate)
		if err == nil && val.Bool {
			return nil
		}
		if time.Now().After(deadline) {
			return &query.EvalError{Code: query.ErrActionTimeout, Message: "wait_for predicate did not become truthy"}
		}
		select {
		case <-ctx.Done():
			return &query.EvalError{Code: query.ErrCancelled, Message: "cancelled while polling wait_for"}
		case <-ticker.C:
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
