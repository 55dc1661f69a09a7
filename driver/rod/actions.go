package rod

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/starlitlog/dr-web-engine/query"
)

// Interact dispatches one browser interaction against the locator-based
// action vocabulary of §3.5.
func (c *Controller) Interact(ctx context.Context, kind query.InteractKind, loc query.Locator, payload query.InteractPayload, timeoutMS int) error {
	actCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()
	p := c.page.Context(actCtx)

	switch kind {
	case query.InteractClick:
		el, err := findElement(p, loc)
		if err != nil {
			return err
		}
		return el.Click(proto.InputMouseButtonLeft, 1)

	case query.InteractHover:
		el, err := findElement(p, loc)
		if err != nil {
			return err
		}
		return el.Hover()

	case query.InteractFill:
		el, err := findElement(p, loc)
		if err != nil {
			return err
		}
		if err := el.SelectAllText(); err == nil {
			_ = el.Input("")
		}
		return el.Input(payload.Value)

	case query.InteractScroll:
		if loc.Empty() {
			return scrollViewport(p, payload)
		}
		el, err := findElement(p, loc)
		if err != nil {
			slog.Warn("scroll target not found; skipping", "locator", string(loc.Expr()), "error", err)
			return nil
		}
		return el.ScrollIntoView()

	default:
		return &query.EvalError{Code: query.ErrSchemaError, Message: "unknown interact kind: " + string(kind)}
	}
}

// findElement resolves a Locator against a page, preferring XPath per
// query.Locator.Expr's own precedence.
func findElement(p *rod.Page, loc query.Locator) (*rod.Element, error) {
	if loc.Empty() {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "action requires a locator"}
	}
	if loc.XPath != "" {
		el, err := p.ElementX(string(loc.XPath))
		if err != nil {
			return nil, &query.EvalError{Code: query.ErrTargetNotFound, Message: "xpath target not found: " + string(loc.XPath), Err: err}
		}
		return el, nil
	}
	el, err := p.Element(string(loc.CSS))
	if err != nil {
		return nil, &query.EvalError{Code: query.ErrTargetNotFound, Message: "css target not found: " + string(loc.CSS), Err: err}
	}
	return el, nil
}

func scrollViewport(p *rod.Page, payload query.InteractPayload) error {
	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return &query.EvalError{Code: query.ErrActionTimeout, Message: "failed to read viewport height", Err: err}
	}
	height := res.Value.Int()
	delta := float64(height)
	if payload.Pixels > 0 {
		delta = float64(payload.Pixels)
	}
	if payload.Direction == "up" {
		delta = -delta
	}
	if err := p.Mouse.Scroll(0, delta, 0); err != nil {
		return &query.EvalError{Code: query.ErrActionTimeout, Message: "scroll failed", Err: err}
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Wait blocks until pred is satisfied or timeoutMS elapses (§3.5's wait
// action / §4.3).
func (c *Controller) Wait(ctx context.Context, pred query.WaitPredicate, timeoutMS int) error {
	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()
	p := c.page.Context(waitCtx)

	switch pred.Until {
	case query.WaitElement:
		return p.WaitElementsMoreThan(string(pred.Locator.Expr()), 0)
	case query.WaitNoElement:
		return waitNoElement(p, string(pred.Locator.Expr()))
	case query.WaitText:
		return waitText(p, pred.Text)
	case query.WaitNetworkIdle:
		waitIdle := p.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
		waitIdle()
		return nil
	default:
		select {
		case <-time.After(time.Duration(timeoutMS) * time.Millisecond):
			return nil
		case <-waitCtx.Done():
			return waitCtx.Err()
		}
	}
}

func waitNoElement(p *rod.Page, selector string) error {
	for {
		els, err := p.Elements(selector)
		if err != nil || len(els) == 0 {
			return nil
		}
		select {
		case <-p.GetContext().Done():
			return p.GetContext().Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func waitText(p *rod.Page, text string) error {
	for {
		res, err := p.Eval(`(t) => document.body && document.body.innerText.includes(t)`, text)
		if err == nil && res.Value.Bool() {
			return nil
		}
		select {
		case <-p.GetContext().Done():
			return p.GetContext().Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// RunScript evaluates code in the page context and reports its return value
// (§3.2[FULL]'s ScriptStep, §4.3's script action). The result is round-tripped
// through encoding/json rather than gson's own accessors so the underlying
// JS type (boolean, number, string, object) survives into the right
// query.Value kind instead of being coerced by whichever accessor is called
// first.
func (c *Controller) RunScript(ctx context.Context, code string, args ...any) (query.Value, error) {
	p := c.page.Context(ctx)
	res, err := p.Eval(code, args...)
	if err != nil {
		return query.Value{}, &query.EvalError{Code: query.ErrScriptError, Message: "script execution failed", Err: err}
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return query.Value{Kind: query.ValueString, Str: res.Value.Str()}, nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return query.Value{Kind: query.ValueString, Str: string(raw)}, nil
	}

	switch v := decoded.(type) {
	case bool:
		return query.Value{Kind: query.ValueBoolean, Bool: v}, nil
	case float64:
		return query.Value{Kind: query.ValueNumber, Num: v}, nil
	case string:
		return query.Value{Kind: query.ValueString, Str: v}, nil
	case nil:
		return query.Value{Kind: query.ValueBoolean, Bool: false}, nil
	default:
		return query.Value{Kind: query.ValueString, Str: string(raw)}, nil
	}
}
