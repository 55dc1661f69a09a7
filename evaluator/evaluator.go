// Package evaluator is the composition root (C9): it owns a PageController
// session for one Query evaluation end to end, wires the registry, the four
// core processors, the plugin processors, and the follow engine together,
// runs pre_actions and the top-level dispatch/pagination loop, and enforces
// the wall-clock budget. It sends no completion notification itself; the HTTP
// query handler delivers the optional webhook from the returned Result.
//
// One Evaluator runs many Query evaluations, each acquiring its own driver
// session with a numbered navigate/stabilize/extract lifecycle and
// defer-guaranteed cleanup on every exit path.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/starlitlog/dr-web-engine/actions"
	"github.com/starlitlog/dr-web-engine/config"
	"github.com/starlitlog/dr-web-engine/driver/httpfetch"
	"github.com/starlitlog/dr-web-engine/driver/rod"
	"github.com/starlitlog/dr-web-engine/follow"
	"github.com/starlitlog/dr-web-engine/paginate"
	"github.com/starlitlog/dr-web-engine/plugins/nlselect"
	"github.com/starlitlog/dr-web-engine/plugins/readable"
	"github.com/starlitlog/dr-web-engine/plugins/structureddata"
	"github.com/starlitlog/dr-web-engine/processors"
	"github.com/starlitlog/dr-web-engine/query"
	"github.com/starlitlog/dr-web-engine/registry"
)

// needsEscalation is implemented by drivers that can report, after opening a
// page, that they lack the capability the query needs (§6.1[FULL]).
type needsEscalation interface {
	NeedsEscalation() bool
}

// Options configures one Evaluator instance, built once at process startup
// and shared across every evaluation it runs.
type Options struct {
	Browser   *rod.Browser // optional shared headless-Chrome pool; nil means static-only
	HTTPProxy string       // passed to httpfetch's Fetcher
	Eval      config.EvalConfig
	LLM       config.LLMConfig
	Logger    *slog.Logger
}

// Evaluator runs Query documents against start URLs, escalating from the
// cheap static-HTML driver to the browser driver only when a query's steps
// demand interaction the static driver can't provide.
type Evaluator struct {
	browser *rod.Browser
	fetcher *httpfetch.Fetcher
	opts    Options
	reg     *registry.Registry
}

// New builds an Evaluator and its frozen processor registry. The registry is
// constructed and frozen once here, not per evaluation, since §5 requires
// registry mutation to end before any query begins and nothing in this
// module ever registers a processor after startup.
func New(opts Options) *Evaluator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	reg := registry.New()
	followEngine := follow.New(reg)

	_ = reg.Register(processors.NewExtractStepProcessor(followEngine), false)
	_ = reg.Register(processors.NewConditionalStepProcessor(reg), false)
	_ = reg.Register(processors.NewFollowStepProcessor(followEngine), false)
	_ = reg.Register(processors.NewScriptStepProcessor(), false)
	_ = reg.Register(structureddata.New(), false)
	_ = reg.Register(readable.New(), false)
	_ = reg.Register(nlselect.New(nlselect.Config{
		APIKey:  opts.LLM.APIKey,
		Model:   opts.LLM.Model,
		BaseURL: opts.LLM.BaseURL,
	}), false)
	reg.Freeze()

	return &Evaluator{
		browser: opts.Browser,
		fetcher: httpfetch.NewFetcher(opts.HTTPProxy),
		opts:    opts,
		reg:     reg,
	}
}

// Result is the outcome of one evaluation (§3.8, §4.9).
type Result struct {
	Records     any
	Diagnostics []query.Diagnostic
	DurationMS  int64
	DriverUsed  string // "httpfetch" | "rod"
}

// Run evaluates q against q.StartURL: acquires a driver session (escalating
// to the browser driver when needed), runs pre_actions, dispatches the
// top-level step list through the pagination wrapper, and releases the
// session on every exit path (§4.9, §5, §6.1[FULL]).
func (e *Evaluator) Run(ctx context.Context, q *query.Query, strict bool) (*Result, error) {
	start := time.Now()

	timeout := e.opts.Eval.DefaultTimeout
	if timeout <= 0 || timeout > e.opts.Eval.MaxTimeout {
		timeout = e.opts.Eval.MaxTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startHost, err := hostOf(q.StartURL)
	if err != nil {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "invalid start_url: " + q.StartURL, Err: err}
	}

	ec := query.NewEvalContext(startHost, strict, e.opts.Logger)

	controller, driverName, err := e.acquireController(runCtx, q)
	if err != nil {
		return nil, err
	}
	defer controller.Close()

	if len(q.PreActions) > 0 {
		if err := actions.Run(runCtx, controller, q.PreActions); err != nil {
			return nil, wrapPreActionErr(err)
		}
	}

	records, err := paginate.Run(runCtx, ec, e.reg, controller, q.Steps, q.Pagination)
	if err != nil {
		return nil, err
	}

	return &Result{
		Records:     records,
		Diagnostics: ec.Diagnostics.All(),
		DurationMS:  time.Since(start).Milliseconds(),
		DriverUsed:  driverName,
	}, nil
}

// acquireController implements the two-tier escalation decision (§6.1[FULL]):
// a query with no actions, ScriptStep or nl_select step anywhere in its tree
// runs against the cheap httpfetch driver; otherwise (or if the start page
// fails to open over HTTP, or httpfetch's own NeedsEscalation heuristic fires
// after opening it) it runs against a real browser page. With no browser
// configured, a page the heuristic flags is still served by httpfetch. The
// decision is made once per evaluation, not per step.
func (e *Evaluator) acquireController(ctx context.Context, q *query.Query) (query.PageController, string, error) {
	if requiresBrowser(q) {
		return e.acquireRodController(ctx, q.StartURL)
	}

	httpCtrl := httpfetch.NewController(e.fetcher)
	openCtx, cancel := context.WithTimeout(ctx, e.opts.Eval.HTTPFirstTimeout)
	err := httpCtrl.Open(openCtx, q.StartURL, int(e.opts.Eval.HTTPFirstTimeout.Milliseconds()))
	cancel()
	if err == nil {
		if ne, ok := any(httpCtrl).(needsEscalation); !ok || !ne.NeedsEscalation() || e.browser == nil {
			return httpCtrl, "httpfetch", nil
		}
	}

	return e.acquireRodController(ctx, q.StartURL)
}

func (e *Evaluator) acquireRodController(ctx context.Context, startURL string) (query.PageController, string, error) {
	if e.browser == nil {
		return nil, "", &query.EvalError{Code: query.ErrFatal, Message: "this query requires the browser driver but none was configured"}
	}
	ctrl, err := e.browser.Acquire()
	if err != nil {
		return nil, "", &query.EvalError{Code: query.ErrFatal, Message: "failed to acquire a browser page", Err: err}
	}
	if err := ctrl.Open(ctx, startURL, 30_000); err != nil {
		_ = ctrl.Close()
		return nil, "", err
	}
	return ctrl, "rod", nil
}

// requiresBrowser walks q's whole step tree looking for anything the static
// driver can never satisfy: an action list (every action needs Interact or
// RunScript), a ScriptStep, or a nl_select step (which needs a live DOM
// query against whatever the model resolves, no different in principle, but
// kept conservative since the LLM's chosen locator is unknown ahead of
// time).
func requiresBrowser(q *query.Query) bool {
	if len(q.PreActions) > 0 {
		return true
	}
	return stepsRequireBrowser(q.Steps)
}

func stepsRequireBrowser(steps []query.Step) bool {
	for _, step := range steps {
		switch s := step.(type) {
		case query.ExtractStep:
			if len(s.Actions) > 0 {
				return true
			}
			if s.Follow != nil && stepsRequireBrowser(s.Follow.Steps) {
				return true
			}
		case query.ConditionalStep:
			if stepsRequireBrowser(s.Then) || stepsRequireBrowser(s.Else) {
				return true
			}
		case query.FollowStep:
			if stepsRequireBrowser(s.Spec.Steps) {
				return true
			}
		case query.ScriptStep:
			return true
		case nlselect.Step:
			return true
		}
	}
	return false
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}

func wrapPreActionErr(err error) error {
	if ee, ok := err.(*query.EvalError); ok {
		return ee
	}
	return &query.EvalError{Code: query.ErrActionTimeout, Message: fmt.Sprintf("pre_actions failed: %v", err)}
}
