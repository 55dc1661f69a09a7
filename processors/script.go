package processors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/starlitlog/dr-web-engine/query"
)

// ScriptStepProcessor runs an opaque script and reports its result as the
// step's sole output record (§3.2, §4.8), grounded on actions.runScript's
// wait_for-then-run shape but operating at step level rather than inside an
// action list, since a ScriptStep's return value feeds the record tree
// while an action's return value does not.
type ScriptStepProcessor struct{}

func NewScriptStepProcessor() *ScriptStepProcessor { return &ScriptStepProcessor{} }

func (p *ScriptStepProcessor) Name() string    { return "core.script" }
func (p *ScriptStepProcessor) Kinds() []string { return []string{"script"} }
func (p *ScriptStepProcessor) Priority() int    { return 0 }

func (p *ScriptStepProcessor) CanHandle(step query.Step) bool {
	_, ok := step.(query.ScriptStep)
	return ok
}

const defaultScriptTimeoutMS = 10_000

func (p *ScriptStepProcessor) Execute(ctx context.Context, ec query.EvalContext, controller query.PageController, step query.Step) ([]any, error) {
	ss, ok := step.(query.ScriptStep)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Path: ec.Path, Message: "script processor received a non-script step"}
	}
	if ss.Code == "" {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Path: ec.Path, Message: "script step requires code"}
	}

	timeoutMS := ss.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = defaultScriptTimeoutMS
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	if ss.WaitFor != "" {
		if err := pollUntilTruthy(runCtx, controller, ss.WaitFor, timeoutMS); err != nil {
			return nil, err
		}
	}

	val, err := controller.RunScript(runCtx, ss.Code)
	if err != nil {
		return nil, &query.EvalError{Code: query.ErrScriptError, Path: ec.Path, Message: "script execution failed", Err: err}
	}

	return []any{renderScriptResult(val, ss.ReturnJSON)}, nil
}

func renderScriptResult(val query.Value, returnJSON bool) any {
	switch val.Kind {
	case query.ValueNumber:
		return val.Num
	case query.ValueBoolean:
		return val.Bool
	case query.ValueNodes:
		out := make([]string, len(val.Nodes))
		for i, n := range val.Nodes {
			out[i] = n.Text()
		}
		return out
	default:
		if returnJSON {
			var decoded any
			if err := json.Unmarshal([]byte(val.Str), &decoded); err == nil {
				return decoded
			}
		}
		return val.Str
	}
}

func pollUntilTruthy(ctx context.Context, controller query.PageController, predicate string, timeoutMS int) error {
	const cadence = 200 * time.Millisecond
	deadline := time.Now().Add(time.Duration(timeoutMS) * time.Millisecond)
	ticker := time.NewTicker(cadence)
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
