package registry

import (
	"context"

	"github.com/starlitlog/dr-web-engine/query"
)

// StepOutput is one step's contribution to a record tree, paired with the
// step itself so Assemble (and ExtractStepProcessor's inline-follow
// handling) can read its Name/kind.
type StepOutput struct {
	Step    query.Step
	Records []any
}

// Dispatch runs steps in strict left-to-right order against controller
// (§4.6, §5's ordering guarantee), applying the soft-fail-by-default /
// fail-fast-on-request policy of §7:
//
//   - NoProcessor: the step is skipped with a warning diagnostic (§4.5).
//   - A recoverable StepError: the step's contribution is dropped, a
//     diagnostic is recorded, and evaluation continues with the next
//     sibling (§4.6's default policy) — unless ec.Strict is set, in which
//     case any step error aborts immediately.
//   - A FatalError (or an UnknownKey/SchemaError bubbling up from a
//     processor): the whole dispatch aborts and the error is returned.
//
// Dispatch is used recursively: a ConditionalStepProcessor calls it on
// then_steps/else_steps, and the follow engine (C7) calls it on a
// FollowSpec's steps, which is what keeps "strict left-to-right, i begins
// only after i-1 resolves" true at every nesting level (§5).
func (r *Registry) Dispatch(ctx context.Context, ec query.EvalContext, controller query.PageController, steps []query.Step) ([]StepOutput, error) {
	outputs := make([]StepOutput, 0, len(steps))

	for i, step := range steps {
		select {
		case <-ctx.Done():
			return outputs, &query.EvalError{Code: query.ErrCancelled, Path: ec.Path, Message: "evaluation cancelled"}
		default:
		}

		stepEC := ec.AtStep(i)
		proc := r.Find(step)
		if proc == nil {
			stepEC.ReportSoftFail(query.ErrNoProcessor, "no processor registered for step kind "+step.StepKind())
			continue
		}

		records, err := proc.Execute(ctx, stepEC, controller, step)
		if err != nil {
			code := errorCode(err)
			if query.IsFatal(code) {
				return outputs, err
			}
			if ec.Strict {
				return outputs, err
			}
			stepEC.ReportSoftFail(code, err.Error())
			continue
		}
		outputs = append(outputs, StepOutput{Step: step, Records: records})
	}

	return outputs, nil
}

func errorCode(err error) string {
	if ee, ok := err.(*query.EvalError); ok {
		return ee.Code
	}
	return query.ErrFatal
}

// stepName returns the step's grouping name, if it declares one, per §3.8.
func stepName(s query.Step) (string, bool) {
	switch v := s.(type) {
	case query.ExtractStep:
		if v.Name != "" {
			return v.Name, true
		}
	case query.FollowStep:
		if v.Spec.Name != "" {
			return v.Spec.Name, true
		}
	}
	return "", false
}

// Assemble combines a step list's outputs into the record-tree fragment
// shape described by §3.8/§6.3:
//
//   - A single unnamed output's own record list is returned as-is (the
//     common "one list" case, e.g. scenario S1).
//   - Otherwise, named outputs are grouped under their name (concatenated
//     if the same name is used more than once); any unnamed outputs are
//     concatenated into one list under the reserved key "_unnamed" — the
//     hybrid case §6.3 left unspecified (decision recorded in DESIGN.md).
func Assemble(outputs []StepOutput) any {
	if len(outputs) == 1 {
		if _, named := stepName(outputs[0].Step); !named {
			return listOrEmpty(outputs[0].Records)
		}
	}

	anyNamed := false
	for _, o := range outputs {
		if _, named := stepName(o.Step); named {
			anyNamed = true
			break
		}
	}
	if !anyNamed {
		var flat []any
		for _, o := range outputs {
			flat = append(flat, o.Records...)
		}
		return listOrEmpty(flat)
	}

	result := map[string]any{}
	for _, o := range outputs {
		name, named := stepName(o.Step)
		if !named {
			name = "_unnamed"
		}
		if existing, ok := result[name]; ok {
			result[name] = append(existing.([]any), o.Records...)
		} else {
			cp := make([]any, len(o.Records))
			copy(cp, o.Records)
			result[name] = cp
		}
	}
	return result
}

func listOrEmpty(records []any) []any {
	if records == nil {
		return []any{}
	}
	return records
}
