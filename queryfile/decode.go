package queryfile

import (
	"fmt"

	"github.com/starlitlog/dr-web-engine/plugins/nlselect"
	"github.com/starlitlog/dr-web-engine/plugins/readable"
	"github.com/starlitlog/dr-web-engine/plugins/structureddata"
	"github.com/starlitlog/dr-web-engine/query"
)

// decodeQuery turns the generic tree produced by either surface format into
// a typed query.Query, rejecting any key not named in §6.2 at every level.
func decodeQuery(m map[string]any) (*query.Query, error) {
	if err := checkKeys(m, "start_url", "steps", "pagination", "pre_actions"); err != nil {
		return nil, err
	}

	startURL, err := stringField(m, "start_url", true)
	if err != nil {
		return nil, err
	}

	stepsRaw, ok := m["steps"]
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "query document missing required \"steps\""}
	}
	stepsList, ok := stepsRaw.([]any)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"steps\" must be a list"}
	}
	steps, err := decodeSteps(stepsList)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"steps\" must be non-empty"}
	}

	q := &query.Query{StartURL: startURL, Steps: steps}

	if pagRaw, ok := m["pagination"]; ok {
		pag, err := decodePagination(pagRaw)
		if err != nil {
			return nil, err
		}
		q.Pagination = pag
	}

	if preRaw, ok := m["pre_actions"]; ok {
		preList, ok := preRaw.([]any)
		if !ok {
			return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"pre_actions\" must be a list"}
		}
		actions, err := decodeActions(preList)
		if err != nil {
			return nil, err
		}
		q.PreActions = actions
	}

	return q, nil
}

func decodePagination(raw any) (*query.Pagination, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"pagination\" must be an object"}
	}
	if err := checkKeys(m, "xpath", "limit"); err != nil {
		return nil, err
	}
	linkExpr, err := stringField(m, "xpath", true)
	if err != nil {
		return nil, err
	}
	maxPages, err := intField(m, "limit", false)
	if err != nil {
		return nil, err
	}
	return &query.Pagination{LinkExpr: query.Expression(linkExpr), MaxPages: maxPages}, nil
}

func decodeSteps(list []any) ([]query.Step, error) {
	steps := make([]query.Step, 0, len(list))
	for i, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, &query.EvalError{Code: query.ErrSchemaError, Message: fmt.Sprintf("steps[%d] must be an object", i)}
		}
		step, err := decodeStep(m)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// decodeStep dispatches on the discriminating key present in the step
// object. ExtractStep ("xpath"), ConditionalStep ("if"/"then"/"else") and
// ScriptStep ("script" plus its options) keep their keys at the top level;
// FollowStep and the plugin kinds wrap their body under their own key.
func decodeStep(m map[string]any) (query.Step, error) {
	switch {
	case has(m, "if"):
		return decodeConditionalStep(m)
	case has(m, "script"):
		return decodeScriptStep(m)
	case has(m, "xpath"):
		return decodeExtractStep(m)
	case has(m, "follow"):
		return decodeFollowStep(m)
	case has(m, "structured_data"):
		return decodeStructuredDataStep(m)
	case has(m, "readable_content"):
		return decodeReadableContentStep(m)
	case has(m, "nl_select"):
		return decodeNLSelectStep(m)
	default:
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "step object does not match any known step kind"}
	}
}

func decodeExtractStep(m map[string]any) (query.Step, error) {
	if err := checkKeys(m, "xpath", "name", "fields", "follow", "actions"); err != nil {
		return nil, err
	}
	xpath, err := stringField(m, "xpath", true)
	if err != nil {
		return nil, err
	}
	name, _ := stringField(m, "name", false)

	var fieldSpecs map[string]query.FieldSpec
	if fRaw, ok := m["fields"]; ok {
		fieldSpecs, err = decodeFields(fRaw)
		if err != nil {
			return nil, err
		}
	}

	es := query.ExtractStep{XPath: query.Expression(xpath), Name: name, Fields: fieldSpecs}

	if followRaw, ok := m["follow"]; ok {
		spec, err := decodeFollowSpec(followRaw)
		if err != nil {
			return nil, err
		}
		es.Follow = spec
	}
	if actionsRaw, ok := m["actions"]; ok {
		list, ok := actionsRaw.([]any)
		if !ok {
			return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"actions\" must be a list"}
		}
		actions, err := decodeActions(list)
		if err != nil {
			return nil, err
		}
		es.Actions = actions
	}
	return es, nil
}

func decodeFields(raw any) (map[string]query.FieldSpec, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"fields\" must be an object"}
	}
	out := make(map[string]query.FieldSpec, len(m))
	for name, v := range m {
		switch t := v.(type) {
		case string:
			out[name] = query.FieldSpec{Expr: query.Expression(t), Format: "text"}
		case map[string]any:
			if err := checkKeys(t, "expr", "format"); err != nil {
				return nil, err
			}
			expr, err := stringField(t, "expr", true)
			if err != nil {
				return nil, err
			}
			format, _ := stringField(t, "format", false)
			if format == "" {
				format = "text"
			}
			out[name] = query.FieldSpec{Expr: query.Expression(expr), Format: format}
		default:
			return nil, &query.EvalError{Code: query.ErrSchemaError, Message: fmt.Sprintf("field %q must be a string or object", name)}
		}
	}
	return out, nil
}

func decodeFollowStep(m map[string]any) (query.Step, error) {
	if err := checkKeys(m, "follow"); err != nil {
		return nil, err
	}
	spec, err := decodeFollowSpec(m["follow"])
	if err != nil {
		return nil, err
	}
	return query.FollowStep{Spec: *spec}, nil
}

func decodeFollowSpec(raw any) (*query.FollowSpec, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"follow\" must be an object"}
	}
	if err := checkKeys(m, "xpath", "steps", "max_depth", "detect_cycles", "follow_external", "skip_near_duplicates", "name", "tag_source_url"); err != nil {
		return nil, err
	}
	linkExpr, err := stringField(m, "xpath", true)
	if err != nil {
		return nil, err
	}
	stepsRaw, ok := m["steps"]
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"follow\" missing required \"steps\""}
	}
	stepsList, ok := stepsRaw.([]any)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "follow \"steps\" must be a list"}
	}
	steps, err := decodeSteps(stepsList)
	if err != nil {
		return nil, err
	}
	maxDepth, _ := intField(m, "max_depth", false)
	name, _ := stringField(m, "name", false)
	followExternal, _ := boolField(m, "follow_external", false)
	skipNearDup, _ := boolField(m, "skip_near_duplicates", false)
	tagSource, _ := boolField(m, "tag_source_url", false)

	spec := &query.FollowSpec{
		LinkExpr:           query.Expression(linkExpr),
		Steps:              steps,
		MaxDepth:           maxDepth,
		FollowExternal:     followExternal,
		SkipNearDuplicates: skipNearDup,
		Name:               name,
		TagSourceURL:       tagSource,
	}
	if dcRaw, ok := m["detect_cycles"]; ok {
		b, ok := dcRaw.(bool)
		if !ok {
			return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"detect_cycles\" must be a boolean"}
		}
		spec.DetectCycles = &b
	}
	return spec, nil
}

func decodeScriptStep(m map[string]any) (query.Step, error) {
	if err := checkKeys(m, "script", "wait_for", "timeout_ms", "return_json"); err != nil {
		return nil, err
	}
	code, err := stringField(m, "script", true)
	if err != nil {
		return nil, err
	}
	waitFor, _ := stringField(m, "wait_for", false)
	timeoutMS, _ := intField(m, "timeout_ms", false)
	returnJSON, _ := boolField(m, "return_json", false)
	return query.ScriptStep{Code: code, WaitFor: waitFor, TimeoutMS: timeoutMS, ReturnJSON: returnJSON}, nil
}

func decodeConditionalStep(m map[string]any) (query.Step, error) {
	if err := checkKeys(m, "if", "then", "else"); err != nil {
		return nil, err
	}
	cond, err := decodeCondition(m["if"])
	if err != nil {
		return nil, err
	}
	thenRaw, ok := m["then"]
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "conditional step missing required \"then\""}
	}
	thenList, ok := thenRaw.([]any)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"then\" must be a list"}
	}
	thenSteps, err := decodeSteps(thenList)
	if err != nil {
		return nil, err
	}
	if len(thenSteps) == 0 {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"then\" must be non-empty"}
	}

	var elseSteps []query.Step
	if elseRaw, ok := m["else"]; ok {
		elseList, ok := elseRaw.([]any)
		if !ok {
			return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"else\" must be a list"}
		}
		elseSteps, err = decodeSteps(elseList)
		if err != nil {
			return nil, err
		}
	}
	return query.ConditionalStep{Condition: cond, Then: thenSteps, Else: elseSteps}, nil
}

// conditionTags maps a condition object's discriminating key (§6.2) to the
// internal ConditionKind it denotes; "count"/"min_count"/"max_count" don't
// match their ConditionKind spelling one-for-one (count_eq/count_min/count_max).
var conditionTags = map[string]query.ConditionKind{
	"exists":     query.ConditionExists,
	"not_exists": query.ConditionNotExists,
	"contains":   query.ConditionContains,
	"count":      query.ConditionCountEq,
	"min_count":  query.ConditionCountMin,
	"max_count":  query.ConditionCountMax,
}

// decodeCondition decodes a condition object keyed by exactly one of
// exists/not_exists/contains/count/min_count/max_count (§6.2), each value an
// object carrying an optional locator (xpath/selector), contains' required
// text, or a count kind's required integer threshold.
func decodeCondition(raw any) (query.Condition, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return query.Condition{}, &query.EvalError{Code: query.ErrSchemaError, Message: "\"if\" must be an object"}
	}
	if err := checkKeys(m, "exists", "not_exists", "contains", "count", "min_count", "max_count"); err != nil {
		return query.Condition{}, err
	}

	var tag string
	for k := range conditionTags {
		if has(m, k) {
			if tag != "" {
				return query.Condition{}, &query.EvalError{Code: query.ErrSchemaError, Message: "condition object must have exactly one of exists/not_exists/contains/count/min_count/max_count"}
			}
			tag = k
		}
	}
	if tag == "" {
		return query.Condition{}, &query.EvalError{Code: query.ErrSchemaError, Message: "condition object must have exactly one of exists/not_exists/contains/count/min_count/max_count"}
	}

	body, ok := m[tag].(map[string]any)
	if !ok {
		return query.Condition{}, &query.EvalError{Code: query.ErrSchemaError, Message: fmt.Sprintf("%q must be an object", tag)}
	}

	switch tag {
	case "contains":
		if err := checkKeys(body, "xpath", "selector", "text"); err != nil {
			return query.Condition{}, err
		}
		xpath, _ := stringField(body, "xpath", false)
		selector, _ := stringField(body, "selector", false)
		text, err := stringField(body, "text", true)
		if err != nil {
			return query.Condition{}, err
		}
		return query.Condition{
			Kind:    conditionTags[tag],
			Locator: query.Locator{XPath: query.Expression(xpath), CSS: query.Expression(selector)},
			Text:    text,
		}, nil

	case "count", "min_count", "max_count":
		if err := checkKeys(body, "xpath", "selector", "count"); err != nil {
			return query.Condition{}, err
		}
		xpath, _ := stringField(body, "xpath", false)
		selector, _ := stringField(body, "selector", false)
		count, err := intField(body, "count", true)
		if err != nil {
			return query.Condition{}, err
		}
		return query.Condition{
			Kind:    conditionTags[tag],
			Locator: query.Locator{XPath: query.Expression(xpath), CSS: query.Expression(selector)},
			Count:   count,
		}, nil

	default: // "exists", "not_exists"
		if err := checkKeys(body, "xpath", "selector"); err != nil {
			return query.Condition{}, err
		}
		xpath, _ := stringField(body, "xpath", false)
		selector, _ := stringField(body, "selector", false)
		return query.Condition{
			Kind:    conditionTags[tag],
			Locator: query.Locator{XPath: query.Expression(xpath), CSS: query.Expression(selector)},
		}, nil
	}
}

func decodeActions(list []any) ([]query.Action, error) {
	actions := make([]query.Action, 0, len(list))
	for i, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, &query.EvalError{Code: query.ErrSchemaError, Message: fmt.Sprintf("action[%d] must be an object", i)}
		}
		a, err := decodeAction(m)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func decodeAction(m map[string]any) (query.Action, error) {
	if err := checkKeys(m, "kind", "xpath", "selector", "direction", "pixels", "value", "until", "text", "timeout_ms", "code", "wait_for"); err != nil {
		return query.Action{}, err
	}
	kind, err := stringField(m, "kind", true)
	if err != nil {
		return query.Action{}, err
	}
	xpath, _ := stringField(m, "xpath", false)
	selector, _ := stringField(m, "selector", false)
	direction, _ := stringField(m, "direction", false)
	pixels, _ := intField(m, "pixels", false)
	value, _ := stringField(m, "value", false)
	until, _ := stringField(m, "until", false)
	text, _ := stringField(m, "text", false)
	timeoutMS, _ := intField(m, "timeout_ms", false)
	code, _ := stringField(m, "code", false)
	waitFor, _ := stringField(m, "wait_for", false)

	return query.Action{
		Kind:      query.ActionKind(kind),
		Locator:   query.Locator{XPath: query.Expression(xpath), CSS: query.Expression(selector)},
		Direction: direction,
		Pixels:    pixels,
		Value:     value,
		Until:     query.WaitUntil(until),
		Text:      text,
		TimeoutMS: timeoutMS,
		Code:      code,
		WaitFor:   waitFor,
	}, nil
}

func decodeStructuredDataStep(m map[string]any) (query.Step, error) {
	if err := checkKeys(m, "structured_data"); err != nil {
		return nil, err
	}
	body, ok := m["structured_data"].(map[string]any)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"structured_data\" must be an object"}
	}
	if err := checkKeys(body, "xpath", "name"); err != nil {
		return nil, err
	}
	xpath, _ := stringField(body, "xpath", false)
	name, _ := stringField(body, "name", false)
	return structureddata.Step{XPath: query.Expression(xpath), Name: name}, nil
}

func decodeReadableContentStep(m map[string]any) (query.Step, error) {
	if err := checkKeys(m, "readable_content"); err != nil {
		return nil, err
	}
	body, ok := m["readable_content"].(map[string]any)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"readable_content\" must be an object"}
	}
	if err := checkKeys(body, "xpath", "name", "format"); err != nil {
		return nil, err
	}
	xpath, _ := stringField(body, "xpath", false)
	name, _ := stringField(body, "name", false)
	format, _ := stringField(body, "format", false)
	return readable.Step{XPath: query.Expression(xpath), Name: name, Format: format}, nil
}

func decodeNLSelectStep(m map[string]any) (query.Step, error) {
	if err := checkKeys(m, "nl_select"); err != nil {
		return nil, err
	}
	body, ok := m["nl_select"].(map[string]any)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "\"nl_select\" must be an object"}
	}
	if err := checkKeys(body, "xpath", "describe", "name", "fields"); err != nil {
		return nil, err
	}
	xpath, _ := stringField(body, "xpath", false)
	describe, err := stringField(body, "describe", true)
	if err != nil {
		return nil, err
	}
	name, _ := stringField(body, "name", false)
	var fieldSpecs map[string]query.FieldSpec
	if fRaw, ok := body["fields"]; ok {
		fieldSpecs, err = decodeFields(fRaw)
		if err != nil {
			return nil, err
		}
	}
	return nlselect.Step{XPath: query.Expression(xpath), Describe: describe, Name: name, Fields: fieldSpecs}, nil
}

// --- generic helpers ---

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func checkKeys(m map[string]any, allowed ...string) error {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = struct{}{}
	}
	for k := range m {
		if _, ok := allowedSet[k]; !ok {
			return &query.EvalError{Code: query.ErrUnknownKey, Message: fmt.Sprintf("unknown key %q", k)}
		}
	}
	return nil
}

func stringField(m map[string]any, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return "", &query.EvalError{Code: query.ErrSchemaError, Message: fmt.Sprintf("missing required %q", key)}
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &query.EvalError{Code: query.ErrSchemaError, Message: fmt.Sprintf("%q must be a string", key)}
	}
	return s, nil
}

func intField(m map[string]any, key string, required bool) (int, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return 0, &query.EvalError{Code: query.ErrSchemaError, Message: fmt.Sprintf("missing required %q", key)}
		}
		return 0, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, &query.EvalError{Code: query.ErrSchemaError, Message: fmt.Sprintf("%q must be a number", key)}
	}
}

func boolField(m map[string]any, key string, required bool) (bool, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return false, &query.EvalError{Code: query.ErrSchemaError, Message: fmt.Sprintf("missing required %q", key)}
		}
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, &query.EvalError{Code: query.ErrSchemaError, Message: fmt.Sprintf("%q must be a boolean", key)}
	}
	return b, nil
}
