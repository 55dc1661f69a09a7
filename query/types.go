// Package query defines the data model evaluated by the DR Web Engine
// interpreter: the tagged Step union, expressions, actions, conditions,
// and the record tree produced by running a Query against a page.
package query

import "encoding/json"

// Expression is a string in a location language (XPath, the canonical form,
// or CSS). Relative expressions are evaluated against an anchor node;
// absolute expressions against the document root.
type Expression string

// Empty reports whether the expression carries no text.
func (e Expression) Empty() bool { return e == "" }

// Query is the top-level, immutable program the evaluator runs.
type Query struct {
	StartURL   string      `json:"start_url"`
	Steps      []Step      `json:"steps"`
	Pagination *Pagination `json:"pagination,omitempty"`
	PreActions []Action    `json:"pre_actions,omitempty"`
}

// Pagination configures the top-level-only pagination driver (C8).
type Pagination struct {
	LinkExpr Expression `json:"link_expr"`
	MaxPages int        `json:"max_pages"`
}

// Step is the tagged union of everything the evaluator can dispatch. Every
// concrete step type declares a stable Kind used by the registry (C5) to
// pick a processor. New step kinds are added by plugins implementing this
// interface, never by extending a switch inside the core.
type Step interface {
	StepKind() string
}

// ExtractStep anchors on a node set and produces one record per anchor.
type ExtractStep struct {
	XPath   Expression           `json:"xpath"`
	Name    string               `json:"name,omitempty"`
	Fields  map[string]FieldSpec `json:"fields,omitempty"`
	Follow  *FollowSpec          `json:"follow,omitempty"`
	Actions []Action             `json:"actions,omitempty"`
}

func (ExtractStep) StepKind() string { return "extract" }

// ConditionalStep branches on a Condition (C4).
type ConditionalStep struct {
	Condition Condition `json:"if"`
	Then      []Step    `json:"then"`
	Else      []Step    `json:"else,omitempty"`
}

func (ConditionalStep) StepKind() string { return "conditional" }

// FollowStep delegates entirely to the Kleene-star navigator (C7).
type FollowStep struct {
	Spec FollowSpec `json:"follow"`
}

func (FollowStep) StepKind() string { return "follow" }

// ScriptStep runs an opaque script in the page context.
type ScriptStep struct {
	Code       string `json:"script"`
	WaitFor    string `json:"wait_for,omitempty"`
	TimeoutMS  int    `json:"timeout_ms,omitempty"`
	ReturnJSON bool   `json:"return_json,omitempty"`
}

func (ScriptStep) StepKind() string { return "script" }

// FieldSpec is a field-name's extraction expression plus an optional output
// format transform (§3.3[FULL]). A bare JSON string is equivalent to
// {"expr": "...", "format": "text"}.
type FieldSpec struct {
	Expr   Expression `json:"expr"`
	Format string     `json:"format,omitempty"` // "text" (default), "markdown", "html"
}

// UnmarshalJSON accepts either a plain string or the {expr, format} object form.
func (f *FieldSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Expr = Expression(s)
		f.Format = "text"
		return nil
	}
	type alias FieldSpec
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Format == "" {
		a.Format = "text"
	}
	*f = FieldSpec(a)
	return nil
}

// FollowSpec is the Kleene-star navigation operator (§3.4, §4.7).
type FollowSpec struct {
	LinkExpr           Expression `json:"xpath"`
	Steps              []Step     `json:"steps"`
	MaxDepth           int        `json:"max_depth,omitempty"`
	DetectCycles       *bool      `json:"detect_cycles,omitempty"`
	FollowExternal     bool       `json:"follow_external,omitempty"`
	SkipNearDuplicates bool       `json:"skip_near_duplicates,omitempty"`
	Name               string     `json:"name,omitempty"`
	TagSourceURL       bool       `json:"tag_source_url,omitempty"`
}

// EffectiveMaxDepth applies the documented default (3).
func (f FollowSpec) EffectiveMaxDepth() int {
	if f.MaxDepth <= 0 {
		return 3
	}
	return f.MaxDepth
}

// EffectiveDetectCycles applies the documented default (true).
func (f FollowSpec) EffectiveDetectCycles() bool {
	if f.DetectCycles == nil {
		return true
	}
	return *f.DetectCycles
}

// Locator is at most one of XPath or CSS; Expr returns whichever is set.
type Locator struct {
	XPath Expression `json:"xpath,omitempty"`
	CSS   Expression `json:"selector,omitempty"`
}

// Expr returns the configured locator expression, preferring XPath.
func (l Locator) Expr() Expression {
	if l.XPath != "" {
		return l.XPath
	}
	return l.CSS
}

// Empty reports whether neither XPath nor CSS was supplied.
func (l Locator) Empty() bool { return l.XPath == "" && l.CSS == "" }

// ActionKind enumerates the browser action vocabulary (§3.5).
type ActionKind string

const (
	ActionClick  ActionKind = "click"
	ActionScroll ActionKind = "scroll"
	ActionFill   ActionKind = "fill"
	ActionHover  ActionKind = "hover"
	ActionWait   ActionKind = "wait"
	ActionScript ActionKind = "script"
)

// WaitUntil enumerates the predicate kinds a wait action blocks on.
type WaitUntil string

const (
	WaitElement     WaitUntil = "element"
	WaitNoElement   WaitUntil = "no-element"
	WaitText        WaitUntil = "text"
	WaitNetworkIdle WaitUntil = "network-idle"
	WaitTimeout     WaitUntil = "timeout"
)

// Action mutates browser state; it carries every kind's attributes in one
// struct since the surface schema (§6.2) is a closed, flat key set per kind.
type Action struct {
	Kind      ActionKind `json:"kind"`
	Locator   `json:"-"`
	Direction string `json:"direction,omitempty"` // scroll: up|down
	Pixels    int        `json:"pixels,omitempty"`    // scroll
	Value     string     `json:"value,omitempty"`     // fill
	Until     WaitUntil  `json:"until,omitempty"`     // wait
	Text      string     `json:"text,omitempty"`      // wait(text)
	TimeoutMS int        `json:"timeout_ms,omitempty"`
	Code      string     `json:"code,omitempty"`    // script
	WaitFor   string     `json:"wait_for,omitempty"` // script poll predicate (JS expression)
}

// EffectiveTimeout applies the documented default (10_000ms).
func (a Action) EffectiveTimeout() int {
	if a.TimeoutMS > 0 {
		return a.TimeoutMS
	}
	return 10_000
}

// ConditionKind enumerates the condition vocabulary (§3.6).
type ConditionKind string

const (
	ConditionExists    ConditionKind = "exists"
	ConditionNotExists ConditionKind = "not_exists"
	ConditionContains  ConditionKind = "contains"
	ConditionCountEq   ConditionKind = "count_eq"
	ConditionCountMin  ConditionKind = "count_min"
	ConditionCountMax  ConditionKind = "count_max"
)

// Condition is a boolean predicate over the current page (C4).
type Condition struct {
	Kind ConditionKind `json:"-"`
	Locator
	Text  string `json:"text,omitempty"`
	Count int    `json:"count,omitempty"`
}
