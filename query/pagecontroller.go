package query

import (
	"context"
	"strconv"
)

// ValueKind discriminates the shape a selector evaluation yielded (§3.3).
type ValueKind string

const (
	ValueNodes   ValueKind = "nodes"
	ValueString  ValueKind = "string"
	ValueNumber  ValueKind = "number"
	ValueBoolean ValueKind = "boolean"
)

// Node is a DOM node handle as seen through a PageController. Drivers
// implement it over whatever native tree they hold (*rod.Element,
// *html.Node, ...); everything above C1 talks to nodes only through this
// interface, never through a driver-specific type assertion.
type Node interface {
	// Text returns the node's rendered text content.
	Text() string
	// Attr returns the named attribute's value, or ok=false if absent.
	Attr(name string) (string, bool)
	// OuterHTML returns the node's serialized markup, including itself.
	OuterHTML() string
	// InnerHTML returns the node's serialized children, excluding itself.
	InnerHTML() string
}

// Value is the result of evaluating an Expression (§3.3, §4.1). Exactly one
// of the fields is meaningful, selected by Kind.
type Value struct {
	Kind  ValueKind
	Nodes []Node
	Str   string
	Num   float64
	Bool  bool
}

// Strings renders each element of the value as a string in DOM/positional
// order. The follow engine and the pagination driver use it to turn a link
// expression's yield into URL strings.
func (v Value) Strings() []string {
	switch v.Kind {
	case ValueNodes:
		out := make([]string, 0, len(v.Nodes))
		for _, n := range v.Nodes {
			out = append(out, n.Text())
		}
		return out
	case ValueString:
		return []string{v.Str}
	case ValueNumber:
		return []string{formatNumber(v.Num)}
	case ValueBoolean:
		if v.Bool {
			return []string{"true"}
		}
		return []string{"false"}
	}
	return nil
}

// Len reports how many elements this value carries (node count, or 1 for a
// scalar), used by the condition evaluator's count predicates (§3.6).
func (v Value) Len() int {
	if v.Kind == ValueNodes {
		return len(v.Nodes)
	}
	return 1
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// InteractKind enumerates the operations PageController.Interact accepts.
type InteractKind string

const (
	InteractClick  InteractKind = "click"
	InteractScroll InteractKind = "scroll"
	InteractFill   InteractKind = "fill"
	InteractHover  InteractKind = "hover"
)

// InteractPayload carries the kind-specific attributes for Interact calls.
type InteractPayload struct {
	Value     string // fill
	Direction string // scroll
	Pixels    int    // scroll
}

// WaitPredicate describes what PageController.Wait blocks on.
type WaitPredicate struct {
	Until   WaitUntil
	Locator Locator
	Text    string
}

// PageController is the capability boundary the evaluator depends on
// (§6.1). Any driver providing these operations suffices; the core never
// constructs one, only consumes an instance handed to it at evaluation
// start and releases it on every exit path.
//
// anchor, where present, scopes the expression to a node (a "./"-relative
// expression); nil means evaluate against the document root.
type PageController interface {
	Open(ctx context.Context, url string, timeoutMS int) error
	CurrentURL() string
	Query(ctx context.Context, expr Expression, anchor Node) (Value, error)
	QueryScalar(ctx context.Context, expr Expression, anchor Node) (Value, error)
	Interact(ctx context.Context, kind InteractKind, loc Locator, payload InteractPayload, timeoutMS int) error
	Wait(ctx context.Context, pred WaitPredicate, timeoutMS int) error
	RunScript(ctx context.Context, code string, args ...any) (Value, error)
	Close() error
}
