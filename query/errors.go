package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Error codes, following the taxonomy in §7. Query-load errors (UnknownKey,
// SchemaError) are raised by the queryfile package, not this one; they share
// this code space so callers can switch on a single string set.
const (
	ErrUnknownKey            = "UNKNOWN_KEY"
	ErrSchemaError           = "SCHEMA_ERROR"
	ErrExpressionSyntaxError = "EXPRESSION_SYNTAX_ERROR"
	ErrTargetNotFound        = "TARGET_NOT_FOUND"
	ErrTargetNotInteractable = "TARGET_NOT_INTERACTABLE"
	ErrActionTimeout         = "ACTION_TIMEOUT"
	ErrNavigationError       = "NAVIGATION_ERROR"
	ErrScriptError           = "SCRIPT_ERROR"
	ErrNoProcessor           = "NO_PROCESSOR"
	ErrCancelled             = "CANCELLED"
	ErrFatal                 = "FATAL_ERROR"
)

// fatalCodes are the codes that abort the whole query rather than just the
// step that raised them (§7's propagation policy).
var fatalCodes = map[string]bool{
	ErrUnknownKey:  true,
	ErrSchemaError: true,
	ErrFatal:       true,
}

// IsFatal reports whether code aborts the whole query per §7.
func IsFatal(code string) bool { return fatalCodes[code] }

// EvalError is the concrete error type threaded through the evaluator. It
// carries a stable taxonomy code, the path of step indices from the root
// (§7's "location" requirement), a human message, and an optionally wrapped
// underlying error.
type EvalError struct {
	Code    string
	Path    []int
	Message string
	Err     error
}

func (e *EvalError) Error() string {
	loc := e.StepPath()
	if e.Err != nil {
		return fmt.Sprintf("%s at %s: %s: %v", e.Code, loc, e.Message, e.Err)
	}
	return fmt.Sprintf("%s at %s: %s", e.Code, loc, e.Message)
}

func (e *EvalError) Unwrap() error { return e.Err }

// StepPath renders the step-index path as a dotted string, e.g. "0.2.1".
func (e *EvalError) StepPath() string {
	if len(e.Path) == 0 {
		return "<root>"
	}
	parts := make([]string, len(e.Path))
	for i, p := range e.Path {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}

// NewEvalError constructs an EvalError, copying path so callers may safely
// reuse and extend their own path slice afterward.
func NewEvalError(code string, path []int, message string, err error) *EvalError {
	p := make([]int, len(path))
	copy(p, path)
	return &EvalError{Code: code, Path: p, Message: message, Err: err}
}

// WithStep returns a copy of path with index appended, for descending one
// level into a step list.
func WithStep(path []int, index int) []int {
	p := make([]int, len(path)+1)
	copy(p, path)
	p[len(path)] = index
	return p
}
