package query

import (
	"log/slog"
	"sync"
)

// VisitedSet is the branch-scoped, immutable canonical-URL set carried by
// the evaluation context (§3.7, §4.7). Add returns a new set built on a
// copy of the old one's map, so sibling branches that extend the same set
// never observe each other's additions.
type VisitedSet struct {
	urls map[string]struct{}
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() VisitedSet {
	return VisitedSet{urls: map[string]struct{}{}}
}

// Has reports whether canonical is already in the set.
func (v VisitedSet) Has(canonical string) bool {
	_, ok := v.urls[canonical]
	return ok
}

// Add returns a new VisitedSet containing canonical plus every URL already
// in v. v itself is left unmodified, which is what makes a FollowStep's
// sibling branches independent (§4.7's scoping choice).
func (v VisitedSet) Add(canonical string) VisitedSet {
	next := make(map[string]struct{}, len(v.urls)+1)
	for u := range v.urls {
		next[u] = struct{}{}
	}
	next[canonical] = struct{}{}
	return VisitedSet{urls: next}
}

// Diagnostic is a per-step soft-fail record (§7's "user-visible failure
// behavior": the evaluator returns accumulated records together with
// diagnostics describing each non-fatal failure).
type Diagnostic struct {
	Code    string
	Path    []int
	Message string
}

// Diagnostics is the shared, append-only sink every EvalContext in one
// evaluation points at. It is safe for the single-threaded evaluator to use
// without locking during normal operation; the mutex only guards against a
// plugin processor that happens to run a background goroutine reporting
// late (§5's "plugins must not spawn concurrent interactions" still holds
// for the page itself, but diagnostics are harmless to serialize).
type Diagnostics struct {
	mu      sync.Mutex
	entries []Diagnostic
}

func (d *Diagnostics) Add(entry Diagnostic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, entry)
}

func (d *Diagnostics) All() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Diagnostic, len(d.entries))
	copy(out, d.entries)
	return out
}

// EvalContext is created once per Query evaluation and passed by value down
// the step tree (§3.7). Diagnostics/Logger are shared pointers so
// every branch observes the same accumulating state; Depth/Visited/Path are
// plain fields so each branch's copy evolves independently, which is what
// gives follow recursion its branch-scoped semantics (§4.7) without any
// explicit push/pop bookkeeping.
type EvalContext struct {
	StartHost string
	Depth     int
	Visited   VisitedSet
	Path      []int
	Strict    bool

	Diagnostics *Diagnostics
	Logger      *slog.Logger
}

// NewEvalContext builds the root context for one Query evaluation.
func NewEvalContext(startHost string, strict bool, logger *slog.Logger) EvalContext {
	if logger == nil {
		logger = slog.Default()
	}
	return EvalContext{
		StartHost:   startHost,
		Depth:       0,
		Visited:     NewVisitedSet(),
		Path:        nil,
		Strict:      strict,
		Diagnostics: &Diagnostics{},
		Logger:      logger,
	}
}

// Child returns the context for one followed branch: depth+1 and an
// extended, independent visited set (§4.7 step 5).
func (c EvalContext) Child(canonicalURL string) EvalContext {
	c.Depth++
	c.Visited = c.Visited.Add(canonicalURL)
	return c
}

// AtStep returns a copy of c with index appended to the step path, used when
// descending into a step list (for diagnostic locations, §7).
func (c EvalContext) AtStep(index int) EvalContext {
	c.Path = WithStep(c.Path, index)
	return c
}

// ReportSoftFail records a non-fatal step failure at the current path.
func (c EvalContext) ReportSoftFail(code, message string) {
	c.Diagnostics.Add(Diagnostic{Code: code, Path: c.Path, Message: message})
	c.Logger.Warn("step soft-failed", "code", code, "path", (&EvalError{Path: c.Path}).StepPath(), "message", message)
}
