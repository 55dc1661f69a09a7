// Package registry implements the step processor registry (C5): two-level
// dispatch by (kind, priority), with a frozen, stable-order index so
// dispatch is deterministic and safe to read concurrently once evaluation
// begins (§5: "registry mutation is allowed only before a query begins;
// during evaluation the registry is read-only"). Processors register in
// priority order before the first evaluation and the registry is frozen
// from then on; dispatch picks exactly one processor per step kind rather
// than racing multiple candidates.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/starlitlog/dr-web-engine/query"
)

// Processor executes one step kind (C6's common contract).
type Processor interface {
	// Name identifies the processor for diagnostics and Unregister.
	Name() string
	// Kinds lists the step kinds this processor declares it can handle.
	Kinds() []string
	// Priority orders processors within a kind; lower wins. Ties break by
	// registration order.
	Priority() int
	// CanHandle lets a processor refine matching beyond its declared kinds
	// (e.g. two processors sharing a kind, discriminated by a step field).
	CanHandle(step query.Step) bool
	// Execute runs the step and returns its contribution to the record
	// tree (§3.8): a record, a list of records, or a scalar.
	Execute(ctx context.Context, ec query.EvalContext, controller query.PageController, step query.Step) ([]any, error)
}

type entry struct {
	proc  Processor
	order int
}

// Registry holds registered processors and a frozen per-kind priority index.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	frozen  bool
	byKind  map[string][]entry
}

// New returns an empty, mutable registry.
func New() *Registry {
	return &Registry{byKind: map[string][]entry{}}
}

// Register adds a processor. It rejects a duplicate (kind, priority) pair
// for any kind the processor declares unless replace is true, and rejects
// registration after the registry has been frozen (§4.5, §5).
func (r *Registry) Register(p Processor, replace bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("registry: cannot register %q: registry is frozen for evaluation", p.Name())
	}
	if len(p.Kinds()) == 0 {
		return fmt.Errorf("registry: processor %q declares no kinds", p.Name())
	}
	for _, k := range p.Kinds() {
		for _, e := range r.entries {
			if !hasKind(e.proc, k) {
				continue
			}
			if e.proc.Priority() == p.Priority() && !replace {
				return fmt.Errorf("registry: duplicate (kind=%s, priority=%d): %q already registered", k, p.Priority(), e.proc.Name())
			}
		}
	}
	r.entries = append(r.entries, entry{proc: p, order: len(r.entries)})
	return nil
}

// Unregister removes a processor by name; it is idempotent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return
	}
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.proc.Name() != name {
			kept = append(kept, e)
		}
	}
	r.entries = kept
}

// Freeze builds the per-kind priority index and marks the registry
// read-only, to be called once at query start (§5).
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return
	}
	byKind := map[string][]entry{}
	for _, e := range r.entries {
		for _, k := range e.proc.Kinds() {
			byKind[k] = append(byKind[k], e)
		}
	}
	for k := range byKind {
		list := byKind[k]
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].proc.Priority() != list[j].proc.Priority() {
				return list[i].proc.Priority() < list[j].proc.Priority()
			}
			return list[i].order < list[j].order
		})
		byKind[k] = list
	}
	r.byKind = byKind
	r.frozen = true
}

// Find returns the highest-priority processor whose declared kinds include
// step.StepKind() and whose CanHandle(step) returns true, or nil if none
// matches (the caller raises NoProcessor, §4.5).
func (r *Registry) Find(step query.Step) Processor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.byKind[step.StepKind()] {
		if e.proc.CanHandle(step) {
			return e.proc
		}
	}
	return nil
}

func hasKind(p Processor, kind string) bool {
	for _, k := range p.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}
