package processors

import (
	"context"
	"testing"

	"github.com/starlitlog/dr-web-engine/query"
	"github.com/starlitlog/dr-web-engine/registry"
)

func newConditionalRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	if err := reg.Register(NewExtractStepProcessor(nil), false); err != nil {
		t.Fatalf("register extract: %v", err)
	}
	reg.Register(NewConditionalStepProcessor(reg), false)
	reg.Freeze()
	return reg
}

func TestConditionalStepProcessor_RunsThenBranchWhenConditionHolds(t *testing.T) {
	ctrl := &fakeController{byExpr: map[query.Expression]query.Value{
		"//div.sale": {Kind: query.ValueNodes, Nodes: []query.Node{htmlNode("sale")}},
		"//h1":       {Kind: query.ValueNodes, Nodes: []query.Node{htmlNode("On Sale")}},
	}}
	reg := newConditionalRegistry(t)
	p := NewConditionalStepProcessor(reg)
	step := query.ConditionalStep{
		Condition: query.Condition{Kind: query.ConditionExists, Locator: query.Locator{XPath: "//div.sale"}},
		Then:      []query.Step{query.ExtractStep{XPath: "//h1"}},
		Else:      []query.Step{query.ExtractStep{XPath: "//h2"}},
	}
	records, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), ctrl, step)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected the then branch's single anchor to produce 1 record, got %d", len(records))
	}
}

func TestConditionalStepProcessor_RunsElseBranchWhenConditionFails(t *testing.T) {
	ctrl := &fakeController{byExpr: map[query.Expression]query.Value{
		"//div.sale": {Kind: query.ValueNodes},
		"//h2":       {Kind: query.ValueNodes, Nodes: []query.Node{htmlNode("Regular"), htmlNode("Price")}},
	}}
	reg := newConditionalRegistry(t)
	p := NewConditionalStepProcessor(reg)
	step := query.ConditionalStep{
		Condition: query.Condition{Kind: query.ConditionExists, Locator: query.Locator{XPath: "//div.sale"}},
		Then:      []query.Step{query.ExtractStep{XPath: "//h1"}},
		Else:      []query.Step{query.ExtractStep{XPath: "//h2"}},
	}
	records, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), ctrl, step)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected the else branch's 2 anchors to produce 2 records, got %d", len(records))
	}
}

func TestConditionalStepProcessor_EmptyBranchYieldsNil(t *testing.T) {
	ctrl := &fakeController{byExpr: map[query.Expression]query.Value{"//div.sale": {Kind: query.ValueNodes}}}
	reg := newConditionalRegistry(t)
	p := NewConditionalStepProcessor(reg)
	step := query.ConditionalStep{
		Condition: query.Condition{Kind: query.ConditionExists, Locator: query.Locator{XPath: "//div.sale"}},
		Then:      []query.Step{query.ExtractStep{XPath: "//h1"}},
	}
	records, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), ctrl, step)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if records != nil {
		t.Fatalf("expected nil records for a taken-but-empty branch, got %#v", records)
	}
}

func TestConditionalStepProcessor_WrongStepTypeErrors(t *testing.T) {
	reg := newConditionalRegistry(t)
	p := NewConditionalStepProcessor(reg)
	_, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), &fakeController{}, query.ScriptStep{})
	if err == nil {
		t.Fatal("expected a schema error for the wrong step type")
	}
}
