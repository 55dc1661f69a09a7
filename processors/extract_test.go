package processors

import (
	"context"
	"testing"

	"github.com/starlitlog/dr-web-engine/query"
)

type htmlNode string

func (n htmlNode) Text() string               { return string(n) }
func (n htmlNode) OuterHTML() string          { return string(n) }
func (n htmlNode) InnerHTML() string          { return string(n) }
func (n htmlNode) Attr(string) (string, bool) { return "", false }

type fakeController struct {
	byExpr  map[query.Expression]query.Value
	opened  []string
	queried []query.Expression
}

func (c *fakeController) Open(_ context.Context, url string, _ int) error {
	c.opened = append(c.opened, url)
	return nil
}
func (c *fakeController) CurrentURL() string { return "" }
func (c *fakeController) Query(_ context.Context, expr query.Expression, _ query.Node) (query.Value, error) {
	c.queried = append(c.queried, expr)
	return c.byExpr[expr], nil
}
func (c *fakeController) QueryScalar(ctx context.Context, expr query.Expression, anchor query.Node) (query.Value, error) {
	return c.Query(ctx, expr, anchor)
}
func (c *fakeController) Interact(context.Context, query.InteractKind, query.Locator, query.InteractPayload, int) error {
	return nil
}
func (c *fakeController) Wait(context.Context, query.WaitPredicate, int) error { return nil }
func (c *fakeController) RunScript(context.Context, string, ...any) (query.Value, error) {
	return query.Value{}, nil
}
func (c *fakeController) Close() error { return nil }

type fakeFollower struct {
	records []any
	err     error
	calls   int
}

func (f *fakeFollower) Follow(context.Context, query.EvalContext, query.PageController, query.Node, query.FollowSpec) ([]any, error) {
	f.calls++
	return f.records, f.err
}

func TestExtractStepProcessor_ExtractsFieldsPerAnchor(t *testing.T) {
	ctrl := &fakeController{byExpr: map[query.Expression]query.Value{
		"//li": {Kind: query.ValueNodes, Nodes: []query.Node{htmlNode("a"), htmlNode("b")}},
	}}
	p := NewExtractStepProcessor(nil)
	step := query.ExtractStep{XPath: "//li"}
	records, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), ctrl, step)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 1 record per anchor, got %d", len(records))
	}
}

func TestExtractStepProcessor_NoAnchorsYieldsEmptySlice(t *testing.T) {
	ctrl := &fakeController{byExpr: map[query.Expression]query.Value{
		"//li": {Kind: query.ValueNodes},
	}}
	p := NewExtractStepProcessor(nil)
	records, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), ctrl, query.ExtractStep{XPath: "//li"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestExtractStepProcessor_WrongStepTypeErrors(t *testing.T) {
	p := NewExtractStepProcessor(nil)
	_, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), &fakeController{}, query.ScriptStep{})
	if err == nil {
		t.Fatal("expected a schema error for the wrong step type")
	}
}

func TestExtractStepProcessor_MissingFollowerSoftFails(t *testing.T) {
	ctrl := &fakeController{byExpr: map[query.Expression]query.Value{
		"//li": {Kind: query.ValueNodes, Nodes: []query.Node{htmlNode("a")}},
	}}
	p := NewExtractStepProcessor(nil)
	step := query.ExtractStep{XPath: "//li", Follow: &query.FollowSpec{Name: "next", LinkExpr: "//a"}}
	ec := query.NewEvalContext("example.com", false, nil)
	records, err := p.Execute(context.Background(), ec, ctrl, step)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected the base record to still be produced, got %d", len(records))
	}
	if len(ec.Diagnostics.All()) != 1 {
		t.Fatalf("expected one diagnostic about the missing follower, got %d", len(ec.Diagnostics.All()))
	}
}

func TestExtractStepProcessor_FollowsAndAttachesResults(t *testing.T) {
	ctrl := &fakeController{byExpr: map[query.Expression]query.Value{
		"//li": {Kind: query.ValueNodes, Nodes: []query.Node{htmlNode("a")}},
	}}
	follower := &fakeFollower{records: []any{"followed-record"}}
	p := NewExtractStepProcessor(follower)
	step := query.ExtractStep{XPath: "//li", Follow: &query.FollowSpec{Name: "next", LinkExpr: "//a"}}
	records, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), ctrl, step)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if follower.calls != 1 {
		t.Fatalf("expected the follower to be invoked once, got %d", follower.calls)
	}
	rec := records[0].(map[string]any)
	if _, ok := rec["next"]; !ok {
		t.Fatalf("expected a next key, got %#v", rec)
	}
}

func TestExtractStepProcessor_UnnamedFollowUsesDefaultKey(t *testing.T) {
	ctrl := &fakeController{byExpr: map[query.Expression]query.Value{
		"//li": {Kind: query.ValueNodes, Nodes: []query.Node{htmlNode("a")}},
	}}
	follower := &fakeFollower{records: []any{"followed-record"}}
	p := NewExtractStepProcessor(follower)
	step := query.ExtractStep{XPath: "//li", Follow: &query.FollowSpec{LinkExpr: "//a"}}
	records, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), ctrl, step)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rec := records[0].(map[string]any)
	if _, ok := rec["follow"]; !ok {
		t.Fatalf("expected a follow key, got %#v", rec)
	}
}

func TestExtractStepProcessor_RunsPreExtractionActions(t *testing.T) {
	ctrl := &fakeController{byExpr: map[query.Expression]query.Value{
		"//li": {Kind: query.ValueNodes, Nodes: []query.Node{htmlNode("a")}},
	}}
	p := NewExtractStepProcessor(nil)
	step := query.ExtractStep{
		XPath:   "//li",
		Actions: []query.Action{{Kind: query.ActionScroll}},
	}
	_, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), ctrl, step)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
}
