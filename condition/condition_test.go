package condition

import (
	"context"
	"testing"

	"github.com/starlitlog/dr-web-engine/query"
)

type textNode string

func (n textNode) Text() string               { return string(n) }
func (n textNode) OuterHTML() string          { return string(n) }
func (n textNode) InnerHTML() string          { return string(n) }
func (n textNode) Attr(string) (string, bool) { return "", false }

type fakeController struct {
	values map[query.Expression]query.Value
}

func (c *fakeController) Open(context.Context, string, int) error { return nil }
func (c *fakeController) CurrentURL() string                      { return "" }
func (c *fakeController) Query(_ context.Context, expr query.Expression, _ query.Node) (query.Value, error) {
	return c.values[expr], nil
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

func TestEvaluate_ExistsTrueWhenNodesFound(t *testing.T) {
	ctrl := &fakeController{values: map[query.Expression]query.Value{
		"//div.price": {Kind: query.ValueNodes, Nodes: []query.Node{textNode("$5")}},
	}}
	cond := query.Condition{Kind: query.ConditionExists, Locator: query.Locator{XPath: "//div.price"}}
	ok, err := Evaluate(context.Background(), ctrl, cond)
	if err != nil || !ok {
		t.Fatalf("Evaluate() = %v, %v; want true, nil", ok, err)
	}
}

func TestEvaluate_ExistsFalseWithEmptyLocator(t *testing.T) {
	ctrl := &fakeController{values: map[query.Expression]query.Value{}}
	cond := query.Condition{Kind: query.ConditionExists}
	ok, err := Evaluate(context.Background(), ctrl, cond)
	if err != nil || ok {
		t.Fatalf("Evaluate() = %v, %v; want false, nil", ok, err)
	}
}

func TestEvaluate_NotExistsTrueWhenNoNodes(t *testing.T) {
	ctrl := &fakeController{values: map[query.Expression]query.Value{
		"//div.price": {Kind: query.ValueNodes},
	}}
	cond := query.Condition{Kind: query.ConditionNotExists, Locator: query.Locator{XPath: "//div.price"}}
	ok, err := Evaluate(context.Background(), ctrl, cond)
	if err != nil || !ok {
		t.Fatalf("Evaluate() = %v, %v; want true, nil", ok, err)
	}
}

func TestEvaluate_ContainsSearchesBodyWhenLocatorEmpty(t *testing.T) {
	ctrl := &fakeController{values: map[query.Expression]query.Value{
		"//body": {Kind: query.ValueNodes, Nodes: []query.Node{textNode("out of stock")}},
	}}
	cond := query.Condition{Kind: query.ConditionContains, Text: "out of stock"}
	ok, err := Evaluate(context.Background(), ctrl, cond)
	if err != nil || !ok {
		t.Fatalf("Evaluate() = %v, %v; want true, nil", ok, err)
	}
}

func TestEvaluate_ContainsFalseWhenTextAbsent(t *testing.T) {
	ctrl := &fakeController{values: map[query.Expression]query.Value{
		"//body": {Kind: query.ValueNodes, Nodes: []query.Node{textNode("in stock")}},
	}}
	cond := query.Condition{Kind: query.ConditionContains, Text: "out of stock"}
	ok, err := Evaluate(context.Background(), ctrl, cond)
	if err != nil || ok {
		t.Fatalf("Evaluate() = %v, %v; want false, nil", ok, err)
	}
}

func TestEvaluate_CountEqMatchesExactCount(t *testing.T) {
	ctrl := &fakeController{values: map[query.Expression]query.Value{
		"//li": {Kind: query.ValueNodes, Nodes: []query.Node{textNode("a"), textNode("b")}},
	}}
	cond := query.Condition{Kind: query.ConditionCountEq, Locator: query.Locator{XPath: "//li"}, Count: 2}
	ok, err := Evaluate(context.Background(), ctrl, cond)
	if err != nil || !ok {
		t.Fatalf("Evaluate() = %v, %v; want true, nil", ok, err)
	}
}

func TestEvaluate_CountMinAndCountMax(t *testing.T) {
	ctrl := &fakeController{values: map[query.Expression]query.Value{
		"//li": {Kind: query.ValueNodes, Nodes: []query.Node{textNode("a"), textNode("b"), textNode("c")}},
	}}
	min := query.Condition{Kind: query.ConditionCountMin, Locator: query.Locator{XPath: "//li"}, Count: 2}
	if ok, err := Evaluate(context.Background(), ctrl, min); err != nil || !ok {
		t.Fatalf("count_min: Evaluate() = %v, %v; want true, nil", ok, err)
	}
	max := query.Condition{Kind: query.ConditionCountMax, Locator: query.Locator{XPath: "//li"}, Count: 2}
	if ok, err := Evaluate(context.Background(), ctrl, max); err != nil || ok {
		t.Fatalf("count_max: Evaluate() = %v, %v; want false, nil", ok, err)
	}
}

func TestEvaluate_UnknownKindErrors(t *testing.T) {
	ctrl := &fakeController{}
	_, err := Evaluate(context.Background(), ctrl, query.Condition{Kind: "bogus"})
	if err == nil {
		t.Fatal("expected an unknown condition kind to error")
	}
}
