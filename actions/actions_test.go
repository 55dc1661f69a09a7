package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/starlitlog/dr-web-engine/query"
)

type recordingController struct {
	interactions []query.InteractKind
	waits        []query.WaitPredicate
	scripts      []string
	scriptVal    query.Value
	scriptErr    error
	interactErr  error
}

func (c *recordingController) Open(context.Context, string, int) error { return nil }
func (c *recordingController) CurrentURL() string                      { return "" }
func (c *recordingController) Query(context.Context, query.Expression, query.Node) (query.Value, error) {
	return query.Value{}, nil
}
func (c *recordingController) QueryScalar(context.Context, query.Expression, query.Node) (query.Value, error) {
	return query.Value{}, nil
}
func (c *recordingController) Interact(_ context.Context, kind query.InteractKind, _ query.Locator, _ query.InteractPayload, _ int) error {
	c.interactions = append(c.interactions, kind)
	return c.interactErr
}
func (c *recordingController) Wait(_ context.Context, pred query.WaitPredicate, _ int) error {
	c.waits = append(c.waits, pred)
	return nil
}
func (c *recordingController) RunScript(_ context.Context, code string, _ ...any) (query.Value, error) {
	c.scripts = append(c.scripts, code)
	return c.scriptVal, c.scriptErr
}
func (c *recordingController) Close() error { return nil }

func TestRun_ExecutesActionsInOrder(t *testing.T) {
	ctrl := &recordingController{}
	acts := []query.Action{
		{Kind: query.ActionClick, Locator: query.Locator{CSS: ".a"}},
		{Kind: query.ActionScroll},
		{Kind: query.ActionFill, Locator: query.Locator{CSS: ".b"}, Value: "hi"},
	}
	if err := Run(context.Background(), ctrl, acts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []query.InteractKind{query.InteractClick, query.InteractScroll, query.InteractFill}
	if len(ctrl.interactions) != len(want) {
		t.Fatalf("got %v interactions, want %v", ctrl.interactions, want)
	}
	for i, k := range want {
		if ctrl.interactions[i] != k {
			t.Fatalf("interaction %d = %q, want %q", i, ctrl.interactions[i], k)
		}
	}
}

func TestRun_StopsAtFirstFailingAction(t *testing.T) {
	ctrl := &recordingController{interactErr: errors.New("boom")}
	acts := []query.Action{
		{Kind: query.ActionClick, Locator: query.Locator{CSS: ".a"}},
		{Kind: query.ActionClick, Locator: query.Locator{CSS: ".b"}},
	}
	err := Run(context.Background(), ctrl, acts)
	if err == nil {
		t.Fatal("expected an error from the first action to abort the run")
	}
	if len(ctrl.interactions) != 1 {
		t.Fatalf("expected only the first action to run, got %d", len(ctrl.interactions))
	}
}

func TestRun_ClickWithoutLocatorFails(t *testing.T) {
	ctrl := &recordingController{}
	err := Run(context.Background(), ctrl, []query.Action{{Kind: query.ActionClick}})
	if err == nil {
		t.Fatal("expected click without a locator to fail")
	}
}

func TestRun_FillWithoutValueFails(t *testing.T) {
	ctrl := &recordingController{}
	err := Run(context.Background(), ctrl, []query.Action{{Kind: query.ActionFill, Locator: query.Locator{CSS: ".a"}}})
	if err == nil {
		t.Fatal("expected fill without a value to fail")
	}
}

func TestRun_ScrollDefaultsDirectionDown(t *testing.T) {
	ctrl := &recordingController{}
	if err := Run(context.Background(), ctrl, []query.Action{{Kind: query.ActionScroll}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ctrl.interactions) != 1 || ctrl.interactions[0] != query.InteractScroll {
		t.Fatalf("expected a scroll interaction, got %v", ctrl.interactions)
	}
}

func TestRun_WaitDefaultsUntilTimeout(t *testing.T) {
	ctrl := &recordingController{}
	if err := Run(context.Background(), ctrl, []query.Action{{Kind: query.ActionWait}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ctrl.waits) != 1 || ctrl.waits[0].Until != query.WaitTimeout {
		t.Fatalf("expected a timeout wait predicate, got %v", ctrl.waits)
	}
}

func TestRun_ScriptWithoutCodeFails(t *testing.T) {
	ctrl := &recordingController{}
	err := Run(context.Background(), ctrl, []query.Action{{Kind: query.ActionScript}})
	if err == nil {
		t.Fatal("expected script without code to fail")
	}
}

func TestRun_ScriptRunsAgainstController(t *testing.T) {
	ctrl := &recordingController{scriptVal: query.Value{Kind: query.ValueBoolean, Bool: true}}
	err := Run(context.Background(), ctrl, []query.Action{{Kind: query.ActionScript, Code: "document.title"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ctrl.scripts) != 1 || ctrl.scripts[0] != "document.title" {
		t.Fatalf("expected the script code to reach the controller, got %v", ctrl.scripts)
	}
}

func TestRun_UnknownActionKindFails(t *testing.T) {
	ctrl := &recordingController{}
	err := Run(context.Background(), ctrl, []query.Action{{Kind: "teleport"}})
	if err == nil {
		t.Fatal("expected an unknown action kind to fail")
	}
}

func TestEffectiveTimeout_DefaultsTo10Seconds(t *testing.T) {
	a := query.Action{}
	if got := a.EffectiveTimeout(); got != 10_000 {
		t.Fatalf("EffectiveTimeout() = %d, want 10000", got)
	}
	a.TimeoutMS = 500
	if got := a.EffectiveTimeout(); got != 500 {
		t.Fatalf("EffectiveTimeout() = %d, want 500", got)
	}
}
