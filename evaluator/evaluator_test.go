package evaluator

import (
	"errors"
	"testing"

	"github.com/starlitlog/dr-web-engine/query"
)

func TestRequiresBrowser_PlainExtractDoesNotRequireBrowser(t *testing.T) {
	q := &query.Query{Steps: []query.Step{query.ExtractStep{XPath: "//div"}}}
	if requiresBrowser(q) {
		t.Fatal("expected a plain extract step to not require the browser")
	}
}

func TestRequiresBrowser_PreActionsRequireBrowser(t *testing.T) {
	q := &query.Query{PreActions: []query.Action{{Kind: query.ActionClick, Locator: query.Locator{CSS: ".a"}}}}
	if !requiresBrowser(q) {
		t.Fatal("expected pre_actions to require the browser")
	}
}

func TestRequiresBrowser_ExtractActionsRequireBrowser(t *testing.T) {
	q := &query.Query{Steps: []query.Step{query.ExtractStep{
		XPath:   "//div",
		Actions: []query.Action{{Kind: query.ActionScroll}},
	}}}
	if !requiresBrowser(q) {
		t.Fatal("expected an extract step with actions to require the browser")
	}
}

func TestRequiresBrowser_ScriptStepRequiresBrowser(t *testing.T) {
	q := &query.Query{Steps: []query.Step{query.ScriptStep{Code: "1"}}}
	if !requiresBrowser(q) {
		t.Fatal("expected a script step to require the browser")
	}
}

func TestRequiresBrowser_NestedFollowStepsAreWalked(t *testing.T) {
	q := &query.Query{Steps: []query.Step{
		query.FollowStep{Spec: query.FollowSpec{
			LinkExpr: "//a",
			Steps:    []query.Step{query.ScriptStep{Code: "1"}},
		}},
	}}
	if !requiresBrowser(q) {
		t.Fatal("expected a nested script step inside a follow spec to require the browser")
	}
}

func TestRequiresBrowser_NestedExtractFollowIsWalked(t *testing.T) {
	q := &query.Query{Steps: []query.Step{
		query.ExtractStep{
			XPath: "//li",
			Follow: &query.FollowSpec{
				LinkExpr: "//a",
				Steps:    []query.Step{query.ExtractStep{XPath: "//h1", Actions: []query.Action{{Kind: query.ActionClick, Locator: query.Locator{CSS: ".x"}}}}},
			},
		},
	}}
	if !requiresBrowser(q) {
		t.Fatal("expected a nested follow's actions to require the browser")
	}
}

func TestRequiresBrowser_ConditionalBranchesAreWalked(t *testing.T) {
	thenRequires := &query.Query{Steps: []query.Step{
		query.ConditionalStep{Then: []query.Step{query.ScriptStep{Code: "1"}}},
	}}
	if !requiresBrowser(thenRequires) {
		t.Fatal("expected a script step in the then branch to require the browser")
	}

	elseRequires := &query.Query{Steps: []query.Step{
		query.ConditionalStep{Else: []query.Step{query.ScriptStep{Code: "1"}}},
	}}
	if !requiresBrowser(elseRequires) {
		t.Fatal("expected a script step in the else branch to require the browser")
	}

	neitherRequires := &query.Query{Steps: []query.Step{
		query.ConditionalStep{
			Then: []query.Step{query.ExtractStep{XPath: "//h1"}},
			Else: []query.Step{query.ExtractStep{XPath: "//h2"}},
		},
	}}
	if requiresBrowser(neitherRequires) {
		t.Fatal("expected plain extract branches to not require the browser")
	}
}

func TestHostOf_ExtractsHostnameWithoutPort(t *testing.T) {
	host, err := hostOf("https://example.com:8443/page?x=1")
	if err != nil {
		t.Fatalf("hostOf: %v", err)
	}
	if host != "example.com" {
		t.Fatalf("hostOf() = %q, want %q", host, "example.com")
	}
}

func TestHostOf_InvalidURLErrors(t *testing.T) {
	_, err := hostOf("://not-a-url")
	if err == nil {
		t.Fatal("expected an error for a malformed URL")
	}
}

func TestWrapPreActionErr_PassesThroughEvalError(t *testing.T) {
	original := &query.EvalError{Code: query.ErrActionTimeout, Message: "timed out"}
	got := wrapPreActionErr(original)
	if got != original {
		t.Fatalf("expected the original *EvalError to pass through unwrapped, got %v", got)
	}
}

func TestWrapPreActionErr_WrapsPlainError(t *testing.T) {
	got := wrapPreActionErr(errors.New("boom"))
	ee, ok := got.(*query.EvalError)
	if !ok || ee.Code != query.ErrActionTimeout {
		t.Fatalf("expected a wrapped ErrActionTimeout, got %v", got)
	}
}
