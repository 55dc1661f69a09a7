package paginate

import (
	"context"
	"fmt"
	"testing"

	"github.com/starlitlog/dr-web-engine/processors"
	"github.com/starlitlog/dr-web-engine/query"
	"github.com/starlitlog/dr-web-engine/registry"
)

// fakeNode is a minimal query.Node for pagination tests.
type fakeNode struct {
	text string
	attr string
}

func (n fakeNode) Text() string      { return n.text }
func (n fakeNode) OuterHTML() string { return "<a>" + n.text + "</a>" }
func (n fakeNode) InnerHTML() string { return n.text }
func (n fakeNode) Attr(name string) (string, bool) {
	if name == "href" && n.attr != "" {
		return n.attr, true
	}
	return "", false
}

// fakeController drives a fixed sequence of "pages", each with one item
// record and an optional next-page link.
type fakeController struct {
	pages      []string // next-page URLs per page index; "" means no next link
	currentURL string
	opened     []string
}

func (c *fakeController) Open(ctx context.Context, url string, timeoutMS int) error {
	c.currentURL = url
	c.opened = append(c.opened, url)
	return nil
}
func (c *fakeController) CurrentURL() string { return c.currentURL }

func (c *fakeController) Query(ctx context.Context, expr query.Expression, anchor query.Node) (query.Value, error) {
	switch expr {
	case "//item":
		return query.Value{Kind: query.ValueNodes, Nodes: []query.Node{fakeNode{text: "item-" + c.currentURL}}}, nil
	case "//next":
		idx := len(c.opened)
		if idx >= len(c.pages) || c.pages[idx] == "" {
			return query.Value{Kind: query.ValueNodes}, nil
		}
		return query.Value{Kind: query.ValueNodes, Nodes: []query.Node{fakeNode{attr: c.pages[idx]}}}, nil
	}
	return query.Value{Kind: query.ValueNodes}, nil
}
func (c *fakeController) QueryScalar(ctx context.Context, expr query.Expression, anchor query.Node) (query.Value, error) {
	return c.Query(ctx, expr, anchor)
}
func (c *fakeController) Interact(ctx context.Context, kind query.InteractKind, loc query.Locator, payload query.InteractPayload, timeoutMS int) error {
	return nil
}
func (c *fakeController) Wait(ctx context.Context, pred query.WaitPredicate, timeoutMS int) error {
	return nil
}
func (c *fakeController) RunScript(ctx context.Context, code string, args ...any) (query.Value, error) {
	return query.Value{}, nil
}
func (c *fakeController) Close() error { return nil }

func newTestSteps() []query.Step {
	return []query.Step{query.ExtractStep{XPath: "//item", Name: "items"}}
}

func newTestRegistry() *registry.Registry {
	reg := registry.New()
	_ = reg.Register(processors.NewExtractStepProcessor(nil), false)
	reg.Freeze()
	return reg
}

func TestRun_SinglePageNoPaginationSpec(t *testing.T) {
	ctrl := &fakeController{currentURL: "https://example.com/1"}
	ec := query.NewEvalContext("example.com", false, nil)
	reg := newTestRegistry()

	results, err := Run(context.Background(), ec, reg, ctrl, newTestSteps(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 record, got %d: %+v", len(results), results)
	}
}

func TestRun_FollowsUntilLinkExhausted(t *testing.T) {
	ctrl := &fakeController{
		currentURL: "https://example.com/1",
		pages:      []string{"https://example.com/2", "https://example.com/3", ""},
	}
	ec := query.NewEvalContext("example.com", false, nil)
	reg := newTestRegistry()
	spec := &query.Pagination{LinkExpr: "//next", MaxPages: 10}

	results, err := Run(context.Background(), ec, reg, ctrl, newTestSteps(), spec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 records (one per page), got %d: %+v", len(results), results)
	}
	if len(ctrl.opened) != 2 {
		t.Fatalf("expected 2 navigations beyond the first page, got %d: %v", len(ctrl.opened), ctrl.opened)
	}
}

func TestRun_RespectsMaxPages(t *testing.T) {
	pages := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		pages = append(pages, fmt.Sprintf("https://example.com/%d", i+2))
	}
	ctrl := &fakeController{currentURL: "https://example.com/1", pages: pages}
	ec := query.NewEvalContext("example.com", false, nil)
	reg := newTestRegistry()
	spec := &query.Pagination{LinkExpr: "//next", MaxPages: 3}

	results, err := Run(context.Background(), ec, reg, ctrl, newTestSteps(), spec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected exactly max_pages=3 records, got %d", len(results))
	}
}
