package readable

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
	root       query.Value
	currentURL string
}

func (c *fakeController) Open(context.Context, string, int) error { return nil }
func (c *fakeController) CurrentURL() string                      { return c.currentURL }
func (c *fakeController) Query(context.Context, query.Expression, query.Node) (query.Value, error) {
	return c.root, nil
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

func TestExecute_WrongStepTypeErrors(t *testing.T) {
	p := New()
	_, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), &fakeController{}, query.ScriptStep{})
	if err == nil {
		t.Fatal("expected a schema error for the wrong step type")
	}
}

func TestExecute_EmptyDocumentYieldsNoRecords(t *testing.T) {
	ctrl := &fakeController{root: query.Value{Kind: query.ValueNodes}}
	p := New()
	records, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), ctrl, Step{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records for an empty document, got %d", len(records))
	}
}

func TestExecute_MissingAnchorYieldsNoRecords(t *testing.T) {
	ctrl := &fakeController{root: query.Value{Kind: query.ValueNodes}}
	p := New()
	records, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), ctrl, Step{XPath: "//article"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records when the anchor resolves to nothing, got %d", len(records))
	}
}

func TestExecute_DefaultFormatIsText(t *testing.T) {
	html := `<html><body><article>` + wordSalad(20) + `</article></body></html>`
	ctrl := &fakeController{root: query.Value{Kind: query.ValueNodes, Nodes: []query.Node{htmlNode(html)}}, currentURL: "https://example.com/article"}
	p := New()
	records, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), ctrl, Step{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0].(map[string]any)
	if rec["format"] != "text" {
		t.Fatalf("expected default format text, got %v", rec["format"])
	}
	content, ok := rec["content"].(string)
	if !ok || content == "" {
		t.Fatalf("expected non-empty text content, got %#v", rec["content"])
	}
}

func TestExecute_HTMLFormatPreservesMarkup(t *testing.T) {
	html := `<html><body><article>` + wordSalad(20) + `</article></body></html>`
	ctrl := &fakeController{root: query.Value{Kind: query.ValueNodes, Nodes: []query.Node{htmlNode(html)}}, currentURL: "https://example.com/article"}
	p := New()
	records, err := p.Execute(context.Background(), query.NewEvalContext("example.com", false, nil), ctrl, Step{Format: "html"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rec := records[0].(map[string]any)
	if rec["format"] != "html" {
		t.Fatalf("expected format html, got %v", rec["format"])
	}
}

func TestCanHandle_OnlyReadableContentStep(t *testing.T) {
	p := New()
	if !p.CanHandle(Step{}) {
		t.Fatal("expected CanHandle(Step{}) to be true")
	}
	if p.CanHandle(query.ScriptStep{}) {
		t.Fatal("expected CanHandle to reject other step kinds")
	}
}

func wordSalad(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += "word "
	}
	return s
}
