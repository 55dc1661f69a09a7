package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starlitlog/dr-web-engine/query"
)

func TestNeedsBrowser_EmptyReactRootIsEscalated(t *testing.T) {
	body := []byte(`<html><body><div id="root"></div><script src="/bundle.js"></script></body></html>`)
	if !needsBrowser(body) {
		t.Fatal("expected an empty React root to require escalation")
	}
}

func TestNeedsBrowser_ShortBodyIsEscalated(t *testing.T) {
	body := []byte(`<html><body>hi</body></html>`)
	if !needsBrowser(body) {
		t.Fatal("expected a near-empty body to require escalation")
	}
}

func TestNeedsBrowser_NoscriptWarningIsEscalated(t *testing.T) {
	body := []byte(`<html><body>` + strings.Repeat("padding text to clear the length floor ", 10) +
		`<noscript>You need to enable JavaScript to run this app.</noscript></body></html>`)
	if !needsBrowser(body) {
		t.Fatal("expected a noscript JS warning to require escalation")
	}
}

func TestNeedsBrowser_StaticContentIsNotEscalated(t *testing.T) {
	body := []byte(`<html><body><article>` + strings.Repeat("a fully rendered static article paragraph. ", 10) +
		`</article></body></html>`)
	if needsBrowser(body) {
		t.Fatal("expected substantial static content to not require escalation")
	}
}

func TestExtractVisibleText_SkipsScriptAndStyle(t *testing.T) {
	body := []byte(`<html><body><script>var x = "hidden";</script><style>.a{color:red}</style><p>visible text</p></body></html>`)
	got := extractVisibleText(body)
	if strings.Contains(got, "hidden") {
		t.Fatalf("expected script content to be excluded, got %q", got)
	}
	if !strings.Contains(got, "visible text") {
		t.Fatalf("expected visible text to be included, got %q", got)
	}
}

func TestController_Open_NavigationErrorOnUnreachableHost(t *testing.T) {
	ctrl := NewController(NewFetcher(""))
	err := ctrl.Open(context.Background(), "http://127.0.0.1:1/does-not-listen", 500)
	if err == nil {
		t.Fatal("expected a connection failure against a closed port")
	}
	ee, ok := err.(*query.EvalError)
	if !ok || ee.Code != query.ErrNavigationError {
		t.Fatalf("expected ErrNavigationError, got %v", err)
	}
}

func TestController_Open_NavigationErrorOn4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ctrl := NewController(NewFetcher(""))
	err := ctrl.Open(context.Background(), srv.URL, 2000)
	if err == nil {
		t.Fatal("expected a navigation error on 404")
	}
}

func TestController_Open_ParsesDocumentForQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Hello</h1></body></html>`))
	}))
	defer srv.Close()

	ctrl := NewController(NewFetcher(""))
	if err := ctrl.Open(context.Background(), srv.URL, 2000); err != nil {
		t.Fatalf("Open: %v", err)
	}
	val, err := ctrl.Query(context.Background(), "//h1", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if val.Kind != query.ValueNodes || len(val.Nodes) != 1 || val.Nodes[0].Text() != "Hello" {
		t.Fatalf("unexpected query result: %+v", val)
	}

	if err := ctrl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestController_Interact_ReturnsTargetNotInteractable(t *testing.T) {
	ctrl := NewController(NewFetcher(""))
	err := ctrl.Interact(context.Background(), query.InteractClick, query.Locator{CSS: ".btn"}, query.InteractPayload{}, 1000)
	ee, ok := err.(*query.EvalError)
	if !ok || ee.Code != query.ErrTargetNotInteractable {
		t.Fatalf("expected ErrTargetNotInteractable, got %v", err)
	}
}

func TestController_NeedsEscalation_BeforeOpenIsFalse(t *testing.T) {
	ctrl := NewController(NewFetcher(""))
	if ctrl.NeedsEscalation() {
		t.Fatal("expected no escalation signal before any page is opened")
	}
}
