// Package httpfetch implements query.PageController over a plain net/http
// client with a Chrome TLS fingerprint, grounded on scraper/httpfetch.go's
// utls-based fetcher. It is the cheap tier of the two-tier escalation
// policy (§6.1[FULL]): static documents are served without ever launching a
// browser, and NeedsEscalation reports when a fetched page looks like it
// needs JS rendering instead, generalized from engine/http_engine.go's
// fail-and-let-the-dispatcher-escalate contract into an explicit predicate
// the evaluator can check before committing to this driver.
package httpfetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"

	"github.com/starlitlog/dr-web-engine/internal/htmlutil"
	"github.com/starlitlog/dr-web-engine/query"
	"github.com/starlitlog/dr-web-engine/selector"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Fetcher performs GET requests with a Chrome JA3 fingerprint so a target
// that fingerprints TLS handshakes can't distinguish this driver from a real
// browser's first request.
type Fetcher struct {
	client *http.Client
}

// NewFetcher builds a Fetcher; proxy, if non-empty, is used for every
// request (scraper/httpfetch.go's fetch signature, promoted to a
// constructor option since one Fetcher now serves an entire evaluation).
func NewFetcher(proxy string) *Fetcher {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr, proxy)
		},
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &Fetcher{client: &http.Client{Transport: transport}}
}

func dialTLSChrome(ctx context.Context, network, addr, proxy string) (net.Conn, error) {
	dialer := &net.Dialer{}
	var rawConn net.Conn
	var err error

	if proxy != "" {
		if proxyURL, perr := url.Parse(proxy); perr == nil && (proxyURL.Scheme == "socks5" || proxyURL.Scheme == "socks5h") {
			rawConn, err = dialer.DialContext(ctx, "tcp", proxyURL.Host)
			if err != nil {
				return nil, fmt.Errorf("httpfetch: socks5 dial: %w", err)
			}
		}
	}
	if rawConn == nil {
		rawConn, err = dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(rawConn, &tls.Config{ServerName: host}, tls.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// Controller implements query.PageController over one fetched-and-parsed
// document. Interact/Wait/RunScript have no meaning against a static
// document and always fail with TargetNotInteractable / ScriptError. The
// evaluator does not retry such a step on the rod driver; it picks the
// driver once, before evaluation starts (§6.1[FULL]).
type Controller struct {
	fetcher    *Fetcher
	engine     *selector.Engine
	currentURL string
	lastBody   []byte
	root       *html.Node
}

// NewController builds a Controller sharing fetcher across an evaluation.
func NewController(fetcher *Fetcher) *Controller {
	return &Controller{fetcher: fetcher, engine: selector.New()}
}

func (c *Controller) Open(ctx context.Context, target string, timeoutMS int) error {
	openCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(openCtx, http.MethodGet, target, nil)
	if err != nil {
		return &query.EvalError{Code: query.ErrNavigationError, Message: "build request failed: " + target, Err: err}
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.fetcher.client.Do(req)
	if err != nil {
		return &query.EvalError{Code: query.ErrNavigationError, Message: "request failed: " + target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &query.EvalError{Code: query.ErrNavigationError, Message: fmt.Sprintf("http %d for %s", resp.StatusCode, target)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return &query.EvalError{Code: query.ErrNavigationError, Message: "reading body failed: " + target, Err: err}
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return &query.EvalError{Code: query.ErrNavigationError, Message: "html parse failed: " + target, Err: err}
	}

	c.lastBody = body
	c.root = root
	if resp.Request != nil && resp.Request.URL != nil {
		c.currentURL = resp.Request.URL.String()
	} else {
		c.currentURL = target
	}
	return nil
}

func (c *Controller) CurrentURL() string { return c.currentURL }

func (c *Controller) Query(_ context.Context, expr query.Expression, anchor query.Node) (query.Value, error) {
	root, err := c.scopeRoot(anchor)
	if err != nil {
		return query.Value{}, err
	}
	return c.engine.Evaluate(root, expr)
}

func (c *Controller) QueryScalar(ctx context.Context, expr query.Expression, anchor query.Node) (query.Value, error) {
	return c.Query(ctx, expr, anchor)
}

func (c *Controller) scopeRoot(anchor query.Node) (*html.Node, error) {
	if anchor == nil {
		if c.root == nil {
			return nil, &query.EvalError{Code: query.ErrNavigationError, Message: "no page opened"}
		}
		return c.root, nil
	}
	hn, ok := anchor.(htmlutil.Node)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Message: "anchor not produced by the static HTML driver"}
	}
	return hn.N, nil
}

func (c *Controller) Interact(context.Context, query.InteractKind, query.Locator, query.InteractPayload, int) error {
	return &query.EvalError{Code: query.ErrTargetNotInteractable, Message: "static HTML driver cannot interact; escalate to the browser driver"}
}

func (c *Controller) Wait(context.Context, query.WaitPredicate, int) error {
	return &query.EvalError{Code: query.ErrTargetNotInteractable, Message: "static HTML driver cannot wait; escalate to the browser driver"}
}

func (c *Controller) RunScript(context.Context, string, ...any) (query.Value, error) {
	return query.Value{}, &query.EvalError{Code: query.ErrScriptError, Message: "static HTML driver cannot run scripts; escalate to the browser driver"}
}

func (c *Controller) Close() error { return nil }

// NeedsEscalation reports whether the last opened document looks like a
// client-rendered shell rather than real content, ported from
// scraper/httpfetch.go's needsBrowser heuristic.
func (c *Controller) NeedsEscalation() bool {
	if c.lastBody == nil {
		return false
	}
	return needsBrowser(c.lastBody)
}

func needsBrowser(body []byte) bool {
	bodyText := extractVisibleText(body)
	if len(bodyText) < 200 {
		return true
	}

	lower := strings.ToLower(string(body))
	emptyRoot := strings.Contains(lower, `<div id="root"></div>`) ||
		strings.Contains(lower, `<div id="app"></div>`) ||
		strings.Contains(lower, `<div id="__next"></div>`)
	if emptyRoot {
		return true
	}

	if reNoscript.MatchString(lower) {
		return true
	}

	scriptCount := strings.Count(lower, "<script")
	if scriptCount > 10 && len(bodyText) < 500 {
		return true
	}

	return false
}

var reNoscript = regexp.MustCompile(`<noscript[^>]*>[^<]*(enable|activate|turn on|requires?)\s+javascript`)

func extractVisibleText(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	var buf strings.Builder
	inBody := false
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return buf.String()
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			tag := string(tn)
			if tag == "body" {
				inBody = true
			}
			if tag == "script" || tag == "style" || tag == "noscript" {
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			tag := string(tn)
			if (tag == "script" || tag == "style" || tag == "noscript") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				text := strings.TrimSpace(string(tokenizer.Text()))
				if text != "" {
					buf.WriteString(text)
					buf.WriteByte(' ')
				}
			}
		}
	}
}
