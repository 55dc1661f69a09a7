// Package rod implements query.PageController over go-rod, a real headless
// Chrome (§6.1[FULL]'s browser-backed driver). It is grounded on
// scraper/scraper.go's browser launch/page-pool lifecycle and
// scraper/hijack.go's resource blocking, generalized from "one HTTP request
// in, one ScrapeResult out" to "one long-lived page a Query evaluation
// drives through many navigations and queries".
package rod

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/starlitlog/dr-web-engine/query"
)

// Config controls browser launch and page-pool sizing.
type Config struct {
	Headless             bool
	NoSandbox            bool
	BrowserBin           string
	Proxy                string
	MaxPages             int
	BlockedResourceTypes []string
	Stealth              bool
}

// Browser owns the Chrome process and a reusable page pool; one Browser is
// shared across an evaluator's concurrent evaluations (§5's session pooling
// is a driver concern).
type Browser struct {
	cfg     Config
	browser *rod.Browser
	pool    rod.Pool[rod.Page]
	active  atomic.Int64
}

// Stats reports the browser pool's configured capacity and how many pages
// are currently checked out, for the health endpoint's degraded-status check.
type Stats struct {
	MaxPages    int
	ActivePages int
}

// Stats returns a snapshot of the pool's current utilization.
func (b *Browser) Stats() Stats {
	maxPages := b.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 4
	}
	return Stats{MaxPages: maxPages, ActivePages: int(b.active.Load())}
}

// NewBrowser launches headless Chrome with a stealth flag set applied before
// any page is acquired from the pool.
func NewBrowser(cfg Config) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("rod: launch browser: %w", err)
	}
	slog.Info("rod: browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("rod: connect to browser: %w", err)
	}

	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 4
	}

	return &Browser{cfg: cfg, browser: browser, pool: rod.NewPagePool(maxPages)}, nil
}

// Close drains the page pool and kills the browser process.
func (b *Browser) Close() {
	b.pool.Cleanup(func(p *rod.Page) { _ = p.Close() })
	b.browser.MustClose()
}

// Acquire borrows a page from the pool and returns a Controller bound to it.
// The caller must call Controller.Close to return the page to the pool.
func (b *Browser) Acquire() (*Controller, error) {
	page, err := b.pool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, fmt.Errorf("rod: acquire page: %w", err)
	}
	if b.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("rod: stealth injection failed", "error", err)
		}
	}
	router := setupHijack(page, b.cfg.BlockedResourceTypes)
	b.active.Add(1)
	return &Controller{browser: b, page: page, router: router}, nil
}

// Controller implements query.PageController over one pooled rod.Page.
type Controller struct {
	browser *Browser
	page    *rod.Page
	router  *rod.HijackRouter
}

// Open navigates the page and waits for DOM stability, grounded on
// doScrapeRod's navigate-then-wait-DOM-stable sequence.
func (c *Controller) Open(ctx context.Context, url string, timeoutMS int) error {
	openCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()
	p := c.page.Context(openCtx)
	if err := p.Navigate(url); err != nil {
		return &query.EvalError{Code: query.ErrNavigationError, Message: "navigation failed: " + url, Err: err}
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("rod: WaitDOMStable did not converge", "error", err)
	}
	return nil
}

// CurrentURL returns the page's current location, used by the follow
// engine to resolve relative links (§4.7).
func (c *Controller) CurrentURL() string {
	info, err := c.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Close navigates to about:blank and returns the page to the pool, the same
// leak-prevention discipline as scraper.go's deferred cleanup.
func (c *Controller) Close() error {
	if c.router != nil {
		_ = c.router.Stop()
	}
	_ = c.page.Navigate("about:blank")
	c.browser.pool.Put(c.page)
	c.browser.active.Add(-1)
	return nil
}
