// Package follow implements the Kleene-star link-following navigator (C7):
// given a FollowSpec, resolve its link expression against the current page,
// open each resolved link, run the FollowSpec's nested steps against it, and
// recurse, using a depth-first, branch-scoped-visited model (§4.7).
package follow

import (
	"context"
	"net/url"
	"strings"

	"github.com/starlitlog/dr-web-engine/dedupe"
	"github.com/starlitlog/dr-web-engine/query"
	"github.com/starlitlog/dr-web-engine/registry"
)

// Engine implements processors.Follower.
type Engine struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Engine {
	return &Engine{reg: reg}
}

// Follow resolves spec's link expression against anchor (nil means the
// document root), then for every resolved link not excluded by depth, the
// visited set, host scoping, or near-duplicate detection: opens it, runs
// spec.Steps, and collects the assembled records (§4.7 steps 1-6).
func (e *Engine) Follow(ctx context.Context, ec query.EvalContext, controller query.PageController, anchor query.Node, spec query.FollowSpec) ([]any, error) {
	if ec.Depth >= spec.EffectiveMaxDepth() {
		return nil, nil
	}

	links, err := resolveLinks(ctx, controller, spec.LinkExpr, anchor)
	if err != nil {
		return nil, &query.EvalError{Code: query.ErrExpressionSyntaxError, Path: ec.Path, Message: "follow link expression failed", Err: err}
	}

	var results []any
	seen := dedupe.NewSeen()
	base := controller.CurrentURL()

	for i, raw := range links {
		linkEC := ec.AtStep(i)

		canonical, err := canonicalize(base, raw)
		if err != nil {
			linkEC.ReportSoftFail(query.ErrNavigationError, "follow: could not resolve link "+raw)
			continue
		}

		if spec.EffectiveDetectCycles() && ec.Visited.Has(canonical) {
			continue
		}
		if !spec.FollowExternal && !sameHost(canonical, ec.StartHost) {
			continue
		}

		if err := controller.Open(ctx, canonical, 30_000); err != nil {
			linkEC.ReportSoftFail(query.ErrNavigationError, "follow: failed to open "+canonical)
			continue
		}

		if spec.SkipNearDuplicates {
			fp, ferr := pageFingerprint(ctx, controller)
			if ferr == nil {
				if seen.IsNearDuplicate(fp, dedupe.DefaultThreshold) {
					continue
				}
				seen = seen.Add(fp)
			}
		}

		childEC := ec.Child(canonical)
		outputs, derr := e.reg.Dispatch(ctx, childEC, controller, spec.Steps)
		if derr != nil {
			return results, derr
		}

		assembled := registry.Assemble(outputs)
		if spec.TagSourceURL {
			tagSourceURL(assembled, canonical)
		}

		switch v := assembled.(type) {
		case []any:
			results = append(results, v...)
		case nil:
		default:
			results = append(results, v)
		}
	}

	return results, nil
}

func resolveLinks(ctx context.Context, controller query.PageController, expr query.Expression, anchor query.Node) ([]string, error) {
	val, err := controller.Query(ctx, expr, anchor)
	if err != nil {
		return nil, err
	}
	if val.Kind != query.ValueNodes {
		return val.Strings(), nil
	}
	hrefs := make([]string, 0, len(val.Nodes))
	for _, n := range val.Nodes {
		if href, ok := n.Attr("href"); ok && href != "" {
			hrefs = append(hrefs, href)
			continue
		}
		if text := strings.TrimSpace(n.Text()); text != "" {
			hrefs = append(hrefs, text)
		}
	}
	return hrefs, nil
}

// canonicalize resolves raw against base, strips the fragment, lowercases
// the scheme and host, and drops an explicit default port (80 for http, 443
// for https), giving a stable key for the branch's visited set (§4.7's cycle
// detection, glossary "Canonical URL"). Two links differing only by host
// case or an explicit default port must canonicalize to the same key.
func canonicalize(base, raw string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	resolved := baseURL.ResolveReference(refURL)
	resolved.Fragment = ""
	resolved.Scheme = strings.ToLower(resolved.Scheme)
	resolved.Host = canonicalHost(resolved)
	return resolved.String(), nil
}

// canonicalHost lowercases the hostname and strips the port when it is the
// scheme's default, so "Example.com:443" and "example.com" (scheme https)
// canonicalize identically.
func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" {
		return host
	}
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		return host
	}
	return host + ":" + port
}

func sameHost(rawURL, startHost string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), startHost)
}

func pageFingerprint(ctx context.Context, controller query.PageController) (uint64, error) {
	val, err := controller.Query(ctx, "//html", nil)
	if err != nil {
		return 0, err
	}
	if val.Kind != query.ValueNodes || len(val.Nodes) == 0 {
		return 0, nil
	}
	return dedupe.Fingerprint(val.Nodes[0].OuterHTML()), nil
}

// tagSourceURL stamps "_source_url" onto every record produced by one
// followed page (§3.4[FULL]'s tag_source_url option), mutating in place
// since Assemble hands back freshly built slices/maps owned by this call.
func tagSourceURL(assembled any, url string) {
	switch v := assembled.(type) {
	case []any:
		for _, r := range v {
			if m, ok := r.(map[string]any); ok {
				m["_source_url"] = url
			}
		}
	case map[string]any:
		for _, r := range v {
			if list, ok := r.([]any); ok {
				for _, item := range list {
					if m, ok := item.(map[string]any); ok {
						m["_source_url"] = url
					}
				}
			}
		}
	}
}
