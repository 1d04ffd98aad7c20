// Package edge rewrites storefront requests by host before they reach the
// web frontend: apex paths, shop subdomains and custom domains all end up
// on the /site/{slug} route tree.
package edge

import (
	"net/url"
	"strings"

	"github.com/patissio/patissio/internal/tenant"
)

// HostKind classifies the host a request arrived on.
type HostKind string

const (
	KindApex      HostKind = "apex"
	KindSubdomain HostKind = "subdomain"
	KindCustom    HostKind = "custom"
)

// DefaultLocale is used when a dashboard path carries no locale.
const DefaultLocale = "fr"

var locales = map[string]bool{"fr": true, "en": true}

// passthrough paths are served by the frontend as-is on every host.
var passthroughPrefixes = []string{"/_next/", "/static/", "/api/"}

// Result is the rewritten request target.
type Result struct {
	Path     string
	RawQuery string
	Kind     HostKind
	Slug     string
}

// Rewritten reports whether the path or query changed.
func (r Result) Rewritten(path, rawQuery string) bool {
	return r.Path != path || r.RawQuery != rawQuery
}

// Classify returns the kind of host. Platform labels (www, app, api) count
// as the apex.
func Classify(host, platformDomain string) HostKind {
	kind, _ := classify(tenant.NormalizeHost(host), strings.ToLower(platformDomain))
	return kind
}

func classify(host, platformDomain string) (HostKind, string) {
	if host == "" || host == "localhost" || host == platformDomain {
		return KindApex, ""
	}
	label, ok := strings.CutSuffix(host, "."+platformDomain)
	if !ok {
		return KindCustom, ""
	}
	if i := strings.IndexByte(label, '.'); i >= 0 {
		label = label[:i]
	}
	if tenant.IsPlatformLabel(label) {
		return KindApex, ""
	}
	return KindSubdomain, label
}

// Router rewrites request targets for one platform domain.
type Router struct {
	platformDomain string
}

func NewRouter(platformDomain string) *Router {
	return &Router{platformDomain: strings.ToLower(platformDomain)}
}

// Rewrite maps host+path onto the frontend route tree.
func (rt *Router) Rewrite(host, path, rawQuery string) Result {
	if path == "" {
		path = "/"
	}
	host = tenant.NormalizeHost(host)
	kind, slug := classify(host, rt.platformDomain)
	res := Result{Path: path, RawQuery: rawQuery, Kind: kind, Slug: slug}

	if isPassthrough(path) {
		return res
	}
	if p, ok := unwrapDashboard(path); ok {
		res.Path = p
		return res
	}

	switch kind {
	case KindSubdomain:
		res.Path = sitePath(slug, path)
	case KindCustom:
		res.Slug = tenant.CustomDomainSlug
		res.Path = sitePath(tenant.CustomDomainSlug, path)
		q, err := url.ParseQuery(rawQuery)
		if err != nil {
			q = url.Values{}
		}
		q.Set("host", host)
		res.RawQuery = q.Encode()
	default:
		res.Path, res.Slug = rewriteApex(path)
	}
	return res
}

func isPassthrough(path string) bool {
	if path == "/favicon.ico" {
		return true
	}
	for _, p := range passthroughPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// unwrapDashboard turns /dashboard/x, /en/dashboard/x and /dashboard/en/x
// into /{locale}/x.
func unwrapDashboard(path string) (string, bool) {
	segs := splitPath(path)
	locale := DefaultLocale
	if len(segs) > 0 && locales[segs[0]] {
		locale, segs = segs[0], segs[1:]
	}
	if len(segs) == 0 || segs[0] != "dashboard" {
		return "", false
	}
	segs = segs[1:]
	if len(segs) > 0 && locales[segs[0]] {
		locale, segs = segs[0], segs[1:]
	}
	return join(append([]string{locale}, segs...), strings.HasSuffix(path, "/")), true
}

// rewriteApex routes /{slug}/rest (optionally locale-prefixed) to
// /site/{slug}/rest. Reserved first segments are platform pages.
func rewriteApex(path string) (string, string) {
	segs := splitPath(path)
	out := make([]string, 0, len(segs)+1)
	if len(segs) > 0 && locales[segs[0]] {
		out, segs = append(out, segs[0]), segs[1:]
	}
	if len(segs) == 0 || tenant.IsReserved(segs[0]) || segs[0] == tenant.CustomDomainSlug {
		return path, ""
	}
	slug := strings.ToLower(segs[0])
	out = append(out, "site", slug)
	out = append(out, segs[1:]...)
	return join(out, strings.HasSuffix(path, "/")), slug
}

func sitePath(slug, path string) string {
	rest := strings.TrimPrefix(path, "/")
	if rest == "" {
		return "/site/" + slug
	}
	return "/site/" + slug + "/" + rest
}

func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func join(segs []string, trailingSlash bool) string {
	p := "/" + strings.Join(segs, "/")
	if trailingSlash && p != "/" {
		p += "/"
	}
	return p
}
