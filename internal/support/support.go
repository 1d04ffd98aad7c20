// Package support implements the acting-tenant scope for /patissier routes,
// including the superadmin support mode selected by the X-Support-Slug header.
package support

import (
	"net/http"

	"github.com/patissio/patissio/internal/auth"
	"github.com/patissio/patissio/internal/tenant"
)

// HeaderSlug selects the tenant a superadmin acts on.
const HeaderSlug = "X-Support-Slug"

// ContextKey is the gin context key holding the request's *Scope.
const ContextKey = "supportScope"

// Route is a method and gin route pattern.
type Route struct {
	Method  string
	Pattern string
}

// AllowList is everything a superadmin may do on a tenant's behalf: edit
// the public site, nothing else.
var AllowList = []Route{
	{http.MethodGet, "/patissier/profile"},
	{http.MethodPut, "/patissier/profile"},
	{http.MethodGet, "/patissier/design"},
	{http.MethodPut, "/patissier/design"},
	{http.MethodGet, "/patissier/images"},
	{http.MethodPost, "/patissier/images"},
	{http.MethodDelete, "/patissier/images/:id"},
	{http.MethodGet, "/patissier/creations"},
	{http.MethodPost, "/patissier/creations"},
	{http.MethodPut, "/patissier/creations/:id"},
	{http.MethodDelete, "/patissier/creations/:id"},
}

var allowed = func() map[Route]bool {
	m := make(map[Route]bool, len(AllowList))
	for _, r := range AllowList {
		m[r] = true
	}
	return m
}()

// Allowed reports whether method+pattern is on the allow-list.
func Allowed(method, pattern string) bool {
	return allowed[Route{method, pattern}]
}

// Scope is the capability computed once per request: who is acting, on
// which tenant, and whether it is a support session.
type Scope struct {
	Actor   *auth.Claims
	Tenant  *tenant.Tenant
	Support bool
}

// Can reports whether the scope may call method+pattern. Owners can call
// anything; support sessions only the allow-list.
func (s *Scope) Can(method, pattern string) bool {
	if !s.Support {
		return true
	}
	return Allowed(method, pattern)
}

// TenantScope returns the store filter for the acting tenant.
func (s *Scope) TenantScope() tenant.Scope {
	return tenant.ScopeOf(s.Tenant)
}
