package support

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/auth"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/metrics"
	"github.com/patissio/patissio/internal/tenant"
)

// Middleware computes the request Scope. It must run after auth.RequireAuth.
//
// Without X-Support-Slug the acting tenant is the caller's own shop. With it,
// the caller must be a superadmin, the target shop must have opted in, and
// the route must be on the allow-list.
func Middleware(tenants tenant.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := auth.GetClaims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Authentication required"})
			return
		}

		slug := c.GetHeader(HeaderSlug)
		if slug == "" {
			own(c, tenants, claims)
			return
		}
		impersonate(c, tenants, claims, slug)
	}
}

// RejectOutsideScope refuses X-Support-Slug on any route that is not on the
// allow-list, so support sessions cannot reach superadmin, billing or
// account routes under the staff member's own identity. Allow-listed routes
// go on to Middleware for the full check.
func RejectOutsideScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.GetHeader(HeaderSlug)
		route := c.FullPath()
		if slug == "" || route == "" || Allowed(c.Request.Method, route) {
			c.Next()
			return
		}
		metrics.SupportRequestsTotal.WithLabelValues("denied").Inc()
		logging.L(c.Request.Context()).Warn("support request denied",
			"reason", "support_forbidden", "target_slug", slug, "method", c.Request.Method, "route", route)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "support_forbidden",
			"message": "this action is not available in support mode",
		})
	}
}

func own(c *gin.Context, tenants tenant.Store, claims *auth.Claims) {
	if claims.TenantID == "" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "this account has no shop"})
		return
	}
	t, err := tenants.Get(c.Request.Context(), claims.TenantID)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	set(c, &Scope{Actor: claims, Tenant: t})
	c.Next()
}

func impersonate(c *gin.Context, tenants tenant.Store, claims *auth.Claims, slug string) {
	ctx := c.Request.Context()
	log := logging.L(ctx).With("actor", claims.UserID(), "target_slug", slug, "method", c.Request.Method, "route", c.FullPath())

	deny := func(status int, code, msg string) {
		metrics.SupportRequestsTotal.WithLabelValues("denied").Inc()
		log.Warn("support request denied", "reason", code)
		c.AbortWithStatusJSON(status, gin.H{"error": code, "message": msg})
	}

	if !claims.IsSuperadmin() {
		deny(http.StatusForbidden, "support_forbidden", "support mode requires the superadmin role")
		return
	}

	t, err := tenants.GetBySlug(ctx, slug)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		deny(http.StatusNotFound, "not_found", "tenant not found")
		return
	}
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if !t.SupportAccessEnabled {
		deny(http.StatusForbidden, "support_forbidden", "this shop has not enabled support access")
		return
	}

	scope := &Scope{Actor: claims, Tenant: t, Support: true}
	if !scope.Can(c.Request.Method, c.FullPath()) {
		deny(http.StatusForbidden, "support_forbidden", "this action is not available in support mode")
		return
	}

	metrics.SupportRequestsTotal.WithLabelValues("allowed").Inc()
	log.Info("support request")
	set(c, scope)
	c.Next()
}

func set(c *gin.Context, s *Scope) {
	c.Set(ContextKey, s)
	tenant.SetContext(c, s.Tenant)
}

// ScopeFrom returns the scope computed by Middleware.
func ScopeFrom(c *gin.Context) (*Scope, bool) {
	v, ok := c.Get(ContextKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Scope)
	return s, ok && s != nil && s.Tenant != nil
}

// MustScope returns the scope or writes a 401 and returns false.
func MustScope(c *gin.Context) (*Scope, bool) {
	s, ok := ScopeFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "no tenant for this request"})
	}
	return s, ok
}
