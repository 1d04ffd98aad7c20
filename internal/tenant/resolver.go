package tenant

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/traces"
)

// ContextKey is the gin context key holding the request's *Tenant.
const ContextKey = "tenant"

// CustomDomainSlug is the path placeholder the edge router uses for
// requests arriving on a custom domain.
const CustomDomainSlug = "_custom-domain"

// Subdomain labels that belong to the platform, not to a shop.
var platformLabels = map[string]bool{"www": true, "app": true, "api": true}

// IsPlatformLabel reports whether a subdomain label of the platform domain
// is reserved for the platform itself.
func IsPlatformLabel(label string) bool {
	return platformLabels[label]
}

// Resolver maps hosts and slugs onto tenants.
type Resolver struct {
	store          Store
	platformDomain string
}

// NewResolver creates a resolver for the given apex domain, e.g. "platform.tld".
func NewResolver(store Store, platformDomain string) *Resolver {
	return &Resolver{store: store, platformDomain: strings.ToLower(platformDomain)}
}

// NormalizeHost lowercases host and strips any port and trailing dot.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

// ResolveHost finds the tenant served at host. Apex and platform hosts
// return ErrNoHostTenant so callers fall back to the path slug.
// Custom domains only resolve once verified.
func (r *Resolver) ResolveHost(ctx context.Context, host string) (t *Tenant, err error) {
	ctx, span := traces.StartSpan(ctx, "tenant.resolve_host", traces.Host(host))
	defer func() { traces.End(span, err) }()

	host = NormalizeHost(host)
	if host == "" || host == "localhost" || host == r.platformDomain || host == "www."+r.platformDomain {
		return nil, ErrNoHostTenant
	}

	if label, ok := strings.CutSuffix(host, "."+r.platformDomain); ok {
		if i := strings.IndexByte(label, '.'); i >= 0 {
			label = label[:i]
		}
		if IsPlatformLabel(label) {
			return nil, ErrNoHostTenant
		}
		return r.ResolveSlug(ctx, label)
	}

	t, err = r.store.GetByCustomDomain(ctx, host)
	if errors.Is(err, ErrTenantNotFound) && strings.HasPrefix(host, "www.") {
		t, err = r.store.GetByCustomDomain(ctx, strings.TrimPrefix(host, "www."))
	}
	if err != nil {
		return nil, err
	}
	if !t.CustomDomainVerified {
		return nil, ErrTenantNotFound
	}
	return t, nil
}

// ResolveSlug finds the tenant for a storefront slug. Reserved words never
// reach the store.
func (r *Resolver) ResolveSlug(ctx context.Context, slug string) (*Tenant, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" || IsReserved(slug) {
		return nil, ErrTenantNotFound
	}
	return r.store.GetBySlug(ctx, slug)
}

// Middleware resolves the storefront tenant from the :slug path parameter.
// The placeholder slug "_custom-domain" resolves from ?host=, then
// X-Forwarded-Host, then Host. Suspended shops are not served.
func (r *Resolver) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		slug := c.Param("slug")

		var (
			t   *Tenant
			err error
		)
		if slug == CustomDomainSlug {
			t, err = r.ResolveHost(ctx, requestHost(c))
		} else {
			t, err = r.ResolveSlug(ctx, slug)
		}

		if err == nil && t.Status != StatusActive {
			err = ErrTenantNotFound
		}
		if err != nil {
			if !errors.Is(err, ErrTenantNotFound) && !errors.Is(err, ErrNoHostTenant) {
				logging.L(ctx).Error("tenant resolution failed", "slug", slug, "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   "internal_error",
					"message": "An unexpected error occurred",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "tenant not found",
			})
			return
		}

		SetContext(c, t)
		c.Next()
	}
}

func requestHost(c *gin.Context) string {
	if h := c.Query("host"); h != "" {
		return h
	}
	if h := c.GetHeader("X-Forwarded-Host"); h != "" {
		return strings.TrimSpace(strings.Split(h, ",")[0])
	}
	return c.Request.Host
}

// SetContext stores t as the request's tenant and tags the request logger.
func SetContext(c *gin.Context, t *Tenant) {
	c.Set(ContextKey, t)
	c.Request = c.Request.WithContext(logging.WithTenant(c.Request.Context(), t.Slug))
}

// FromContext returns the tenant stored by Middleware or by the
// authenticated-scope middleware.
func FromContext(c *gin.Context) (*Tenant, bool) {
	v, ok := c.Get(ContextKey)
	if !ok {
		return nil, false
	}
	t, ok := v.(*Tenant)
	return t, ok && t != nil
}
