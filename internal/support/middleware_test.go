package support

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/auth"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const secret = "support-test-secret-long-enough-1234"

type fixture struct {
	router  *gin.Engine
	tokens  *auth.Manager
	tenants *tenant.MemoryStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	tenants := tenant.NewMemoryStore()
	now := time.Now()

	require.NoError(t, tenants.Create(ctx, &tenant.Tenant{
		ID: "t-open", UserID: "u-owner", Slug: "maboulangerie", Plan: tenant.PlanPro,
		Status: tenant.StatusActive, SupportAccessEnabled: true, CreatedAt: now,
	}))
	require.NoError(t, tenants.Create(ctx, &tenant.Tenant{
		ID: "t-closed", UserID: "u-other", Slug: "eloise", Plan: tenant.PlanPro,
		Status: tenant.StatusActive, CreatedAt: now,
	}))

	tokens := auth.NewManager(secret, time.Hour)
	r := gin.New()
	r.Use(auth.Middleware(tokens), RejectOutsideScope())
	g := r.Group("/patissier", auth.RequireAuth(), Middleware(tenants))

	echo := func(c *gin.Context) {
		s, ok := MustScope(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"tenant": s.Tenant.Slug, "support": s.Support})
	}
	g.GET("/profile", echo)
	g.PUT("/profile", echo)
	g.PUT("/creations/:id", echo)
	g.GET("/orders", echo)
	g.PUT("/support-access", echo)
	g.DELETE("/images/:id", echo)

	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	r.GET("/superadmin/stats", auth.RequireAuth(), ok)
	r.GET("/billing/subscription", auth.RequireAuth(), ok)
	r.GET("/auth/me", auth.RequireAuth(), ok)

	return &fixture{router: r, tokens: tokens, tenants: tenants}
}

func (f *fixture) token(t *testing.T, id string, role auth.Role, tenantID string) string {
	t.Helper()
	tok, _, err := f.tokens.Issue(&auth.User{ID: id, Email: id + "@example.com", Role: role}, tenantID)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(method, path, token, supportSlug string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if supportSlug != "" {
		req.Header.Set(HeaderSlug, supportSlug)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestMiddleware_OwnTenant(t *testing.T) {
	f := setup(t)
	owner := f.token(t, "u-owner", auth.RolePatissier, "t-open")

	w, body := f.do(http.MethodGet, "/patissier/orders", owner, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "maboulangerie", body["tenant"])
	assert.Equal(t, false, body["support"])
}

func TestMiddleware_SuperadminWithoutHeaderHasNoShop(t *testing.T) {
	f := setup(t)
	admin := f.token(t, "u-admin", auth.RoleSuperadmin, "")

	w, body := f.do(http.MethodGet, "/patissier/profile", admin, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", body["error"])
}

func TestMiddleware_SupportMode(t *testing.T) {
	f := setup(t)
	admin := f.token(t, "u-admin", auth.RoleSuperadmin, "")
	owner := f.token(t, "u-other", auth.RolePatissier, "t-closed")

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		slug       string
		wantStatus int
		wantError  string
	}{
		{"allowed read", http.MethodGet, "/patissier/profile", admin, "maboulangerie", http.StatusOK, ""},
		{"allowed write", http.MethodPut, "/patissier/creations/c1", admin, "maboulangerie", http.StatusOK, ""},
		{"allowed delete with param", http.MethodDelete, "/patissier/images/img1", admin, "maboulangerie", http.StatusOK, ""},
		{"route outside allow-list", http.MethodGet, "/patissier/orders", admin, "maboulangerie", http.StatusForbidden, "support_forbidden"},
		{"cannot toggle opt-in", http.MethodPut, "/patissier/support-access", admin, "maboulangerie", http.StatusForbidden, "support_forbidden"},
		{"tenant has not opted in", http.MethodGet, "/patissier/profile", admin, "eloise", http.StatusForbidden, "support_forbidden"},
		{"unknown tenant", http.MethodGet, "/patissier/profile", admin, "nobody", http.StatusNotFound, "not_found"},
		{"patissier cannot impersonate", http.MethodGet, "/patissier/profile", owner, "maboulangerie", http.StatusForbidden, "support_forbidden"},
		{"no token", http.MethodGet, "/patissier/profile", "", "maboulangerie", http.StatusUnauthorized, "unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := f.do(tt.method, tt.path, tt.token, tt.slug)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
				return
			}
			assert.Equal(t, "maboulangerie", body["tenant"])
			assert.Equal(t, true, body["support"])
		})
	}
}

func TestRejectOutsideScope(t *testing.T) {
	f := setup(t)
	admin := f.token(t, "u-admin", auth.RoleSuperadmin, "")

	for _, path := range []string{"/superadmin/stats", "/billing/subscription", "/auth/me"} {
		t.Run(path, func(t *testing.T) {
			w, body := f.do(http.MethodGet, path, admin, "maboulangerie")
			require.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, "support_forbidden", body["error"])

			w, _ = f.do(http.MethodGet, path, admin, "")
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}

	// Unknown routes still 404.
	w, _ := f.do(http.MethodGet, "/nowhere", admin, "maboulangerie")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScope_Can(t *testing.T) {
	owner := &Scope{Tenant: &tenant.Tenant{ID: "t1"}}
	assert.True(t, owner.Can(http.MethodGet, "/patissier/orders"))
	assert.Equal(t, "t1", owner.TenantScope().ID())

	support := &Scope{Tenant: &tenant.Tenant{ID: "t1"}, Support: true}
	assert.True(t, support.Can(http.MethodPut, "/patissier/design"))
	assert.False(t, support.Can(http.MethodDelete, "/patissier/products/:id"))
	assert.False(t, support.Can(http.MethodPost, "/patissier/images/:id"))
}
