package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/auth"
	"github.com/patissio/patissio/internal/support"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/stretchr/testify/require"
)

// PlatformDomain is the apex domain used by handler tests.
const PlatformDomain = "platform.tld"

// API is a gin engine with the authentication and tenant middleware of the
// real server, backed by memory stores. Domain packages mount their
// handlers on its groups.
type API struct {
	Router   *gin.Engine
	Tenants  *tenant.MemoryStore
	Tokens   *auth.Manager
	Resolver *tenant.Resolver
}

// NewAPI creates an empty API harness.
func NewAPI(t *testing.T) *API {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tenants := tenant.NewMemoryStore()
	tokens := auth.NewManager("test-secret-0123456789-0123456789-abcdef", time.Hour)
	r := gin.New()
	r.Use(auth.Middleware(tokens))
	return &API{
		Router:   r,
		Tenants:  tenants,
		Tokens:   tokens,
		Resolver: tenant.NewResolver(tenants, PlatformDomain),
	}
}

// Tenant returns an active shop with sensible defaults for slug on plan.
func Tenant(id, slug string, plan tenant.Plan) *tenant.Tenant {
	now := time.Now().UTC()
	return &tenant.Tenant{
		ID:               id,
		UserID:           "usr_" + id,
		BusinessName:     "Shop " + slug,
		Slug:             slug,
		Plan:             plan,
		Status:           tenant.StatusActive,
		OrdersEnabled:    true,
		WorkshopsEnabled: plan.Features().Workshops,
		DepositPercent:   tenant.DefaultDepositPercent,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// AddTenant stores tn and returns a bearer token for its owner.
func (a *API) AddTenant(t *testing.T, tn *tenant.Tenant) string {
	t.Helper()
	require.NoError(t, a.Tenants.Create(context.Background(), tn))
	token, _, err := a.Tokens.Issue(&auth.User{ID: tn.UserID, Email: tn.Slug + "@example.com", Role: auth.RolePatissier}, tn.ID)
	require.NoError(t, err)
	return token
}

// SuperadminToken returns a bearer token for a platform staff account.
func (a *API) SuperadminToken(t *testing.T) string {
	t.Helper()
	token, _, err := a.Tokens.Issue(&auth.User{ID: "usr_staff", Email: "staff@platform.tld", Role: auth.RoleSuperadmin}, "")
	require.NoError(t, err)
	return token
}

// Patissier returns the /patissier group with auth and the support scope.
func (a *API) Patissier() *gin.RouterGroup {
	return a.Router.Group("/patissier", auth.RequireAuth(), support.Middleware(a.Tenants))
}

// Public returns /public and /public/:slug with the resolver middleware.
func (a *API) Public() (*gin.RouterGroup, *gin.RouterGroup) {
	public := a.Router.Group("/public")
	return public, public.Group("/:slug", a.Resolver.Middleware())
}

// Do sends a JSON request. token may be empty; headers are extra key/value pairs.
func (a *API) Do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}

// Decode unmarshals a JSON object response.
func Decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
