package domains

import (
	"net/http"
	"testing"

	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlers(t *testing.T) (*testutil.API, *fakeProvider) {
	t.Helper()
	api := testutil.NewAPI(t)
	p := newFakeProvider()
	h := NewHandler(NewService(api.Tenants, p, testutil.PlatformDomain))
	h.RegisterProtectedRoutes(api.Patissier().Group("", tenant.RequirePlan(api.Tenants, tenant.PlanPremium)))
	return api, p
}

func TestHandlers_DomainFlow(t *testing.T) {
	api, p := setupHandlers(t)
	token := api.AddTenant(t, testutil.Tenant("t1", "maboulangerie", tenant.PlanPremium))

	w := api.Do(http.MethodPut, "/patissier/domain", token, map[string]any{"domain": "Gateaux.fr"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := testutil.Decode(t, w)
	assert.Equal(t, "gateaux.fr", body["domain"])
	assert.Equal(t, false, body["verified"])

	p.verified["gateaux.fr"] = true
	w = api.Do(http.MethodPost, "/patissier/domain/verify", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, testutil.Decode(t, w)["verified"])

	w = api.Do(http.MethodGet, "/patissier/domain", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, testutil.Decode(t, w)["verified"])

	w = api.Do(http.MethodDelete, "/patissier/domain", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.Do(http.MethodDelete, "/patissier/domain", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlers_PlatformSubdomainRejected(t *testing.T) {
	api, _ := setupHandlers(t)
	token := api.AddTenant(t, testutil.Tenant("t1", "maboulangerie", tenant.PlanPremium))

	w := api.Do(http.MethodPut, "/patissier/domain", token, map[string]any{"domain": "x.platform.tld"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", testutil.Decode(t, w)["error"])
}

func TestHandlers_DomainTaken(t *testing.T) {
	api, _ := setupHandlers(t)
	token := api.AddTenant(t, testutil.Tenant("t1", "maboulangerie", tenant.PlanPremium))
	other := testutil.Tenant("t2", "autre", tenant.PlanPremium)
	other.CustomDomain = "gateaux.fr"
	api.AddTenant(t, other)

	w := api.Do(http.MethodPut, "/patissier/domain", token, map[string]any{"domain": "gateaux.fr"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlers_RequiresPremium(t *testing.T) {
	api, _ := setupHandlers(t)
	token := api.AddTenant(t, testutil.Tenant("t1", "maboulangerie", tenant.PlanPro))

	w := api.Do(http.MethodPut, "/patissier/domain", token, map[string]any{"domain": "gateaux.fr"})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "plan_required", testutil.Decode(t, w)["error"])
}
