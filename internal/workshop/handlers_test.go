package workshop

import (
	"net/http"
	"testing"

	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	api     *testutil.API
	pro     string
	starter string
}

func setupHandlers(t *testing.T) *handlerFixture {
	t.Helper()
	api := testutil.NewAPI(t)
	pro := api.AddTenant(t, testutil.Tenant("t-pro", "maboulangerie", tenant.PlanPro))
	starter := api.AddTenant(t, testutil.Tenant("t-starter", "eloise", tenant.PlanStarter))

	svc, _, _ := newTestService()
	h := NewHandler(svc)
	h.RegisterProtectedRoutes(api.Patissier().Group("", tenant.RequirePlan(api.Tenants, tenant.PlanPro)))
	_, slug := api.Public()
	h.RegisterPublicRoutes(slug)
	h.RegisterClientRoutes(api.Router.Group("/client"))
	return &handlerFixture{api: api, pro: pro, starter: starter}
}

func TestHandlers_WorkshopFlow(t *testing.T) {
	f := setupHandlers(t)
	api := f.api

	w := api.Do(http.MethodPost, "/patissier/workshops", f.pro, map[string]any{
		"title": "Atelier choux", "date": "2026-12-05T10:00:00Z", "capacity": 2, "priceCents": 6000,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := testutil.Decode(t, w)["id"].(string)

	w = api.Do(http.MethodGet, "/public/maboulangerie/workshops", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, testutil.Decode(t, w)["workshops"], "drafts are not listed")

	w = api.Do(http.MethodPost, "/patissier/workshops/"+id+"/publish", f.pro, nil)
	require.Equal(t, http.StatusOK, w.Code)

	booking := map[string]any{"clientName": "Camille", "clientEmail": "camille@example.com", "nbParticipants": 2}
	w = api.Do(http.MethodPost, "/public/maboulangerie/workshops/"+id+"/bookings", "", booking)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	b := testutil.Decode(t, w)["booking"].(map[string]any)
	assert.Equal(t, "confirmed", b["status"])
	assert.Equal(t, float64(3600), b["depositAmountCents"])
	bookingID := b["id"].(string)

	w = api.Do(http.MethodPost, "/public/maboulangerie/workshops/"+id+"/bookings", "", booking)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "workshop_not_open", testutil.Decode(t, w)["error"])

	w = api.Do(http.MethodGet, "/client/bookings/"+bookingID+"?email=camille@example.com", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.Do(http.MethodGet, "/client/bookings/"+bookingID+"?email=other@example.com", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.Do(http.MethodGet, "/patissier/workshops/"+id+"/bookings", f.pro, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), testutil.Decode(t, w)["count"])

	w = api.Do(http.MethodPost, "/patissier/bookings/"+bookingID+"/cancel", f.pro, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.Do(http.MethodGet, "/patissier/workshops/"+id, f.pro, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := testutil.Decode(t, w)
	assert.Equal(t, "published", body["status"])
	assert.Equal(t, float64(2), body["remainingSeats"])
}

func TestHandlers_OverCapacity(t *testing.T) {
	f := setupHandlers(t)
	api := f.api

	w := api.Do(http.MethodPost, "/patissier/workshops", f.pro, map[string]any{
		"title": "Atelier tartes", "date": "2026-12-05T10:00:00Z", "capacity": 3, "priceCents": 4000,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := testutil.Decode(t, w)["id"].(string)
	require.Equal(t, http.StatusOK, api.Do(http.MethodPost, "/patissier/workshops/"+id+"/publish", f.pro, nil).Code)

	w = api.Do(http.MethodPost, "/public/maboulangerie/workshops/"+id+"/bookings", "",
		map[string]any{"clientName": "Léa", "clientEmail": "lea@example.com", "nbParticipants": 4})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "capacity_exceeded", testutil.Decode(t, w)["error"])
}

func TestHandlers_PlanGuard(t *testing.T) {
	f := setupHandlers(t)

	w := f.api.Do(http.MethodGet, "/patissier/workshops", f.starter, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	body := testutil.Decode(t, w)
	assert.Equal(t, "plan_required", body["error"])
	assert.Equal(t, "pro", body["requiredPlan"])
	assert.Equal(t, "starter", body["currentPlan"])

	w = f.api.Do(http.MethodGet, "/patissier/workshops", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlers_Validation(t *testing.T) {
	f := setupHandlers(t)

	w := f.api.Do(http.MethodPost, "/patissier/workshops", f.pro, map[string]any{"title": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", testutil.Decode(t, w)["error"])

	w = f.api.Do(http.MethodPost, "/patissier/workshops/missing/publish", f.pro, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
