package catalog

import (
	"net/http"
	"testing"

	"github.com/patissio/patissio/internal/support"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlers(t *testing.T) (*testutil.API, string) {
	t.Helper()
	api := testutil.NewAPI(t)
	shop := testutil.Tenant("t1", "maboulangerie", tenant.PlanPro)
	shop.SupportAccessEnabled = true
	token := api.AddTenant(t, shop)

	h := NewHandler(NewService(NewMemoryStore()))
	h.RegisterProtectedRoutes(api.Patissier())
	_, slug := api.Public()
	h.RegisterPublicRoutes(slug)
	return api, token
}

func TestHandlers_ProductFlow(t *testing.T) {
	api, token := setupHandlers(t)

	w := api.Do(http.MethodPost, "/patissier/categories", token, map[string]any{"name": "Tartes"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	categoryID := testutil.Decode(t, w)["id"].(string)

	w = api.Do(http.MethodPost, "/patissier/products", token, map[string]any{
		"name": "Tarte au citron", "priceCents": 2800, "categoryId": categoryID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	lemon := testutil.Decode(t, w)["id"].(string)

	w = api.Do(http.MethodPost, "/patissier/products", token, map[string]any{
		"name": "Tarte aux fraises", "priceCents": 3200, "isAvailable": false,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	strawberry := testutil.Decode(t, w)["id"].(string)

	w = api.Do(http.MethodPut, "/patissier/products/reorder", token, map[string]any{"ids": []string{strawberry, lemon}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.Do(http.MethodGet, "/patissier/products", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := testutil.Decode(t, w)
	assert.Equal(t, float64(2), body["count"])
	first := body["products"].([]any)[0].(map[string]any)
	assert.Equal(t, strawberry, first["id"])

	w = api.Do(http.MethodGet, "/public/maboulangerie/catalogue", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = testutil.Decode(t, w)
	assert.Len(t, body["products"], 1)
	assert.Len(t, body["categories"], 1)

	w = api.Do(http.MethodDelete, "/patissier/products/"+lemon, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.Do(http.MethodGet, "/patissier/products/"+lemon, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_ValidationError(t *testing.T) {
	api, token := setupHandlers(t)

	w := api.Do(http.MethodPost, "/patissier/products", token, map[string]any{"priceCents": 100})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", testutil.Decode(t, w)["error"])
}

func TestHandlers_SupportModeCanEditCreationsOnly(t *testing.T) {
	api, _ := setupHandlers(t)
	staff := api.SuperadminToken(t)
	slug := []string{support.HeaderSlug, "maboulangerie"}

	w := api.Do(http.MethodPost, "/patissier/creations", staff, map[string]any{"title": "Fraisier"}, slug...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.Do(http.MethodPost, "/patissier/products", staff, map[string]any{"name": "Fraisier", "priceCents": 100}, slug...)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.Do(http.MethodGet, "/public/maboulangerie/creations", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.Decode(t, w)["creations"], 1)
}
