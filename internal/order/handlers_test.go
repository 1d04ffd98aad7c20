package order

import (
	"net/http"
	"testing"

	"github.com/patissio/patissio/internal/catalog"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlers(t *testing.T) (*testutil.API, string, *catalog.Service) {
	t.Helper()
	api := testutil.NewAPI(t)
	token := api.AddTenant(t, testutil.Tenant("t1", "maboulangerie", tenant.PlanPro))
	closed := testutil.Tenant("t2", "fermee", tenant.PlanPro)
	closed.OrdersEnabled = false
	api.AddTenant(t, closed)

	cat := catalog.NewService(catalog.NewMemoryStore())
	catalog.NewHandler(cat).RegisterProtectedRoutes(api.Patissier())

	h := NewHandler(NewService(NewMemoryStore(), cat, api.Tenants))
	h.RegisterProtectedRoutes(api.Patissier())
	_, slug := api.Public()
	h.RegisterPublicRoutes(slug)
	h.RegisterClientRoutes(api.Router.Group("/client"))
	return api, token, cat
}

func TestHandlers_CatalogueOrder(t *testing.T) {
	api, token, _ := setupHandlers(t)

	w := api.Do(http.MethodPost, "/patissier/products", token, map[string]any{"name": "Baba", "priceCents": 550})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	productID := testutil.Decode(t, w)["id"].(string)

	w = api.Do(http.MethodPost, "/public/maboulangerie/orders", "", map[string]any{
		"clientName": "Camille", "clientEmail": "camille@example.com", "type": "catalogue",
		"items": []map[string]any{{"productId": productID, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	o := testutil.Decode(t, w)["order"].(map[string]any)
	assert.Equal(t, float64(1100), o["totalCents"])
	number := o["orderNumber"].(string)
	id := o["id"].(string)

	w = api.Do(http.MethodGet, "/client/orders/"+number+"?email=camille@example.com", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.Do(http.MethodGet, "/patissier/orders?status=pending", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.Decode(t, w)["orders"], 1)

	w = api.Do(http.MethodPut, "/patissier/orders/"+id+"/status", token, map[string]any{"status": "ready"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", testutil.Decode(t, w)["error"])

	w = api.Do(http.MethodPut, "/patissier/orders/"+id+"/status", token, map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.Do(http.MethodPut, "/patissier/orders/"+id+"/payment", token, map[string]any{"status": "paid"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paid", testutil.Decode(t, w)["paymentStatus"])
}

func TestHandlers_CustomOrderQuote(t *testing.T) {
	api, token, _ := setupHandlers(t)

	w := api.Do(http.MethodPost, "/public/maboulangerie/orders", "", map[string]any{
		"clientName": "Léa", "clientEmail": "lea@example.com", "type": "custom",
		"customDescription": "Gâteau licorne", "budgetCents": 8000,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	o := testutil.Decode(t, w)["order"].(map[string]any)
	id, number := o["id"].(string), o["orderNumber"].(string)

	w = api.Do(http.MethodPut, "/patissier/orders/"+id+"/quote", token, map[string]any{"priceCents": 7500})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.Do(http.MethodPost, "/client/orders/"+number+"/accept-quote", "", map[string]any{"email": "other@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.Do(http.MethodPost, "/client/orders/"+number+"/accept-quote", "", map[string]any{"email": "lea@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := testutil.Decode(t, w)
	assert.Equal(t, "confirmed", body["order"].(map[string]any)["status"])
	assert.Nil(t, body["checkoutUrl"])
}

func TestHandlers_OrdersDisabled(t *testing.T) {
	api, _, _ := setupHandlers(t)

	w := api.Do(http.MethodPost, "/public/fermee/orders", "", map[string]any{
		"clientName": "Léa", "clientEmail": "lea@example.com", "type": "custom", "customDescription": "x",
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "orders_disabled", testutil.Decode(t, w)["error"])
}
