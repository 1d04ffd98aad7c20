package media

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/patissio/patissio/internal/support"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upload(t *testing.T, api *testutil.API, token, kind string, data []byte, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("kind", kind))
	part, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/patissier/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	api.Router.ServeHTTP(w, req)
	return w
}

func TestHandlers_UploadListDelete(t *testing.T) {
	api := testutil.NewAPI(t)
	token := api.AddTenant(t, testutil.Tenant("t1", "maboulangerie", tenant.PlanPro))
	disk, err := NewLocalDisk(t.TempDir(), "/uploads")
	require.NoError(t, err)
	NewHandler(NewService(NewMemoryStore(), disk, api.Tenants)).RegisterProtectedRoutes(api.Patissier())

	w := upload(t, api, token, "cover", pngBytes(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := testutil.Decode(t, w)["id"].(string)

	w = api.Do(http.MethodGet, "/patissier/images?kind=cover", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), testutil.Decode(t, w)["count"])

	w = upload(t, api, token, "gallery", []byte("GIF89a not allowed"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unsupported_type", testutil.Decode(t, w)["error"])

	w = api.Do(http.MethodDelete, "/patissier/images/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.Do(http.MethodDelete, "/patissier/images/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_SupportModeCanUpload(t *testing.T) {
	api := testutil.NewAPI(t)
	shop := testutil.Tenant("t1", "maboulangerie", tenant.PlanPro)
	shop.SupportAccessEnabled = true
	api.AddTenant(t, shop)
	disk, err := NewLocalDisk(t.TempDir(), "/uploads")
	require.NoError(t, err)
	NewHandler(NewService(NewMemoryStore(), disk, api.Tenants)).RegisterProtectedRoutes(api.Patissier())

	w := upload(t, api, api.SuperadminToken(t), "logo", pngBytes(t), support.HeaderSlug, "maboulangerie")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	stored, err := api.Tenants.Get(t.Context(), "t1")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.LogoURL)
}

func TestHandlers_MissingFile(t *testing.T) {
	api := testutil.NewAPI(t)
	token := api.AddTenant(t, testutil.Tenant("t1", "maboulangerie", tenant.PlanPro))
	disk, err := NewLocalDisk(t.TempDir(), "/uploads")
	require.NoError(t, err)
	NewHandler(NewService(NewMemoryStore(), disk, api.Tenants)).RegisterProtectedRoutes(api.Patissier())

	w := api.Do(http.MethodPost, "/patissier/images", token, map[string]any{"kind": "logo"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
