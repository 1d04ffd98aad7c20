package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(h gin.HandlerFunc, method, path, origin string) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(h)
	r.Any("/*path", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	req := httptest.NewRequest(method, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHeadersMiddleware(t *testing.T) {
	w := serve(HeadersMiddleware(), http.MethodGet, "/health", "")

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
}

func TestPlatformOrigins(t *testing.T) {
	allow := PlatformOrigins("http://localhost:3000/", "platform.tld")

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:3000", true},
		{"https://platform.tld", true},
		{"https://maboulangerie.platform.tld", true},
		{"https://APP.Platform.tld", true},
		{"https://evilplatform.tld", false},
		{"https://platform.tld.evil.com", false},
		{"https://patisserie-dupont.fr", false},
		{"", false},
		{"::not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, allow(tt.origin))
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	mw := CORSMiddleware(PlatformOrigins("http://localhost:3000", "platform.tld"))

	tests := []struct {
		name   string
		path   string
		origin string
		want   string
	}{
		{"platform subdomain echoed", "/patissier/profile", "https://shop.platform.tld", "https://shop.platform.tld"},
		{"foreign origin on dashboard route", "/patissier/profile", "https://evil.com", ""},
		{"custom domain on storefront route", "/public/shop/catalogue", "https://patisserie-dupont.fr", "*"},
		{"client lookup is open", "/client/orders/CMD-1", "https://patisserie-dupont.fr", "*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(mw, http.MethodGet, tt.path, tt.origin)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	mw := CORSMiddleware(PlatformOrigins("http://localhost:3000", "platform.tld"))

	w := serve(mw, http.MethodOptions, "/patissier/profile", "http://localhost:3000")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Support-Slug")
}
