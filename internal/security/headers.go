// Package security sets response hardening headers and the CORS policy of
// the API.
package security

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeadersMiddleware adds security headers to all responses. The API serves
// JSON and uploaded images only.
func HeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}

// OriginPolicy decides whether a browser origin may call the API.
type OriginPolicy func(origin string) bool

// PlatformOrigins allows the web app and any origin on the platform domain
// or one of its subdomains.
func PlatformOrigins(appURL, platformDomain string) OriginPolicy {
	app := strings.TrimRight(appURL, "/")
	platformDomain = strings.ToLower(platformDomain)
	return func(origin string) bool {
		if origin == "" {
			return false
		}
		if origin == app {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Hostname() == "" {
			return false
		}
		host := strings.ToLower(u.Hostname())
		return host == platformDomain || strings.HasSuffix(host, "."+platformDomain)
	}
}

// openPrefixes are read and submit paths called from storefronts on custom
// domains. They carry no credentials, so any origin may call them.
var openPrefixes = []string{"/public/", "/client/"}

func isOpen(path string) bool {
	for _, p := range openPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// CORSMiddleware echoes allowed origins and answers preflight requests.
func CORSMiddleware(allowed OriginPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		switch {
		case origin != "" && allowed(origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		case isOpen(c.Request.URL.Path):
			c.Header("Access-Control-Allow-Origin", "*")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID, X-Support-Slug")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
