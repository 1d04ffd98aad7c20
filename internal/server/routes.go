package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/admin"
	"github.com/patissio/patissio/internal/auth"
	"github.com/patissio/patissio/internal/billing"
	"github.com/patissio/patissio/internal/catalog"
	"github.com/patissio/patissio/internal/domains"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/media"
	"github.com/patissio/patissio/internal/metrics"
	"github.com/patissio/patissio/internal/notification"
	"github.com/patissio/patissio/internal/order"
	"github.com/patissio/patissio/internal/ratelimit"
	"github.com/patissio/patissio/internal/security"
	"github.com/patissio/patissio/internal/social"
	"github.com/patissio/patissio/internal/support"
	"github.com/patissio/patissio/internal/tenant"
	"github.com/patissio/patissio/internal/validation"
	"github.com/patissio/patissio/internal/workshop"
)

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(metrics.Middleware())

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(security.PlatformOrigins(s.cfg.AppURL, s.cfg.PlatformDomain)))

	s.router.Use(bodyLimit())
	s.router.Use(s.limiter.Limit(ratelimit.BucketGlobal))

	// Bearer token, when present, for every route. Groups enforce it.
	s.router.Use(auth.Middleware(s.tokens))
	s.router.Use(support.RejectOutsideScope())
}

// bodyLimit caps JSON bodies. Multipart uploads are bounded by their handler.
func bodyLimit() gin.HandlerFunc {
	limit := validation.RequestSizeMiddleware(validation.MaxRequestSize)
	return func(c *gin.Context) {
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			c.Next()
			return
		}
		limit(c)
	}
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		ctx := c.Request.Context()
		if t, ok := tenant.FromContext(c); ok {
			ctx = logging.WithTenant(ctx, t.Slug)
		}
		logger := logging.L(ctx)

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", ratelimit.ClientIP(c.Request),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// Uploaded images
	s.router.Static(uploadRoute(s.cfg.PublicUploadURL), s.uploads.Dir())

	limit := s.limiter.Limit
	requireAuth := auth.RequireAuth()
	scope := support.Middleware(s.tenants)

	// AUTH
	authHandler := auth.NewHandler(s.authService)
	authGroup := s.router.Group("/auth", limit(ratelimit.BucketAuth))
	authHandler.RegisterRoutes(authGroup, limit(ratelimit.BucketAuthStrict))
	authHandler.RegisterProtectedRoutes(authGroup.Group("", requireAuth))

	// PATISSIER DASHBOARD (JWT + support scope)
	patissier := s.router.Group("/patissier", requireAuth, limit(ratelimit.BucketAPI), scope)
	pro := patissier.Group("", tenant.RequirePlan(s.tenants, tenant.PlanPro))
	premium := patissier.Group("", tenant.RequirePlan(s.tenants, tenant.PlanPremium))

	tenantHandler := tenant.NewHandler(s.tenants, s.resolver)
	catalogHandler := catalog.NewHandler(s.catalog)
	orderHandler := order.NewHandler(s.orders)
	workshopHandler := workshop.NewHandler(s.workshops)
	billingHandler := billing.NewHandler(s.billing, s.tenants)
	mediaHandler := media.NewHandler(s.media)

	tenantHandler.RegisterProtectedRoutes(patissier)
	catalogHandler.RegisterProtectedRoutes(patissier)
	orderHandler.RegisterProtectedRoutes(patissier)
	mediaHandler.RegisterProtectedRoutes(patissier, limit(ratelimit.BucketUploads))
	workshopHandler.RegisterProtectedRoutes(pro)
	billingHandler.RegisterConnectRoutes(pro)
	domains.NewHandler(s.domains).RegisterProtectedRoutes(premium)

	// BILLING (JWT, own shop only)
	billingHandler.RegisterRoutes(s.router.Group("/billing", requireAuth, limit(ratelimit.BucketAPI)))

	// NOTIFICATIONS (JWT + support scope)
	notification.NewHandler(s.notifications, s.hub).
		RegisterRoutes(s.router.Group("/notifications", requireAuth, scope))

	// PUBLIC STOREFRONT
	public := s.router.Group("/public")
	slugGroup := public.Group("/:slug", s.resolver.Middleware())
	submit := limit(ratelimit.BucketPublicSubmit)

	tenantHandler.RegisterPublicRoutes(public, slugGroup)
	catalogHandler.RegisterPublicRoutes(slugGroup)
	orderHandler.RegisterPublicRoutes(slugGroup, submit)
	workshopHandler.RegisterPublicRoutes(slugGroup, submit)
	social.NewHandler(s.social).RegisterPublicRoutes(slugGroup)

	// CLIENT LOOKUPS (order number or booking id + email)
	client := s.router.Group("/client")
	orderHandler.RegisterClientRoutes(client)
	workshopHandler.RegisterClientRoutes(client)

	// SUPERADMIN
	admin.NewHandler(s.admin).RegisterRoutes(
		s.router.Group("/superadmin", requireAuth, auth.RequireRole(auth.RoleSuperadmin), limit(ratelimit.BucketAPI)),
	)

	// STRIPE WEBHOOKS
	billingHandler.RegisterWebhookRoutes(s.router.Group("/webhooks"), limit(ratelimit.BucketWebhooks))
}

// uploadRoute is the path prefix images are served under. An absolute
// PUBLIC_UPLOAD_URL (a CDN) still serves locally at /uploads.
func uploadRoute(publicURL string) string {
	if strings.HasPrefix(publicURL, "/") && len(publicURL) > 1 {
		return strings.TrimRight(publicURL, "/")
	}
	return "/uploads"
}
