package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/auth"
	"github.com/patissio/patissio/internal/support"
	"github.com/patissio/patissio/internal/tenant"
)

// maxWebhookBody bounds the Stripe payload read into memory.
const maxWebhookBody = 1 << 20

// Handler provides HTTP endpoints for billing, Connect and the Stripe webhook.
type Handler struct {
	service *Service
	tenants tenant.Store
}

func NewHandler(service *Service, tenants tenant.Store) *Handler {
	return &Handler{service: service, tenants: tenants}
}

// RegisterRoutes sets up /billing routes. The group must require auth.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/plans", h.Plans)
	r.POST("/checkout", h.Checkout)
	r.POST("/portal", h.Portal)
	r.GET("/subscription", h.Subscription)
}

// RegisterConnectRoutes sets up /patissier/stripe routes. The caller guards
// the group with the pro plan requirement.
func (h *Handler) RegisterConnectRoutes(r *gin.RouterGroup) {
	r.POST("/stripe/connect", h.Connect)
	r.GET("/stripe/status", h.ConnectStatus)
}

// RegisterWebhookRoutes mounts POST /webhooks/stripe. submit runs first.
func (h *Handler) RegisterWebhookRoutes(r *gin.RouterGroup, submit ...gin.HandlerFunc) {
	r.POST("/stripe", append(append([]gin.HandlerFunc{}, submit...), h.Webhook)...)
}

// Plans handles GET /billing/plans
func (h *Handler) Plans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": h.service.Plans()})
}

// ownShop returns the caller's claims and shop.
func (h *Handler) ownShop(c *gin.Context) (*auth.Claims, *tenant.Tenant, bool) {
	claims, ok := auth.GetClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Authentication required"})
		return nil, nil, false
	}
	if claims.TenantID == "" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "this account has no shop"})
		return nil, nil, false
	}
	t, err := h.tenants.Get(c.Request.Context(), claims.TenantID)
	if err != nil {
		apierror.Respond(c, err)
		return nil, nil, false
	}
	return claims, t, true
}

// Checkout handles POST /billing/checkout
func (h *Handler) Checkout(c *gin.Context) {
	claims, t, ok := h.ownShop(c)
	if !ok {
		return
	}
	var req struct {
		Plan     tenant.Plan `json:"plan"`
		Interval Interval    `json:"interval"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid checkout body")
		return
	}
	url, err := h.service.Checkout(c.Request.Context(), claims.UserID(), claims.Email, t, req.Plan, req.Interval)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Portal handles POST /billing/portal
func (h *Handler) Portal(c *gin.Context) {
	claims, ok := auth.GetClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Authentication required"})
		return
	}
	url, err := h.service.Portal(c.Request.Context(), claims.UserID())
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Subscription handles GET /billing/subscription. A user without one gets
// {"subscription": null}.
func (h *Handler) Subscription(c *gin.Context) {
	claims, ok := auth.GetClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Authentication required"})
		return
	}
	sub, err := h.service.Subscription(c.Request.Context(), claims.UserID())
	if errors.Is(err, ErrSubscriptionNotFound) {
		c.JSON(http.StatusOK, gin.H{"subscription": nil})
		return
	}
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

// Connect handles POST /patissier/stripe/connect
func (h *Handler) Connect(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	status, err := h.service.Connect(c.Request.Context(), scope.Tenant, scope.Actor.Email)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ConnectStatus handles GET /patissier/stripe/status
func (h *Handler) ConnectStatus(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	status, err := h.service.RefreshConnect(c.Request.Context(), scope.Tenant)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Webhook handles POST /webhooks/stripe
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		apierror.BadRequest(c, "unreadable body")
		return
	}
	if err := h.service.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
