package tenant

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/logging"
	"github.com/patissio/patissio/internal/validation"
)

// Handler provides HTTP endpoints for patissier profiles and storefront lookups.
type Handler struct {
	store    Store
	resolver *Resolver
}

// NewHandler creates a new tenant handler.
func NewHandler(store Store, resolver *Resolver) *Handler {
	return &Handler{store: store, resolver: resolver}
}

// RegisterProtectedRoutes sets up /patissier routes. The group must carry
// the middleware that sets the acting tenant.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/profile", h.GetProfile)
	r.PUT("/profile", h.UpdateProfile)
	r.GET("/design", h.GetDesign)
	r.PUT("/design", h.UpdateDesign)
	r.PUT("/settings", h.UpdateSettings)
	r.PUT("/support-access", h.UpdateSupportAccess)
}

// RegisterPublicRoutes sets up storefront routes on the /public group.
// slugGroup is /public/:slug with the resolver middleware applied.
func (h *Handler) RegisterPublicRoutes(public, slugGroup *gin.RouterGroup) {
	public.GET("/domain/resolve", h.ResolveDomain)
	slugGroup.GET("", h.GetPublicProfile)
}

func acting(c *gin.Context) (*Tenant, bool) {
	t, ok := FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "no tenant for this request"})
	}
	return t, ok
}

// GetProfile handles GET /patissier/profile
func (h *Handler) GetProfile(c *gin.Context) {
	t, ok := acting(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profile":      t,
		"features":     t.Plan.Features(),
		"connectState": t.Stripe.State(),
	})
}

type updateProfileRequest struct {
	BusinessName    *string `json:"businessName"`
	Description     *string `json:"description"`
	Phone           *string `json:"phone"`
	Address         *string `json:"address"`
	City            *string `json:"city"`
	InstagramHandle *string `json:"instagramHandle"`
}

// UpdateProfile handles PUT /patissier/profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	t, ok := acting(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid body")
		return
	}

	var checks []validation.Check
	if req.BusinessName != nil {
		checks = append(checks,
			validation.Required("businessName", *req.BusinessName),
			validation.MaxLength("businessName", *req.BusinessName, 120))
		t.BusinessName = validation.SanitizeString(*req.BusinessName, 120)
	}
	if req.Description != nil {
		checks = append(checks, validation.MaxLength("description", *req.Description, 2000))
		t.Description = validation.SanitizeString(*req.Description, 2000)
	}
	if req.Phone != nil {
		checks = append(checks, validation.Phone("phone", *req.Phone))
		t.Phone = validation.SanitizeString(*req.Phone, 32)
	}
	if req.Address != nil {
		t.Address = validation.SanitizeString(*req.Address, 255)
	}
	if req.City != nil {
		t.City = validation.SanitizeString(*req.City, 120)
	}
	if req.InstagramHandle != nil {
		handle := strings.TrimPrefix(strings.TrimSpace(*req.InstagramHandle), "@")
		checks = append(checks, validation.MaxLength("instagramHandle", handle, 30))
		t.InstagramHandle = handle
	}
	if err := validation.Validate(checks...); err != nil {
		apierror.Respond(c, err)
		return
	}

	if err := h.store.Update(c.Request.Context(), t); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": t})
}

// GetDesign handles GET /patissier/design
func (h *Handler) GetDesign(c *gin.Context) {
	t, ok := acting(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"design": t.Design, "logoUrl": t.LogoURL, "coverUrl": t.CoverURL})
}

// UpdateDesign handles PUT /patissier/design
func (h *Handler) UpdateDesign(c *gin.Context) {
	t, ok := acting(c)
	if !ok {
		return
	}

	var req Design
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid body")
		return
	}
	if err := validation.Validate(
		validation.HexColor("primaryColor", req.PrimaryColor),
		validation.HexColor("secondaryColor", req.SecondaryColor),
		validation.MaxLength("fontFamily", req.FontFamily, 64),
		validation.MaxLength("theme", req.Theme, 32),
	); err != nil {
		apierror.Respond(c, err)
		return
	}

	t.Design = req
	if err := h.store.Update(c.Request.Context(), t); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"design": t.Design})
}

// UpdateSettings handles PUT /patissier/settings
func (h *Handler) UpdateSettings(c *gin.Context) {
	t, ok := acting(c)
	if !ok {
		return
	}

	var req struct {
		OrdersEnabled    *bool `json:"ordersEnabled"`
		WorkshopsEnabled *bool `json:"workshopsEnabled"`
		DepositPercent   *int  `json:"depositPercent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid body")
		return
	}

	if req.DepositPercent != nil {
		if err := validation.Validate(validation.Range("depositPercent", int64(*req.DepositPercent), 0, 100)); err != nil {
			apierror.Respond(c, err)
			return
		}
		t.DepositPercent = *req.DepositPercent
	}
	if req.OrdersEnabled != nil {
		t.OrdersEnabled = *req.OrdersEnabled
	}
	if req.WorkshopsEnabled != nil {
		t.WorkshopsEnabled = *req.WorkshopsEnabled
	}

	if err := h.store.Update(c.Request.Context(), t); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": t})
}

// UpdateSupportAccess handles PUT /patissier/support-access
func (h *Handler) UpdateSupportAccess(c *gin.Context) {
	t, ok := acting(c)
	if !ok {
		return
	}

	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "enabled is required")
		return
	}

	t.SupportAccessEnabled = *req.Enabled
	if err := h.store.Update(c.Request.Context(), t); err != nil {
		apierror.Respond(c, err)
		return
	}
	logging.L(c.Request.Context()).Info("support access changed", "enabled", t.SupportAccessEnabled)
	c.JSON(http.StatusOK, gin.H{"supportAccessEnabled": t.SupportAccessEnabled})
}

// GetPublicProfile handles GET /public/:slug
func (h *Handler) GetPublicProfile(c *gin.Context) {
	t, ok := FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": t.Public()})
}

// ResolveDomain handles GET /public/domain/resolve?host=
func (h *Handler) ResolveDomain(c *gin.Context) {
	host := c.Query("host")
	if host == "" {
		apierror.BadRequest(c, "host is required")
		return
	}

	t, err := h.resolver.ResolveHost(c.Request.Context(), host)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if t.Status != StatusActive {
		apierror.Respond(c, ErrTenantNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slug": t.Slug, "businessName": t.BusinessName})
}
