package domains

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/support"
)

// Handler provides the /patissier/domain endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterProtectedRoutes mounts the domain routes. The caller restricts
// the group to the premium plan.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/domain", h.Get)
	r.PUT("/domain", h.Set)
	r.POST("/domain/verify", h.Verify)
	r.DELETE("/domain", h.Remove)
}

// Get handles GET /patissier/domain
func (h *Handler) Get(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.service.Status(scope.Tenant))
}

// Set handles PUT /patissier/domain
func (h *Handler) Set(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	var req struct {
		Domain string `json:"domain"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid domain body")
		return
	}
	status, err := h.service.Set(c.Request.Context(), scope.Tenant, req.Domain)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Verify handles POST /patissier/domain/verify
func (h *Handler) Verify(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	status, err := h.service.Verify(c.Request.Context(), scope.Tenant)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Remove handles DELETE /patissier/domain
func (h *Handler) Remove(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	if err := h.service.Remove(c.Request.Context(), scope.Tenant); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
