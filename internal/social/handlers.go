package social

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/tenant"
)

// Handler serves the storefront feed.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes mounts GET /public/:slug/instagram.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/instagram", h.Posts)
}

// Posts handles GET /public/:slug/instagram
func (h *Handler) Posts(c *gin.Context) {
	t, ok := tenant.FromContext(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"posts": []Post{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": h.service.Posts(c.Request.Context(), t)})
}
