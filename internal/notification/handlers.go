package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/pagination"
	"github.com/patissio/patissio/internal/support"
)

// Socket attaches an upgraded connection to a tenant's live feed.
type Socket interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request, tenantID string)
}

// Handler provides HTTP endpoints for the notification inbox.
type Handler struct {
	service *Service
	socket  Socket
}

// NewHandler creates a notification handler. socket may be nil, in which
// case /ws answers 503.
func NewHandler(service *Service, socket Socket) *Handler {
	return &Handler{service: service, socket: socket}
}

// RegisterRoutes sets up /notifications routes. The group must carry auth
// and the support scope middleware.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.List)
	r.GET("/unread-count", h.UnreadCount)
	r.PUT("/read-all", h.MarkAllRead)
	r.PUT("/:id/read", h.MarkRead)
	r.GET("/ws", h.Stream)
}

// List handles GET /notifications
func (h *Handler) List(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	page, err := h.service.List(c.Request.Context(), scope.TenantScope(),
		c.Query("cursor"), pagination.ParseLimit(c.Query("limit")))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// UnreadCount handles GET /notifications/unread-count
func (h *Handler) UnreadCount(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	n, err := h.service.UnreadCount(c.Request.Context(), scope.TenantScope())
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// MarkRead handles PUT /notifications/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), scope.TenantScope(), c.Param("id")); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MarkAllRead handles PUT /notifications/read-all
func (h *Handler) MarkAllRead(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	n, err := h.service.MarkAllRead(c.Request.Context(), scope.TenantScope())
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Stream handles GET /notifications/ws
func (h *Handler) Stream(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	if h.socket == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable", "message": "live updates are disabled"})
		return
	}
	h.socket.HandleWebSocket(c.Writer, c.Request, scope.Tenant.ID)
}
