package workshop

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/support"
	"github.com/patissio/patissio/internal/tenant"
)

// Handler provides HTTP endpoints for workshops and bookings.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterProtectedRoutes sets up /patissier workshop routes. The caller
// guards the group with the pro plan requirement.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/workshops", h.List)
	r.POST("/workshops", h.Create)
	r.GET("/workshops/:id", h.Get)
	r.PUT("/workshops/:id", h.Update)
	r.POST("/workshops/:id/publish", h.Publish)
	r.POST("/workshops/:id/cancel", h.Cancel)
	r.POST("/workshops/:id/complete", h.Complete)
	r.GET("/workshops/:id/bookings", h.ListBookings)
	r.POST("/bookings/:id/cancel", h.CancelBooking)
	r.POST("/bookings/:id/complete", h.CompleteBooking)
	r.PUT("/bookings/:id/remaining-paid", h.MarkRemainingPaid)
}

// RegisterPublicRoutes sets up storefront routes on /public/:slug. submit
// runs before the booking handler (rate limiting).
func (h *Handler) RegisterPublicRoutes(slugGroup *gin.RouterGroup, submit ...gin.HandlerFunc) {
	slugGroup.GET("/workshops", h.PublicList)
	slugGroup.POST("/workshops/:id/bookings", append(append([]gin.HandlerFunc{}, submit...), h.Book)...)
}

// RegisterClientRoutes sets up /client routes.
func (h *Handler) RegisterClientRoutes(r *gin.RouterGroup) {
	r.GET("/bookings/:id", h.ClientBooking)
}

// List handles GET /patissier/workshops
func (h *Handler) List(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	list, err := h.service.List(c.Request.Context(), scope.TenantScope(), Status(c.Query("status")))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workshops": list, "count": len(list)})
}

// Create handles POST /patissier/workshops
func (h *Handler) Create(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		apierror.BadRequest(c, "invalid workshop body")
		return
	}
	w, err := h.service.Create(c.Request.Context(), scope.Tenant, in)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// Get handles GET /patissier/workshops/:id
func (h *Handler) Get(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	l, err := h.service.Get(c.Request.Context(), scope.TenantScope(), c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// Update handles PUT /patissier/workshops/:id
func (h *Handler) Update(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		apierror.BadRequest(c, "invalid workshop body")
		return
	}
	w, err := h.service.Update(c.Request.Context(), scope.TenantScope(), c.Param("id"), in)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// Publish handles POST /patissier/workshops/:id/publish
func (h *Handler) Publish(c *gin.Context) {
	h.workshopAction(c, h.service.Publish)
}

// Complete handles POST /patissier/workshops/:id/complete
func (h *Handler) Complete(c *gin.Context) {
	h.workshopAction(c, h.service.Complete)
}

func (h *Handler) workshopAction(c *gin.Context, fn func(ctx context.Context, scope tenant.Scope, id string) (*Workshop, error)) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	w, err := fn(c.Request.Context(), scope.TenantScope(), c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// Cancel handles POST /patissier/workshops/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	w, cancelled, err := h.service.Cancel(c.Request.Context(), scope.TenantScope(), c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workshop": w, "cancelledBookings": len(cancelled)})
}

// ListBookings handles GET /patissier/workshops/:id/bookings
func (h *Handler) ListBookings(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	list, err := h.service.ListBookings(c.Request.Context(), scope.TenantScope(), c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if list == nil {
		list = []*Booking{}
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list, "count": len(list)})
}

// CancelBooking handles POST /patissier/bookings/:id/cancel
func (h *Handler) CancelBooking(c *gin.Context) {
	h.bookingAction(c, h.service.CancelBooking)
}

// CompleteBooking handles POST /patissier/bookings/:id/complete
func (h *Handler) CompleteBooking(c *gin.Context) {
	h.bookingAction(c, h.service.CompleteBooking)
}

// MarkRemainingPaid handles PUT /patissier/bookings/:id/remaining-paid
func (h *Handler) MarkRemainingPaid(c *gin.Context) {
	h.bookingAction(c, h.service.MarkRemainingPaid)
}

func (h *Handler) bookingAction(c *gin.Context, fn func(ctx context.Context, scope tenant.Scope, id string) (*Booking, error)) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	b, err := fn(c.Request.Context(), scope.TenantScope(), c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// PublicList handles GET /public/:slug/workshops
func (h *Handler) PublicList(c *gin.Context) {
	t, ok := tenant.FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
		return
	}
	list, err := h.service.PublicList(c.Request.Context(), t)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workshops": list})
}

// Book handles POST /public/:slug/workshops/:id/bookings
func (h *Handler) Book(c *gin.Context) {
	t, ok := tenant.FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
		return
	}
	var req BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid booking body")
		return
	}
	result, err := h.service.Book(c.Request.Context(), t, c.Param("id"), req)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ClientBooking handles GET /client/bookings/:id?email=
func (h *Handler) ClientBooking(c *gin.Context) {
	b, err := h.service.ClientBooking(c.Request.Context(), c.Param("id"), c.Query("email"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}
