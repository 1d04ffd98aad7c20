package order

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/pagination"
	"github.com/patissio/patissio/internal/support"
	"github.com/patissio/patissio/internal/tenant"
)

// Handler provides HTTP endpoints for orders.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterProtectedRoutes sets up /patissier order routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/orders", h.List)
	r.GET("/orders/:id", h.Get)
	r.PUT("/orders/:id/status", h.UpdateStatus)
	r.PUT("/orders/:id/quote", h.Quote)
	r.PUT("/orders/:id/payment", h.SetPayment)
}

// RegisterPublicRoutes sets up storefront routes on /public/:slug. submit
// runs before the order handler (rate limiting).
func (h *Handler) RegisterPublicRoutes(slugGroup *gin.RouterGroup, submit ...gin.HandlerFunc) {
	slugGroup.POST("/orders", append(append([]gin.HandlerFunc{}, submit...), h.Create)...)
}

// RegisterClientRoutes sets up /client routes.
func (h *Handler) RegisterClientRoutes(r *gin.RouterGroup) {
	r.GET("/orders/:number", h.ClientOrder)
	r.POST("/orders/:number/accept-quote", h.AcceptQuote)
}

// Create handles POST /public/:slug/orders
func (h *Handler) Create(c *gin.Context) {
	t, ok := tenant.FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
		return
	}
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid order body")
		return
	}
	result, err := h.service.Create(c.Request.Context(), t, req)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ClientOrder handles GET /client/orders/:number?email=
func (h *Handler) ClientOrder(c *gin.Context) {
	o, err := h.service.ClientOrder(c.Request.Context(), c.Param("number"), c.Query("email"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// AcceptQuote handles POST /client/orders/:number/accept-quote
func (h *Handler) AcceptQuote(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid body")
		return
	}
	result, err := h.service.AcceptQuote(c.Request.Context(), c.Param("number"), req.Email)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// List handles GET /patissier/orders?status=&cursor=&limit=
func (h *Handler) List(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	page, err := h.service.List(c.Request.Context(), scope.TenantScope(),
		Status(c.Query("status")), c.Query("cursor"), pagination.ParseLimit(c.Query("limit")))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Get handles GET /patissier/orders/:id
func (h *Handler) Get(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	o, err := h.service.Get(c.Request.Context(), scope.TenantScope(), c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// UpdateStatus handles PUT /patissier/orders/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	var req struct {
		Status Status `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid status body")
		return
	}
	o, err := h.service.UpdateStatus(c.Request.Context(), scope.TenantScope(), c.Param("id"), req.Status)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// Quote handles PUT /patissier/orders/:id/quote
func (h *Handler) Quote(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	var req struct {
		PriceCents int64 `json:"priceCents"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid quote body")
		return
	}
	o, err := h.service.Quote(c.Request.Context(), scope.TenantScope(), c.Param("id"), req.PriceCents)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// SetPayment handles PUT /patissier/orders/:id/payment
func (h *Handler) SetPayment(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	var req struct {
		Status PaymentStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid payment body")
		return
	}
	o, err := h.service.SetPaymentStatus(c.Request.Context(), scope.TenantScope(), c.Param("id"), req.Status)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
