package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/tenant"
)

// Handler provides superadmin HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a new admin handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up /superadmin routes. The group must require the
// superadmin role.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tenants", h.listTenants)
	r.GET("/tenants/:id", h.getTenant)
	r.PUT("/tenants/:id/plan", h.setPlan)
	r.PUT("/tenants/:id/status", h.setStatus)
	r.GET("/stats", h.stats)
	r.GET("/support/:slug", h.support)
}

// listTenants handles GET /superadmin/tenants?q=&plan=&status=&limit=&offset=
func (h *Handler) listTenants(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	tenants, err := h.service.ListTenants(c.Request.Context(), tenant.ListFilter{
		Query:  c.Query("q"),
		Plan:   tenant.Plan(c.Query("plan")),
		Status: tenant.Status(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": tenants, "count": len(tenants), "limit": limit, "offset": offset})
}

func (h *Handler) getTenant(c *gin.Context) {
	t, err := h.service.GetTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) setPlan(c *gin.Context) {
	var req struct {
		Plan tenant.Plan `json:"plan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid plan body")
		return
	}
	t, err := h.service.SetPlan(c.Request.Context(), c.Param("id"), req.Plan)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) setStatus(c *gin.Context) {
	var req struct {
		Status tenant.Status `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid status body")
		return
	}
	t, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) stats(c *gin.Context) {
	st, err := h.service.Stats(c.Request.Context())
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// support handles GET /superadmin/support/:slug
func (h *Handler) support(c *gin.Context) {
	av, err := h.service.Support(c.Request.Context(), c.Param("slug"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, av)
}
