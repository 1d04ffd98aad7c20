package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/support"
	"github.com/patissio/patissio/internal/tenant"
)

// Handler provides HTTP endpoints for the catalogue.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterProtectedRoutes sets up /patissier catalogue routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/categories", h.ListCategories)
	r.POST("/categories", h.CreateCategory)
	r.PUT("/categories/:id", h.UpdateCategory)
	r.DELETE("/categories/:id", h.DeleteCategory)

	r.GET("/creations", h.ListCreations)
	r.POST("/creations", h.CreateCreation)
	r.PUT("/creations/:id", h.UpdateCreation)
	r.DELETE("/creations/:id", h.DeleteCreation)

	r.GET("/products", h.ListProducts)
	r.POST("/products", h.CreateProduct)
	r.PUT("/products/reorder", h.ReorderProducts)
	r.GET("/products/:id", h.GetProduct)
	r.PUT("/products/:id", h.UpdateProduct)
	r.DELETE("/products/:id", h.DeleteProduct)
}

// RegisterPublicRoutes sets up storefront routes on /public/:slug.
func (h *Handler) RegisterPublicRoutes(slugGroup *gin.RouterGroup) {
	slugGroup.GET("/catalogue", h.PublicCatalogue)
	slugGroup.GET("/creations", h.PublicCreations)
}

// ListCategories handles GET /patissier/categories
func (h *Handler) ListCategories(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	list, err := h.service.ListCategories(c.Request.Context(), scope.TenantScope())
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": list})
}

// CreateCategory handles POST /patissier/categories
func (h *Handler) CreateCategory(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	var in CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apierror.BadRequest(c, "invalid category body")
		return
	}
	cat, err := h.service.CreateCategory(c.Request.Context(), scope.TenantScope(), in)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// UpdateCategory handles PUT /patissier/categories/:id
func (h *Handler) UpdateCategory(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	var in CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apierror.BadRequest(c, "invalid category body")
		return
	}
	cat, err := h.service.UpdateCategory(c.Request.Context(), scope.TenantScope(), c.Param("id"), in)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// DeleteCategory handles DELETE /patissier/categories/:id
func (h *Handler) DeleteCategory(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	if err := h.service.DeleteCategory(c.Request.Context(), scope.TenantScope(), c.Param("id")); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListCreations handles GET /patissier/creations
func (h *Handler) ListCreations(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	list, err := h.service.ListCreations(c.Request.Context(), scope.TenantScope())
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"creations": list})
}

// CreateCreation handles POST /patissier/creations
func (h *Handler) CreateCreation(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	var in CreationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apierror.BadRequest(c, "invalid creation body")
		return
	}
	cr, err := h.service.CreateCreation(c.Request.Context(), scope.TenantScope(), in)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, cr)
}

// UpdateCreation handles PUT /patissier/creations/:id
func (h *Handler) UpdateCreation(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	var in CreationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apierror.BadRequest(c, "invalid creation body")
		return
	}
	cr, err := h.service.UpdateCreation(c.Request.Context(), scope.TenantScope(), c.Param("id"), in)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, cr)
}

// DeleteCreation handles DELETE /patissier/creations/:id
func (h *Handler) DeleteCreation(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	if err := h.service.DeleteCreation(c.Request.Context(), scope.TenantScope(), c.Param("id")); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListProducts handles GET /patissier/products
func (h *Handler) ListProducts(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	list, err := h.service.ListProducts(c.Request.Context(), scope.TenantScope())
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": list, "count": len(list)})
}

// CreateProduct handles POST /patissier/products
func (h *Handler) CreateProduct(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	var in ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apierror.BadRequest(c, "invalid product body")
		return
	}
	p, err := h.service.CreateProduct(c.Request.Context(), scope.Tenant, in)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetProduct handles GET /patissier/products/:id
func (h *Handler) GetProduct(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	p, err := h.service.GetProduct(c.Request.Context(), scope.TenantScope(), c.Param("id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateProduct handles PUT /patissier/products/:id
func (h *Handler) UpdateProduct(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	var in ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apierror.BadRequest(c, "invalid product body")
		return
	}
	p, err := h.service.UpdateProduct(c.Request.Context(), scope.TenantScope(), c.Param("id"), in)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteProduct handles DELETE /patissier/products/:id
func (h *Handler) DeleteProduct(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(c.Request.Context(), scope.TenantScope(), c.Param("id")); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ReorderProducts handles PUT /patissier/products/reorder
func (h *Handler) ReorderProducts(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid reorder body")
		return
	}
	if err := h.service.ReorderProducts(c.Request.Context(), scope.TenantScope(), req.IDs); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PublicCatalogue handles GET /public/:slug/catalogue
func (h *Handler) PublicCatalogue(c *gin.Context) {
	t, ok := tenant.FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
		return
	}
	cat, err := h.service.PublicCatalogue(c.Request.Context(), t)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// PublicCreations handles GET /public/:slug/creations
func (h *Handler) PublicCreations(c *gin.Context) {
	t, ok := tenant.FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "tenant not found"})
		return
	}
	list, err := h.service.PublicCreations(c.Request.Context(), t)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"creations": list})
}
