package media

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/apierror"
	"github.com/patissio/patissio/internal/support"
)

// Handler provides the /patissier/images endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterProtectedRoutes mounts the image routes. upload runs before the
// upload handler (rate limiting).
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup, upload ...gin.HandlerFunc) {
	r.POST("/images", append(append([]gin.HandlerFunc{}, upload...), h.Upload)...)
	r.GET("/images", h.List)
	r.DELETE("/images/:id", h.Delete)
}

// Upload handles POST /patissier/images (multipart: file, kind)
func (h *Handler) Upload(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			apierror.Respond(c, ErrTooLarge)
			return
		}
		apierror.BadRequest(c, "a multipart file field is required")
		return
	}
	if fh.Size > MaxUploadBytes {
		apierror.Respond(c, ErrTooLarge)
		return
	}
	f, err := fh.Open()
	if err != nil {
		apierror.BadRequest(c, "unreadable upload")
		return
	}
	defer func() { _ = f.Close() }()

	img, err := h.service.Upload(c.Request.Context(), scope.Tenant, Kind(c.PostForm("kind")), f)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, img)
}

// List handles GET /patissier/images
func (h *Handler) List(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	images, err := h.service.List(c.Request.Context(), scope.TenantScope(), Kind(c.Query("kind")))
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images, "count": len(images)})
}

// Delete handles DELETE /patissier/images/:id
func (h *Handler) Delete(c *gin.Context) {
	scope, ok := support.MustScope(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), scope.Tenant, c.Param("id")); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
