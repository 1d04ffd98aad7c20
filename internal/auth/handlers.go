package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patissio/patissio/internal/apierror"
)

// Handler provides HTTP endpoints for accounts
type Handler struct {
	service *Service
}

// NewHandler creates a new auth handler
func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// RegisterRoutes sets up the unauthenticated /auth routes. strict is applied
// to credential-guessing endpoints (login, register).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, strict ...gin.HandlerFunc) {
	with := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, strict...), handler)
	}
	r.POST("/register", with(h.Register)...)
	r.POST("/login", with(h.Login)...)
}

// RegisterProtectedRoutes sets up /auth routes that need a token.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.Me)
	r.PUT("/password", h.ChangePassword)
}

// Register handles POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid body")
		return
	}

	session, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Login handles POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "email and password required")
		return
	}

	session, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Me handles GET /auth/me
func (h *Handler) Me(c *gin.Context) {
	claims, ok := GetClaims(c)
	if !ok {
		apierror.Respond(c, ErrInvalidToken)
		return
	}

	user, profile, err := h.service.Me(c.Request.Context(), claims.UserID())
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "profile": profile})
}

// ChangePassword handles PUT /auth/password
func (h *Handler) ChangePassword(c *gin.Context) {
	claims, ok := GetClaims(c)
	if !ok {
		apierror.Respond(c, ErrInvalidToken)
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, "invalid body")
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), claims.UserID(), req.CurrentPassword, req.NewPassword); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}
