package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/hoa-backend/internal/middleware"
	"github.com/stemsi/hoa-backend/internal/model"
	"github.com/stemsi/hoa-backend/internal/response"
	"github.com/stemsi/hoa-backend/internal/service"
	"github.com/stemsi/hoa-backend/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login godoc
// POST /api/v1/auth/login
// Validates email + password and returns a JWT. A newer login ends any
// previous session of the same user.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// Logout godoc
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims.UserID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// Me godoc
// GET /api/v1/auth/me
// Returns the profile of the currently authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	user, err := h.authService.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}
