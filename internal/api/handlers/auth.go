package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jjesus1982/conecta-plus-sub001/internal/service"
	"go.uber.org/zap"
)

// AuthHandler serves operator login and identity introspection
type AuthHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *service.UserService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{userService: userService, logger: logger}
}

// LoginRequest carries operator credentials
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates an operator and issues a JWT
// @Summary Operator login
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Operator credentials"
// @Success 200 {object} map[string]string
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.userService.AuthenticateUser(req.Username, req.Password)
	if err != nil {
		// Same response for unknown user and bad password
		h.logger.Warn("Login rejected", zap.String("username", req.Username), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	h.logger.Info("Operator logged in", zap.String("username", req.Username))

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// GetCurrentUser reports the identity behind the presented token
// @Summary Current operator
// @Success 200 {object} map[string]string
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id":  c.GetString("user_id"),
		"username": c.GetString("username"),
		"role":     c.GetString("role"),
	})
}
