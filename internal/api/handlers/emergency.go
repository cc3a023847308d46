package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jjesus1982/conecta-plus-sub001/internal/service"
	"go.uber.org/zap"
)

// EmergencyHandler handles site-wide emergency operations
type EmergencyHandler struct {
	emergency *service.EmergencyService
	logger    *zap.Logger
}

// NewEmergencyHandler creates a new emergency handler
func NewEmergencyHandler(emergency *service.EmergencyService, logger *zap.Logger) *EmergencyHandler {
	return &EmergencyHandler{
		emergency: emergency,
		logger:    logger,
	}
}

// EmergencyRequest carries the operator's reason for the action
type EmergencyRequest struct {
	Reason               string `json:"reason" binding:"required"`
	ExceptEmergencyExits bool   `json:"except_emergency_exits"`
}

// UnlockAll unlocks every access point
// @Summary Emergency unlock all
// @Router /api/v1/emergency/unlock-all [post]
func (h *EmergencyHandler) UnlockAll(c *gin.Context) {
	var req EmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.emergency.UnlockAll(req.Reason, actorID(c))
	c.JSON(http.StatusOK, result)
}

// Lockdown locks every access point, optionally sparing emergency exits
// @Summary Emergency lockdown
// @Router /api/v1/emergency/lockdown [post]
func (h *EmergencyHandler) Lockdown(c *gin.Context) {
	var req EmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.emergency.Lockdown(req.Reason, actorID(c), req.ExceptEmergencyExits)
	c.JSON(http.StatusOK, result)
}
