package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jjesus1982/conecta-plus-sub001/internal/service"
	"go.uber.org/zap"
)

// ValidateHandler receives normalized events from vendor adapters and
// returns access decisions. Decisions are always HTTP 200; the outcome is
// carried in the body so adapters act on result and allow_access, not on
// transport status.
type ValidateHandler struct {
	validation *service.ValidationService
	logger     *zap.Logger
}

// NewValidateHandler creates a new validate handler
func NewValidateHandler(validation *service.ValidationService, logger *zap.Logger) *ValidateHandler {
	return &ValidateHandler{
		validation: validation,
		logger:     logger,
	}
}

// ValidateCredential resolves a credential event to a decision
// @Summary Validate a credential event
// @Description Resolve a credential read to granted/denied/timeout/error
// @Accept json
// @Produce json
// @Param request body service.ValidationRequest true "Credential event"
// @Success 200 {object} service.Decision
// @Router /api/v1/validate/credential [post]
func (h *ValidateHandler) ValidateCredential(c *gin.Context) {
	var req service.ValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	decision := h.validation.ValidateCredential(c.Request.Context(), req)
	c.JSON(http.StatusOK, decision)
}

// ValidatePlate resolves a plate-read event to a decision
// @Summary Validate a plate event
// @Description Resolve an LPR plate read to granted/denied/timeout/error
// @Accept json
// @Produce json
// @Param request body service.PlateRequest true "Plate event"
// @Success 200 {object} service.Decision
// @Router /api/v1/validate/plate [post]
func (h *ValidateHandler) ValidatePlate(c *gin.Context) {
	var req service.PlateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	decision := h.validation.ValidatePlate(c.Request.Context(), req)
	c.JSON(http.StatusOK, decision)
}
