package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jjesus1982/conecta-plus-sub001/internal/audit"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"github.com/jjesus1982/conecta-plus-sub001/internal/events"
	"github.com/jjesus1982/conecta-plus-sub001/internal/registry"
	"go.uber.org/zap"
)

// AccessPointHandler handles access point and controller administration.
// Status changes are audited and broadcast like any other state the site
// may need to reconstruct.
type AccessPointHandler struct {
	registry    *registry.Registry
	auditLog    *audit.Log
	broadcaster *events.Broadcaster
	logger      *zap.Logger
}

// NewAccessPointHandler creates a new access point handler
func NewAccessPointHandler(reg *registry.Registry, auditLog *audit.Log, broadcaster *events.Broadcaster, logger *zap.Logger) *AccessPointHandler {
	return &AccessPointHandler{
		registry:    reg,
		auditLog:    auditLog,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func registryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// CreateAccessPointRequest represents a request to register an access point
type CreateAccessPointRequest struct {
	ID            string                 `json:"id" binding:"required"`
	Kind          models.AccessPointKind `json:"kind" binding:"required"`
	ControllerID  string                 `json:"controller_id" binding:"required"`
	Direction     models.Direction       `json:"direction" binding:"required"`
	Location      string                 `json:"location"`
	AntiPassback  bool                   `json:"anti_passback"`
	EmergencyExit bool                   `json:"emergency_exit"`
	FailOpen      bool                   `json:"fail_open"`
}

// CreateAccessPoint registers an access point
// @Summary Create access point
// @Router /api/v1/access-points [post]
func (h *AccessPointHandler) CreateAccessPoint(c *gin.Context) {
	var req CreateAccessPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := &models.AccessPoint{
		ID:            req.ID,
		Kind:          req.Kind,
		ControllerID:  req.ControllerID,
		Direction:     req.Direction,
		Location:      req.Location,
		AntiPassback:  req.AntiPassback,
		EmergencyExit: req.EmergencyExit,
		FailOpen:      req.FailOpen,
		Status:        models.PointActive,
	}
	if err := h.registry.CreateAccessPoint(p); err != nil {
		registryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetAccessPoint retrieves an access point
// @Summary Get access point
// @Router /api/v1/access-points/{id} [get]
func (h *AccessPointHandler) GetAccessPoint(c *gin.Context) {
	p, err := h.registry.Get(c.Param("id"))
	if err != nil {
		registryError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ListAccessPoints lists all access points
// @Summary List access points
// @Router /api/v1/access-points [get]
func (h *AccessPointHandler) ListAccessPoints(c *gin.Context) {
	if controllerID := c.Query("controller_id"); controllerID != "" {
		c.JSON(http.StatusOK, gin.H{"access_points": h.registry.ListByController(controllerID)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_points": h.registry.List()})
}

// SetStatusRequest carries a manual status transition
type SetStatusRequest struct {
	Status models.AccessPointStatus `json:"status" binding:"required"`
	Reason string                   `json:"reason" binding:"required"`
}

// SetStatus transitions an access point's status
// @Summary Set access point status
// @Router /api/v1/access-points/{id}/status [put]
func (h *AccessPointHandler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Status {
	case models.PointActive, models.PointLocked, models.PointUnlocked, models.PointMaintenance:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	change, err := h.registry.SetStatus(c.Param("id"), req.Status, req.Reason, actorID(c))
	if err != nil {
		registryError(c, err)
		return
	}

	if _, err := h.auditLog.Append(audit.Entry{
		AccessPointID: change.AccessPointID,
		Reason:        "status " + string(change.From) + " -> " + string(change.To) + ": " + change.Reason,
		ActorID:       change.ActorID,
	}); err != nil {
		h.logger.Error("Failed to audit status change",
			zap.String("access_point_id", change.AccessPointID), zap.Error(err))
	}

	h.broadcaster.PointStatus(events.PointStatusPayload{
		AccessPointID: change.AccessPointID,
		From:          change.From,
		To:            change.To,
		Reason:        change.Reason,
		ActorID:       change.ActorID,
	})

	c.JSON(http.StatusOK, change)
}

// CreateControllerRequest represents a request to register a controller
type CreateControllerRequest struct {
	ID              string                  `json:"id" binding:"required"`
	Vendor          string                  `json:"vendor" binding:"required"`
	Address         string                  `json:"address" binding:"required"`
	CredentialTypes []models.CredentialType `json:"credential_types"`
}

// CreateController registers a vendor controller
// @Summary Create controller
// @Router /api/v1/controllers [post]
func (h *AccessPointHandler) CreateController(c *gin.Context) {
	var req CreateControllerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, ct := range req.CredentialTypes {
		if !ct.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported credential type: " + string(ct)})
			return
		}
	}

	ctrl := &models.Controller{
		ID:              req.ID,
		Vendor:          req.Vendor,
		Address:         req.Address,
		CredentialTypes: req.CredentialTypes,
		Status:          models.ControllerOffline,
	}
	if err := h.registry.CreateController(ctrl); err != nil {
		registryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ctrl)
}

// GetController retrieves a controller
// @Summary Get controller
// @Router /api/v1/controllers/{id} [get]
func (h *AccessPointHandler) GetController(c *gin.Context) {
	ctrl, err := h.registry.GetController(c.Param("id"))
	if err != nil {
		registryError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl)
}

// ListControllers lists all controllers
// @Summary List controllers
// @Router /api/v1/controllers [get]
func (h *AccessPointHandler) ListControllers(c *gin.Context) {
	controllers, err := h.registry.ListControllers()
	if err != nil {
		registryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"controllers": controllers})
}

// ControllerHeartbeat records that a controller is alive
// @Summary Controller heartbeat
// @Router /api/v1/controllers/{id}/heartbeat [post]
func (h *AccessPointHandler) ControllerHeartbeat(c *gin.Context) {
	now := time.Now().UTC()
	if err := h.registry.SetControllerStatus(c.Param("id"), models.ControllerOnline, &now); err != nil {
		registryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.ControllerOnline, "last_seen": now})
}

// RetireController soft-retires a controller. Its history stays intact.
// @Summary Retire controller
// @Router /api/v1/controllers/{id} [delete]
func (h *AccessPointHandler) RetireController(c *gin.Context) {
	if err := h.registry.RetireController(c.Param("id")); err != nil {
		registryError(c, err)
		return
	}
	h.logger.Info("Controller retired",
		zap.String("controller_id", c.Param("id")),
		zap.String("actor_id", actorID(c)))
	c.JSON(http.StatusOK, gin.H{"message": "controller retired"})
}
