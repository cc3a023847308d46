package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database"
	"github.com/jjesus1982/conecta-plus-sub001/internal/events"
)

// HealthHandler reports service liveness
type HealthHandler struct {
	db  *database.Database
	hub *events.Hub
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.Database, hub *events.Hub) *HealthHandler {
	return &HealthHandler{db: db, hub: hub}
}

// Get reports service health
// @Summary Health check
// @Router /api/v1/health [get]
func (h *HealthHandler) Get(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if err := h.db.Ping(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":        status,
		"time":          time.Now().UTC(),
		"event_clients": h.hub.ClientCount(),
	})
}
