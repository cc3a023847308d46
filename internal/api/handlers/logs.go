package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jjesus1982/conecta-plus-sub001/internal/audit"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database/models"
	"go.uber.org/zap"
)

// LogHandler exposes the append-only access log for querying
type LogHandler struct {
	auditLog *audit.Log
	logger   *zap.Logger
}

// NewLogHandler creates a new log handler
func NewLogHandler(auditLog *audit.Log, logger *zap.Logger) *LogHandler {
	return &LogHandler{
		auditLog: auditLog,
		logger:   logger,
	}
}

// parseTime accepts RFC 3339 timestamps in query parameters.
func parseTime(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be RFC 3339"})
		return time.Time{}, false
	}
	return t, true
}

// QueryLogs returns a filtered page of access log entries, newest first
// @Summary Query access logs
// @Router /api/v1/logs [get]
func (h *LogHandler) QueryLogs(c *gin.Context) {
	from, ok := parseTime(c, "from")
	if !ok {
		return
	}
	to, ok := parseTime(c, "to")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := database.LogFilter{
		AccessPointID: c.Query("access_point_id"),
		PersonID:      c.Query("person_id"),
		Result:        models.Result(c.Query("result")),
		Direction:     models.Direction(c.Query("direction")),
		From:          from,
		To:            to,
		Limit:         limit,
		Offset:        offset,
	}

	logs, total, err := h.auditLog.Query(filter)
	if err != nil {
		h.logger.Error("Failed to query access logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetLog returns a single access log entry by id
// @Summary Get access log entry
// @Router /api/v1/logs/{id} [get]
func (h *LogHandler) GetLog(c *gin.Context) {
	rec, err := h.auditLog.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetStats returns aggregate counts over a time window
// @Summary Access log statistics
// @Router /api/v1/logs/stats [get]
func (h *LogHandler) GetStats(c *gin.Context) {
	from, ok := parseTime(c, "from")
	if !ok {
		return
	}
	to, ok := parseTime(c, "to")
	if !ok {
		return
	}

	stats, err := h.auditLog.Stats(from, to)
	if err != nil {
		h.logger.Error("Failed to compute log stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
