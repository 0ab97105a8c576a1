package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/freedkr/moonshot-translate/internal/database"
)

// HealthHandlers reports process and dependency liveness.
type HealthHandlers struct {
	db *database.PostgreSQLDB
}

// NewHealthHandlers builds a HealthHandlers.
func NewHealthHandlers(db *database.PostgreSQLDB) *HealthHandlers {
	return &HealthHandlers{db: db}
}

// Health handles GET /api/v1/health: process liveness only.
func (h *HealthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /api/v1/ready: liveness plus the database connection.
func (h *HealthHandlers) Ready(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
