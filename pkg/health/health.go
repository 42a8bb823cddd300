package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler exposes liveness and readiness endpoints.
type Handler struct {
	db      *gorm.DB
	service string
}

// NewHandler creates a health Handler for the given service.
func NewHandler(db *gorm.DB, service string) *Handler {
	return &Handler{db: db, service: service}
}

// RegisterRoutes registers /healthz and /readyz.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Live)
	r.GET("/readyz", h.Ready)
}

// Live reports process liveness.
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.service})
}

// Ready reports readiness, including database connectivity.
func (h *Handler) Ready(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.Ping() != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "service": h.service})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.service})
}
