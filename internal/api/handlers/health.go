package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db        *gorm.DB
	s3Enabled bool
}

func NewHealthHandler(db *gorm.DB, s3Enabled bool) *HealthHandler {
	return &HealthHandler{db: db, s3Enabled: s3Enabled}
}

// HealthCheck returns the health status of the API
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	dbStatus := "healthy"
	status := http.StatusOK

	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.Ping() != nil {
		dbStatus = "unreachable"
		status = http.StatusServiceUnavailable
	}

	storageStatus := "disabled"
	if h.s3Enabled {
		storageStatus = "enabled"
	}

	c.JSON(status, gin.H{
		"status":   dbStatus,
		"database": dbStatus,
		"storage": gin.H{
			"status": storageStatus,
		},
	})
}
