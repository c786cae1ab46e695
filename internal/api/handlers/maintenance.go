package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/AsarMichil/jockee/internal/fetch"
	"github.com/AsarMichil/jockee/internal/logger"
	"github.com/gin-gonic/gin"
)

const defaultCleanupAgeDays = 30

type MaintenanceHandler struct {
	fetcher *fetch.Fetcher
}

func NewMaintenanceHandler(fetcher *fetch.Fetcher) *MaintenanceHandler {
	return &MaintenanceHandler{fetcher: fetcher}
}

// StorageUsage reports the local audio cache footprint
func (h *MaintenanceHandler) StorageUsage(c *gin.Context) {
	count, bytes, err := h.fetcher.StorageUsage()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read cache"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file_count":  count,
		"total_bytes": bytes,
		"total_mb":    float64(bytes) / (1024 * 1024),
	})
}

// Cleanup removes cached audio older than max_age_days (default 30)
func (h *MaintenanceHandler) Cleanup(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("max_age_days", strconv.Itoa(defaultCleanupAgeDays)))
	if days < 1 {
		days = defaultCleanupAgeDays
	}

	removed, err := h.fetcher.CleanupOldFiles(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
		return
	}

	logger.Info("Cache cleanup complete", logger.Fields{
		"removed":      removed,
		"max_age_days": days,
	})
	c.JSON(http.StatusOK, gin.H{
		"removed":      removed,
		"max_age_days": days,
	})
}
