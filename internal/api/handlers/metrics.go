package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/AsarMichil/jockee/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MetricsHandler struct {
	db        *gorm.DB
	startTime time.Time
	version   string
}

func NewMetricsHandler(db *gorm.DB, version string) *MetricsHandler {
	return &MetricsHandler{
		db:        db,
		startTime: time.Now(),
		version:   version,
	}
}

const (
	secondsPerMinute = 60
	secondsPerHour   = 3600
	bytesToMB        = 1024 * 1024
)

// formatUptime formats the uptime duration with seconds rounded to 2 decimal places
func formatUptime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % secondsPerMinute
	seconds := d.Seconds() - float64(hours*secondsPerHour) - float64(minutes*secondsPerMinute)

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%.2fs", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%.2fs", minutes, seconds)
	}
	return fmt.Sprintf("%.2fs", seconds)
}

type MetricsResponse struct {
	Status    string          `json:"status"`
	Uptime    string          `json:"uptime"`
	Timestamp string          `json:"timestamp"`
	Version   string          `json:"version"`
	StartTime string          `json:"start_time"`
	System    SystemMetrics   `json:"system"`
	Pipeline  PipelineMetrics `json:"pipeline"`
}

type SystemMetrics struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAllocMB   uint64 `json:"mem_alloc_mb"`
	MemTotalMB   uint64 `json:"mem_total_mb"`
	NumGC        uint32 `json:"num_gc"`
}

type PipelineMetrics struct {
	ActiveJobs     int64 `json:"active_jobs"`
	CompletedJobs  int64 `json:"completed_jobs"`
	FailedJobs     int64 `json:"failed_jobs"`
	AnalyzedTracks int64 `json:"analyzed_tracks"`
}

func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var pipeline PipelineMetrics
	h.db.Model(&models.AnalysisJob{}).
		Where("status IN ?", []models.JobStatus{models.JobStatusPending, models.JobStatusProcessing}).
		Count(&pipeline.ActiveJobs)
	h.db.Model(&models.AnalysisJob{}).
		Where("status = ?", models.JobStatusCompleted).
		Count(&pipeline.CompletedJobs)
	h.db.Model(&models.AnalysisJob{}).
		Where("status = ?", models.JobStatusFailed).
		Count(&pipeline.FailedJobs)
	h.db.Model(&models.Track{}).
		Where("analyzed_at IS NOT NULL").
		Count(&pipeline.AnalyzedTracks)

	metrics := MetricsResponse{
		Status:    "healthy",
		Uptime:    formatUptime(time.Since(h.startTime)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		StartTime: h.startTime.UTC().Format(time.RFC3339),
		System: SystemMetrics{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			MemAllocMB:   m.Alloc / bytesToMB,
			MemTotalMB:   m.TotalAlloc / bytesToMB,
			NumGC:        m.NumGC,
		},
		Pipeline: pipeline,
	}

	c.JSON(http.StatusOK, metrics)
}
