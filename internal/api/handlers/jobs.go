package handlers

import (
	"net/http"
	"strconv"

	"github.com/AsarMichil/jockee/internal/config"
	"github.com/AsarMichil/jockee/internal/logger"
	"github.com/AsarMichil/jockee/internal/models"
	"github.com/AsarMichil/jockee/internal/spotify"
	"github.com/AsarMichil/jockee/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobQueue is the worker-pool surface the handler needs
type JobQueue interface {
	Enqueue(jobID uuid.UUID) bool
	Cancel(jobID uuid.UUID)
}

type JobHandler struct {
	db    *gorm.DB
	cfg   *config.Config
	queue JobQueue
}

func NewJobHandler(db *gorm.DB, cfg *config.Config, queue JobQueue) *JobHandler {
	return &JobHandler{db: db, cfg: cfg, queue: queue}
}

// AnalyzeRequest is the job submission payload
type AnalyzeRequest struct {
	PlaylistURL string `json:"playlist_url" binding:"required"`
	Options     *struct {
		MaxTracks            *int  `json:"max_tracks"`
		SkipAnalysisIfExists *bool `json:"skip_analysis_if_exists"`
		AutoFetch            *bool `json:"auto_fetch"`
		DownloadTimeout      *int  `json:"download_timeout"`
	} `json:"options"`
}

// Analyze submits a playlist for analysis. Resubmitting a playlist that
// already has an active job returns that job instead of creating another.
func (h *JobHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "playlist_url is required"})
		return
	}

	if _, err := spotify.ResolvePlaylistID(req.PlaylistURL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognised playlist reference"})
		return
	}

	existing, err := worker.FindActiveJobByPlaylist(h.db, req.PlaylistURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check existing jobs"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusOK, jobStatusResponse(existing))
		return
	}

	options := models.DefaultJobOptions(h.cfg.MaxTracksPerJob, h.cfg.DownloadTimeoutSecs)
	if req.Options != nil {
		if req.Options.MaxTracks != nil && *req.Options.MaxTracks > 0 {
			options.MaxTracks = *req.Options.MaxTracks
			if h.cfg.MaxTracksPerJob > 0 && options.MaxTracks > h.cfg.MaxTracksPerJob {
				options.MaxTracks = h.cfg.MaxTracksPerJob
			}
		}
		if req.Options.SkipAnalysisIfExists != nil {
			options.SkipAnalysisIfExists = *req.Options.SkipAnalysisIfExists
		}
		if req.Options.AutoFetch != nil {
			options.AutoFetch = *req.Options.AutoFetch
		}
		if req.Options.DownloadTimeout != nil && *req.Options.DownloadTimeout > 0 {
			options.DownloadTimeout = *req.Options.DownloadTimeout
		}
	}

	job := models.AnalysisJob{
		PlaylistURL: req.PlaylistURL,
		Status:      models.JobStatusPending,
		Options:     options,
	}
	if err := h.db.Create(&job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	if !h.queue.Enqueue(job.ID) {
		msg := "job queue is full"
		job.Status = models.JobStatusFailed
		job.ErrorMessage = &msg
		h.db.Save(&job)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": msg})
		return
	}

	logger.Info("Job submitted", logger.Fields{
		"job_id":       job.ID.String(),
		"playlist_url": req.PlaylistURL,
	})
	c.JSON(http.StatusAccepted, jobStatusResponse(&job))
}

// GetStatus returns the job's lifecycle state and progress
func (h *JobHandler) GetStatus(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, jobStatusResponse(job))
}

// GetResults returns the completed mix plan with full transition detail
func (h *JobHandler) GetResults(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	if job.Status != models.JobStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "job has not completed",
			"status": job.Status,
		})
		return
	}

	var transitions []models.MixTransition
	if err := h.db.Where("job_id = ?", job.ID).
		Preload("TrackA").
		Preload("TrackB").
		Order("position ASC").
		Find(&transitions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transitions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":      job.ID,
		"status":      job.Status,
		"result":      job.Result,
		"transitions": transitions,
	})
}

// Cancel stops an active job. The failed status is recorded immediately;
// the worker notices at the next track boundary.
func (h *JobHandler) Cancel(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	if !job.IsActive() {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "job is not active",
			"status": job.Status,
		})
		return
	}

	msg := models.ErrCancelledByUser
	job.Status = models.JobStatusFailed
	job.ErrorMessage = &msg
	if err := h.db.Save(job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel job"})
		return
	}
	h.queue.Cancel(job.ID)

	logger.Info("Job cancelled", logger.Fields{"job_id": job.ID.String()})
	c.JSON(http.StatusOK, jobStatusResponse(job))
}

// List returns jobs newest first, optionally filtered by status
func (h *JobHandler) List(c *gin.Context) {
	query := h.db.Model(&models.AnalysisJob{})

	if status := c.Query("status"); status != "" {
		switch models.JobStatus(status) {
		case models.JobStatusPending, models.JobStatusProcessing,
			models.JobStatusCompleted, models.JobStatusFailed:
			query = query.Where("status = ?", status)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
			return
		}
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count jobs"})
		return
	}

	var jobs []models.AnalysisJob
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	items := make([]gin.H, 0, len(jobs))
	for i := range jobs {
		items = append(items, jobStatusResponse(&jobs[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":      items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *JobHandler) loadJob(c *gin.Context) (*models.AnalysisJob, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return nil, false
	}

	var job models.AnalysisJob
	if err := h.db.First(&job, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		}
		return nil, false
	}
	return &job, true
}

func jobStatusResponse(job *models.AnalysisJob) gin.H {
	resp := gin.H{
		"id":                job.ID,
		"playlist_url":      job.PlaylistURL,
		"playlist_id":       job.PlaylistID,
		"playlist_name":     job.PlaylistName,
		"status":            job.Status,
		"progress":          job.ProgressPercentage(),
		"total_tracks":      job.TotalTracks,
		"analyzed_tracks":   job.AnalyzedTracks,
		"downloaded_tracks": job.DownloadedTracks,
		"failed_tracks":     job.FailedTracks,
		"created_at":        job.CreatedAt,
	}
	if job.StartedAt != nil {
		resp["started_at"] = job.StartedAt
	}
	if job.CompletedAt != nil {
		resp["completed_at"] = job.CompletedAt
	}
	if job.ErrorMessage != nil {
		resp["error_message"] = *job.ErrorMessage
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	return resp
}
