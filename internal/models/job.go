package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus is the lifecycle state of an analysis job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// ErrCancelledByUser is the error message recorded on user cancellation
const ErrCancelledByUser = "cancelled by user"

// JobOptions controls how a job acquires and analyses tracks
type JobOptions struct {
	MaxTracks            int  `json:"max_tracks"`
	SkipAnalysisIfExists bool `json:"skip_analysis_if_exists"`
	AutoFetch            bool `json:"auto_fetch"`
	DownloadTimeout      int  `json:"download_timeout"` // seconds
}

// DefaultJobOptions returns the options applied when the caller omits them
func DefaultJobOptions(maxTracks, downloadTimeout int) JobOptions {
	return JobOptions{
		MaxTracks:            maxTracks,
		SkipAnalysisIfExists: true,
		AutoFetch:            true,
		DownloadTimeout:      downloadTimeout,
	}
}

// JobResult is the summary blob persisted when a job completes
type JobResult struct {
	TotalDuration float64                `json:"total_duration"`
	Strategy      string                 `json:"strategy"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	PlaylistInfo  map[string]interface{} `json:"playlist_info,omitempty"`
}

// AnalysisJob tracks one playlist-to-mix run end to end. Status moves
// pending -> processing -> completed|failed; cancellation forces
// processing -> failed with ErrCancelledByUser.
type AnalysisJob struct {
	ID        uuid.UUID      `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	PlaylistURL  string `gorm:"not null;index" json:"playlist_url"`
	PlaylistID   string `gorm:"index" json:"playlist_id"`
	PlaylistName string `json:"playlist_name"`

	Status JobStatus `gorm:"default:'pending';index" json:"status"`

	// Counters, monotonic non-decreasing within a run
	TotalTracks      int `gorm:"default:0" json:"total_tracks"`
	AnalyzedTracks   int `gorm:"default:0" json:"analyzed_tracks"`
	DownloadedTracks int `gorm:"default:0" json:"downloaded_tracks"`
	FailedTracks     int `gorm:"default:0" json:"failed_tracks"`

	Options      JobOptions `gorm:"serializer:json" json:"options"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	Result       *JobResult `gorm:"serializer:json" json:"result,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Transitions []MixTransition `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"transitions,omitempty"`
}

func (j *AnalysisJob) BeforeCreate(_ *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the job is still pending or running
func (j *AnalysisJob) IsActive() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusProcessing
}

// ProgressPercentage implements the progress contract: 100 when completed,
// 0 when failed, otherwise analysed/total capped at 99 and rounded to 1 dp.
func (j *AnalysisJob) ProgressPercentage() float64 {
	switch j.Status {
	case JobStatusCompleted:
		return 100
	case JobStatusFailed:
		return 0
	}
	if j.TotalTracks == 0 {
		return 0
	}
	pct := math.Min(100*float64(j.AnalyzedTracks)/float64(j.TotalTracks), 99)
	return math.Round(pct*10) / 10
}
