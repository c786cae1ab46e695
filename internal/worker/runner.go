package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AsarMichil/jockee/internal/analysis"
	"github.com/AsarMichil/jockee/internal/fetch"
	"github.com/AsarMichil/jockee/internal/logger"
	"github.com/AsarMichil/jockee/internal/mix"
	"github.com/AsarMichil/jockee/internal/models"
	"github.com/AsarMichil/jockee/internal/spotify"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Fatal job error messages
const (
	errNotEnoughTracks = "not enough analysed tracks"
)

// Catalogue is the playlist provider surface the runner needs
type Catalogue interface {
	GetPlaylist(ctx context.Context, id string) (*spotify.Playlist, error)
	GetPlaylistTracks(ctx context.Context, id string) ([]spotify.PlaylistTrack, error)
}

// Fetcher acquires audio content for a track
type Fetcher interface {
	Acquire(ctx context.Context, artist, title, spotifyID string) (*fetch.Result, error)
}

// ObjectDownloader pulls stored audio down for analysis
type ObjectDownloader interface {
	Download(ctx context.Context, key, localPath string) error
}

// AnalyzeFunc runs the extractor suite over an audio file
type AnalyzeFunc func(ctx context.Context, path string) (*analysis.Result, error)

// JobMetrics receives job-level counters when a run finishes
type JobMetrics interface {
	RecordJobDuration(duration time.Duration, success bool)
	RecordTrackCounts(analyzed, downloaded, failed int)
}

// Runner executes one analysis job end to end: resolve playlist, acquire
// and analyse each track in playlist order, then plan and persist the mix.
type Runner struct {
	db         *gorm.DB
	catalogue  Catalogue
	fetcher    Fetcher
	downloader ObjectDownloader // nil when no object store is configured
	analyze    AnalyzeFunc
	metrics    JobMetrics // nil when metrics are disabled
}

func NewRunner(db *gorm.DB, catalogue Catalogue, fetcher Fetcher, downloader ObjectDownloader) *Runner {
	return &Runner{
		db:         db,
		catalogue:  catalogue,
		fetcher:    fetcher,
		downloader: downloader,
		analyze:    analysis.AnalyzeFile,
	}
}

// SetMetrics installs an optional job metrics sink
func (r *Runner) SetMetrics(m JobMetrics) {
	r.metrics = m
}

// Run drives the job state machine. Per-track failures advance the failed
// counter and continue; only catalogue resolution, planner infeasibility,
// and internal errors fail the whole job.
func (r *Runner) Run(ctx context.Context, jobID uuid.UUID) error {
	var job models.AnalysisJob
	if err := r.db.First(&job, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status != models.JobStatusPending {
		// Already handled, or cancelled before a worker picked it up
		return nil
	}

	now := time.Now().UTC()
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	if err := r.db.Save(&job).Error; err != nil {
		return err
	}

	tracks, err := r.resolvePlaylist(ctx, &job)
	if err != nil {
		return r.failJob(&job, fmt.Sprintf("playlist resolution failed: %v", err))
	}

	ordered := make([]*models.Track, 0, len(tracks))
	for _, pt := range tracks {
		if r.cancelled(ctx, job.ID) {
			return r.failJob(&job, models.ErrCancelledByUser)
		}

		track := r.processTrack(ctx, &job, pt)
		if track != nil {
			ordered = append(ordered, track)
		}

		// Commit counters after every track so progress is observable
		if err := r.db.Save(&job).Error; err != nil {
			return err
		}
	}

	if r.cancelled(ctx, job.ID) {
		return r.failJob(&job, models.ErrCancelledByUser)
	}

	plan, err := mix.PlanMix(ordered)
	if err != nil {
		if errors.Is(err, mix.ErrNotEnoughTracks) {
			return r.failJob(&job, errNotEnoughTracks)
		}
		return r.failJob(&job, fmt.Sprintf("mix planning failed: %v", err))
	}

	return r.completeJob(&job, plan)
}

// resolvePlaylist fills the job's playlist fields and returns the capped
// track list. Failures here are fatal for the job.
func (r *Runner) resolvePlaylist(ctx context.Context, job *models.AnalysisJob) ([]spotify.PlaylistTrack, error) {
	playlistID := job.PlaylistID
	if playlistID == "" {
		id, err := spotify.ResolvePlaylistID(job.PlaylistURL)
		if err != nil {
			return nil, err
		}
		playlistID = id
	}

	playlist, err := r.catalogue.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	tracks, err := r.catalogue.GetPlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	if job.Options.MaxTracks > 0 && len(tracks) > job.Options.MaxTracks {
		tracks = tracks[:job.Options.MaxTracks]
	}

	job.PlaylistID = playlist.ID
	job.PlaylistName = playlist.Name
	job.TotalTracks = len(tracks)
	return tracks, r.db.Save(job).Error
}

// processTrack runs the per-track sub-pipeline: upsert, acquire, analyse.
// Returns the track record, or nil when the upsert itself failed.
func (r *Runner) processTrack(ctx context.Context, job *models.AnalysisJob, pt spotify.PlaylistTrack) *models.Track {
	fields := logger.Fields{"job_id": job.ID.String(), "track_id": pt.SpotifyID}

	track, err := r.upsertTrack(pt)
	if err != nil {
		logger.Error("Track upsert failed", err, fields)
		job.FailedTracks++
		return nil
	}

	// Acquisition
	if !track.HasFile() {
		if !job.Options.AutoFetch {
			track.FileSource = models.FileSourceUnavailable
			r.saveTrack(track, fields)
			job.FailedTracks++
			return track
		}

		result, err := r.fetcher.Acquire(ctx, track.Artist, track.Title, track.SpotifyID)
		if err != nil {
			logger.Warn("Audio acquisition failed", logger.Fields{
				"job_id": job.ID.String(), "track_id": pt.SpotifyID, "error": err.Error(),
			})
			track.FileSource = models.FileSourceUnavailable
			r.saveTrack(track, fields)
			job.FailedTracks++
			return track
		}

		if result.S3Key != "" {
			track.S3Key = &result.S3Key
		}
		if result.LocalPath != "" {
			track.LocalPath = &result.LocalPath
		}
		track.FileSource = result.Source
		track.FileSizeBytes = result.SizeBytes
		if result.Source == models.FileSourceS3 {
			job.DownloadedTracks++
		}
		r.saveTrack(track, fields)
	}

	// Analysis
	if job.Options.SkipAnalysisIfExists && track.AnalyzedAt != nil {
		job.AnalyzedTracks++
		return track
	}

	start := time.Now()
	result, err := r.analyzeTrack(ctx, track)
	if err != nil {
		msg := err.Error()
		track.AnalysisError = &msg
		r.saveTrack(track, fields)
		job.FailedTracks++
		return track
	}

	result.ApplyToTrack(track)
	r.saveTrack(track, fields)
	if !track.IsAnalyzed() {
		logger.Warn("Track analysis produced no usable tempo", logger.Fields{
			"job_id": job.ID.String(), "track_id": pt.SpotifyID,
		})
		job.FailedTracks++
		return track
	}
	job.AnalyzedTracks++
	logger.LogTrackAnalysis(ctx, track.SpotifyID, time.Since(start), logger.Fields{
		"job_id": job.ID.String(),
	})
	return track
}

// analyzeTrack decodes from the local path, pulling object-store audio
// into a temp file first when needed
func (r *Runner) analyzeTrack(ctx context.Context, track *models.Track) (*analysis.Result, error) {
	if track.LocalPath != nil && *track.LocalPath != "" {
		return r.analyze(ctx, *track.LocalPath)
	}

	if track.S3Key == nil || *track.S3Key == "" {
		return nil, errors.New("no audio file available for analysis")
	}
	if r.downloader == nil {
		return nil, errors.New("audio only in object store and no downloader configured")
	}

	tmpDir, err := os.MkdirTemp("", "jockee-analyze-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	local := filepath.Join(tmpDir, "audio.mp3")
	if err := r.downloader.Download(ctx, *track.S3Key, local); err != nil {
		return nil, err
	}
	return r.analyze(ctx, local)
}

// upsertTrack finds the shared track record by Spotify id, creating it
// with catalogue metadata when new
func (r *Runner) upsertTrack(pt spotify.PlaylistTrack) (*models.Track, error) {
	var track models.Track
	err := r.db.Where("spotify_id = ?", pt.SpotifyID).First(&track).Error
	if err == nil {
		return &track, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	track = models.Track{
		SpotifyID:  pt.SpotifyID,
		Title:      pt.Title,
		Artist:     pt.Artist,
		Album:      pt.Album,
		Duration:   pt.Duration,
		Popularity: pt.Popularity,
		PreviewURL: pt.PreviewURL,
		FileSource: models.FileSourceUnavailable,
	}
	if err := r.db.Create(&track).Error; err != nil {
		return nil, err
	}
	return &track, nil
}

func (r *Runner) saveTrack(track *models.Track, fields logger.Fields) {
	if err := r.db.Save(track).Error; err != nil {
		logger.Error("Track save failed", err, fields)
	}
}

// cancelled checks the cooperative cancellation signals: the job context
// and the persisted status, which a cancel request forces to failed
func (r *Runner) cancelled(ctx context.Context, jobID uuid.UUID) bool {
	if ctx.Err() != nil {
		return true
	}
	var status string
	if err := r.db.Model(&models.AnalysisJob{}).
		Where("id = ?", jobID).
		Pluck("status", &status).Error; err != nil {
		return false
	}
	return status == string(models.JobStatusFailed)
}

// failJob records a terminal failure. An already-failed job (cancelled by
// the API) keeps its original error message.
func (r *Runner) failJob(job *models.AnalysisJob, msg string) error {
	var fresh models.AnalysisJob
	if err := r.db.First(&fresh, "id = ?", job.ID).Error; err == nil &&
		fresh.Status == models.JobStatusFailed {
		return nil
	}

	now := time.Now().UTC()
	job.Status = models.JobStatusFailed
	job.ErrorMessage = &msg
	job.CompletedAt = &now

	logger.Warn("Job failed", logger.Fields{"job_id": job.ID.String(), "error": msg})
	r.recordJobMetrics(job, false)
	return r.db.Save(job).Error
}

func (r *Runner) recordJobMetrics(job *models.AnalysisJob, success bool) {
	if r.metrics == nil {
		return
	}
	if job.StartedAt != nil && job.CompletedAt != nil {
		r.metrics.RecordJobDuration(job.CompletedAt.Sub(*job.StartedAt), success)
	}
	r.metrics.RecordTrackCounts(job.AnalyzedTracks, job.DownloadedTracks, job.FailedTracks)
}

// completeJob persists the default plan's transitions and the result blob
// atomically with the completed status
func (r *Runner) completeJob(job *models.AnalysisJob, plan *mix.Plan) error {
	option := plan.Default

	return r.db.Transaction(func(tx *gorm.DB) error {
		// Reruns replace any prior plan
		if err := tx.Where("job_id = ?", job.ID).
			Delete(&models.MixTransition{}).Error; err != nil {
			return err
		}

		for i := range option.Transitions {
			t := option.Transitions[i]
			t.JobID = job.ID
			if err := tx.Create(&t).Error; err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		job.Status = models.JobStatusCompleted
		job.CompletedAt = &now
		r.recordJobMetrics(job, true)
		job.Result = &models.JobResult{
			TotalDuration: option.TotalDuration,
			Strategy:      option.Strategy,
			Metadata:      mix.BuildMetadata(option),
			PlaylistInfo: map[string]interface{}{
				"playlist_id":   job.PlaylistID,
				"playlist_name": job.PlaylistName,
				"total_tracks":  job.TotalTracks,
			},
		}
		return tx.Save(job).Error
	})
}

// FindActiveJobByPlaylist returns an existing pending/processing job for
// the playlist reference, for submission dedup
func FindActiveJobByPlaylist(db *gorm.DB, playlistURL string) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	err := db.Where("playlist_url = ? AND status IN ?", playlistURL,
		[]models.JobStatus{models.JobStatusPending, models.JobStatusProcessing}).
		Order("created_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}
