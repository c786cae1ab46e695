package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AsarMichil/jockee/internal/analysis"
	"github.com/AsarMichil/jockee/internal/fetch"
	"github.com/AsarMichil/jockee/internal/models"
	"github.com/AsarMichil/jockee/internal/spotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPlaylistURL = "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Track{}, &models.AnalysisJob{}, &models.MixTransition{}))
	return db
}

type fakeCatalogue struct {
	tracks []spotify.PlaylistTrack
	err    error
}

func (f *fakeCatalogue) GetPlaylist(_ context.Context, id string) (*spotify.Playlist, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &spotify.Playlist{ID: id, Name: "Test Playlist", Total: len(f.tracks)}, nil
}

func (f *fakeCatalogue) GetPlaylistTracks(_ context.Context, _ string) ([]spotify.PlaylistTrack, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tracks, nil
}

type fakeFetcher struct {
	fail  bool
	calls int
}

func (f *fakeFetcher) Acquire(_ context.Context, artist, title, spotifyID string) (*fetch.Result, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("no audio found")
	}
	path := "/tmp/" + spotifyID + ".mp3"
	return &fetch.Result{LocalPath: path, Source: models.FileSourceLocal, SizeBytes: 1024}, nil
}

func stubAnalyze(bpm float64, key string) AnalyzeFunc {
	return func(_ context.Context, _ string) (*analysis.Result, error) {
		energy := 0.6
		return &analysis.Result{
			BPM:    &bpm,
			Key:    &key,
			Energy: &energy,
		}, nil
	}
}

func playlistTracks(n int) []spotify.PlaylistTrack {
	out := make([]spotify.PlaylistTrack, 0, n)
	names := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for i := 0; i < n; i++ {
		out = append(out, spotify.PlaylistTrack{
			SpotifyID: "sp_" + names[i],
			Title:     names[i],
			Artist:    "artist",
			Duration:  240,
		})
	}
	return out
}

func newTestRunner(db *gorm.DB, catalogue Catalogue, fetcher Fetcher) *Runner {
	r := NewRunner(db, catalogue, fetcher, nil)
	r.analyze = stubAnalyze(124, "Am")
	return r
}

func createJob(t *testing.T, db *gorm.DB) *models.AnalysisJob {
	t.Helper()
	job := &models.AnalysisJob{
		PlaylistURL: testPlaylistURL,
		Status:      models.JobStatusPending,
		Options:     models.DefaultJobOptions(50, 300),
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

func TestRunnerCompletesJob(t *testing.T) {
	db := openTestDB(t)
	runner := newTestRunner(db, &fakeCatalogue{tracks: playlistTracks(3)}, &fakeFetcher{})
	job := createJob(t, db)

	require.NoError(t, runner.Run(context.Background(), job.ID))

	var got models.AnalysisJob
	require.NoError(t, db.First(&got, "id = ?", job.ID).Error)

	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 3, got.TotalTracks)
	assert.Equal(t, 3, got.AnalyzedTracks)
	assert.Equal(t, 0, got.FailedTracks)
	assert.Equal(t, "Test Playlist", got.PlaylistName)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.InDelta(t, 100.0, got.ProgressPercentage(), 1e-9)

	require.NotNil(t, got.Result)
	assert.NotEmpty(t, got.Result.Strategy)
	assert.Greater(t, got.Result.TotalDuration, 0.0)

	var transitions []models.MixTransition
	require.NoError(t, db.Where("job_id = ?", job.ID).Order("position ASC").Find(&transitions).Error)
	require.Len(t, transitions, 2)
	for i, tr := range transitions {
		assert.Equal(t, i, tr.Position)
		assert.NotEmpty(t, tr.Technique)
	}
}

func TestRunnerCountsBeatlessTrackAsFailed(t *testing.T) {
	db := openTestDB(t)
	runner := newTestRunner(db, &fakeCatalogue{tracks: playlistTracks(3)}, &fakeFetcher{})

	// One track decodes but yields no tempo; its result carries only a warning
	inner := runner.analyze
	runner.analyze = func(ctx context.Context, path string) (*analysis.Result, error) {
		if path == "/tmp/sp_gamma.mp3" {
			return &analysis.Result{Warnings: []string{"tempo: no tempo detected"}}, nil
		}
		return inner(ctx, path)
	}

	job := createJob(t, db)
	require.NoError(t, runner.Run(context.Background(), job.ID))

	var got models.AnalysisJob
	require.NoError(t, db.First(&got, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.AnalyzedTracks)
	assert.Equal(t, 1, got.FailedTracks)

	// The beatless track is persisted without an analysis stamp
	var track models.Track
	require.NoError(t, db.First(&track, "spotify_id = ?", "sp_gamma").Error)
	assert.Nil(t, track.AnalyzedAt)
	assert.Nil(t, track.BPM)
	assert.False(t, track.IsAnalyzed())
	require.NotNil(t, track.AnalysisError)
	assert.Contains(t, *track.AnalysisError, "no tempo detected")
}

func TestRunnerFailsWithoutUsableAudio(t *testing.T) {
	db := openTestDB(t)
	runner := newTestRunner(db, &fakeCatalogue{tracks: playlistTracks(3)}, &fakeFetcher{fail: true})
	job := createJob(t, db)

	require.NoError(t, runner.Run(context.Background(), job.ID))

	var got models.AnalysisJob
	require.NoError(t, db.First(&got, "id = ?", job.ID).Error)

	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, 3, got.FailedTracks)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "not enough analysed tracks", *got.ErrorMessage)

	// Tracks are still persisted as unavailable
	var count int64
	db.Model(&models.Track{}).Where("file_source = ?", models.FileSourceUnavailable).Count(&count)
	assert.EqualValues(t, 3, count)
}

func TestRunnerFailsOnPlaylistResolution(t *testing.T) {
	db := openTestDB(t)
	runner := newTestRunner(db, &fakeCatalogue{err: spotify.ErrPlaylistNotFound}, &fakeFetcher{})
	job := createJob(t, db)

	require.NoError(t, runner.Run(context.Background(), job.ID))

	var got models.AnalysisJob
	require.NoError(t, db.First(&got, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "playlist resolution failed")
}

func TestRunnerSkipsNonPendingJob(t *testing.T) {
	db := openTestDB(t)
	fetcher := &fakeFetcher{}
	runner := newTestRunner(db, &fakeCatalogue{tracks: playlistTracks(2)}, fetcher)

	job := createJob(t, db)
	require.NoError(t, db.Model(job).Update("status", models.JobStatusCompleted).Error)

	require.NoError(t, runner.Run(context.Background(), job.ID))
	assert.Zero(t, fetcher.calls)
}

func TestRunnerSkipsAnalysisWhenFresh(t *testing.T) {
	db := openTestDB(t)

	// Track already analysed with a usable file
	now := time.Now().UTC()
	bpm := 120.0
	path := "/tmp/sp_alpha.mp3"
	existing := models.Track{
		SpotifyID:  "sp_alpha",
		Title:      "alpha",
		Artist:     "artist",
		Duration:   240,
		LocalPath:  &path,
		FileSource: models.FileSourceLocal,
		BPM:        &bpm,
		AnalyzedAt: &now,
	}
	require.NoError(t, db.Create(&existing).Error)

	runner := newTestRunner(db, &fakeCatalogue{tracks: playlistTracks(2)}, &fakeFetcher{})
	analyzeCalls := 0
	inner := runner.analyze
	runner.analyze = func(ctx context.Context, p string) (*analysis.Result, error) {
		analyzeCalls++
		return inner(ctx, p)
	}

	job := createJob(t, db)
	require.NoError(t, runner.Run(context.Background(), job.ID))

	var got models.AnalysisJob
	require.NoError(t, db.First(&got, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.AnalyzedTracks)
	// Only the second track needed analysing
	assert.Equal(t, 1, analyzeCalls)
}

func TestCancellationPreservesMessage(t *testing.T) {
	db := openTestDB(t)
	runner := newTestRunner(db, &fakeCatalogue{tracks: playlistTracks(2)}, &fakeFetcher{})

	job := createJob(t, db)
	msg := models.ErrCancelledByUser
	require.NoError(t, db.Model(job).Updates(map[string]interface{}{
		"status":        models.JobStatusFailed,
		"error_message": msg,
	}).Error)

	// A later failure path must not overwrite the cancellation message
	require.NoError(t, runner.failJob(job, "mix planning failed"))

	var got models.AnalysisJob
	require.NoError(t, db.First(&got, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, models.ErrCancelledByUser, *got.ErrorMessage)
}

func TestCancelledChecksPersistedStatus(t *testing.T) {
	db := openTestDB(t)
	runner := newTestRunner(db, &fakeCatalogue{}, &fakeFetcher{})
	job := createJob(t, db)

	assert.False(t, runner.cancelled(context.Background(), job.ID))

	require.NoError(t, db.Model(job).Update("status", models.JobStatusFailed).Error)
	assert.True(t, runner.cancelled(context.Background(), job.ID))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, runner.cancelled(ctx, job.ID))
}

func TestFindActiveJobByPlaylist(t *testing.T) {
	db := openTestDB(t)

	found, err := FindActiveJobByPlaylist(db, testPlaylistURL)
	require.NoError(t, err)
	assert.Nil(t, found)

	job := createJob(t, db)
	found, err = FindActiveJobByPlaylist(db, testPlaylistURL)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, job.ID, found.ID)

	// Terminal jobs don't count as active
	require.NoError(t, db.Model(job).Update("status", models.JobStatusCompleted).Error)
	found, err = FindActiveJobByPlaylist(db, testPlaylistURL)
	require.NoError(t, err)
	assert.Nil(t, found)
}
