package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AsarMichil/jockee/internal/config"
	"github.com/AsarMichil/jockee/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPlaylistURL = "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M"

type fakeQueue struct {
	enqueued  []uuid.UUID
	cancelled []uuid.UUID
	full      bool
}

func (q *fakeQueue) Enqueue(jobID uuid.UUID) bool {
	if q.full {
		return false
	}
	q.enqueued = append(q.enqueued, jobID)
	return true
}

func (q *fakeQueue) Cancel(jobID uuid.UUID) {
	q.cancelled = append(q.cancelled, jobID)
}

func setupJobTest(t *testing.T) (*gorm.DB, *fakeQueue, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Track{}, &models.AnalysisJob{}, &models.MixTransition{}))

	queue := &fakeQueue{}
	cfg := &config.Config{MaxTracksPerJob: 50, DownloadTimeoutSecs: 300}
	handler := NewJobHandler(db, cfg, queue)

	router := gin.New()
	router.POST("/jobs/analyze", handler.Analyze)
	router.GET("/jobs", handler.List)
	router.GET("/jobs/:id/status", handler.GetStatus)
	router.GET("/jobs/:id/results", handler.GetResults)
	router.DELETE("/jobs/:id", handler.Cancel)

	return db, queue, router
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAnalyzeCreatesJob(t *testing.T) {
	db, queue, router := setupJobTest(t)

	w := postJSON(router, "/jobs/analyze", gin.H{"playlist_url": testPlaylistURL})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp["status"])
	assert.Equal(t, testPlaylistURL, resp["playlist_url"])

	require.Len(t, queue.enqueued, 1)

	var count int64
	db.Model(&models.AnalysisJob{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestAnalyzeRejectsBadReference(t *testing.T) {
	_, queue, router := setupJobTest(t)

	w := postJSON(router, "/jobs/analyze", gin.H{"playlist_url": "not a playlist"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(router, "/jobs/analyze", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, queue.enqueued)
}

func TestAnalyzeDeduplicatesActiveJobs(t *testing.T) {
	db, queue, router := setupJobTest(t)

	w := postJSON(router, "/jobs/analyze", gin.H{"playlist_url": testPlaylistURL})
	require.Equal(t, http.StatusAccepted, w.Code)

	// Resubmission returns the active job instead of creating another
	w = postJSON(router, "/jobs/analyze", gin.H{"playlist_url": testPlaylistURL})
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.AnalysisJob{}).Count(&count)
	assert.EqualValues(t, 1, count)
	assert.Len(t, queue.enqueued, 1)
}

func TestAnalyzeCapsMaxTracks(t *testing.T) {
	db, _, router := setupJobTest(t)

	w := postJSON(router, "/jobs/analyze", gin.H{
		"playlist_url": testPlaylistURL,
		"options":      gin.H{"max_tracks": 500},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var job models.AnalysisJob
	require.NoError(t, db.First(&job).Error)
	assert.Equal(t, 50, job.Options.MaxTracks)
}

func TestGetStatus(t *testing.T) {
	db, _, router := setupJobTest(t)

	job := models.AnalysisJob{
		PlaylistURL:    testPlaylistURL,
		Status:         models.JobStatusProcessing,
		TotalTracks:    10,
		AnalyzedTracks: 4,
	}
	require.NoError(t, db.Create(&job).Error)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String()+"/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "processing", resp["status"])
	assert.InDelta(t, 40.0, resp["progress"].(float64), 1e-9)
}

func TestGetStatusNotFound(t *testing.T) {
	_, _, router := setupJobTest(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+uuid.NewString()+"/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid/status", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetResultsRequiresCompletion(t *testing.T) {
	db, _, router := setupJobTest(t)

	job := models.AnalysisJob{PlaylistURL: testPlaylistURL, Status: models.JobStatusProcessing}
	require.NoError(t, db.Create(&job).Error)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String()+"/results", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetResultsReturnsTransitions(t *testing.T) {
	db, _, router := setupJobTest(t)

	trackA := models.Track{SpotifyID: "a", Title: "a", Artist: "x", FileSource: models.FileSourceLocal}
	trackB := models.Track{SpotifyID: "b", Title: "b", Artist: "x", FileSource: models.FileSourceLocal}
	require.NoError(t, db.Create(&trackA).Error)
	require.NoError(t, db.Create(&trackB).Error)

	job := models.AnalysisJob{
		PlaylistURL: testPlaylistURL,
		Status:      models.JobStatusCompleted,
		Result:      &models.JobResult{TotalDuration: 480, Strategy: "smart_dj"},
	}
	require.NoError(t, db.Create(&job).Error)
	require.NoError(t, db.Create(&models.MixTransition{
		JobID:              job.ID,
		Position:           0,
		TrackAID:           trackA.ID,
		TrackBID:           trackB.ID,
		TransitionStart:    210,
		TransitionDuration: 16,
		Technique:          models.TechniqueCrossfade,
	}).Error)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String()+"/results", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status      string                 `json:"status"`
		Result      map[string]interface{} `json:"result"`
		Transitions []struct {
			Technique string `json:"technique"`
			TrackA    struct {
				SpotifyID string `json:"spotify_id"`
			} `json:"track_a"`
		} `json:"transitions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "smart_dj", resp.Result["strategy"])
	require.Len(t, resp.Transitions, 1)
	assert.Equal(t, models.TechniqueCrossfade, resp.Transitions[0].Technique)
	assert.Equal(t, "a", resp.Transitions[0].TrackA.SpotifyID)
}

func TestCancelJob(t *testing.T) {
	db, queue, router := setupJobTest(t)

	job := models.AnalysisJob{PlaylistURL: testPlaylistURL, Status: models.JobStatusProcessing}
	require.NoError(t, db.Create(&job).Error)

	req := httptest.NewRequest(http.MethodDelete, "/jobs/"+job.ID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.AnalysisJob
	require.NoError(t, db.First(&got, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, models.ErrCancelledByUser, *got.ErrorMessage)
	assert.Equal(t, []uuid.UUID{job.ID}, queue.cancelled)

	// Cancelling a terminal job conflicts
	req = httptest.NewRequest(http.MethodDelete, "/jobs/"+job.ID.String(), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListJobsFilterAndPagination(t *testing.T) {
	db, _, router := setupJobTest(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.AnalysisJob{
			PlaylistURL: testPlaylistURL,
			Status:      models.JobStatusCompleted,
		}).Error)
	}
	require.NoError(t, db.Create(&models.AnalysisJob{
		PlaylistURL: testPlaylistURL,
		Status:      models.JobStatusFailed,
	}).Error)

	req := httptest.NewRequest(http.MethodGet, "/jobs?status=completed&page_size=2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Jobs     []map[string]interface{} `json:"jobs"`
		Total    int64                    `json:"total"`
		Page     int                      `json:"page"`
		PageSize int                      `json:"page_size"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 3, resp.Total)
	assert.Len(t, resp.Jobs, 2)
	assert.Equal(t, 2, resp.PageSize)

	// Unknown status filter rejected
	req = httptest.NewRequest(http.MethodGet, "/jobs?status=bogus", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
