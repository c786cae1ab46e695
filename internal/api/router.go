package api

import (
	"github.com/AsarMichil/jockee/internal/api/handlers"
	apimiddleware "github.com/AsarMichil/jockee/internal/api/middleware"
	"github.com/AsarMichil/jockee/internal/config"
	"github.com/AsarMichil/jockee/internal/fetch"
	"github.com/AsarMichil/jockee/internal/spotify"
	"github.com/AsarMichil/jockee/internal/storage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries the shared services the handlers need
type Deps struct {
	DB        *gorm.DB
	Config    *config.Config
	Catalogue *spotify.Client
	Storage   *storage.Client // nil when no bucket is configured
	Fetcher   *fetch.Fetcher
	Queue     handlers.JobQueue
	Version   string
}

func SetupRouter(deps Deps) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking())

	// CORS middleware
	router.Use(apimiddleware.CORS())

	// Health check
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Storage != nil)
	router.GET("/health", healthHandler.HealthCheck)

	// Runtime metrics endpoint
	metricsHandler := handlers.NewMetricsHandler(deps.DB, deps.Version)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	// Auth routes (public)
	auth := router.Group("/api/auth")
	{
		oauthHandler := handlers.NewOAuthHandler(deps.Config)
		auth.GET("/:provider", oauthHandler.BeginAuth)
		auth.GET("/:provider/callback", oauthHandler.Callback)
		auth.POST("/logout", oauthHandler.Logout)
	}

	v1 := router.Group("/api/v1")
	{
		// Job submission and lifecycle
		jobHandler := handlers.NewJobHandler(deps.DB, deps.Config, deps.Queue)
		v1.POST("/jobs/analyze", jobHandler.Analyze)
		v1.GET("/jobs", jobHandler.List)
		v1.GET("/jobs/:id/status", jobHandler.GetStatus)
		v1.GET("/jobs/:id/results", jobHandler.GetResults)
		v1.GET("/jobs/:id/mix", jobHandler.GetResults) // alias
		v1.DELETE("/jobs/:id", jobHandler.Cancel)

		// Playlist browse
		playlistHandler := handlers.NewPlaylistHandler(deps.Catalogue)
		v1.GET("/playlists/search", playlistHandler.Search)
		v1.GET("/playlists/:id", playlistHandler.Get)
		v1.GET("/playlists/:id/tracks", playlistHandler.GetTracks)

		// Track catalogue
		var resolver handlers.AudioURLResolver
		if deps.Storage != nil {
			resolver = deps.Storage
		}
		trackHandler := handlers.NewTrackHandler(deps.DB, resolver)
		v1.GET("/tracks", trackHandler.List)
		v1.GET("/tracks/:id", trackHandler.Get)

		// Cache maintenance
		maintenanceHandler := handlers.NewMaintenanceHandler(deps.Fetcher)
		v1.GET("/maintenance/storage", maintenanceHandler.StorageUsage)
		v1.POST("/maintenance/cleanup", maintenanceHandler.Cleanup)
	}

	return router
}
