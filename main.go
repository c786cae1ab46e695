package main

import (
	"context"
	"log"
	"time"

	"github.com/AsarMichil/jockee/internal/api"
	apimiddleware "github.com/AsarMichil/jockee/internal/api/middleware"
	"github.com/AsarMichil/jockee/internal/config"
	"github.com/AsarMichil/jockee/internal/database"
	"github.com/AsarMichil/jockee/internal/fetch"
	"github.com/AsarMichil/jockee/internal/metrics"
	"github.com/AsarMichil/jockee/internal/spotify"
	"github.com/AsarMichil/jockee/internal/storage"
	"github.com/AsarMichil/jockee/internal/worker"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	sentryFlushTimeout    = 2 * time.Second
	environmentProduction = "production"
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Initialize Sentry
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			Release:          "jockee@" + releaseVersion,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			EnableLogs:       true,
			Debug:            cfg.Environment != environmentProduction,
			BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
				// Filter out sensitive data
				if event.Request != nil {
					event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
				}
				return event
			},
		}); err != nil {
			log.Printf("Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
			defer sentry.Flush(sentryFlushTimeout)
		}
	} else {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
	}

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to connect to database:", err)
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to run migrations:", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Object store is optional; without it audio stays in the local cache
	var store *storage.Client
	if cfg.S3Enabled() {
		store, err = storage.NewClient(ctx, cfg.S3Bucket, cfg.S3Region, cfg.CloudFrontDomain)
		if err != nil {
			sentry.CaptureException(err)
			log.Fatal("Failed to initialize object store:", err)
		}
		log.Printf("Object store enabled (bucket: %s)", cfg.S3Bucket)
	} else {
		log.Printf("Object store not configured, caching audio at %s", cfg.AudioStoragePath)
	}

	catalogue := spotify.NewClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret)

	var objectStore fetch.ObjectStore
	var downloader worker.ObjectDownloader
	if store != nil {
		objectStore = store
		downloader = store
	}
	fetcher := fetch.New(objectStore, cfg.AudioStoragePath,
		cfg.DownloadsPerMinute, time.Duration(cfg.DownloadTimeoutSecs)*time.Second)

	// CloudWatch custom metrics (production only)
	cwMetrics, err := metrics.NewClient(ctx, cfg.Environment)
	if err != nil {
		log.Printf("CloudWatch metrics unavailable: %v", err)
	} else {
		apimiddleware.SetCloudWatchMetrics(cwMetrics)
	}

	// Worker pool
	runner := worker.NewRunner(db, catalogue, fetcher, downloader)
	if cwMetrics != nil {
		runner.SetMetrics(cwMetrics)
	}
	pool := worker.NewPool(runner, cfg.WorkerCount)
	pool.Start(ctx)
	defer pool.Stop()
	log.Printf("Worker pool started (%d workers)", cfg.WorkerCount)

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := api.SetupRouter(api.Deps{
		DB:        db,
		Config:    cfg,
		Catalogue: catalogue,
		Storage:   store,
		Fetcher:   fetcher,
		Queue:     pool,
		Version:   releaseVersion,
	})

	log.Printf("🚀 Starting server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to start server:", err)
	}
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"x-api-key":     true,
	}

	for k, v := range headers {
		if sensitiveKeys[k] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
