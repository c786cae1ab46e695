package config

import (
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	// Environment
	Environment string
	Port        string

	// Database
	DatabaseURL string

	// Spotify (catalogue provider)
	SpotifyClientID     string
	SpotifyClientSecret string
	BaseURL             string

	// Object store / CDN
	S3Bucket         string
	S3Region         string
	CloudFrontDomain string

	// Audio pipeline
	AudioStoragePath    string  // Local cache for downloaded audio
	DownloadsPerMinute  float64 // yt-dlp pacing budget
	DownloadTimeoutSecs int     // Per-track download timeout
	WorkerCount         int     // Analysis worker pool size
	MaxTracksPerJob     int     // Hard cap on playlist length

	// Observability
	SentryDSN string

	// Session
	SessionSecret string
}

func Load() *Config {
	return &Config{
		Environment:         getEnv("ENVIRONMENT", "development"),
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         getEnv("DATABASE_URL", "postgres://localhost:5432/jockee?sslmode=disable"),
		SpotifyClientID:     getEnv("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret: getEnv("SPOTIFY_CLIENT_SECRET", ""),
		BaseURL:             getEnv("BASE_URL", "http://localhost:8080"),
		S3Bucket:            getEnv("S3_BUCKET", ""),
		S3Region:            getEnv("S3_REGION", "us-west-2"),
		CloudFrontDomain:    getEnv("CLOUDFRONT_DOMAIN", ""),
		AudioStoragePath:    getEnv("AUDIO_STORAGE_PATH", "./audio-cache"),
		DownloadsPerMinute:  getEnvFloat("DOWNLOADS_PER_MINUTE", 10),
		DownloadTimeoutSecs: getEnvInt("DOWNLOAD_TIMEOUT_SECONDS", 300),
		WorkerCount:         getEnvInt("WORKER_COUNT", 2),
		MaxTracksPerJob:     getEnvInt("MAX_TRACKS_PER_JOB", 50),
		SentryDSN:           getEnv("SENTRY_DSN", ""),
		SessionSecret:       getEnv("SESSION_SECRET", "jockee-dev-secret"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// S3Enabled reports whether an object store bucket is configured
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// IsProduction returns true when running in the production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
