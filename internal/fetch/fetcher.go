// Package fetch acquires audio content for a track: object store first,
// then the local cache, then a rate-limited remote search-and-download
// with loudness normalisation and upload.
package fetch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/AsarMichil/jockee/internal/logger"
	"github.com/AsarMichil/jockee/internal/models"
	"github.com/AsarMichil/jockee/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	audioKeyPrefix   = "audio"
	normalizeTimeout = 300 * time.Second
	downloadRetries  = 3
)

// Loudness normalisation targets (EBU R128)
const (
	loudnormTarget = "I=-16:TP=-1.5:LRA=11"
	outputRate     = "44100"
	outputBitrate  = "320k"
)

var (
	unsafeChars   = regexp.MustCompile(`[^a-z0-9._-]+`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// Result describes where the acquired audio ended up
type Result struct {
	S3Key     string
	LocalPath string
	Source    models.FileSource
	SizeBytes int64
}

// ObjectStore is the object-store surface the fetcher needs
type ObjectStore interface {
	FindByPrefix(ctx context.Context, prefix string) (string, bool, error)
	Upload(ctx context.Context, localPath, key string, metadata map[string]string) error
	Head(ctx context.Context, key string) (*storage.ObjectInfo, error)
}

// Fetcher resolves audio for tracks with a shared download rate limit
type Fetcher struct {
	store           ObjectStore // nil when no bucket is configured
	cachePath       string
	limiter         *rate.Limiter
	downloadTimeout time.Duration
}

// New builds a fetcher. downloadsPerMinute caps remote downloads across
// all concurrent jobs.
func New(store ObjectStore, cachePath string, downloadsPerMinute float64, downloadTimeout time.Duration) *Fetcher {
	if downloadsPerMinute <= 0 {
		downloadsPerMinute = 10
	}
	return &Fetcher{
		store:           store,
		cachePath:       cachePath,
		limiter:         rate.NewLimiter(rate.Limit(downloadsPerMinute/60.0), 1),
		downloadTimeout: downloadTimeout,
	}
}

// SanitizeName makes a string safe for filesystem paths and object keys
func SanitizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = unsafeChars.ReplaceAllString(s, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// KeyPrefix is the deterministic object-key prefix for an (artist, title)
// pair; stored keys append a uuid suffix under it.
func KeyPrefix(artist, title string) string {
	return fmt.Sprintf("%s/%s/%s_", audioKeyPrefix, SanitizeName(artist), SanitizeName(title))
}

// NewObjectKey mints a fresh uuid-suffixed key for an upload
func NewObjectKey(artist, title string) string {
	return fmt.Sprintf("%s%s.mp3", KeyPrefix(artist, title), uuid.New().String()[:8])
}

// cacheFile is the local cache path for an (artist, title) pair
func (f *Fetcher) cacheFile(artist, title string) string {
	return filepath.Join(f.cachePath, fmt.Sprintf("%s_%s.mp3", SanitizeName(artist), SanitizeName(title)))
}

// Acquire resolves audio for a track: object store, then local cache,
// then remote download + normalise + upload. A nil error with
// Source=unavailable never happens; failures return the error and the
// caller marks the track unavailable.
func (f *Fetcher) Acquire(ctx context.Context, artist, title, spotifyID string) (*Result, error) {
	fields := logger.Fields{"artist": artist, "title": title, "track_id": spotifyID}

	// 1. Object store
	if f.store != nil {
		key, found, err := f.store.FindByPrefix(ctx, KeyPrefix(artist, title))
		if err != nil {
			logger.Warn("Object store lookup failed, falling through", logger.Fields{
				"artist": artist, "title": title, "error": err.Error(),
			})
		} else if found {
			size := int64(0)
			if info, err := f.store.Head(ctx, key); err == nil {
				size = info.Size
			}
			logger.Info("Audio found in object store", fields)
			return &Result{S3Key: key, Source: models.FileSourceS3, SizeBytes: size}, nil
		}
	}

	// 2. Local cache
	local := f.cacheFile(artist, title)
	if info, err := os.Stat(local); err == nil && info.Size() > 0 {
		logger.Info("Audio found in local cache", fields)
		return &Result{LocalPath: local, Source: models.FileSourceLocal, SizeBytes: info.Size()}, nil
	}

	// 3. Remote download
	return f.download(ctx, artist, title, spotifyID)
}

// download runs the rate-limited yt-dlp search-and-download pipeline
func (f *Fetcher) download(ctx context.Context, artist, title, spotifyID string) (*Result, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch: rate limit wait: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "jockee-fetch-*")
	if err != nil {
		return nil, fmt.Errorf("fetch: temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	dlCtx := ctx
	if f.downloadTimeout > 0 {
		var cancel context.CancelFunc
		dlCtx, cancel = context.WithTimeout(ctx, f.downloadTimeout)
		defer cancel()
	}

	rawPath := filepath.Join(tmpDir, "raw.mp3")
	query := fmt.Sprintf("ytsearch1:%s %s audio", artist, title)

	cmd := exec.CommandContext(dlCtx, "yt-dlp",
		"--extract-audio",
		"--audio-format", "mp3",
		"--no-playlist",
		"--retries", fmt.Sprintf("%d", downloadRetries),
		"--output", rawPath,
		"--quiet",
		query,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("fetch: download failed: %v: %s", err, truncate(string(out), 200))
	}

	if info, err := os.Stat(rawPath); err != nil || info.Size() == 0 {
		return nil, fmt.Errorf("fetch: download produced no audio for %q", query)
	}

	// Normalise loudness; on failure keep the raw file
	finalPath := filepath.Join(tmpDir, "normalized.mp3")
	if err := normalizeLoudness(ctx, rawPath, finalPath); err != nil {
		logger.Warn("Loudness normalisation failed, keeping raw audio", logger.Fields{
			"artist": artist, "title": title, "error": err.Error(),
		})
		finalPath = rawPath
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("fetch: stat output: %w", err)
	}

	// Upload to the object store when configured, else keep in the cache
	if f.store != nil {
		key := NewObjectKey(artist, title)
		meta := map[string]string{"spotify_id": spotifyID, "artist": artist, "title": title}
		if err := f.store.Upload(ctx, finalPath, key, meta); err != nil {
			return nil, fmt.Errorf("fetch: upload: %w", err)
		}
		return &Result{S3Key: key, Source: models.FileSourceS3, SizeBytes: info.Size()}, nil
	}

	if err := os.MkdirAll(f.cachePath, 0o755); err != nil {
		return nil, fmt.Errorf("fetch: cache dir: %w", err)
	}
	local := f.cacheFile(artist, title)
	if err := copyFile(finalPath, local); err != nil {
		return nil, fmt.Errorf("fetch: cache copy: %w", err)
	}
	return &Result{LocalPath: local, Source: models.FileSourceLocal, SizeBytes: info.Size()}, nil
}

// normalizeLoudness re-encodes to the loudness target as 44.1 kHz 320 kbps
// MP3
func normalizeLoudness(ctx context.Context, in, out string) error {
	normCtx, cancel := context.WithTimeout(ctx, normalizeTimeout)
	defer cancel()

	cmd := exec.CommandContext(normCtx, "ffmpeg",
		"-i", in,
		"-af", "loudnorm="+loudnormTarget,
		"-ar", outputRate,
		"-b:a", outputBitrate,
		"-v", "quiet",
		"-y",
		out,
	)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("loudnorm: %w", err)
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		return fmt.Errorf("loudnorm produced no output")
	}
	return nil
}

// StorageUsage reports the local cache footprint
func (f *Fetcher) StorageUsage() (fileCount int, totalBytes int64, err error) {
	entries, err := os.ReadDir(f.cachePath)
	if os.IsNotExist(err) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if info, err := e.Info(); err == nil {
			fileCount++
			totalBytes += info.Size()
		}
	}
	return fileCount, totalBytes, nil
}

// CleanupOldFiles removes cached audio older than maxAge and returns the
// number of files removed
func (f *Fetcher) CleanupOldFiles(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(f.cachePath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(f.cachePath, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
