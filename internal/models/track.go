package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CurrentAnalysisVersion tags analysis blocks so stale rows can be re-analysed
// after extractor changes.
const CurrentAnalysisVersion = "1.0"

// FileSource describes where a track's audio file lives
type FileSource string

const (
	FileSourceLocal       FileSource = "local"
	FileSourceRemoteVideo FileSource = "remote_video"
	FileSourceS3          FileSource = "s3"
	FileSourceUnavailable FileSource = "unavailable"
)

// Interval is a labelled time span with a detection confidence
type Interval struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// EnergyPoint is one sample of the track's energy profile
type EnergyPoint struct {
	Time   float64 `json:"time"`
	Energy float64 `json:"energy"`
}

// MixableSection is a low-energy stable segment suitable for layering
type MixableSection struct {
	Type      string  `json:"type"` // "breakdown" or "ambient"
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Energy    float64 `json:"energy"`
	Stability float64 `json:"stability"`
	BeatCount int     `json:"beat_count"`
}

// StyleVector scores a track along five stylistic axes, each in [0,1]
type StyleVector struct {
	BeatDriven           float64 `json:"beat_driven"`
	MelodicFocus         float64 `json:"melodic_focus"`
	AmbientTexture       float64 `json:"ambient_texture"`
	VocalCentric         float64 `json:"vocal_centric"`
	AcousticVsElectronic float64 `json:"acoustic_vs_electronic"`
}

// Track is a playlist entry plus its audio file pointer and analysis block.
// Tracks are shared across jobs and deduplicated by Spotify id; the analysis
// block is replaced wholesale on re-analysis, never merged.
type Track struct {
	ID        uuid.UUID      `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Catalogue metadata
	SpotifyID  string  `gorm:"uniqueIndex;not null" json:"spotify_id"`
	Title      string  `gorm:"not null" json:"title"`
	Artist     string  `gorm:"not null" json:"artist"`
	Album      string  `json:"album"`
	Duration   float64 `json:"duration"` // seconds
	Popularity int     `json:"popularity"`
	PreviewURL string  `json:"preview_url,omitempty"`

	// File pointer
	S3Key         *string    `json:"s3_key,omitempty"`
	LocalPath     *string    `json:"local_path,omitempty"`
	FileSource    FileSource `gorm:"default:'unavailable';index" json:"file_source"`
	FileSizeBytes int64      `json:"file_size_bytes"`

	// Core analysis
	BPM           *float64 `json:"bpm,omitempty"`
	Key           *string  `json:"key,omitempty"` // e.g. "C", "Am"
	KeyConfidence *float64 `json:"key_confidence,omitempty"`

	// Perceptual scalars, all [0,1] except loudness (dBFS, floor -60)
	Energy           *float64 `json:"energy,omitempty"`
	Danceability     *float64 `json:"danceability,omitempty"`
	Valence          *float64 `json:"valence,omitempty"`
	Acousticness     *float64 `json:"acousticness,omitempty"`
	Instrumentalness *float64 `json:"instrumentalness,omitempty"`
	Liveness         *float64 `json:"liveness,omitempty"`
	Speechiness      *float64 `json:"speechiness,omitempty"`
	Loudness         *float64 `json:"loudness,omitempty"`

	// Beat grid
	BeatTimestamps  []float64 `gorm:"serializer:json" json:"beat_timestamps,omitempty"`
	BeatIntervals   []float64 `gorm:"serializer:json" json:"beat_intervals,omitempty"`
	BeatConfidences []float64 `gorm:"serializer:json" json:"beat_confidences,omitempty"`
	BeatConfidence  *float64  `json:"beat_confidence,omitempty"`
	BeatRegularity  *float64  `json:"beat_regularity,omitempty"`
	AvgBeatInterval *float64  `json:"avg_beat_interval,omitempty"`

	// Style
	Style           *StyleVector `gorm:"serializer:json" json:"style,omitempty"`
	DominantStyle   *string      `json:"dominant_style,omitempty"`
	StyleConfidence *float64     `json:"style_confidence,omitempty"`

	// Structure
	IntroEnd      *float64      `json:"intro_end,omitempty"`
	OutroStart    *float64      `json:"outro_start,omitempty"`
	IntroEnergy   *float64      `json:"intro_energy,omitempty"`
	OutroEnergy   *float64      `json:"outro_energy,omitempty"`
	EnergyProfile []EnergyPoint `gorm:"serializer:json" json:"energy_profile,omitempty"`

	// Vocal segmentation
	VocalIntervals        []Interval `gorm:"serializer:json" json:"vocal_intervals,omitempty"`
	InstrumentalIntervals []Interval `gorm:"serializer:json" json:"instrumental_intervals,omitempty"`

	// Mix points
	MixInPoint      *float64         `json:"mix_in_point,omitempty"`
	MixOutPoint     *float64         `json:"mix_out_point,omitempty"`
	MixableSections []MixableSection `gorm:"serializer:json" json:"mixable_sections,omitempty"`

	// Analysis bookkeeping
	AnalysisVersion *string    `json:"analysis_version,omitempty"`
	AnalyzedAt      *time.Time `json:"analyzed_at,omitempty"`
	AnalysisError   *string    `json:"analysis_error,omitempty"`
}

func (t *Track) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// HasFile reports whether the track has a usable audio file pointer
func (t *Track) HasFile() bool {
	if t.FileSource == FileSourceUnavailable || t.FileSource == "" {
		return false
	}
	return (t.S3Key != nil && *t.S3Key != "") || (t.LocalPath != nil && *t.LocalPath != "")
}

// IsAnalyzed reports whether the track carries a completed analysis block
func (t *Track) IsAnalyzed() bool {
	return t.AnalyzedAt != nil && t.BPM != nil
}

// DominantStyleName returns the dominant style label or "unknown"
func (t *Track) DominantStyleName() string {
	if t.DominantStyle == nil || *t.DominantStyle == "" {
		return "unknown"
	}
	return *t.DominantStyle
}
