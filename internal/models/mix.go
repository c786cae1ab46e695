package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transition techniques
const (
	TechniqueCrossfade   = "crossfade"
	TechniqueSmoothBlend = "smooth_blend"
	TechniqueQuickCut    = "quick_cut"
	TechniqueBeatmatch   = "beatmatch"
	TechniqueCreative    = "creative"
)

// MixTransition is one boundary in the emitted mix plan: play track A until
// TransitionStart, then blend into track B over TransitionDuration using
// Technique. Positions are dense 0..n-2 within a job.
type MixTransition struct {
	ID        uuid.UUID `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	JobID    uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	Position int       `gorm:"not null" json:"position"`

	TrackAID uuid.UUID `gorm:"type:uuid;not null" json:"track_a_id"`
	TrackBID uuid.UUID `gorm:"type:uuid;not null" json:"track_b_id"`
	TrackA   Track     `gorm:"foreignKey:TrackAID" json:"track_a,omitempty"`
	TrackB   Track     `gorm:"foreignKey:TrackBID" json:"track_b,omitempty"`

	TransitionStart    float64 `json:"transition_start"`    // seconds into track A
	TransitionDuration float64 `json:"transition_duration"` // seconds
	Technique          string  `json:"technique"`
	BPMAdjustment      float64 `json:"bpm_adjustment"` // signed percent

	BPMCompatibility     float64 `json:"bpm_compatibility"`
	KeyCompatibility     float64 `json:"key_compatibility"`
	EnergyCompatibility  float64 `json:"energy_compatibility"`
	StyleCompatibility   float64 `json:"style_compatibility"`
	VocalCompatibility   float64 `json:"vocal_compatibility"`
	OverallCompatibility float64 `json:"overall_compatibility"`

	Metadata map[string]interface{} `gorm:"serializer:json" json:"metadata,omitempty"`
}

func (t *MixTransition) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
