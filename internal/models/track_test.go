package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

// analysedTrackFixture is a fully-populated analysis block at the
// precisions the extractors persist: BPM 2 dp, scalars 3 dp, timestamps 4 dp
func analysedTrackFixture() Track {
	analyzedAt := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)
	return Track{
		ID:        uuid.MustParse("3c4f9a1e-8d2b-4c5a-9e7f-1a2b3c4d5e6f"),
		SpotifyID: "sp_alpha",
		Title:     "alpha",
		Artist:    "artist",
		Album:     "album",
		Duration:  247.32,

		S3Key:         sptr("audio/artist/alpha_1a2b3c4d.mp3"),
		FileSource:    FileSourceS3,
		FileSizeBytes: 4_194_304,

		BPM:           fptr(123.97),
		Key:           sptr("Am"),
		KeyConfidence: fptr(0.731),

		Energy:           fptr(0.842),
		Danceability:     fptr(0.615),
		Valence:          fptr(0.407),
		Acousticness:     fptr(0.093),
		Instrumentalness: fptr(0.554),
		Liveness:         fptr(0.128),
		Speechiness:      fptr(0.061),
		Loudness:         fptr(-7.213),

		BeatTimestamps:  []float64{0.4848, 0.9687, 1.4526},
		BeatIntervals:   []float64{0.4839, 0.4839},
		BeatConfidences: []float64{0.912, 0.887, 0.901},
		BeatConfidence:  fptr(0.9),
		BeatRegularity:  fptr(0.978),
		AvgBeatInterval: fptr(0.4839),

		Style: &StyleVector{
			BeatDriven:           0.81,
			MelodicFocus:         0.42,
			AmbientTexture:       0.15,
			VocalCentric:         0.37,
			AcousticVsElectronic: 0.09,
		},
		DominantStyle:   sptr("beat_driven"),
		StyleConfidence: fptr(0.44),

		IntroEnd:    fptr(14.6265),
		OutroStart:  fptr(221.0071),
		IntroEnergy: fptr(0.312),
		OutroEnergy: fptr(0.204),
		EnergyProfile: []EnergyPoint{
			{Time: 0, Energy: 0.31},
			{Time: 10, Energy: 0.78},
		},

		VocalIntervals: []Interval{
			{Start: 15.2436, End: 44.9012, Confidence: 0.6},
		},
		InstrumentalIntervals: []Interval{
			{Start: 0, End: 15.2436, Confidence: 0.6},
			{Start: 44.9012, End: 247.32, Confidence: 0.6},
		},

		MixInPoint:  fptr(8.0),
		MixOutPoint: fptr(228.5335),
		MixableSections: []MixableSection{
			{Type: "breakdown", Start: 120.0, End: 128.0, Energy: 0.112, Stability: 0.84, BeatCount: 16},
		},

		AnalysisVersion: sptr(CurrentAnalysisVersion),
		AnalyzedAt:      &analyzedAt,
	}
}

func TestTrackJSONRoundTrip(t *testing.T) {
	original := analysedTrackFixture()

	data, err := json.Marshal(&original)
	require.NoError(t, err)

	var decoded Track
	require.NoError(t, json.Unmarshal(data, &decoded))

	// The full analysis block must survive serialisation bit-identically
	assert.Equal(t, original, decoded)

	// And a second encode must be byte-identical to the first
	again, err := json.Marshal(&decoded)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestTrackJSONOmitsAbsentAnalysis(t *testing.T) {
	track := Track{SpotifyID: "sp_beta", Title: "beta", Artist: "artist"}

	data, err := json.Marshal(&track)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	for _, field := range []string{"bpm", "key", "analyzed_at", "beat_timestamps", "vocal_intervals", "style"} {
		assert.NotContains(t, decoded, field)
	}
}
