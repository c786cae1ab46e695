package mix

import (
	"testing"
	"time"

	"github.com/AsarMichil/jockee/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyzedTrack(title string, bpm float64, key string, energy float64) *models.Track {
	now := time.Now()
	return &models.Track{
		ID:         uuid.New(),
		SpotifyID:  "sp_" + title,
		Title:      title,
		Artist:     "artist",
		Duration:   240.0,
		LocalPath:  ptr("/audio/" + title + ".mp3"),
		FileSource: models.FileSourceLocal,
		BPM:        ptr(bpm),
		Key:        ptr(key),
		Energy:     ptr(energy),
		AnalyzedAt: &now,
	}
}

func TestPlanMixNotEnoughTracks(t *testing.T) {
	_, err := PlanMix(nil)
	assert.ErrorIs(t, err, ErrNotEnoughTracks)

	_, err = PlanMix([]*models.Track{analyzedTrack("solo", 120, "C", 0.5)})
	assert.ErrorIs(t, err, ErrNotEnoughTracks)

	// Unanalysed and file-less tracks don't count
	bare := &models.Track{ID: uuid.New(), SpotifyID: "bare", Duration: 200}
	_, err = PlanMix([]*models.Track{analyzedTrack("a", 120, "C", 0.5), bare})
	assert.ErrorIs(t, err, ErrNotEnoughTracks)
}

func TestPlanMixOptions(t *testing.T) {
	tracks := []*models.Track{
		analyzedTrack("one", 150, "C", 0.9),
		analyzedTrack("two", 90, "Am", 0.2),
		analyzedTrack("three", 120, "G", 0.6),
		analyzedTrack("four", 124, "D", 0.7),
	}

	plan, err := PlanMix(tracks)
	require.NoError(t, err)
	require.Len(t, plan.Options, 5)
	require.NotNil(t, plan.Default)

	seen := map[string]bool{}
	for _, option := range plan.Options {
		seen[option.Strategy] = true

		require.Len(t, option.Order, len(tracks), option.Strategy)
		require.Len(t, option.Transitions, len(tracks)-1, option.Strategy)

		for i, tr := range option.Transitions {
			assert.Equal(t, i, tr.Position)
			assert.Equal(t, option.Order[i].ID, tr.TrackAID)
			assert.Equal(t, option.Order[i+1].ID, tr.TrackBID)
			assert.LessOrEqual(t, tr.TransitionStart+tr.TransitionDuration,
				option.Order[i].Duration+1e-9)
			assert.GreaterOrEqual(t, tr.OverallCompatibility, 0.0)
			assert.LessOrEqual(t, tr.OverallCompatibility, 1.0)
		}

		assert.Greater(t, option.TotalDuration, 0.0)
		// Default is the best-scoring option
		assert.LessOrEqual(t, option.Score, plan.Default.Score+1e-9)
	}
	assert.Len(t, seen, 5, "strategies must be distinct")
}

func TestOrderByBPMProgression(t *testing.T) {
	tracks := []*models.Track{
		analyzedTrack("fast", 150, "C", 0.9),
		analyzedTrack("slow", 90, "Am", 0.2),
		analyzedTrack("mid", 120, "G", 0.6),
	}

	plan, err := PlanMix(tracks)
	require.NoError(t, err)

	var option *Option
	for i := range plan.Options {
		if plan.Options[i].Strategy == StrategyBPMProgression {
			option = &plan.Options[i]
		}
	}
	require.NotNil(t, option)

	var bpms []float64
	for _, tr := range option.Order {
		bpms = append(bpms, *tr.BPM)
	}
	assert.Equal(t, []float64{90, 120, 150}, bpms)
}

func TestTransitionStartUsesMixOutPoint(t *testing.T) {
	a := analyzedTrack("a", 120, "C", 0.5)
	a.MixOutPoint = ptr(200.0)
	assert.InDelta(t, 200.0, transitionStart(a, 16), 1e-9)

	// Fallback: midpoint of the final quarter
	b := analyzedTrack("b", 120, "C", 0.5)
	assert.InDelta(t, 0.875*240, transitionStart(b, 16), 1e-9)

	// Clamped so the transition fits inside the track
	c := analyzedTrack("c", 120, "C", 0.5)
	c.MixOutPoint = ptr(235.0)
	assert.InDelta(t, 224.0, transitionStart(c, 16), 1e-9)
}

func TestBuildMetadata(t *testing.T) {
	tracks := []*models.Track{
		analyzedTrack("one", 150, "C", 0.9),
		analyzedTrack("two", 90, "Am", 0.2),
	}
	plan, err := PlanMix(tracks)
	require.NoError(t, err)

	meta := BuildMetadata(plan.Default)
	assert.Equal(t, plan.Default.Strategy, meta["algorithm"])
	assert.Equal(t, 2, meta["total_tracks"])
	assert.ElementsMatch(t, []string{"Am", "C"}, meta["keys_used"])
	assert.InDelta(t, 120.0, meta["avg_bpm"].(float64), 1e-9)
	assert.InDelta(t, 90.0, meta["min_bpm"].(float64), 1e-9)
	assert.InDelta(t, 150.0, meta["max_bpm"].(float64), 1e-9)
}

func TestGreedyChainKeepsAllTracks(t *testing.T) {
	tracks := []*models.Track{
		analyzedTrack("one", 150, "C", 0.9),
		analyzedTrack("two", 90, "Am", 0.2),
		analyzedTrack("three", 120, "G", 0.6),
	}
	chain := greedyChain(tracks, func(a, b *models.Track) float64 {
		return Score(a, b).Overall
	})
	require.Len(t, chain, 3)
	assert.Equal(t, tracks[0].ID, chain[0].ID, "chain starts at the first track")

	ids := map[uuid.UUID]bool{}
	for _, tr := range chain {
		ids[tr.ID] = true
	}
	assert.Len(t, ids, 3)
}
