package analysis

import (
	"sort"
	"testing"

	"github.com/AsarMichil/jockee/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertIntervalTiling checks that the vocal and instrumental intervals
// together cover [0, duration] exactly, with no gaps and no overlap.
func assertIntervalTiling(t *testing.T, vocal, instrumental []models.Interval, duration float64) {
	t.Helper()

	all := append(append([]models.Interval(nil), vocal...), instrumental...)
	require.NotEmpty(t, all)
	sort.Slice(all, func(i, j int) bool { return all[i].Start < all[j].Start })

	assert.Zero(t, all[0].Start)
	for i := 1; i < len(all); i++ {
		assert.Equal(t, all[i-1].End, all[i].Start,
			"interval %d must start exactly where the previous one ends", i)
	}
	assert.Equal(t, round4(duration), all[len(all)-1].End)

	for _, iv := range all {
		assert.Less(t, iv.Start, iv.End)
		assert.InDelta(t, vocalIntervalConfidence, iv.Confidence, 1e-9)
	}
}

func TestComputeVocalIntervalsCoverage(t *testing.T) {
	fr := frameRate()
	const frames = 1000
	duration := float64(frames) / fr

	// 30% of frames sit well above the rest: two long runs plus one run
	// too short to survive the minimum-length filter
	centroid := make([]float64, frames)
	for i := range centroid {
		centroid[i] = 500
	}
	for i := 300; i < 450; i++ {
		centroid[i] = 3000
	}
	for i := 500; i < 510; i++ {
		centroid[i] = 3000
	}
	for i := 700; i < 840; i++ {
		centroid[i] = 3000
	}

	vocal, instrumental := computeVocalIntervals(centroid, duration)

	require.Len(t, vocal, 2)
	assert.Equal(t, round4(300/fr), vocal[0].Start)
	assert.Equal(t, round4(450/fr), vocal[0].End)
	assert.Equal(t, round4(700/fr), vocal[1].Start)
	assert.Equal(t, round4(840/fr), vocal[1].End)

	// The short run is absorbed into the surrounding instrumental span
	require.Len(t, instrumental, 3)

	assertIntervalTiling(t, vocal, instrumental, duration)
}

func TestComputeVocalIntervalsVocalToEnd(t *testing.T) {
	fr := frameRate()
	const frames = 400
	duration := float64(frames) / fr

	// Vocal run extends through the final frame; the flush at end-of-signal
	// must still close the run and the tiling must reach the duration
	centroid := make([]float64, frames)
	for i := range centroid {
		centroid[i] = 500
	}
	for i := 300; i < frames; i++ {
		centroid[i] = 3000
	}

	vocal, instrumental := computeVocalIntervals(centroid, duration)

	require.Len(t, vocal, 1)
	assert.Equal(t, round4(300/fr), vocal[0].Start)
	assertIntervalTiling(t, vocal, instrumental, duration)
}

func TestComputeVocalIntervalsEmptySignal(t *testing.T) {
	vocal, instrumental := computeVocalIntervals(nil, 30.0)

	assert.Empty(t, vocal)
	require.Len(t, instrumental, 1)
	assert.Zero(t, instrumental[0].Start)
	assert.Equal(t, 30.0, instrumental[0].End)
}
