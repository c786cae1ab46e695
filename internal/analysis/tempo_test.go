package analysis

import (
	"testing"

	"github.com/AsarMichil/jockee/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldBPM(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"below range doubles", 45, 90},
		{"above range halves", 210, 105},
		{"in range unchanged", 120, 120},
		{"lower bound doubles", 30, 60},
		{"deep fold", 15, 60},
		{"zero stays zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FoldBPM(tt.in), 1e-9)
		})
	}
}

func TestDetectTempoClickTrain(t *testing.T) {
	cfg := audio.DefaultSTFTConfig()
	frameRate := float64(audio.SampleRate) / float64(cfg.HopSize)

	// Click train with a period of exactly 21 frames (~123 BPM), so the
	// autocorrelation peak lands on a single unambiguous lag
	const periodFrames = 21
	wantBPM := 60.0 * frameRate / periodFrames

	onset := make([]float64, 2000)
	for i := 0; i < len(onset); i += periodFrames {
		onset[i] = 1.0
	}

	result := DetectTempo(onset, cfg, audio.SampleRate)

	require.NotZero(t, result.BPM)
	assert.InDelta(t, wantBPM, result.BPM, 0.5)
	assert.GreaterOrEqual(t, result.BPM, BPMMin)
	assert.LessOrEqual(t, result.BPM, BPMMax)

	require.GreaterOrEqual(t, len(result.Beats), 2)
	assert.Len(t, result.Intervals, len(result.Beats)-1)
	assert.Len(t, result.Confidences, len(result.Beats))

	// Fixed-period grid should be nearly perfectly regular
	assert.Greater(t, result.Regularity, 0.9)
	assert.Greater(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)

	expectedInterval := 60.0 / result.BPM
	assert.InDelta(t, expectedInterval, result.AvgBeatInterval, 0.05)

	for i := 1; i < len(result.Beats); i++ {
		assert.Greater(t, result.Beats[i], result.Beats[i-1], "beat timestamps must increase")
	}
}

func TestDetectTempoEmptyOnset(t *testing.T) {
	result := DetectTempo(nil, audio.DefaultSTFTConfig(), audio.SampleRate)
	assert.Zero(t, result.BPM)
	assert.Empty(t, result.Beats)
}

func TestDetectTempoSilence(t *testing.T) {
	onset := make([]float64, 1000)
	result := DetectTempo(onset, audio.DefaultSTFTConfig(), audio.SampleRate)
	assert.Zero(t, result.BPM)
}
