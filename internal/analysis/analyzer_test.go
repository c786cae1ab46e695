package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/AsarMichil/jockee/internal/audio"
	"github.com/AsarMichil/jockee/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineWave(freq, amplitude, seconds float64) []float64 {
	n := int(seconds * float64(audio.SampleRate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(audio.SampleRate))
	}
	return samples
}

func TestAnalyzeSamplesSine(t *testing.T) {
	samples := sineWave(220.0, 0.8, 20.0)
	result := AnalyzeSamples(samples, 20.0)
	require.NotNil(t, result)

	// A loud steady tone saturates the energy descriptor
	require.NotNil(t, result.Energy)
	assert.InDelta(t, 1.0, *result.Energy, 0.01)

	require.NotNil(t, result.Loudness)
	assert.Less(t, *result.Loudness, 0.0)
	assert.Greater(t, *result.Loudness, -15.0)

	// 220 Hz is pitch class A
	require.NotNil(t, result.Key)
	assert.True(t, strings.HasPrefix(*result.Key, "A"), "got key %s", *result.Key)

	require.NotNil(t, result.IntroEnd)
	require.NotNil(t, result.OutroStart)
	assert.GreaterOrEqual(t, *result.IntroEnd, 0.0)
	assert.LessOrEqual(t, *result.OutroStart, 20.0)
}

func TestAnalyzeSamplesEmpty(t *testing.T) {
	result := AnalyzeSamples(nil, 0)
	require.NotNil(t, result)

	// No frames, no tempo, no key; extractors degrade to warnings
	assert.Nil(t, result.BPM)
	assert.Nil(t, result.Key)
	require.NotNil(t, result.KeyConfidence)
	assert.Zero(t, *result.KeyConfidence)
	assert.NotEmpty(t, result.Warnings)
}

func TestApplyToTrack(t *testing.T) {
	track := &models.Track{SpotifyID: "abc", Title: "x", Artist: "y"}

	result := &Result{
		BPM:      ptr(128.0),
		Key:      ptr("Am"),
		Energy:   ptr(0.7),
		Warnings: []string{"vocals: short signal", "sections: flat profile"},
	}
	result.ApplyToTrack(track)

	require.NotNil(t, track.AnalyzedAt)
	require.NotNil(t, track.AnalysisVersion)
	assert.Equal(t, models.CurrentAnalysisVersion, *track.AnalysisVersion)
	assert.Equal(t, 128.0, *track.BPM)
	assert.Equal(t, "Am", *track.Key)
	require.NotNil(t, track.AnalysisError)
	assert.Equal(t, "vocals: short signal; sections: flat profile", *track.AnalysisError)

	// Re-analysis replaces the block wholesale
	clean := &Result{BPM: ptr(90.0)}
	clean.ApplyToTrack(track)
	assert.Nil(t, track.Key)
	assert.Nil(t, track.AnalysisError)
	assert.Equal(t, 90.0, *track.BPM)
}

func TestApplyToTrackWithoutTempoLeavesUnanalyzed(t *testing.T) {
	// Decodable but beatless input: silence yields no tempo, and a track
	// without a BPM must not be stamped as analysed
	silence := make([]float64, 10*audio.SampleRate)
	result := AnalyzeSamples(silence, 10.0)
	require.NotNil(t, result)
	require.Nil(t, result.BPM)

	track := &models.Track{SpotifyID: "abc"}
	result.ApplyToTrack(track)

	assert.Nil(t, track.AnalyzedAt)
	assert.Nil(t, track.AnalysisVersion)
	assert.False(t, track.IsAnalyzed())
	require.NotNil(t, track.AnalysisError)
	assert.Contains(t, *track.AnalysisError, "tempo: no tempo detected")

	// A later successful analysis stamps the block normally
	good := &Result{BPM: ptr(120.0)}
	good.ApplyToTrack(track)
	require.NotNil(t, track.AnalyzedAt)
	assert.True(t, track.IsAnalyzed())
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 128.35, round2(128.3456))
	assert.Equal(t, 0.123, round3(0.12345))
	assert.Equal(t, 1.2346, round4(1.23456))
}
