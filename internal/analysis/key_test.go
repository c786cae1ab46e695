package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectKeyMajor(t *testing.T) {
	// Chromagram matching the C major profile exactly
	chroma := [][]float64{
		append([]float64(nil), majorTemplate...),
		append([]float64(nil), majorTemplate...),
	}

	result, err := DetectKey(chroma)
	require.NoError(t, err)

	assert.Equal(t, "C", result.Key)
	assert.Greater(t, result.MajorCorr, result.MinorCorr)
	assert.Greater(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)
}

func TestDetectKeyMinor(t *testing.T) {
	// A minor profile rotated so the tonic sits at pitch class A
	chroma := [][]float64{rotateTemplate(minorTemplate, 9)}

	result, err := DetectKey(chroma)
	require.NoError(t, err)

	assert.Equal(t, "Am", result.Key)
	assert.Greater(t, result.MinorCorr, result.MajorCorr)
}

func TestDetectKeyRotations(t *testing.T) {
	for root, name := range PitchClassNames {
		chroma := [][]float64{rotateTemplate(majorTemplate, root)}
		result, err := DetectKey(chroma)
		require.NoError(t, err)
		assert.Equal(t, name, result.Key, "root %d", root)
	}
}

func TestDetectKeyEmptyChroma(t *testing.T) {
	_, err := DetectKey(nil)
	assert.Error(t, err)

	_, err = DetectKey([][]float64{make([]float64, 12)})
	assert.Error(t, err)
}
