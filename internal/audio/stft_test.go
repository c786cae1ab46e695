package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSTFTSinePeakBin(t *testing.T) {
	cfg := DefaultSTFTConfig()
	targetBin := 100
	freq := float64(targetBin) * float64(SampleRate) / float64(cfg.FFTSize)

	samples := make([]float64, cfg.FFTSize*4)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(SampleRate))
	}

	mag := STFT(samples, cfg)
	require.NotEmpty(t, mag)
	require.Len(t, mag[0], cfg.FFTSize/2+1)

	peak := 0
	for bin, v := range mag[0] {
		if v > mag[0][peak] {
			peak = bin
		}
	}
	assert.Equal(t, targetBin, peak)

	// Hann window coherent gain halves the one-sided amplitude
	assert.InDelta(t, 0.5, mag[0][peak], 0.05)
}

func TestSTFTShortInput(t *testing.T) {
	cfg := DefaultSTFTConfig()
	assert.Nil(t, STFT(nil, cfg))
	assert.Nil(t, STFT(make([]float64, cfg.FFTSize-1), cfg))
}

func TestBinFrequencies(t *testing.T) {
	cfg := DefaultSTFTConfig()
	freqs := BinFrequencies(cfg, SampleRate)
	require.Len(t, freqs, cfg.FFTSize/2+1)
	assert.Zero(t, freqs[0])
	assert.InDelta(t, float64(SampleRate)/2, freqs[len(freqs)-1], 1e-6)
}

func TestFrameTime(t *testing.T) {
	cfg := DefaultSTFTConfig()
	assert.Zero(t, FrameTime(0, cfg, SampleRate))
	assert.InDelta(t, float64(cfg.HopSize)/float64(SampleRate), FrameTime(1, cfg, SampleRate), 1e-9)
}

func TestFrameRMS(t *testing.T) {
	cfg := DefaultSTFTConfig()
	samples := make([]float64, cfg.FFTSize*2)
	for i := range samples {
		samples[i] = 0.5
	}

	rms := FrameRMS(samples, cfg)
	require.NotEmpty(t, rms)
	for _, v := range rms {
		assert.InDelta(t, 0.5, v, 1e-9)
	}
}

func TestAutocorrelationPeriodic(t *testing.T) {
	period := 10
	x := make([]float64, 500)
	for i := 0; i < len(x); i += period {
		x[i] = 1.0
	}

	ac := Autocorrelation(x, 50)
	require.Len(t, ac, 50)
	assert.InDelta(t, 1.0, ac[0], 1e-9)
	// The true period dominates every non-multiple lag
	for lag := 1; lag < 50; lag++ {
		if lag%period != 0 {
			assert.Less(t, ac[lag], ac[period], "lag %d", lag)
		}
	}
}

func TestAutocorrelationSilence(t *testing.T) {
	ac := Autocorrelation(make([]float64, 100), 10)
	for _, v := range ac {
		assert.Zero(t, v)
	}
}
