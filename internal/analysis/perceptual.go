package analysis

import (
	"math"

	"github.com/AsarMichil/jockee/internal/audio"
	"gonum.org/v1/gonum/stat"
)

// Band limits in Hz for energy-ratio heuristics
const (
	vocalBandLow   = 80.0
	vocalBandHigh  = 1100.0
	speechBandLow  = 300.0
	speechBandHigh = 3400.0
)

// LoudnessFloor is the minimum reported loudness in dBFS
const LoudnessFloor = -60.0

// Perceptual holds the heuristic descriptors, all in [0,1] except Loudness
type Perceptual struct {
	Energy           float64
	Danceability     float64
	Valence          float64
	Acousticness     float64
	Instrumentalness float64
	Liveness         float64
	Speechiness      float64
	Loudness         float64 // dBFS
}

// computePerceptual evaluates the descriptor heuristics over the shared
// feature set. Constants are fixed so scores stay comparable across runs.
func computePerceptual(f *featureSet) Perceptual {
	meanRMS := stat.Mean(f.rms, nil)
	varRMS := stat.Variance(f.rms, nil)
	meanOnset := stat.Mean(f.onsetNorm, nil)
	varOnset := stat.Variance(f.onsetNorm, nil)
	meanCentroid := stat.Mean(f.centroid, nil)
	meanBandwidth := stat.Mean(f.bandwidth, nil)
	meanZCR := stat.Mean(f.zcr, nil)

	vocalRatio := audio.BandEnergyRatio(f.mag, f.cfg, audio.SampleRate, vocalBandLow, vocalBandHigh)
	speechRatio := audio.BandEnergyRatio(f.mag, f.cfg, audio.SampleRate, speechBandLow, speechBandHigh)

	p := Perceptual{}

	p.Energy = math.Min(meanRMS*10, 1)

	p.Danceability = clamp01(
		0.4*f.tempo.Regularity +
			0.4*math.Min(2*meanOnset, 1) +
			0.2*math.Min(f.acPeakRatio, 1))

	p.Valence = clamp01(
		0.4*math.Max(f.key.MajorCorr-f.key.MinorCorr, 0) +
			0.3*math.Min(meanCentroid/4000, 1) +
			0.3*math.Min(f.tempo.BPM/140, 1))

	p.Acousticness = clamp01(
		0.4*(1-meanCentroid/4000) +
			0.3*(1-meanBandwidth/2000) +
			0.3*(1-10*meanZCR))

	p.Instrumentalness = clamp01(1 - math.Min(3*vocalRatio, 1))

	p.Liveness = clamp01(
		0.6*math.Min(100*varRMS, 1) +
			0.4*math.Min(10*meanContrastVariance(f.contrast), 1))

	p.Speechiness = clamp01(
		0.5*math.Min(2*speechRatio, 1) +
			0.3*math.Min(20*meanZCR, 1) +
			0.2*math.Min(5*varOnset, 1))

	if meanRMS > 0 {
		p.Loudness = math.Max(20*math.Log10(meanRMS), LoudnessFloor)
	} else {
		p.Loudness = LoudnessFloor
	}

	return p
}

// meanContrastVariance averages, over bands, the variance of spectral
// contrast across frames
func meanContrastVariance(contrast [][]float64) float64 {
	if len(contrast) == 0 || len(contrast[0]) == 0 {
		return 0
	}
	numBands := len(contrast[0])
	var total float64
	band := make([]float64, len(contrast))
	for b := 0; b < numBands; b++ {
		for i := range contrast {
			band[i] = contrast[i][b]
		}
		total += stat.Variance(band, nil)
	}
	return total / float64(numBands)
}
