package analysis

import (
	"math"

	"github.com/AsarMichil/jockee/internal/audio"
	"github.com/AsarMichil/jockee/internal/models"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Dominant style labels. The acoustic_vs_electronic axis resolves to
// "acoustic" or "electronic" depending on which side of 0.5 it falls.
const (
	StyleBeatDriven     = "beat_driven"
	StyleMelodicFocus   = "melodic_focus"
	StyleAmbientTexture = "ambient_texture"
	StyleVocalCentric   = "vocal_centric"
	StyleAcoustic       = "acoustic"
	StyleElectronic     = "electronic"
	StyleUnknown        = "unknown"
)

// StyleResult is the five-axis style vector plus its summary labels
type StyleResult struct {
	Vector     models.StyleVector
	Dominant   string
	Confidence float64 // top minus second axis score
}

// computeStyle scores the track along five stylistic axes using the same
// primitives as the perceptual descriptors.
func computeStyle(f *featureSet, p Perceptual) StyleResult {
	meanOnset := stat.Mean(f.onsetNorm, nil)
	meanBandwidth := stat.Mean(f.bandwidth, nil)

	vocalRatio := audio.BandEnergyRatio(f.mag, f.cfg, audio.SampleRate, vocalBandLow, vocalBandHigh)

	v := models.StyleVector{
		BeatDriven: clamp01(0.6*f.tempo.Regularity + 0.4*math.Min(2*meanOnset, 1)),
		MelodicFocus: clamp01(0.6*chromaFocus(f.chroma) +
			0.4*(1-math.Min(centroidStd(f.centroid)/2000, 1))),
		AmbientTexture: clamp01(0.6*(1-math.Min(3*meanOnset, 1)) +
			0.4*math.Min(meanBandwidth/1000, 1)),
		VocalCentric:         clamp01(0.7*vocalRatio + 0.3*mfccVocalPresence(f.mfcc)),
		AcousticVsElectronic: p.Acousticness,
	}

	acousticLabel := StyleElectronic
	if v.AcousticVsElectronic >= 0.5 {
		acousticLabel = StyleAcoustic
	}

	scores := []struct {
		name  string
		score float64
	}{
		{StyleBeatDriven, v.BeatDriven},
		{StyleMelodicFocus, v.MelodicFocus},
		{StyleAmbientTexture, v.AmbientTexture},
		{StyleVocalCentric, v.VocalCentric},
		{acousticLabel, v.AcousticVsElectronic},
	}

	dominant, top, second := "", -1.0, -1.0
	for _, s := range scores {
		if s.score > top {
			second = top
			top = s.score
			dominant = s.name
		} else if s.score > second {
			second = s.score
		}
	}

	return StyleResult{
		Vector:     v,
		Dominant:   dominant,
		Confidence: clamp01(top - second),
	}
}

// chromaFocus measures tonal concentration: the mean per-frame share of the
// strongest pitch class, rescaled so a flat spectrum maps to 0.
func chromaFocus(chroma [][]float64) float64 {
	if len(chroma) == 0 {
		return 0
	}
	var total float64
	frames := 0
	for _, frame := range chroma {
		sum := floats.Sum(frame)
		if sum == 0 {
			continue
		}
		total += floats.Max(frame) / sum
		frames++
	}
	if frames == 0 {
		return 0
	}
	share := total / float64(frames)
	return clamp01((share - 1.0/12.0) * 12.0 / 11.0)
}

func centroidStd(centroid []float64) float64 {
	if len(centroid) < 2 {
		return 0
	}
	return math.Sqrt(stat.Variance(centroid, nil))
}

// mfccVocalPresence estimates vocal presence from the spread of the low
// cepstral coefficients, which track formant movement.
func mfccVocalPresence(mfcc [][]float64) float64 {
	if len(mfcc) < 2 || len(mfcc[0]) < 5 {
		return 0
	}
	var total float64
	coeff := make([]float64, len(mfcc))
	for c := 1; c < 5; c++ {
		for i := range mfcc {
			coeff[i] = mfcc[i][c]
		}
		total += math.Sqrt(stat.Variance(coeff, nil))
	}
	return clamp01(total / 4 / 10)
}
