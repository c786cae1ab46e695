package analysis

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PitchClassNames indexes pitch classes C=0 .. B=11
var PitchClassNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Krumhansl-Schmuckler key profiles
var (
	majorTemplate = []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorTemplate = []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

var errEmptyChroma = errors.New("empty chromagram")

// KeyResult is the detected key with mode correlations
type KeyResult struct {
	Key        string // e.g. "C" or "Am"
	Confidence float64
	MajorCorr  float64
	MinorCorr  float64
}

// DetectKey averages the chromagram over time, takes the dominant pitch
// class as the candidate root, and picks major or minor by template
// correlation.
func DetectKey(chroma [][]float64) (KeyResult, error) {
	if len(chroma) == 0 {
		return KeyResult{}, errEmptyChroma
	}

	avg := make([]float64, 12)
	for _, frame := range chroma {
		for i, v := range frame {
			avg[i] += v
		}
	}
	for i := range avg {
		avg[i] /= float64(len(chroma))
	}

	total := floats.Sum(avg)
	if total == 0 {
		return KeyResult{}, errEmptyChroma
	}

	root := floats.MaxIdx(avg)

	majorCorr := stat.Correlation(avg, rotateTemplate(majorTemplate, root), nil)
	minorCorr := stat.Correlation(avg, rotateTemplate(minorTemplate, root), nil)

	key := PitchClassNames[root]
	if minorCorr > majorCorr {
		key += "m"
	}

	return KeyResult{
		Key:        key,
		Confidence: clamp01(avg[root] / total),
		MajorCorr:  majorCorr,
		MinorCorr:  minorCorr,
	}, nil
}

// rotateTemplate aligns a key profile so its tonic sits at the given root
func rotateTemplate(template []float64, root int) []float64 {
	out := make([]float64, 12)
	for i := 0; i < 12; i++ {
		out[(i+root)%12] = template[i]
	}
	return out
}
