package analysis

import (
	"math"

	"github.com/AsarMichil/jockee/internal/audio"
	"gonum.org/v1/gonum/stat"
)

// Detectable raw tempo range before folding
const (
	rawBPMMin = 30.0
	rawBPMMax = 300.0
)

// Folded tempo range for stored BPM values
const (
	BPMMin = 60.0
	BPMMax = 200.0
)

// TempoResult is the detected tempo and beat grid
type TempoResult struct {
	BPM             float64
	Beats           []float64 // timestamps, seconds
	Intervals       []float64 // adjacent deltas
	Confidences     []float64 // onset strength at each beat, normalised
	Confidence      float64   // mean of Confidences
	Regularity      float64   // 1 - CV of intervals, clamped to [0,1]
	AvgBeatInterval float64
}

// DetectTempo estimates BPM from the autocorrelation of the onset envelope
// and lays down a beat grid at the winning period.
func DetectTempo(onset []float64, cfg audio.STFTConfig, sampleRate int) TempoResult {
	frameRate := float64(sampleRate) / float64(cfg.HopSize)

	minLag := int(60.0 / rawBPMMax * frameRate)
	maxLag := int(60.0/rawBPMMin*frameRate) + 1
	if maxLag > len(onset) {
		maxLag = len(onset)
	}
	if minLag < 1 || minLag >= maxLag {
		return TempoResult{}
	}

	ac := audio.Autocorrelation(onset, maxLag)

	bestLag := 0
	bestVal := 0.0
	for lag := minLag; lag < maxLag; lag++ {
		if ac[lag] > bestVal {
			bestVal = ac[lag]
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return TempoResult{}
	}

	rawBPM := 60.0 * frameRate / float64(bestLag)
	bpm := FoldBPM(rawBPM)

	// Beat grid: fixed period at the folded tempo, phase chosen to maximise
	// total onset strength at grid points.
	period := 60.0 / bpm * frameRate
	bestPhase := 0.0
	bestScore := -1.0
	for p := 0.0; p < period; p++ {
		var score float64
		for f := p; f < float64(len(onset)); f += period {
			score += onset[int(f)]
		}
		if score > bestScore {
			bestScore = score
			bestPhase = p
		}
	}

	maxOnset := 0.0
	for _, v := range onset {
		if v > maxOnset {
			maxOnset = v
		}
	}

	var beats, confidences []float64
	for f := bestPhase; f < float64(len(onset)); f += period {
		frame := int(f)
		beats = append(beats, audio.FrameTime(frame, cfg, sampleRate))
		conf := 0.0
		if maxOnset > 0 {
			conf = onset[frame] / maxOnset
		}
		confidences = append(confidences, conf)
	}

	result := TempoResult{BPM: bpm}
	if len(beats) < 2 {
		return result
	}

	intervals := make([]float64, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		intervals[i-1] = beats[i] - beats[i-1]
	}

	meanInterval := stat.Mean(intervals, nil)
	stdInterval := math.Sqrt(stat.Variance(intervals, nil))

	regularity := 0.0
	if meanInterval > 0 {
		regularity = clamp01(1 - stdInterval/meanInterval)
	}

	result.Beats = beats
	result.Intervals = intervals
	result.Confidences = confidences
	result.Confidence = stat.Mean(confidences, nil)
	result.Regularity = regularity
	result.AvgBeatInterval = meanInterval
	return result
}

// FoldBPM folds a raw tempo estimate into [BPMMin, BPMMax] by octave shifts
func FoldBPM(bpm float64) float64 {
	if bpm <= 0 {
		return 0
	}
	for bpm < BPMMin {
		bpm *= 2
	}
	for bpm > BPMMax {
		bpm /= 2
	}
	return bpm
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
