package analysis

import (
	"math"
	"sort"

	"github.com/AsarMichil/jockee/internal/audio"
	"github.com/AsarMichil/jockee/internal/models"
	"gonum.org/v1/gonum/stat"
)

const (
	energyProfileCadence = 10.0 // seconds between energy profile samples
	statsWindowSecs      = 1.0  // window for RMS variance scans
	mixWindowSecs        = 4.0  // window for mix point scoring
	sectionWindowSecs    = 8.0  // window for mixable section scan
	sectionHopSecs       = 4.0
	maxMixableSections   = 3
)

// SectionsResult describes track structure: intro/outro bounds and the
// coarse energy profile.
type SectionsResult struct {
	IntroEnd      float64
	OutroStart    float64
	IntroEnergy   float64
	OutroEnergy   float64
	EnergyProfile []models.EnergyPoint
}

// MixPointsResult is the preferred mix-in/out timing plus auxiliary
// low-energy sections.
type MixPointsResult struct {
	MixIn    float64
	MixOut   float64
	Sections []models.MixableSection
}

func frameRate() float64 {
	return float64(audio.SampleRate) / float64(audio.DefaultHopSize)
}

// energyOver returns the mean RMS over [startT, endT) scaled to the [0,1]
// energy range
func energyOver(rms []float64, startT, endT float64) float64 {
	fr := frameRate()
	start := int(startT * fr)
	end := int(endT * fr)
	if start < 0 {
		start = 0
	}
	if end > len(rms) {
		end = len(rms)
	}
	if start >= end {
		return 0
	}
	return math.Min(stat.Mean(rms[start:end], nil)*10, 1)
}

// stabilityOver returns 1 - CV of RMS over [startT, endT), clamped
func stabilityOver(rms []float64, startT, endT float64) float64 {
	fr := frameRate()
	start := int(startT * fr)
	end := int(endT * fr)
	if start < 0 {
		start = 0
	}
	if end > len(rms) {
		end = len(rms)
	}
	if end-start < 2 {
		return 0
	}
	window := rms[start:end]
	mean := stat.Mean(window, nil)
	if mean == 0 {
		return 0
	}
	return clamp01(1 - math.Sqrt(stat.Variance(window, nil))/mean)
}

// computeSections locates intro/outro boundaries and samples the energy
// profile at a fixed cadence.
func computeSections(rms []float64, duration float64) SectionsResult {
	introEnd := findIntroEnd(rms, duration)
	outroStart := findOutroStart(rms, duration)

	var profile []models.EnergyPoint
	for t := 0.0; t < duration; t += energyProfileCadence {
		end := math.Min(t+energyProfileCadence, duration)
		profile = append(profile, models.EnergyPoint{
			Time:   round4(t),
			Energy: round3(energyOver(rms, t, end)),
		})
	}

	return SectionsResult{
		IntroEnd:      introEnd,
		OutroStart:    outroStart,
		IntroEnergy:   energyOver(rms, 0, introEnd),
		OutroEnergy:   energyOver(rms, outroStart, duration),
		EnergyProfile: profile,
	}
}

// findIntroEnd scans the opening region for the earliest point after the
// initial rise where windowed RMS variance settles below the 25th
// percentile of variances in the region.
func findIntroEnd(rms []float64, duration float64) float64 {
	fr := frameRate()
	regionEnd := math.Min(60, 0.3*duration)
	regionFrames := int(regionEnd * fr)
	if regionFrames > len(rms) {
		regionFrames = len(rms)
	}
	windowFrames := int(statsWindowSecs * fr)
	if windowFrames < 2 || regionFrames <= windowFrames {
		return math.Min(30, regionEnd)
	}

	variances := make([]float64, 0, regionFrames-windowFrames)
	for i := 0; i+windowFrames <= regionFrames; i++ {
		variances = append(variances, stat.Variance(rms[i:i+windowFrames], nil))
	}

	sorted := append([]float64(nil), variances...)
	sort.Float64s(sorted)
	threshold := sorted[len(sorted)/4]

	// Initial rise: first frame above 10% of the region's peak RMS
	peak := 0.0
	for _, v := range rms[:regionFrames] {
		if v > peak {
			peak = v
		}
	}
	rise := 0
	for i, v := range rms[:regionFrames] {
		if v > 0.1*peak {
			rise = i
			break
		}
	}

	for i := rise; i < len(variances); i++ {
		if variances[i] < threshold {
			return float64(i) / fr
		}
	}
	return math.Min(30, regionEnd)
}

// findOutroStart searches backwards for the latest point where the recent
// window's mean RMS drops at least 20% below the preceding window.
func findOutroStart(rms []float64, duration float64) float64 {
	const window = 5.0
	fallback := math.Max(duration-30, 0.7*duration)

	for t := duration - window; t >= duration/2; t -= 1.0 {
		recent := meanRMSOver(rms, t, t+window)
		preceding := meanRMSOver(rms, t-window, t)
		if preceding > 0 && recent <= 0.8*preceding {
			return t
		}
	}
	return fallback
}

func meanRMSOver(rms []float64, startT, endT float64) float64 {
	fr := frameRate()
	start := int(startT * fr)
	end := int(endT * fr)
	if start < 0 {
		start = 0
	}
	if end > len(rms) {
		end = len(rms)
	}
	if start >= end {
		return 0
	}
	return stat.Mean(rms[start:end], nil)
}

// computeMixPoints picks transition-friendly in/out times and the top
// auxiliary mixable sections.
func computeMixPoints(rms []float64, beats []float64, sections SectionsResult, duration float64) MixPointsResult {
	return MixPointsResult{
		MixIn:    findMixInPoint(rms, beats, sections.IntroEnd, duration),
		MixOut:   findMixOutPoint(rms, beats, sections.OutroStart, duration),
		Sections: findMixableSections(rms, beats, duration),
	}
}

// findMixInPoint scores the opening region by 0.6*stability + 0.4*energy,
// snaps to the nearest beat before the intro end, and floors at 8 s.
func findMixInPoint(rms []float64, beats []float64, introEnd, duration float64) float64 {
	regionEnd := math.Min(45, 0.3*duration)

	best, bestScore := 0.0, -1.0
	for t := 0.0; t+mixWindowSecs <= regionEnd; t += 1.0 {
		score := 0.6*stabilityOver(rms, t, t+mixWindowSecs) + 0.4*energyOver(rms, t, t+mixWindowSecs)
		if score > bestScore {
			bestScore = score
			best = t
		}
	}

	if snapped, ok := nearestBeat(beats, best, 0, introEnd); ok {
		best = snapped
	}

	best = math.Max(best, 8)
	return math.Min(best, duration)
}

// findMixOutPoint scores the closing region by energy drop and trailing
// stability, snaps to a beat between the outro start and duration-4, and
// clamps to [0.7*duration, duration-4].
func findMixOutPoint(rms []float64, beats []float64, outroStart, duration float64) float64 {
	regionStart := math.Max(0, duration-45)

	best, bestScore := duration-4, -1.0
	for t := regionStart; t+mixWindowSecs <= duration; t += 1.0 {
		drop := energyOver(rms, t-mixWindowSecs, t) - energyOver(rms, t, t+mixWindowSecs)
		score := 0.7*math.Max(drop, 0) + 0.3*stabilityOver(rms, t, t+mixWindowSecs)
		if score > bestScore {
			bestScore = score
			best = t
		}
	}

	if snapped, ok := nearestBeat(beats, best, outroStart, duration-4); ok {
		best = snapped
	}

	best = math.Min(best, duration-4)
	best = math.Max(best, 0.7*duration)
	return best
}

// findMixableSections scans the track body for low-energy stable segments
// and keeps the top three by stability*(1-energy).
func findMixableSections(rms []float64, beats []float64, duration float64) []models.MixableSection {
	if duration <= 40 {
		return nil
	}

	var candidates []models.MixableSection
	for t := 20.0; t+sectionWindowSecs <= duration-20; t += sectionHopSecs {
		energy := energyOver(rms, t, t+sectionWindowSecs)
		stability := stabilityOver(rms, t, t+sectionWindowSecs)
		if energy >= 0.3 || stability <= 0.7 {
			continue
		}

		sectionType := "ambient"
		if energy < 0.15 {
			sectionType = "breakdown"
		}

		candidates = append(candidates, models.MixableSection{
			Type:      sectionType,
			Start:     round4(t),
			End:       round4(t + sectionWindowSecs),
			Energy:    round3(energy),
			Stability: round3(stability),
			BeatCount: beatsWithin(beats, t, t+sectionWindowSecs),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si := candidates[i].Stability * (1 - candidates[i].Energy)
		sj := candidates[j].Stability * (1 - candidates[j].Energy)
		return si > sj
	})

	if len(candidates) > maxMixableSections {
		candidates = candidates[:maxMixableSections]
	}
	return candidates
}

// nearestBeat returns the beat closest to t within [low, high]
func nearestBeat(beats []float64, t, low, high float64) (float64, bool) {
	best, bestDist := 0.0, math.Inf(1)
	found := false
	for _, b := range beats {
		if b < low || b > high {
			continue
		}
		if d := math.Abs(b - t); d < bestDist {
			bestDist = d
			best = b
			found = true
		}
	}
	return best, found
}

func beatsWithin(beats []float64, start, end float64) int {
	count := 0
	for _, b := range beats {
		if b >= start && b < end {
			count++
		}
	}
	return count
}
