// Package mix scores pairwise track compatibility and plans ordered DJ
// mixes with per-transition instructions.
package mix

import (
	"math"
	"strings"

	"github.com/AsarMichil/jockee/internal/analysis"
	"github.com/AsarMichil/jockee/internal/models"
)

// DefaultTransitionDuration is the base crossfade length in seconds,
// before technique modifiers.
const DefaultTransitionDuration = 16.0

const (
	smoothBlendFactor = 1.5
	quickCutDuration  = 2.0
	forcedCutDuration = 4.0 // applied when overall compatibility < 0.3
)

// Overall score weights
const (
	weightBPM    = 0.25
	weightKey    = 0.20
	weightEnergy = 0.30
	weightStyle  = 0.15
	weightVocal  = 0.10
)

// Scores holds the five compatibility axes and their weighted overall
type Scores struct {
	BPM     float64 `json:"bpm"`
	Key     float64 `json:"key"`
	Energy  float64 `json:"energy"`
	Style   float64 `json:"style"`
	Vocal   float64 `json:"vocal"`
	Overall float64 `json:"overall"`
}

// Score computes the full compatibility record for playing B after A
func Score(a, b *models.Track) Scores {
	s := Scores{
		BPM:    bpmScore(a.BPM, b.BPM),
		Key:    KeyScore(deref(a.Key), deref(b.Key)),
		Energy: energyScore(a, b),
		Style:  styleScore(a.DominantStyleName(), b.DominantStyleName()),
		Vocal:  vocalScore(a, b),
	}
	s.Overall = clamp01(weightBPM*s.BPM + weightKey*s.Key + weightEnergy*s.Energy +
		weightStyle*s.Style + weightVocal*s.Vocal)
	return s
}

// bpmScore is 1 when tempos are within 6% of each other, falling linearly
// to 0 at 12%. Missing BPM scores 0.
func bpmScore(a, b *float64) float64 {
	if a == nil || b == nil || *a == 0 || *b == 0 {
		return 0
	}
	diff := math.Abs(*a-*b) / math.Max(*a, *b)
	return clamp01(1 - math.Min(diff/0.06, 1))
}

// circleOfFifths maps a pitch class (C=0..B=11) to its position on the
// circle of fifths (C=0, G=1, D=2, ...)
func circleOfFifths(pitchClass int) int {
	return (pitchClass * 7) % 12
}

// KeyScore rates harmonic compatibility of two key labels (e.g. "C", "Am").
// Identical keys score 1, relative major/minor and parallel modes 0.8,
// neighbours on the circle of fifths 0.7, and so on down to 0.2.
// Unknown keys score 0.5.
func KeyScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0.5
	}
	if a == b {
		return 1.0
	}

	rootA, minorA, okA := parseKey(a)
	rootB, minorB, okB := parseKey(b)
	if !okA || !okB {
		return 0.5
	}

	if rootA == rootB {
		if minorA == minorB {
			return 1.0
		}
		return 0.8 // parallel major/minor
	}

	// Relative major/minor: the minor root sits three semitones below
	if minorA != minorB {
		majorRoot, minorRoot := rootA, rootB
		if minorA {
			majorRoot, minorRoot = rootB, rootA
		}
		if (majorRoot+9)%12 == minorRoot {
			return 0.8
		}
	}

	posA := circleOfFifths(rootA)
	posB := circleOfFifths(rootB)
	d := abs(posA - posB)
	if 12-d < d {
		d = 12 - d
	}

	switch d {
	case 1:
		return 0.7
	case 7:
		return 0.6
	case 2:
		return 0.4
	default:
		return 0.2
	}
}

// parseKey splits a key label into pitch class and mode
func parseKey(key string) (root int, minor bool, ok bool) {
	name := key
	if strings.HasSuffix(name, "m") && len(name) > 1 {
		minor = true
		name = name[:len(name)-1]
	}
	for i, pc := range analysis.PitchClassNames {
		if pc == name {
			return i, minor, true
		}
	}
	return 0, false, false
}

// energyScore compares A's outro energy with B's intro energy, falling
// back to overall track energy, then to a neutral 0.5.
func energyScore(a, b *models.Track) float64 {
	ea := firstOf(a.OutroEnergy, a.Energy, 0.5)
	eb := firstOf(b.IntroEnergy, b.Energy, 0.5)
	return clamp01(1 - math.Abs(ea-eb))
}

// allowedStylePairs are stylistically adjacent dominant-style pairings
var allowedStylePairs = map[[2]string]bool{
	{analysis.StyleBeatDriven, analysis.StyleElectronic}:       true,
	{analysis.StyleBeatDriven, analysis.StyleMelodicFocus}:     true,
	{analysis.StyleMelodicFocus, analysis.StyleAcoustic}:       true,
	{analysis.StyleAmbientTexture, analysis.StyleMelodicFocus}: true,
}

func styleScore(a, b string) float64 {
	if a == analysis.StyleUnknown || b == analysis.StyleUnknown || a == "" || b == "" {
		return 0.5
	}
	if a == b {
		return 1.0
	}
	if allowedStylePairs[[2]string{a, b}] || allowedStylePairs[[2]string{b, a}] {
		return 0.7
	}
	return 0.3
}

// vocalScore penalises stacking two vocal-heavy tracks; otherwise it
// rewards similar vocal presence. Missing data gets the 0.3 baseline.
func vocalScore(a, b *models.Track) float64 {
	if a.Style == nil || b.Style == nil {
		return 0.3
	}
	va := a.Style.VocalCentric
	vb := b.Style.VocalCentric
	if va > 0.7 && vb > 0.7 {
		return 0.3
	}
	return math.Max(0.3, 1-math.Abs(va-vb))
}

// SelectTechnique picks the transition technique and duration from the
// scores. First match wins; overall below 0.3 forces a short cut.
func SelectTechnique(s Scores) (technique string, duration float64) {
	duration = DefaultTransitionDuration

	switch {
	case s.Overall >= 0.8 && s.BPM >= 0.7:
		technique = models.TechniqueSmoothBlend
		duration = DefaultTransitionDuration * smoothBlendFactor
	case s.Energy < 0.3:
		technique = models.TechniqueQuickCut
		duration = quickCutDuration
	case s.BPM >= 0.8:
		technique = models.TechniqueBeatmatch
	case s.Overall < 0.4:
		technique = models.TechniqueCreative
	default:
		technique = models.TechniqueCrossfade
	}

	if s.Overall < 0.3 {
		duration = forcedCutDuration
	}
	return technique, duration
}

// BPMAdjustment is the signed percent tempo change required to match B to A
func BPMAdjustment(a, b *models.Track) float64 {
	if a.BPM == nil || b.BPM == nil || *a.BPM == 0 {
		return 0
	}
	return 100 * (*b.BPM - *a.BPM) / *a.BPM
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// firstOf returns the first non-nil value, else the fallback
func firstOf(a, b *float64, fallback float64) float64 {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return fallback
}
