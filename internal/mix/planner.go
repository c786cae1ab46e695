package mix

import (
	"errors"
	"math"
	"sort"

	"github.com/AsarMichil/jockee/internal/analysis"
	"github.com/AsarMichil/jockee/internal/models"
)

// Ordering strategies
const (
	StrategyBPMProgression = "bpm_progression"
	StrategyEnergyFlow     = "energy_flow"
	StrategyKeyHarmony     = "key_harmony"
	StrategyStyleClusters  = "style_clusters"
	StrategySmartDJ        = "smart_dj"
)

// strategyPriors bias default-option selection towards strategies that tend
// to produce better mixes
var strategyPriors = map[string]float64{
	StrategySmartDJ:        0.30,
	StrategyBPMProgression: 0.25,
	StrategyEnergyFlow:     0.20,
	StrategyKeyHarmony:     0.15,
	StrategyStyleClusters:  0.10,
}

// styleMacroOrder is the cluster sequence for style_clusters ordering.
// Styles not listed sort last.
var styleMacroOrder = map[string]int{
	analysis.StyleAmbientTexture: 0,
	analysis.StyleAcoustic:       1,
	analysis.StyleMelodicFocus:   2,
	analysis.StyleBeatDriven:     3,
	analysis.StyleElectronic:     4,
}

// ErrNotEnoughTracks is returned when fewer than two analysed,
// file-bearing tracks are available
var ErrNotEnoughTracks = errors.New("not enough analysed tracks")

// Option is one candidate mix: an ordered track sequence with its
// transitions and selection score.
type Option struct {
	Strategy      string
	Order         []*models.Track
	Transitions   []models.MixTransition
	TotalDuration float64
	AvgScore      float64
	Score         float64
}

// Plan is the full planner output: all candidate options plus the default
type Plan struct {
	Options []Option
	Default *Option
}

// PlanMix produces up to five candidate orderings of the given tracks and
// selects a default. Tracks must be analysed and carry a usable file.
func PlanMix(tracks []*models.Track) (*Plan, error) {
	usable := make([]*models.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.IsAnalyzed() && t.HasFile() {
			usable = append(usable, t)
		}
	}
	if len(usable) < 2 {
		return nil, ErrNotEnoughTracks
	}

	orders := map[string][]*models.Track{
		StrategyBPMProgression: orderByBPM(usable),
		StrategyEnergyFlow:     orderByEnergyWave(usable),
		StrategyKeyHarmony:     orderByKeyChain(usable),
		StrategyStyleClusters:  orderByStyleClusters(usable),
		StrategySmartDJ:        orderBySmartDJ(usable),
	}

	plan := &Plan{}
	for _, strategy := range []string{
		StrategySmartDJ, StrategyBPMProgression, StrategyEnergyFlow,
		StrategyKeyHarmony, StrategyStyleClusters,
	} {
		option := buildOption(strategy, orders[strategy])
		plan.Options = append(plan.Options, option)
	}

	best := 0
	for i := range plan.Options {
		if plan.Options[i].Score > plan.Options[best].Score {
			best = i
		}
	}
	plan.Default = &plan.Options[best]

	return plan, nil
}

// buildOption turns an ordered sequence into transitions and scores it
func buildOption(strategy string, order []*models.Track) Option {
	option := Option{Strategy: strategy, Order: order}

	var scoreSum float64
	for i := 0; i+1 < len(order); i++ {
		a, b := order[i], order[i+1]
		scores := Score(a, b)
		technique, duration := SelectTechnique(scores)

		start := transitionStart(a, duration)

		option.Transitions = append(option.Transitions, models.MixTransition{
			Position:             i,
			TrackAID:             a.ID,
			TrackBID:             b.ID,
			TransitionStart:      round4(start),
			TransitionDuration:   round4(duration),
			Technique:            technique,
			BPMAdjustment:        round2(BPMAdjustment(a, b)),
			BPMCompatibility:     round3(scores.BPM),
			KeyCompatibility:     round3(scores.Key),
			EnergyCompatibility:  round3(scores.Energy),
			StyleCompatibility:   round3(scores.Style),
			VocalCompatibility:   round3(scores.Vocal),
			OverallCompatibility: round3(scores.Overall),
			Metadata:             transitionMetadata(a, b),
		})
		scoreSum += scores.Overall
	}

	if n := len(option.Transitions); n > 0 {
		option.AvgScore = scoreSum / float64(n)
	}
	option.TotalDuration = round2(totalDuration(order, option.Transitions))
	option.Score = 0.4*option.AvgScore + strategyPriors[strategy] +
		0.1*math.Max(0, 1-option.TotalDuration/3600)

	return option
}

// transitionStart is track A's mix-out point, or the midpoint of its last
// quarter when no mix point is known, clamped so the transition fits.
func transitionStart(a *models.Track, duration float64) float64 {
	start := 0.875 * a.Duration
	if a.MixOutPoint != nil {
		start = *a.MixOutPoint
	}
	if start+duration > a.Duration {
		start = math.Max(0, a.Duration-duration)
	}
	return start
}

// totalDuration sums the opening segment, all transition windows, and the
// closing track's tail after its entry point.
func totalDuration(order []*models.Track, transitions []models.MixTransition) float64 {
	if len(transitions) == 0 {
		return 0
	}

	total := transitions[0].TransitionStart
	for _, t := range transitions {
		total += t.TransitionDuration
	}

	last := order[len(order)-1]
	entry := 0.0
	if last.MixInPoint != nil {
		entry = *last.MixInPoint
	}
	lastDur := transitions[len(transitions)-1].TransitionDuration
	total += math.Max(0, last.Duration-entry-lastDur)

	return total
}

func transitionMetadata(a, b *models.Track) map[string]interface{} {
	return map[string]interface{}{
		"track_a": trackSnapshot(a),
		"track_b": trackSnapshot(b),
	}
}

func trackSnapshot(t *models.Track) map[string]interface{} {
	return map[string]interface{}{
		"spotify_id": t.SpotifyID,
		"title":      t.Title,
		"artist":     t.Artist,
		"bpm":        t.BPM,
		"key":        t.Key,
		"energy":     t.Energy,
	}
}

// orderByBPM sorts ascending by BPM; missing BPM sorts first
func orderByBPM(tracks []*models.Track) []*models.Track {
	out := append([]*models.Track(nil), tracks...)
	sort.SliceStable(out, func(i, j int) bool {
		return bpmOf(out[i]) < bpmOf(out[j])
	})
	return out
}

// orderByEnergyWave interleaves the lower- and higher-energy halves so the
// mix alternates between calmer and busier tracks
func orderByEnergyWave(tracks []*models.Track) []*models.Track {
	sorted := append([]*models.Track(nil), tracks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return energyOf(sorted[i]) < energyOf(sorted[j])
	})

	mid := len(sorted) / 2
	lower, upper := sorted[:mid], sorted[mid:]

	out := make([]*models.Track, 0, len(sorted))
	for i := 0; i < len(upper); i++ {
		if i < len(lower) {
			out = append(out, lower[i])
		}
		out = append(out, upper[i])
	}
	return out
}

// orderByKeyChain greedily chains keyed tracks by pairwise key score,
// appending keyless tracks at the end in input order
func orderByKeyChain(tracks []*models.Track) []*models.Track {
	var keyed, keyless []*models.Track
	for _, t := range tracks {
		if t.Key != nil && *t.Key != "" {
			keyed = append(keyed, t)
		} else {
			keyless = append(keyless, t)
		}
	}
	if len(keyed) == 0 {
		return append([]*models.Track(nil), tracks...)
	}

	chain := greedyChain(keyed, func(a, b *models.Track) float64 {
		return KeyScore(deref(a.Key), deref(b.Key))
	})
	return append(chain, keyless...)
}

// orderByStyleClusters groups by dominant style in the macro order, then
// sorts by BPM within each group
func orderByStyleClusters(tracks []*models.Track) []*models.Track {
	out := append([]*models.Track(nil), tracks...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := styleRank(out[i]), styleRank(out[j])
		if ri != rj {
			return ri < rj
		}
		return bpmOf(out[i]) < bpmOf(out[j])
	})
	return out
}

// orderBySmartDJ greedily chains tracks by overall compatibility
func orderBySmartDJ(tracks []*models.Track) []*models.Track {
	return greedyChain(tracks, func(a, b *models.Track) float64 {
		return Score(a, b).Overall
	})
}

// greedyChain starts from the first track and repeatedly appends the
// remaining track with the best pairwise score; ties keep input order
func greedyChain(tracks []*models.Track, score func(a, b *models.Track) float64) []*models.Track {
	if len(tracks) == 0 {
		return nil
	}

	remaining := append([]*models.Track(nil), tracks...)
	chain := []*models.Track{remaining[0]}
	remaining = remaining[1:]

	for len(remaining) > 0 {
		last := chain[len(chain)-1]
		bestIdx, bestScore := 0, -1.0
		for i, candidate := range remaining {
			if s := score(last, candidate); s > bestScore {
				bestScore = s
				bestIdx = i
			}
		}
		chain = append(chain, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return chain
}

func styleRank(t *models.Track) int {
	if rank, ok := styleMacroOrder[t.DominantStyleName()]; ok {
		return rank
	}
	return len(styleMacroOrder)
}

func bpmOf(t *models.Track) float64 {
	if t.BPM == nil {
		return 0
	}
	return *t.BPM
}

func energyOf(t *models.Track) float64 {
	if t.Energy == nil {
		return 0
	}
	return *t.Energy
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

// BuildMetadata summarises a mix order for the job result blob
func BuildMetadata(option *Option) map[string]interface{} {
	var bpms, energies []float64
	keys := map[string]bool{}
	for _, t := range option.Order {
		if t.BPM != nil {
			bpms = append(bpms, *t.BPM)
		}
		if t.Energy != nil {
			energies = append(energies, *t.Energy)
		}
		if t.Key != nil && *t.Key != "" {
			keys[*t.Key] = true
		}
	}

	keyList := make([]string, 0, len(keys))
	for k := range keys {
		keyList = append(keyList, k)
	}
	sort.Strings(keyList)

	meta := map[string]interface{}{
		"algorithm":    option.Strategy,
		"total_tracks": len(option.Order),
		"keys_used":    keyList,
	}
	if len(bpms) > 0 {
		meta["avg_bpm"] = round2(meanOf(bpms))
		meta["min_bpm"] = round2(minOf(bpms))
		meta["max_bpm"] = round2(maxOf(bpms))
	}
	if len(energies) > 0 {
		meta["avg_energy"] = round3(meanOf(energies))
		meta["min_energy"] = round3(minOf(energies))
		meta["max_energy"] = round3(maxOf(energies))
	}
	return meta
}

func meanOf(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

func minOf(x []float64) float64 {
	m := x[0]
	for _, v := range x[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(x []float64) float64 {
	m := x[0]
	for _, v := range x[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
