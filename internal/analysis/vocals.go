package analysis

import (
	"sort"

	"github.com/AsarMichil/jockee/internal/models"
)

const (
	vocalCentroidPercentile = 0.70
	vocalIntervalConfidence = 0.6
	minVocalRunSecs         = 0.5
)

// computeVocalIntervals segments the track into vocal and instrumental
// spans. Frames whose spectral centroid sits above the 70th percentile are
// vocal candidates; contiguous runs become vocal intervals and the gaps
// become instrumental intervals, together covering [0, duration].
func computeVocalIntervals(centroid []float64, duration float64) (vocal, instrumental []models.Interval) {
	if len(centroid) == 0 || duration <= 0 {
		return nil, []models.Interval{{Start: 0, End: round4(duration), Confidence: vocalIntervalConfidence}}
	}

	sorted := append([]float64(nil), centroid...)
	sort.Float64s(sorted)
	threshold := sorted[int(vocalCentroidPercentile*float64(len(sorted)-1))]

	fr := frameRate()
	minRunFrames := int(minVocalRunSecs * fr)

	// Consolidate candidate frames into runs
	runStart := -1
	flush := func(endFrame int) {
		if runStart < 0 {
			return
		}
		if endFrame-runStart >= minRunFrames {
			vocal = append(vocal, models.Interval{
				Start:      round4(float64(runStart) / fr),
				End:        round4(float64(endFrame) / fr),
				Confidence: vocalIntervalConfidence,
			})
		}
		runStart = -1
	}

	for i, c := range centroid {
		if c > threshold {
			if runStart < 0 {
				runStart = i
			}
		} else {
			flush(i)
		}
	}
	flush(len(centroid))

	// Clamp the last vocal interval to the track duration
	if n := len(vocal); n > 0 && vocal[n-1].End > duration {
		vocal[n-1].End = round4(duration)
	}

	// Fill the gaps with instrumental intervals
	cursor := 0.0
	for _, v := range vocal {
		if v.Start > cursor {
			instrumental = append(instrumental, models.Interval{
				Start:      round4(cursor),
				End:        v.Start,
				Confidence: vocalIntervalConfidence,
			})
		}
		cursor = v.End
	}
	if cursor < duration {
		instrumental = append(instrumental, models.Interval{
			Start:      round4(cursor),
			End:        round4(duration),
			Confidence: vocalIntervalConfidence,
		})
	}

	return vocal, instrumental
}
