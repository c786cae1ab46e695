// Package analysis extracts musical descriptors from decoded audio: tempo
// and beat grid, key, perceptual scalars, style vector, section boundaries,
// vocal segmentation, and mix points. Extractors fail independently; a
// failed sub-extractor nulls its fields and records a warning instead of
// aborting the whole analysis.
package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/AsarMichil/jockee/internal/audio"
	"github.com/AsarMichil/jockee/internal/models"
)

// Result is the full analysis block for one track. Nil fields mean the
// corresponding extractor failed or had nothing to report.
type Result struct {
	BPM           *float64
	Key           *string
	KeyConfidence *float64

	Energy           *float64
	Danceability     *float64
	Valence          *float64
	Acousticness     *float64
	Instrumentalness *float64
	Liveness         *float64
	Speechiness      *float64
	Loudness         *float64

	BeatTimestamps  []float64
	BeatIntervals   []float64
	BeatConfidences []float64
	BeatConfidence  *float64
	BeatRegularity  *float64
	AvgBeatInterval *float64

	Style           *models.StyleVector
	DominantStyle   *string
	StyleConfidence *float64

	IntroEnd      *float64
	OutroStart    *float64
	IntroEnergy   *float64
	OutroEnergy   *float64
	EnergyProfile []models.EnergyPoint

	VocalIntervals        []models.Interval
	InstrumentalIntervals []models.Interval

	MixInPoint      *float64
	MixOutPoint     *float64
	MixableSections []models.MixableSection

	Warnings []string
}

// featureSet caches the shared signal primitives computed once per track
type featureSet struct {
	samples  []float64
	duration float64
	cfg      audio.STFTConfig

	mag       [][]float64
	rms       []float64
	onset     []float64
	onsetNorm []float64
	centroid  []float64
	bandwidth []float64
	zcr       []float64
	chroma    [][]float64
	mfcc      [][]float64
	contrast  [][]float64

	tempo       TempoResult
	key         KeyResult
	keyErr      error
	acPeakRatio float64
}

// AnalyzeFile decodes the audio file and runs the full extractor suite
func AnalyzeFile(ctx context.Context, path string) (*Result, error) {
	samples, err := audio.LoadMono(ctx, path)
	if err != nil {
		return nil, err
	}
	duration := float64(len(samples)) / float64(audio.SampleRate)
	return AnalyzeSamples(samples, duration), nil
}

// AnalyzeSamples runs the extractor suite over a decoded mono buffer
func AnalyzeSamples(samples []float64, duration float64) *Result {
	f := buildFeatureSet(samples, duration)
	return analyzeFeatures(f)
}

func buildFeatureSet(samples []float64, duration float64) *featureSet {
	cfg := audio.DefaultSTFTConfig()
	f := &featureSet{samples: samples, duration: duration, cfg: cfg}

	f.mag = audio.STFT(samples, cfg)
	f.rms = audio.FrameRMS(samples, cfg)
	f.zcr = audio.ZeroCrossingRate(samples, cfg)
	f.onset = audio.OnsetStrength(f.mag)
	f.centroid = audio.SpectralCentroid(f.mag, cfg, audio.SampleRate)
	f.bandwidth = audio.SpectralBandwidth(f.mag, cfg, audio.SampleRate)
	f.chroma = audio.Chromagram(f.mag, cfg, audio.SampleRate)
	f.mfcc = audio.MFCC(f.mag, cfg, audio.SampleRate)
	f.contrast = audio.SpectralContrast(f.mag, cfg, audio.SampleRate)

	// Normalised onset envelope keeps descriptor constants scale-free
	f.onsetNorm = make([]float64, len(f.onset))
	peak := 0.0
	for _, v := range f.onset {
		if v > peak {
			peak = v
		}
	}
	if peak > 0 {
		for i, v := range f.onset {
			f.onsetNorm[i] = v / peak
		}
	}

	return f
}

// analyzeFeatures evaluates every extractor over the shared feature set.
// Each extractor runs guarded; a panic or error becomes a warning.
func analyzeFeatures(f *featureSet) *Result {
	r := &Result{}

	guard(r, "tempo", func() {
		f.tempo = DetectTempo(f.onsetNorm, f.cfg, audio.SampleRate)
		f.acPeakRatio = onsetPeakRatio(f.onsetNorm, f.cfg, audio.SampleRate)
		if f.tempo.BPM == 0 {
			r.addWarning("tempo: no tempo detected")
			return
		}
		r.BPM = ptr(round2(f.tempo.BPM))
		if len(f.tempo.Beats) >= 2 {
			r.BeatTimestamps = round4Slice(f.tempo.Beats)
			r.BeatIntervals = round4Slice(f.tempo.Intervals)
			r.BeatConfidences = round3Slice(f.tempo.Confidences)
			r.BeatConfidence = ptr(round3(f.tempo.Confidence))
			r.BeatRegularity = ptr(round3(f.tempo.Regularity))
			r.AvgBeatInterval = ptr(round4(f.tempo.AvgBeatInterval))
		} else {
			r.BeatConfidence = ptr(0.0)
			r.BeatRegularity = ptr(0.0)
			r.AvgBeatInterval = ptr(0.0)
		}
	})

	guard(r, "key", func() {
		key, err := DetectKey(f.chroma)
		if err != nil {
			f.keyErr = err
			r.KeyConfidence = ptr(0.0)
			r.addWarning(fmt.Sprintf("key: %v", err))
			return
		}
		f.key = key
		r.Key = ptr(key.Key)
		r.KeyConfidence = ptr(round3(key.Confidence))
	})

	var perceptual Perceptual
	guard(r, "perceptual", func() {
		perceptual = computePerceptual(f)
		r.Energy = ptr(round3(perceptual.Energy))
		r.Danceability = ptr(round3(perceptual.Danceability))
		r.Valence = ptr(round3(perceptual.Valence))
		r.Acousticness = ptr(round3(perceptual.Acousticness))
		r.Instrumentalness = ptr(round3(perceptual.Instrumentalness))
		r.Liveness = ptr(round3(perceptual.Liveness))
		r.Speechiness = ptr(round3(perceptual.Speechiness))
		r.Loudness = ptr(round3(perceptual.Loudness))
	})

	guard(r, "style", func() {
		style := computeStyle(f, perceptual)
		r.Style = &style.Vector
		r.DominantStyle = ptr(style.Dominant)
		r.StyleConfidence = ptr(round3(style.Confidence))
	})

	var sections SectionsResult
	guard(r, "sections", func() {
		sections = computeSections(f.rms, f.duration)
		r.IntroEnd = ptr(round4(sections.IntroEnd))
		r.OutroStart = ptr(round4(sections.OutroStart))
		r.IntroEnergy = ptr(round3(sections.IntroEnergy))
		r.OutroEnergy = ptr(round3(sections.OutroEnergy))
		r.EnergyProfile = sections.EnergyProfile
	})

	guard(r, "mix_points", func() {
		points := computeMixPoints(f.rms, f.tempo.Beats, sections, f.duration)
		r.MixInPoint = ptr(round4(points.MixIn))
		r.MixOutPoint = ptr(round4(points.MixOut))
		r.MixableSections = points.Sections
	})

	guard(r, "vocals", func() {
		vocal, instrumental := computeVocalIntervals(f.centroid, f.duration)
		r.VocalIntervals = vocal
		r.InstrumentalIntervals = instrumental
	})

	return r
}

// onsetPeakRatio is the strongest autocorrelation peak in the tempo lag
// range; the envelope autocorrelation is normalised so this is already a
// ratio against lag zero.
func onsetPeakRatio(onset []float64, cfg audio.STFTConfig, sampleRate int) float64 {
	frameRate := float64(sampleRate) / float64(cfg.HopSize)
	minLag := int(60.0 / rawBPMMax * frameRate)
	maxLag := int(60.0/rawBPMMin*frameRate) + 1
	if maxLag > len(onset) {
		maxLag = len(onset)
	}
	if minLag < 1 || minLag >= maxLag {
		return 0
	}
	ac := audio.Autocorrelation(onset, maxLag)
	best := 0.0
	for lag := minLag; lag < maxLag; lag++ {
		if ac[lag] > best {
			best = ac[lag]
		}
	}
	return best
}

func (r *Result) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// guard runs one extractor, converting a panic into a warning so the rest
// of the analysis proceeds.
func guard(r *Result, name string, fn func()) {
	defer func() {
		if err := recover(); err != nil {
			r.addWarning(fmt.Sprintf("%s: %v", name, err))
		}
	}()
	fn()
}

// ApplyToTrack replaces the track's analysis block with this result. The
// block is replaced wholesale: fields absent from the result are cleared.
func (r *Result) ApplyToTrack(t *models.Track) {
	now := time.Now().UTC()

	t.BPM = r.BPM
	t.Key = r.Key
	t.KeyConfidence = r.KeyConfidence

	t.Energy = r.Energy
	t.Danceability = r.Danceability
	t.Valence = r.Valence
	t.Acousticness = r.Acousticness
	t.Instrumentalness = r.Instrumentalness
	t.Liveness = r.Liveness
	t.Speechiness = r.Speechiness
	t.Loudness = r.Loudness

	t.BeatTimestamps = r.BeatTimestamps
	t.BeatIntervals = r.BeatIntervals
	t.BeatConfidences = r.BeatConfidences
	t.BeatConfidence = r.BeatConfidence
	t.BeatRegularity = r.BeatRegularity
	t.AvgBeatInterval = r.AvgBeatInterval

	t.Style = r.Style
	t.DominantStyle = r.DominantStyle
	t.StyleConfidence = r.StyleConfidence

	t.IntroEnd = r.IntroEnd
	t.OutroStart = r.OutroStart
	t.IntroEnergy = r.IntroEnergy
	t.OutroEnergy = r.OutroEnergy
	t.EnergyProfile = r.EnergyProfile

	t.VocalIntervals = r.VocalIntervals
	t.InstrumentalIntervals = r.InstrumentalIntervals

	t.MixInPoint = r.MixInPoint
	t.MixOutPoint = r.MixOutPoint
	t.MixableSections = r.MixableSections

	// A completed analysis block requires at least a tempo; without one the
	// track stays un-analysed so it is never counted as plannable.
	if r.BPM != nil {
		t.AnalysisVersion = ptr(models.CurrentAnalysisVersion)
		t.AnalyzedAt = &now
	} else {
		t.AnalysisVersion = nil
		t.AnalyzedAt = nil
	}

	if len(r.Warnings) > 0 {
		t.AnalysisError = ptr(strings.Join(r.Warnings, "; "))
	} else {
		t.AnalysisError = nil
	}
}

func ptr[T any](v T) *T { return &v }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func round3Slice(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = round3(v)
	}
	return out
}

func round4Slice(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = round4(v)
	}
	return out
}
