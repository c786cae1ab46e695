package audio

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// FrameRMS computes the root-mean-square energy of each analysis frame
func FrameRMS(samples []float64, cfg STFTConfig) []float64 {
	numFrames := (len(samples) - cfg.WindowSize) / cfg.HopSize
	if numFrames <= 0 {
		return nil
	}

	rms := make([]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		start := i * cfg.HopSize
		var sum float64
		for j := 0; j < cfg.WindowSize; j++ {
			s := samples[start+j]
			sum += s * s
		}
		rms[i] = math.Sqrt(sum / float64(cfg.WindowSize))
	}
	return rms
}

// ZeroCrossingRate computes the per-frame fraction of sign changes
func ZeroCrossingRate(samples []float64, cfg STFTConfig) []float64 {
	numFrames := (len(samples) - cfg.WindowSize) / cfg.HopSize
	if numFrames <= 0 {
		return nil
	}

	zcr := make([]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		start := i * cfg.HopSize
		crossings := 0
		for j := 1; j < cfg.WindowSize; j++ {
			if (samples[start+j-1] >= 0) != (samples[start+j] >= 0) {
				crossings++
			}
		}
		zcr[i] = float64(crossings) / float64(cfg.WindowSize)
	}
	return zcr
}

// SpectralCentroid computes the magnitude-weighted mean frequency per frame
func SpectralCentroid(mag [][]float64, cfg STFTConfig, sampleRate int) []float64 {
	freqs := BinFrequencies(cfg, sampleRate)
	out := make([]float64, len(mag))
	for i, frame := range mag {
		var num, den float64
		for j, m := range frame {
			num += freqs[j] * m
			den += m
		}
		if den > 0 {
			out[i] = num / den
		}
	}
	return out
}

// SpectralBandwidth computes the magnitude-weighted frequency spread per frame
func SpectralBandwidth(mag [][]float64, cfg STFTConfig, sampleRate int) []float64 {
	freqs := BinFrequencies(cfg, sampleRate)
	centroid := SpectralCentroid(mag, cfg, sampleRate)
	out := make([]float64, len(mag))
	for i, frame := range mag {
		var num, den float64
		for j, m := range frame {
			d := freqs[j] - centroid[i]
			num += m * d * d
			den += m
		}
		if den > 0 {
			out[i] = math.Sqrt(num / den)
		}
	}
	return out
}

// SpectralRolloff computes the frequency below which 85% of the spectral
// energy lies, per frame
func SpectralRolloff(mag [][]float64, cfg STFTConfig, sampleRate int) []float64 {
	const rollPercent = 0.85
	freqs := BinFrequencies(cfg, sampleRate)
	out := make([]float64, len(mag))
	for i, frame := range mag {
		total := floats.Sum(frame)
		if total == 0 {
			continue
		}
		threshold := rollPercent * total
		var cum float64
		for j, m := range frame {
			cum += m
			if cum >= threshold {
				out[i] = freqs[j]
				break
			}
		}
	}
	return out
}

// OnsetStrength computes a spectral-flux onset envelope: the mean positive
// magnitude difference per bin between consecutive frames. Frame 0 is zero.
func OnsetStrength(mag [][]float64) []float64 {
	out := make([]float64, len(mag))
	for i := 1; i < len(mag); i++ {
		var flux float64
		for j := range mag[i] {
			d := mag[i][j] - mag[i-1][j]
			if d > 0 {
				flux += d
			}
		}
		out[i] = flux / float64(len(mag[i]))
	}
	return out
}

// Chromagram folds the magnitude spectrum onto 12 pitch classes per frame.
// Bin frequencies map to pitch class via the equal-tempered scale (A4=440).
func Chromagram(mag [][]float64, cfg STFTConfig, sampleRate int) [][]float64 {
	freqs := BinFrequencies(cfg, sampleRate)
	out := make([][]float64, len(mag))
	for i, frame := range mag {
		chroma := make([]float64, 12)
		for j, m := range frame {
			f := freqs[j]
			if f < 27.5 || f > 4200 {
				continue
			}
			midi := 69 + 12*math.Log2(f/440.0)
			pc := int(math.Round(midi)) % 12
			if pc < 0 {
				pc += 12
			}
			chroma[pc] += m
		}
		out[i] = chroma
	}
	return out
}

// MFCC computes 13 mel-frequency cepstral coefficients per frame using a
// 26-filter mel bank and a DCT-II over the log filter energies.
func MFCC(mag [][]float64, cfg STFTConfig, sampleRate int) [][]float64 {
	const (
		numFilters = 26
		numCoeffs  = 13
	)

	bank := melFilterBank(numFilters, cfg, sampleRate)
	out := make([][]float64, len(mag))

	for i, frame := range mag {
		// Log mel energies
		energies := make([]float64, numFilters)
		for f, filter := range bank {
			var e float64
			for j, w := range filter {
				e += frame[j] * frame[j] * w
			}
			energies[f] = math.Log(e + 1e-10)
		}

		// DCT-II
		coeffs := make([]float64, numCoeffs)
		for k := 0; k < numCoeffs; k++ {
			var sum float64
			for n := 0; n < numFilters; n++ {
				sum += energies[n] * math.Cos(math.Pi*float64(k)*(float64(n)+0.5)/float64(numFilters))
			}
			coeffs[k] = sum
		}
		out[i] = coeffs
	}

	return out
}

// melFilterBank builds triangular filters spaced evenly on the mel scale
func melFilterBank(numFilters int, cfg STFTConfig, sampleRate int) [][]float64 {
	numBins := cfg.FFTSize/2 + 1

	hzToMel := func(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }
	melToHz := func(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

	lowMel := hzToMel(0)
	highMel := hzToMel(float64(sampleRate) / 2)

	// numFilters+2 edge points
	points := make([]float64, numFilters+2)
	for i := range points {
		mel := lowMel + (highMel-lowMel)*float64(i)/float64(numFilters+1)
		points[i] = melToHz(mel) * float64(cfg.FFTSize) / float64(sampleRate)
	}

	bank := make([][]float64, numFilters)
	for f := 0; f < numFilters; f++ {
		filter := make([]float64, numBins)
		left, centre, right := points[f], points[f+1], points[f+2]
		for j := 0; j < numBins; j++ {
			b := float64(j)
			switch {
			case b > left && b <= centre && centre > left:
				filter[j] = (b - left) / (centre - left)
			case b > centre && b < right && right > centre:
				filter[j] = (right - b) / (right - centre)
			}
		}
		bank[f] = filter
	}
	return bank
}

// SpectralContrast computes peak-to-valley log contrast per frame in six
// octave bands starting at 200 Hz
func SpectralContrast(mag [][]float64, cfg STFTConfig, sampleRate int) [][]float64 {
	const (
		numBands = 6
		quantile = 0.2
	)

	freqs := BinFrequencies(cfg, sampleRate)
	edges := make([]float64, numBands+1)
	edges[0] = 200
	for i := 1; i <= numBands; i++ {
		edges[i] = edges[i-1] * 2
	}

	out := make([][]float64, len(mag))
	for i, frame := range mag {
		contrast := make([]float64, numBands)
		for b := 0; b < numBands; b++ {
			var band []float64
			for j, m := range frame {
				if freqs[j] >= edges[b] && freqs[j] < edges[b+1] {
					band = append(band, m)
				}
			}
			if len(band) == 0 {
				continue
			}
			sorted := append([]float64(nil), band...)
			sort.Float64s(sorted)

			k := int(quantile * float64(len(sorted)))
			if k < 1 {
				k = 1
			}
			valley := mean(sorted[:k])
			peak := mean(sorted[len(sorted)-k:])
			contrast[b] = math.Log(peak+1e-10) - math.Log(valley+1e-10)
		}
		out[i] = contrast
	}
	return out
}

// BandEnergyRatio returns the fraction of total spectral energy between
// fLow and fHigh Hz across the whole signal
func BandEnergyRatio(mag [][]float64, cfg STFTConfig, sampleRate int, fLow, fHigh float64) float64 {
	freqs := BinFrequencies(cfg, sampleRate)
	var band, total float64
	for _, frame := range mag {
		for j, m := range frame {
			e := m * m
			total += e
			if freqs[j] >= fLow && freqs[j] <= fHigh {
				band += e
			}
		}
	}
	if total == 0 {
		return 0
	}
	return band / total
}

// Autocorrelation computes the normalised autocorrelation of x up to maxLag.
// out[0] is always 1 for non-silent input.
func Autocorrelation(x []float64, maxLag int) []float64 {
	if maxLag > len(x) {
		maxLag = len(x)
	}
	out := make([]float64, maxLag)
	var energy float64
	for _, v := range x {
		energy += v * v
	}
	if energy == 0 {
		return out
	}
	for lag := 0; lag < maxLag; lag++ {
		var sum float64
		for i := 0; i+lag < len(x); i++ {
			sum += x[i] * x[i+lag]
		}
		out[lag] = sum / energy
	}
	return out
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Sum(x) / float64(len(x))
}
