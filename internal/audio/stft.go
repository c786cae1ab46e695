package audio

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Default analysis frame parameters
const (
	DefaultFFTSize = 2048
	DefaultHopSize = 512
)

// STFTConfig describes parameters for STFT computation
type STFTConfig struct {
	FFTSize    int // FFT window size
	HopSize    int // Hop between frames
	WindowSize int // Analysis window size (usually same as FFTSize)
}

// DefaultSTFTConfig returns the frame parameters used by all extractors
func DefaultSTFTConfig() STFTConfig {
	return STFTConfig{FFTSize: DefaultFFTSize, HopSize: DefaultHopSize, WindowSize: DefaultFFTSize}
}

// STFT computes the short-time Fourier transform magnitude spectrum.
// Returns [frames][bins] where bins = FFTSize/2 + 1.
func STFT(samples []float64, cfg STFTConfig) [][]float64 {
	window := hannWindow(cfg.WindowSize)
	fft := fourier.NewFFT(cfg.FFTSize)

	numFrames := (len(samples) - cfg.WindowSize) / cfg.HopSize
	if numFrames <= 0 {
		return nil
	}

	numBins := cfg.FFTSize/2 + 1

	result := make([][]float64, numFrames)
	frame := make([]float64, cfg.FFTSize)

	for i := 0; i < numFrames; i++ {
		start := i * cfg.HopSize

		for j := range frame {
			frame[j] = 0
		}
		for j := 0; j < cfg.WindowSize && start+j < len(samples); j++ {
			frame[j] = samples[start+j] * window[j]
		}

		coeffs := fft.Coefficients(nil, frame)

		// One-sided spectrum normalisation: 2/N except DC and Nyquist
		scale := 2.0 / float64(cfg.FFTSize)
		result[i] = make([]float64, numBins)
		for j := 0; j < numBins; j++ {
			re := real(coeffs[j])
			im := imag(coeffs[j])
			s := scale
			if j == 0 || j == numBins-1 {
				s = 1.0 / float64(cfg.FFTSize)
			}
			result[i][j] = math.Sqrt(re*re+im*im) * s
		}
	}

	return result
}

// BinFrequencies returns the centre frequency in Hz of each STFT bin
func BinFrequencies(cfg STFTConfig, sampleRate int) []float64 {
	numBins := cfg.FFTSize/2 + 1
	freqs := make([]float64, numBins)
	for i := range freqs {
		freqs[i] = float64(i) * float64(sampleRate) / float64(cfg.FFTSize)
	}
	return freqs
}

// FrameTime returns the time in seconds of frame index i
func FrameTime(i int, cfg STFTConfig, sampleRate int) float64 {
	return float64(i*cfg.HopSize) / float64(sampleRate)
}

// hannWindow generates a Hann window of given size
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}
