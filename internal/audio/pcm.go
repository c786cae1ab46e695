// Package audio provides signal primitives over decoded PCM: decode to the
// fixed analysis sample rate, STFT, and frame-level spectral features. All
// functions are pure and deterministic; higher layers treat this package as a
// math library.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// SampleRate is the fixed analysis sample rate in Hz
const SampleRate = 22050

var (
	ErrDecodeFailed   = errors.New("audio decode failed")
	ErrEmptyAudio     = errors.New("audio buffer is empty")
	ErrResampleFailed = errors.New("audio resample failed")
)

// Additional samples go-mp3 produces compared to a gapless decoder.
const mp3DecoderDelay = 924

// Default encoder delay when the LAME header is absent or unreadable.
const defaultEncoderDelay = 576

// LoadMono decodes an audio file to mono float64 PCM at SampleRate.
// MP3 files decode natively; anything else goes through ffmpeg.
func LoadMono(ctx context.Context, path string) ([]float64, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var samples []float64
	var rate int
	var err error

	if ext == ".mp3" {
		samples, rate, err = loadMP3Mono(path)
	} else {
		samples, rate, err = loadFFmpegMono(ctx, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}

	if rate != SampleRate {
		samples, err = resample(samples, rate, SampleRate)
		if err != nil {
			return nil, err
		}
	}
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}

	return samples, nil
}

// loadMP3Mono decodes an MP3 file to mono float64 at its native rate,
// skipping the encoder+decoder delay so beat timestamps line up with
// what a gapless player renders.
func loadMP3Mono(path string) ([]float64, int, error) {
	totalDelay := readLAMEEncoderDelay(path) + mp3DecoderDelay

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, err
	}

	rate := decoder.SampleRate()

	// go-mp3 outputs 16-bit signed stereo, 4 bytes per sample pair
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, err
	}

	pairs := len(pcm) / 4
	samples := make([]float64, pairs)
	for i := 0; i < pairs; i++ {
		offset := i * 4
		left := int16(binary.LittleEndian.Uint16(pcm[offset:]))
		right := int16(binary.LittleEndian.Uint16(pcm[offset+2:]))
		samples[i] = (float64(left) + float64(right)) / 2.0 / 32768.0
	}

	if len(samples) > totalDelay {
		samples = samples[totalDelay:]
	}

	return samples, rate, nil
}

// readLAMEEncoderDelay reads the encoder delay from a LAME/Xing header.
// The delay sits in the upper 12 bits of a 24-bit field at offset 21
// from the "LAME" marker.
func readLAMEEncoderDelay(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return defaultEncoderDelay
	}
	defer f.Close()

	buf := make([]byte, 4096)
	n, err := f.Read(buf)
	if err != nil || n < 200 {
		return defaultEncoderDelay
	}
	buf = buf[:n]

	lameIdx := bytes.Index(buf, []byte("LAME"))
	if lameIdx == -1 {
		return defaultEncoderDelay
	}

	delayOffset := lameIdx + 21
	if delayOffset+3 > len(buf) {
		return defaultEncoderDelay
	}

	b := buf[delayOffset : delayOffset+3]
	delay := (int(b[0]) << 4) | (int(b[1]) >> 4)

	if delay < 0 || delay > 4096 {
		return defaultEncoderDelay
	}

	return delay
}

// loadFFmpegMono decodes any container ffmpeg understands to s16le mono PCM
// at the analysis rate.
func loadFFmpegMono(ctx context.Context, path string) ([]float64, int, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-v", "quiet",
		"pipe:1",
	)

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, 0, fmt.Errorf("ffmpeg decode: %w", err)
	}

	raw := out.Bytes()
	n := len(raw) / 2
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768.0
	}

	return samples, SampleRate, nil
}

// resample converts samples from one rate to another by linear interpolation.
func resample(samples []float64, from, to int) ([]float64, error) {
	if from <= 0 || to <= 0 {
		return nil, ErrResampleFailed
	}
	if from == to {
		return samples, nil
	}

	ratio := float64(from) / float64(to)
	outLen := int(float64(len(samples)) / ratio)
	if outLen == 0 {
		return nil, ErrResampleFailed
	}

	out := make([]float64, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx+1 >= len(samples) {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}

	return out, nil
}
