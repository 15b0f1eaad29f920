package fingerprint

import (
	"errors"
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// Tunables. The chunk geometry is fixed by convention: 4096-sample chunks at
// 11025 Hz give one 32-bit code per ~371.5 ms of audio.
const (
	SampleRate = 11025
	ChunkSize  = 4096

	// CodeBits is the width of one feature code.
	CodeBits = 32
)

// ChunkDurationMs is the audio time covered by a single code.
const ChunkDurationMs = float64(ChunkSize) / float64(SampleRate) * 1000.0

// Fingerprint is an ordered sequence of 32-bit feature codes for one file or
// sub-window. Immutable once generated.
type Fingerprint struct {
	Codes      []uint32
	SampleRate int
	Duration   float64 // seconds of audio covered
}

// ChunkCount returns the number of codes.
func (fp *Fingerprint) ChunkCount() int { return len(fp.Codes) }

// Generate computes one code per full chunk of samples. Each chunk is
// Hamming-windowed, transformed with a real FFT, and its magnitude spectrum
// is folded into CodeBits equal bands; bit b is set when band b holds more
// energy than the chunk's mean band energy. The scheme is deterministic for
// identical input and tolerant of level differences between encodes.
func Generate(samples []float64, sampleRate int) (*Fingerprint, error) {
	if sampleRate <= 0 {
		return nil, errors.New("fingerprint: invalid sample rate")
	}
	chunks := len(samples) / ChunkSize
	fp := &Fingerprint{
		Codes:      make([]uint32, 0, chunks),
		SampleRate: sampleRate,
		Duration:   float64(len(samples)) / float64(sampleRate),
	}
	if chunks == 0 {
		return fp, nil
	}

	window := hammingWindow(ChunkSize)
	frame := make([]float64, ChunkSize)
	for c := 0; c < chunks; c++ {
		base := c * ChunkSize
		for i := 0; i < ChunkSize; i++ {
			frame[i] = samples[base+i] * window[i]
		}
		spectrum := fft.FFTReal(frame)
		fp.Codes = append(fp.Codes, encodeChunk(spectrum))
	}
	return fp, nil
}

// encodeChunk reduces a complex spectrum to a 32-bit band-energy code.
func encodeChunk(spectrum []complex128) uint32 {
	half := len(spectrum) / 2
	if half < CodeBits {
		return 0
	}
	// Skip bin 0 (DC) so a constant offset never flips band energies.
	binsPerBand := (half - 1) / CodeBits

	var bands [CodeBits]float64
	var total float64
	for b := 0; b < CodeBits; b++ {
		start := 1 + b*binsPerBand
		end := start + binsPerBand
		var energy float64
		for i := start; i < end; i++ {
			re := real(spectrum[i])
			im := imag(spectrum[i])
			energy += re*re + im*im
		}
		bands[b] = energy
		total += energy
	}
	mean := total / CodeBits

	var code uint32
	for b := 0; b < CodeBits; b++ {
		if bands[b] > mean {
			code |= 1 << uint(b)
		}
	}
	return code
}

func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
