package audio

import (
	"math"
	"time"
)

// Waveform holds mono, normalized PCM samples together with the summary
// statistics the detectors need. A Waveform is immutable once built: it is
// owned by the analysis call that requested it and discarded afterwards.
type Waveform struct {
	Samples    []float64 // normalized to [-1, 1]
	SampleRate int
	peak       float64
	rms        float64
}

// NewWaveform wraps samples at the given rate and precomputes peak and RMS.
func NewWaveform(samples []float64, sampleRate int) *Waveform {
	w := &Waveform{Samples: samples, SampleRate: sampleRate}
	var sumSq float64
	for _, s := range samples {
		a := math.Abs(s)
		if a > w.peak {
			w.peak = a
		}
		sumSq += s * s
	}
	if len(samples) > 0 {
		w.rms = math.Sqrt(sumSq / float64(len(samples)))
	}
	return w
}

// Len returns the number of samples.
func (w *Waveform) Len() int { return len(w.Samples) }

// Duration returns the waveform length in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// DurationMs returns the waveform length in milliseconds.
func (w *Waveform) DurationMs() float64 { return w.Duration() * 1000.0 }

// Peak returns the maximum absolute sample amplitude.
func (w *Waveform) Peak() float64 { return w.peak }

// RMS returns the root-mean-square amplitude.
func (w *Waveform) RMS() float64 { return w.rms }

// Slice returns a view of the waveform between two sample indices. The
// returned waveform shares the underlying sample storage; callers must not
// mutate it (waveforms are treated as immutable throughout).
func (w *Waveform) Slice(start, end int) *Waveform {
	if start < 0 {
		start = 0
	}
	if end > len(w.Samples) {
		end = len(w.Samples)
	}
	if start >= end {
		return NewWaveform(nil, w.SampleRate)
	}
	return NewWaveform(w.Samples[start:end], w.SampleRate)
}

// SampleIndex converts a time offset to a sample index, clamped to bounds.
func (w *Waveform) SampleIndex(at time.Duration) int {
	idx := int(at.Seconds() * float64(w.SampleRate))
	if idx < 0 {
		idx = 0
	}
	if idx > len(w.Samples) {
		idx = len(w.Samples)
	}
	return idx
}
