// Package correlation implements time-domain offset detection between two
// waveforms: a coarse-then-refined global search, a windowed segment pass,
// and drift/cut derivation from the per-window delay sequence.
package correlation

import (
	"math"
	"time"

	"github.com/shlokdhakrey/avsync/internal/audio"
	"github.com/shlokdhakrey/avsync/pkg/models"
)

// Options tunes the correlation search. Zero values take the defaults.
type Options struct {
	MaxOffset time.Duration // search range, default 30s
	Window    time.Duration // segment window, default 8s
	Step      time.Duration // segment stride, default 3s
}

func (o Options) withDefaults() Options {
	if o.MaxOffset <= 0 {
		o.MaxOffset = 30 * time.Second
	}
	if o.Window <= 0 {
		o.Window = 8 * time.Second
	}
	if o.Step <= 0 {
		o.Step = 3 * time.Second
	}
	return o
}

// Point is one sample of the offset-to-correlation curve, kept for
// diagnostics.
type Point struct {
	OffsetMs float64
	Value    float64
}

// Result is the full output of one correlation analysis.
type Result struct {
	DelayMs    float64
	Confidence float64
	Segments   []models.SegmentResult
	HasDrift   bool
	DriftRate  float64 // ms of delay change per second of playback
	DriftR2    float64
	HasCuts    bool
	Cuts       []models.StructuralDifference
	Curve      []Point
}

// refineRadius is the unit-resolution re-search span around the coarse best.
const refineRadius = 50

// minOverlapFraction of the shorter input that must overlap for an offset to
// be scored; extreme offsets with almost no shared audio are skipped.
const minOverlapFraction = 0.25

// Analyze computes the global delay between target and reference and the
// per-window segment sequence. Positive delay means the target lags the
// reference. Zero-length input yields a confidence-0 result, never an error.
func Analyze(ref, target *audio.Waveform, opts Options) *Result {
	opts = opts.withDefaults()
	if ref == nil || target == nil || ref.Len() == 0 || target.Len() == 0 {
		return &Result{}
	}

	rate := ref.SampleRate
	maxOffsetSamples := int(opts.MaxOffset.Seconds() * float64(rate))

	refNorm := normalize(ref.Samples)
	tgtNorm := normalize(target.Samples)

	global := bestOffset(refNorm, tgtNorm, rate, maxOffsetSamples, true)
	res := &Result{
		DelayMs:    float64(global.offset) / float64(rate) * 1000.0,
		Confidence: global.confidence,
		Curve:      global.curve,
	}

	res.Segments = analyzeSegments(refNorm, tgtNorm, rate, maxOffsetSamples, opts)

	if slope, r2, ok := fitDrift(res.Segments); ok {
		res.HasDrift = true
		res.DriftRate = slope
		res.DriftR2 = r2
	} else {
		res.DriftR2 = r2
	}

	res.Cuts = detectCuts(res.Segments)
	res.HasCuts = len(res.Cuts) > 0
	return res
}

type estimate struct {
	offset     int // samples; positive = target lags
	confidence float64
	curve      []Point
}

// bestOffset runs the coarse search over [-maxOffset, +maxOffset] at stride
// rate/100, refines at unit resolution around the winner, and scores the
// result with a distinctiveness-aware confidence.
func bestOffset(ref, tgt []float64, rate, maxOffset int, wantCurve bool) estimate {
	stride := rate / 100
	if stride < 1 {
		stride = 1
	}

	minLen := len(ref)
	if len(tgt) < minLen {
		minLen = len(tgt)
	}
	minOverlap := int(float64(minLen) * minOverlapFraction)
	if minOverlap < 1 {
		minOverlap = 1
	}

	var curve []Point
	bestCorr := math.Inf(-1)
	bestOff := 0
	for off := -maxOffset; off <= maxOffset; off += stride {
		corr, n := meanProduct(ref, tgt, off)
		if n < minOverlap {
			continue
		}
		if wantCurve {
			curve = append(curve, Point{
				OffsetMs: float64(off) / float64(rate) * 1000.0,
				Value:    corr,
			})
		}
		if corr > bestCorr {
			bestCorr = corr
			bestOff = off
		}
	}
	if math.IsInf(bestCorr, -1) {
		return estimate{curve: curve}
	}

	// Distinctiveness: compare the peak to the best correlation found well
	// away from it. A flat or symmetric curve scores low.
	secondCorr := math.Inf(-1)
	exclusion := 2 * stride
	for off := -maxOffset; off <= maxOffset; off += stride {
		if absInt(off-bestOff) <= exclusion {
			continue
		}
		corr, n := meanProduct(ref, tgt, off)
		if n < minOverlap {
			continue
		}
		if corr > secondCorr {
			secondCorr = corr
		}
	}

	// Refine at unit resolution.
	lo, hi := bestOff-refineRadius, bestOff+refineRadius
	if lo < -maxOffset {
		lo = -maxOffset
	}
	if hi > maxOffset {
		hi = maxOffset
	}
	for off := lo; off <= hi; off++ {
		corr, n := meanProduct(ref, tgt, off)
		if n < minOverlap {
			continue
		}
		if corr > bestCorr {
			bestCorr = corr
			bestOff = off
		}
	}

	return estimate{
		offset:     bestOff,
		confidence: peakConfidence(bestCorr, secondCorr),
		curve:      curve,
	}
}

// peakConfidence averages the peak correlation with the relative prominence
// of the peak over the runner-up.
func peakConfidence(peak, second float64) float64 {
	if peak <= 0 {
		return 0
	}
	distinct := 1.0
	if !math.IsInf(second, -1) {
		distinct = (peak - second) / peak
	}
	return models.Clamp01((models.Clamp01(peak) + models.Clamp01(distinct)) / 2.0)
}

// meanProduct computes the mean pairwise product of ref[i] and tgt[i+offset]
// over the overlapping region, returning the mean and the overlap size.
func meanProduct(ref, tgt []float64, offset int) (float64, int) {
	start := 0
	if offset < 0 {
		start = -offset
	}
	end := len(ref)
	if limit := len(tgt) - offset; limit < end {
		end = limit
	}
	if start >= end {
		return 0, 0
	}
	var sum float64
	for i := start; i < end; i++ {
		sum += ref[i] * tgt[i+offset]
	}
	n := end - start
	return sum / float64(n), n
}

// normalize returns a zero-mean, unit-variance copy. All-constant input
// (including digital silence) normalizes to zeros.
func normalize(samples []float64) []float64 {
	n := len(samples)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(n)
	var varSum float64
	for _, s := range samples {
		d := s - mean
		varSum += d * d
	}
	stdDev := math.Sqrt(varSum / float64(n))
	if stdDev == 0 {
		return out
	}
	for i, s := range samples {
		out[i] = (s - mean) / stdDev
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
