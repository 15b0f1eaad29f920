package correlation

import (
	"math"

	"github.com/shlokdhakrey/avsync/pkg/models"
)

// Drift is flagged when the per-segment regression is both well-fitted and
// steep enough to matter.
const (
	driftMinR2      = 0.7
	driftMinSlopeMs = 0.1 // ms of delay change per second
)

// CutJumpMs is the delay discontinuity between adjacent segments that marks
// a cut or insertion candidate.
const CutJumpMs = 500.0

// analyzeSegments slides a window across both timelines at the same absolute
// sample positions and runs the offset search per window. Per-window search
// range is capped at half the window so short frames are never compared at
// offsets larger than themselves.
func analyzeSegments(ref, tgt []float64, rate, maxOffset int, opts Options) []models.SegmentResult {
	winSamples := int(opts.Window.Seconds() * float64(rate))
	stepSamples := int(opts.Step.Seconds() * float64(rate))
	if winSamples < 1 || stepSamples < 1 {
		return nil
	}

	segMaxOffset := maxOffset
	if half := winSamples / 2; segMaxOffset > half {
		segMaxOffset = half
	}

	minLen := len(ref)
	if len(tgt) < minLen {
		minLen = len(tgt)
	}

	var segments []models.SegmentResult
	for start := 0; start+winSamples <= minLen; start += stepSamples {
		end := start + winSamples
		est := bestOffset(ref[start:end], tgt[start:end], rate, segMaxOffset, false)
		segments = append(segments, models.SegmentResult{
			StartMs:    float64(start) / float64(rate) * 1000.0,
			EndMs:      float64(end) / float64(rate) * 1000.0,
			DelayMs:    float64(est.offset) / float64(rate) * 1000.0,
			Confidence: est.confidence,
			Source:     models.SourceCrossCorrelation,
		})
	}
	return segments
}

// fitDrift runs a least-squares regression of segment delay (ms) against
// segment start time (s). ok is true when the fit clears both the R² and
// slope thresholds.
func fitDrift(segments []models.SegmentResult) (slope, r2 float64, ok bool) {
	if len(segments) < 3 {
		return 0, 0, false
	}

	n := float64(len(segments))
	var sumX, sumY, sumXY, sumXX float64
	for _, s := range segments {
		x := s.StartMs / 1000.0
		y := s.DelayMs
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for _, s := range segments {
		x := s.StartMs / 1000.0
		pred := slope*x + intercept
		ssRes += (s.DelayMs - pred) * (s.DelayMs - pred)
		ssTot += (s.DelayMs - meanY) * (s.DelayMs - meanY)
	}
	if ssTot == 0 {
		return slope, 0, false
	}
	r2 = 1.0 - ssRes/ssTot

	ok = r2 > driftMinR2 && math.Abs(slope) > driftMinSlopeMs
	return slope, r2, ok
}

// detectCuts scans consecutive segments for delay jumps beyond CutJumpMs.
// A positive jump marks content cut from the target, a negative jump marks
// an insertion.
func detectCuts(segments []models.SegmentResult) []models.StructuralDifference {
	var diffs []models.StructuralDifference
	for i := 1; i < len(segments); i++ {
		jump := segments[i].DelayMs - segments[i-1].DelayMs
		if math.Abs(jump) <= CutJumpMs {
			continue
		}
		diffs = append(diffs, jumpToDifference(segments[i-1], segments[i], jump))
	}
	return diffs
}

// jumpToDifference maps a delay discontinuity at a segment boundary onto
// reference/target time ranges.
func jumpToDifference(prev, next models.SegmentResult, jump float64) models.StructuralDifference {
	boundary := next.StartMs
	targetBoundary := boundary + prev.DelayMs
	if jump > 0 {
		return models.StructuralDifference{
			Type:          models.DiffCut,
			RefStartMs:    boundary,
			RefEndMs:      boundary + jump,
			TargetStartMs: targetBoundary,
			TargetEndMs:   targetBoundary,
			DurationMs:    jump,
		}
	}
	return models.StructuralDifference{
		Type:          models.DiffInsertion,
		RefStartMs:    boundary,
		RefEndMs:      boundary,
		TargetStartMs: targetBoundary,
		TargetEndMs:   targetBoundary - jump,
		DurationMs:    -jump,
	}
}
