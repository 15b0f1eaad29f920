package fingerprint

import (
	"math"
	"math/bits"

	"github.com/shlokdhakrey/avsync/pkg/models"
)

// Comparison tunables.
const (
	// MatchBitThreshold is the Hamming distance below which an aligned code
	// pair counts as a match.
	MatchBitThreshold = 10

	// DefaultMinConfidence filters offset candidates with too few matches.
	DefaultMinConfidence = 0.3

	// StructuralStdDevMs flags structural differences when per-segment
	// delays spread wider than this.
	StructuralStdDevMs = 100.0
)

// Distance returns the Hamming distance between two codes (0..32).
func Distance(a, b uint32) int {
	return bits.OnesCount32(a ^ b)
}

// OffsetMatch is one candidate alignment between two fingerprints.
// DelayMs follows the engine-wide sign convention: positive means the target
// lags the reference.
type OffsetMatch struct {
	OffsetChunks int
	DelayMs      float64
	Confidence   float64 // matched pairs / compared pairs
}

// compareAt aligns ref[i] with tgt[i+offset] and counts matching pairs.
func compareAt(ref, tgt []uint32, offset int) (matched, compared int) {
	for i := range ref {
		j := i + offset
		if j < 0 || j >= len(tgt) {
			continue
		}
		compared++
		if Distance(ref[i], tgt[j]) < MatchBitThreshold {
			matched++
		}
	}
	return matched, compared
}

// BestOffset searches chunk offsets in [-maxOffsetChunks, +maxOffsetChunks]
// and returns the highest-confidence alignment at or above minConfidence.
// The boolean is false when no candidate clears the threshold.
func BestOffset(ref, tgt *Fingerprint, maxOffsetChunks int, minConfidence float64) (OffsetMatch, bool) {
	if ref == nil || tgt == nil || len(ref.Codes) == 0 || len(tgt.Codes) == 0 {
		return OffsetMatch{}, false
	}
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	if maxOffsetChunks < 0 {
		maxOffsetChunks = 0
	}

	best := OffsetMatch{Confidence: -1}
	for offset := -maxOffsetChunks; offset <= maxOffsetChunks; offset++ {
		matched, compared := compareAt(ref.Codes, tgt.Codes, offset)
		if compared == 0 {
			continue
		}
		conf := float64(matched) / float64(compared)
		// Ties resolve toward the smaller absolute offset.
		if conf > best.Confidence ||
			(conf == best.Confidence && abs(offset) < abs(best.OffsetChunks)) {
			best = OffsetMatch{
				OffsetChunks: offset,
				DelayMs:      float64(offset) * ChunkDurationMs,
				Confidence:   conf,
			}
		}
	}
	if best.Confidence < minConfidence {
		return OffsetMatch{}, false
	}
	return best, true
}

// Similarity measures how much two fingerprints look like the same source:
// 1 - (mean Hamming distance / 32) over the overlap at zero offset. It is a
// same-source signal, not an alignment estimate.
func Similarity(ref, tgt *Fingerprint) float64 {
	if ref == nil || tgt == nil {
		return 0
	}
	n := len(ref.Codes)
	if len(tgt.Codes) < n {
		n = len(tgt.Codes)
	}
	if n == 0 {
		return 0
	}
	var totalDist int
	for i := 0; i < n; i++ {
		totalDist += Distance(ref.Codes[i], tgt.Codes[i])
	}
	meanDist := float64(totalDist) / float64(n)
	return models.Clamp01(1.0 - meanDist/float64(CodeBits))
}

// SegmentAnalysis summarizes per-window alignment spread.
type SegmentAnalysis struct {
	DelayStdDevMs float64
	Structural    bool
}

// AnalyzeSegments computes the delay spread across windowed fingerprint
// segments and flags structural differences when it exceeds the threshold.
func AnalyzeSegments(segments []models.SegmentResult) SegmentAnalysis {
	if len(segments) < 2 {
		return SegmentAnalysis{}
	}
	var sum float64
	for _, s := range segments {
		sum += s.DelayMs
	}
	mean := sum / float64(len(segments))
	var varSum float64
	for _, s := range segments {
		d := s.DelayMs - mean
		varSum += d * d
	}
	stdDev := math.Sqrt(varSum / float64(len(segments)))
	return SegmentAnalysis{
		DelayStdDevMs: stdDev,
		Structural:    stdDev > StructuralStdDevMs,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
