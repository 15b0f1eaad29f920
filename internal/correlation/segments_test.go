package correlation

import (
	"math"
	"testing"

	"github.com/shlokdhakrey/avsync/pkg/models"
)

func makeSegments(delays []float64, stepMs float64) []models.SegmentResult {
	segments := make([]models.SegmentResult, len(delays))
	for i, d := range delays {
		segments[i] = models.SegmentResult{
			StartMs:    float64(i) * stepMs,
			EndMs:      float64(i)*stepMs + stepMs,
			DelayMs:    d,
			Confidence: 0.8,
			Source:     models.SourceCrossCorrelation,
		}
	}
	return segments
}

func TestFitDriftLinear(t *testing.T) {
	// Delay grows 5ms per second of playback over 20 windows.
	delays := make([]float64, 20)
	for i := range delays {
		delays[i] = 5.0 * (float64(i) * 3.0) // 3s step
	}
	segments := makeSegments(delays, 3000)

	slope, r2, ok := fitDrift(segments)
	if !ok {
		t.Fatalf("Expected drift to be detected, slope=%f r2=%f", slope, r2)
	}
	if math.Abs(slope-5.0) > 0.01 {
		t.Errorf("Expected slope 5.0 ms/s, got %f", slope)
	}
	if r2 < 0.99 {
		t.Errorf("Expected near-perfect fit, got r2=%f", r2)
	}
}

func TestFitDriftConstantDelay(t *testing.T) {
	segments := makeSegments([]float64{200, 200, 200, 200, 200}, 3000)
	if _, _, ok := fitDrift(segments); ok {
		t.Error("Constant delay must not register as drift")
	}
}

func TestFitDriftNoisyFlat(t *testing.T) {
	// Small jitter around a constant delay: slope below threshold.
	segments := makeSegments([]float64{100, 102, 99, 101, 100, 98, 101}, 3000)
	if slope, _, ok := fitDrift(segments); ok {
		t.Errorf("Jitter must not register as drift, got slope %f", slope)
	}
}

func TestFitDriftTooFewSegments(t *testing.T) {
	segments := makeSegments([]float64{0, 100}, 3000)
	if _, _, ok := fitDrift(segments); ok {
		t.Error("Two segments cannot establish drift")
	}
}

func TestDetectCutsPositiveJump(t *testing.T) {
	segments := makeSegments([]float64{20, 20, 650, 650}, 3000)

	diffs := detectCuts(segments)
	if len(diffs) != 1 {
		t.Fatalf("Expected 1 structural difference, got %d", len(diffs))
	}
	d := diffs[0]
	if d.Type != models.DiffCut {
		t.Errorf("Positive jump should map to a cut, got %s", d.Type)
	}
	if math.Abs(d.DurationMs-630) > 1e-9 {
		t.Errorf("Expected 630ms duration, got %f", d.DurationMs)
	}
	if d.RefStartMs != 6000 {
		t.Errorf("Expected cut at segment boundary 6000ms, got %f", d.RefStartMs)
	}
}

func TestDetectCutsNegativeJump(t *testing.T) {
	segments := makeSegments([]float64{100, 100, -550}, 3000)

	diffs := detectCuts(segments)
	if len(diffs) != 1 {
		t.Fatalf("Expected 1 structural difference, got %d", len(diffs))
	}
	if diffs[0].Type != models.DiffInsertion {
		t.Errorf("Negative jump should map to an insertion, got %s", diffs[0].Type)
	}
	if math.Abs(diffs[0].DurationMs-650) > 1e-9 {
		t.Errorf("Expected 650ms duration, got %f", diffs[0].DurationMs)
	}
}

func TestDetectCutsSmallJumpsIgnored(t *testing.T) {
	segments := makeSegments([]float64{0, 200, 400, 300}, 3000)
	if diffs := detectCuts(segments); len(diffs) != 0 {
		t.Errorf("Jumps below the threshold must not be flagged, got %d", len(diffs))
	}
}
