package syncengine

import (
	"math"
	"testing"

	"github.com/shlokdhakrey/avsync/internal/anchors"
	"github.com/shlokdhakrey/avsync/internal/correlation"
	"github.com/shlokdhakrey/avsync/internal/fingerprint"
	"github.com/shlokdhakrey/avsync/pkg/models"
)

func segmentsWithDelay(n int, delayMs, confidence float64) []models.SegmentResult {
	out := make([]models.SegmentResult, n)
	for i := range out {
		out[i] = models.SegmentResult{
			StartMs:    float64(i) * 3000,
			EndMs:      float64(i)*3000 + 8000,
			DelayMs:    delayMs,
			Confidence: confidence,
			Source:     models.SourceCrossCorrelation,
		}
	}
	return out
}

func TestDecideDelayTrustsStrongCorrelation(t *testing.T) {
	corr := &correlation.Result{DelayMs: 480, Confidence: 0.9}
	// Segment votes point elsewhere; a strong global estimate overrides them.
	pooled := segmentsWithDelay(10, -2000, 0.8)

	dec := decideDelay(corr, nil, nil, pooled, 0.3)
	if dec.tier != "global_correlation" {
		t.Fatalf("Expected global_correlation tier, got %s", dec.tier)
	}
	if dec.delayMs != 480 {
		t.Errorf("Expected delay 480, got %f", dec.delayMs)
	}
	if dec.confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %f", dec.confidence)
	}
}

func TestSegmentConsensusPrefersSmallerDelayOnTie(t *testing.T) {
	// Two equally supported clusters: +120ms and -3000ms. The ambiguity
	// must resolve toward the smaller absolute delay.
	pooled := append(segmentsWithDelay(10, 120, 0.8), segmentsWithDelay(10, -3000, 0.8)...)
	corr := &correlation.Result{DelayMs: -3000, Confidence: 0.4}

	dec := decideDelay(corr, nil, nil, pooled, 0.3)
	if dec.tier != "segment_consensus" {
		t.Fatalf("Expected segment_consensus tier, got %s", dec.tier)
	}
	if math.Abs(dec.delayMs-120) > 1 {
		t.Errorf("Expected tie to resolve to +120ms, got %f", dec.delayMs)
	}
}

func TestSegmentConsensusMirroredBinsDeterministic(t *testing.T) {
	// Mirrored +100ms and -100ms clusters with identical support tie on
	// absolute delay. The positive bin must win on every run, independent of
	// map iteration order.
	pooled := append(segmentsWithDelay(10, 100, 0.8), segmentsWithDelay(10, -100, 0.8)...)

	for i := 0; i < 25; i++ {
		dec, ok := segmentConsensus(pooled, 0.3)
		if !ok {
			t.Fatalf("Run %d: expected a consensus decision", i)
		}
		if math.Abs(dec.delayMs-100) > 1e-9 {
			t.Fatalf("Run %d: expected +100ms, got %f", i, dec.delayMs)
		}
	}
}

func TestSegmentConsensusFiltersLowConfidence(t *testing.T) {
	// The dominant cluster sits below the confidence filter and must not
	// contribute votes.
	pooled := append(segmentsWithDelay(20, 900, 0.1), segmentsWithDelay(6, 150, 0.9)...)

	dec := decideDelay(&correlation.Result{DelayMs: 150, Confidence: 0.4}, nil, nil, pooled, 0.3)
	if dec.tier != "segment_consensus" {
		t.Fatalf("Expected segment_consensus tier, got %s", dec.tier)
	}
	if math.Abs(dec.delayMs-150) > 1 {
		t.Errorf("Expected filtered consensus at 150ms, got %f", dec.delayMs)
	}
}

func TestSegmentConsensusMinSupportFallsBack(t *testing.T) {
	// Three agreeing segments are below the support floor of five.
	pooled := segmentsWithDelay(3, 200, 0.9)
	corr := &correlation.Result{DelayMs: 100, Confidence: 0.4}

	dec := decideDelay(corr, nil, nil, pooled, 0.3)
	if dec.tier != "weighted_average" {
		t.Fatalf("Expected fallback to weighted_average, got %s", dec.tier)
	}
	if dec.delayMs != 100 {
		t.Errorf("Expected correlation-only average of 100ms, got %f", dec.delayMs)
	}
}

func TestWeightedAverageDoublesCorrelation(t *testing.T) {
	corr := &correlation.Result{DelayMs: 100, Confidence: 0.6}
	peaks := &anchors.MatchResult{OffsetMs: 160, Confidence: 0.6, MatchCount: 4}

	dec := decideDelay(corr, peaks, nil, nil, 0.3)
	if dec.tier != "weighted_average" {
		t.Fatalf("Expected weighted_average tier, got %s", dec.tier)
	}
	// corr weight 1.2, peaks weight 0.6: (100*1.2 + 160*0.6) / 1.8 = 120.
	if math.Abs(dec.delayMs-120) > 1e-9 {
		t.Errorf("Expected 120ms, got %f", dec.delayMs)
	}
}

func TestWeightedAverageIncludesFingerprint(t *testing.T) {
	fp := &fingerprintOutcome{
		hasBest: true,
		best:    fingerprint.OffsetMatch{DelayMs: 300, Confidence: 0.5},
	}

	dec := decideDelay(nil, nil, fp, nil, 0.3)
	if dec.delayMs != 300 {
		t.Errorf("Expected fingerprint-only average of 300ms, got %f", dec.delayMs)
	}
	if dec.confidence != 0.5 {
		t.Errorf("Expected confidence 0.5, got %f", dec.confidence)
	}
}

func TestWeightedAverageNoSignals(t *testing.T) {
	dec := decideDelay(nil, nil, nil, nil, 0.3)
	if dec.delayMs != 0 || dec.confidence != 0 {
		t.Errorf("Expected zero decision, got delay=%f confidence=%f", dec.delayMs, dec.confidence)
	}
}
