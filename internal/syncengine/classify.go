package syncengine

import (
	"fmt"
	"math"
	"sort"

	"github.com/shlokdhakrey/avsync/internal/anchors"
	"github.com/shlokdhakrey/avsync/internal/correlation"
	"github.com/shlokdhakrey/avsync/pkg/models"
)

// Classification and safety thresholds.
const (
	unsyncableConfidence = 0.3
	inSyncThresholdMs    = 30.0

	// sameSourceSimilarity is the fingerprint similarity above which the two
	// tracks are considered encodes of the same source.
	sameSourceSimilarity = 0.6

	// repairSegmentConfidence filters which pooled segments become
	// per-segment corrections.
	repairSegmentConfidence = 0.5

	// Safety bounds for automatic application.
	safeDelayConfidence = 0.7
	safeDelayMagnitude  = 5000.0
	safeTempoDeviation  = 0.02

	// pooledJumpMinSegments gates the pooled-segment jump rule.
	pooledJumpMinSegments = 3
)

// reconcile joins the detector outputs into the final immutable result.
func (e *Engine) reconcile(corr *correlation.Result, peaks *anchors.MatchResult, fp *fingerprintOutcome) *models.SyncAnalysisResult {
	pooled := poolSegments(corr, peaks, fp)
	dec := decideDelay(corr, peaks, fp, pooled, e.opts.MinSegmentConfidence)

	// Zero methods succeeded: unsyncable with a diagnostic, never an error.
	noMethods := corr == nil && (peaks == nil || peaks.MatchCount == 0 && peaks.Confidence == 0) && fp == nil
	confidence := dec.confidence
	if noMethods {
		confidence = 0
	}

	diffs := e.collectStructural(corr, fp, pooled)
	hasDrift := corr != nil && corr.HasDrift
	var driftRate float64
	if hasDrift {
		driftRate = corr.DriftRate
	}

	status := classifyStatus(confidence, len(diffs) > 0, hasDrift, dec.delayMs)

	var similarity float64
	var sameSource bool
	if fp != nil {
		similarity = fp.similarity
		sameSource = similarity >= sameSourceSimilarity
	} else {
		// Without fingerprints, a confident alignment is the best
		// same-source signal available.
		sameSource = confidence >= 0.5 && status != models.StatusUnsyncable
	}

	rec := buildRecommendation(status, dec.delayMs, confidence, driftRate, pooled, noMethods)

	e.log.Infof("analysis complete: status=%s delay=%.0fms confidence=%.2f tier=%s",
		status, dec.delayMs, confidence, dec.tier)

	return &models.SyncAnalysisResult{
		Status:             status,
		GlobalDelayMs:      math.Round(dec.delayMs),
		Confidence:         models.Clamp01(confidence),
		SameSource:         sameSource,
		Similarity:         models.Clamp01(similarity),
		HasDrift:           hasDrift,
		DriftRate:          driftRate,
		HasStructuralDiffs: len(diffs) > 0,
		StructuralDiffs:    diffs,
		Segments:           pooled,
		Events:             buildEvents(peaks, diffs, hasDrift, driftRate, pooled),
		Recommendation:     rec,
	}
}

// classifyStatus evaluates the status rules in their fixed priority order.
func classifyStatus(confidence float64, hasStructural, hasDrift bool, delayMs float64) models.SyncStatus {
	switch {
	case confidence < unsyncableConfidence:
		return models.StatusUnsyncable
	case hasStructural:
		return models.StatusCuts
	case hasDrift:
		return models.StatusDrift
	case math.Abs(delayMs) < inSyncThresholdMs:
		return models.StatusInSync
	default:
		return models.StatusOffset
	}
}

// collectStructural gathers structural evidence from all three sources:
// correlation cut candidates, the fingerprint spread flag, and large jumps
// in the pooled segment sequence.
func (e *Engine) collectStructural(corr *correlation.Result, fp *fingerprintOutcome, pooled []models.SegmentResult) []models.StructuralDifference {
	var diffs []models.StructuralDifference
	if corr != nil {
		diffs = append(diffs, corr.Cuts...)
	}

	// Pooled jump rule: with at least three pooled segments, a >=500 ms jump
	// between chronological neighbors is structural even when no single
	// detector flagged it.
	if len(pooled) >= pooledJumpMinSegments {
		for i := 1; i < len(pooled); i++ {
			jump := pooled[i].DelayMs - pooled[i-1].DelayMs
			if math.Abs(jump) < correlation.CutJumpMs {
				continue
			}
			boundary := pooled[i].StartMs
			if hasDiffNear(diffs, boundary) {
				continue
			}
			kind := models.DiffCut
			if jump < 0 {
				kind = models.DiffInsertion
			}
			diffs = append(diffs, models.StructuralDifference{
				Type:          kind,
				RefStartMs:    boundary,
				RefEndMs:      boundary + math.Abs(jump),
				TargetStartMs: boundary + pooled[i-1].DelayMs,
				TargetEndMs:   boundary + pooled[i-1].DelayMs + math.Abs(jump),
				DurationMs:    math.Abs(jump),
			})
		}
	}

	// The fingerprint spread flag marks the most deviant window as replaced
	// content when nothing sharper already covers it.
	if fp != nil && fp.structural {
		if seg, ok := mostDeviantSegment(fp.segments); ok && !hasDiffNear(diffs, seg.StartMs) {
			diffs = append(diffs, models.StructuralDifference{
				Type:          models.DiffReplacement,
				RefStartMs:    seg.StartMs,
				RefEndMs:      seg.EndMs,
				TargetStartMs: seg.StartMs + seg.DelayMs,
				TargetEndMs:   seg.EndMs + seg.DelayMs,
				DurationMs:    seg.EndMs - seg.StartMs,
			})
		}
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].RefStartMs < diffs[j].RefStartMs })
	return diffs
}

// hasDiffNear reports whether a structural difference already covers a
// boundary within a 2 s dedupe radius.
func hasDiffNear(diffs []models.StructuralDifference, boundaryMs float64) bool {
	const radiusMs = 2000.0
	for _, d := range diffs {
		if math.Abs(d.RefStartMs-boundaryMs) < radiusMs {
			return true
		}
	}
	return false
}

func mostDeviantSegment(segments []models.SegmentResult) (models.SegmentResult, bool) {
	if len(segments) == 0 {
		return models.SegmentResult{}, false
	}
	delays := make([]float64, len(segments))
	for i, s := range segments {
		delays[i] = s.DelayMs
	}
	sort.Float64s(delays)
	median := delays[len(delays)/2]

	best := segments[0]
	bestDev := -1.0
	for _, s := range segments {
		if dev := math.Abs(s.DelayMs - median); dev > bestDev {
			best = s
			bestDev = dev
		}
	}
	return best, true
}

// buildRecommendation derives the typed correction with safety gating.
// Every unsafe recommendation carries at least one warning saying why.
func buildRecommendation(status models.SyncStatus, delayMs, confidence, driftRate float64, pooled []models.SegmentResult, noMethods bool) models.CorrectionRecommendation {
	switch status {
	case models.StatusUnsyncable:
		warning := "Analysis confidence too low for automatic correction"
		if noMethods {
			warning = "No analysis method produced a usable signal"
		}
		return models.CorrectionRecommendation{
			Type:     models.CorrectionManual,
			IsSafe:   false,
			Warnings: []string{warning},
		}

	case models.StatusInSync:
		return models.CorrectionRecommendation{Type: models.CorrectionNone, IsSafe: true}

	case models.StatusCuts:
		var corrections []models.SegmentCorrection
		for _, s := range pooled {
			if s.Confidence > repairSegmentConfidence {
				corrections = append(corrections, models.SegmentCorrection{
					StartMs: s.StartMs,
					EndMs:   s.EndMs,
					DelayMs: -s.DelayMs,
				})
			}
		}
		rec := models.CorrectionRecommendation{
			Type:     models.CorrectionSegmentRepair,
			Segments: corrections,
			IsSafe:   false,
			Warnings: []string{"Structural differences detected; correction requires review"},
		}
		if len(corrections) == 0 {
			rec.Type = models.CorrectionManual
			rec.Warnings = append(rec.Warnings, "No high-confidence segments available for repair")
		}
		return rec

	case models.StatusDrift:
		tempo := 1.0 + driftRate/1000.0
		rec := models.CorrectionRecommendation{
			Type:        models.CorrectionStretch,
			TempoFactor: tempo,
			IsSafe:      math.Abs(tempo-1.0) < safeTempoDeviation,
		}
		if !rec.IsSafe {
			rec.Warnings = []string{fmt.Sprintf("Large tempo adjustment required (factor %.4f)", tempo)}
		}
		return rec

	default: // offset
		rec := models.CorrectionRecommendation{
			Type:    models.CorrectionDelay,
			DelayMs: -math.Round(delayMs),
			IsSafe:  confidence > safeDelayConfidence && math.Abs(delayMs) < safeDelayMagnitude,
		}
		if !rec.IsSafe {
			if confidence <= safeDelayConfidence {
				rec.Warnings = append(rec.Warnings, "Low confidence offset estimate")
			}
			if math.Abs(delayMs) >= safeDelayMagnitude {
				rec.Warnings = append(rec.Warnings, "Offset exceeds safe auto-correction range")
			}
		}
		return rec
	}
}

// buildEvents assembles the chronological event log: anchor match segments,
// structural boundaries, and drift onset.
func buildEvents(peaks *anchors.MatchResult, diffs []models.StructuralDifference, hasDrift bool, driftRate float64, pooled []models.SegmentResult) []models.SyncEvent {
	var events []models.SyncEvent

	if peaks != nil {
		for _, s := range peaks.Segments {
			events = append(events, models.SyncEvent{
				TimeMs:      s.StartMs,
				Type:        models.EventAnchorMatch,
				DelayMs:     s.DelayMs,
				Description: fmt.Sprintf("anchor alignment %.0f ms", s.DelayMs),
			})
		}
	}
	for _, d := range diffs {
		evType := models.EventCut
		if d.Type == models.DiffInsertion {
			evType = models.EventInsertion
		}
		events = append(events, models.SyncEvent{
			TimeMs:      d.RefStartMs,
			Type:        evType,
			DelayMs:     d.DurationMs,
			Description: fmt.Sprintf("%s of %.0f ms", d.Type, d.DurationMs),
		})
	}
	if hasDrift {
		start := 0.0
		if len(pooled) > 0 {
			start = pooled[0].StartMs
		}
		events = append(events, models.SyncEvent{
			TimeMs:      start,
			Type:        models.EventDriftChange,
			DelayMs:     driftRate,
			Description: fmt.Sprintf("drift of %.2f ms/s detected", driftRate),
		})
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].TimeMs < events[j].TimeMs })
	return events
}
