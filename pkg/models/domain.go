package models

import "math"

// DetectionSource identifies which detector produced a segment estimate.
type DetectionSource string

const (
	SourceCrossCorrelation DetectionSource = "cross_correlation"
	SourcePeakMatch        DetectionSource = "peak_match"
	SourceFingerprint      DetectionSource = "fingerprint"
)

// SyncStatus classifies the overall relationship between target and reference.
type SyncStatus string

const (
	StatusInSync     SyncStatus = "in_sync"
	StatusOffset     SyncStatus = "offset"
	StatusDrift      SyncStatus = "drift"
	StatusCuts       SyncStatus = "cuts"
	StatusUnsyncable SyncStatus = "unsyncable"
)

// CorrectionType is the kind of correction recommended for the target track.
type CorrectionType string

const (
	CorrectionDelay         CorrectionType = "delay"
	CorrectionStretch       CorrectionType = "stretch"
	CorrectionSegmentRepair CorrectionType = "segment_repair"
	CorrectionNone          CorrectionType = "none"
	CorrectionManual        CorrectionType = "manual"
)

// AnchorKind categorizes an anchor event extracted from a waveform.
type AnchorKind string

const (
	AnchorPeak       AnchorKind = "peak"
	AnchorSilence    AnchorKind = "silence"
	AnchorTransition AnchorKind = "transition"
	AnchorTransient  AnchorKind = "transient"
)

// AnchorPoint is a transient/amplitude event used for offset matching.
// Anchors are produced once by the detector and never mutated.
type AnchorPoint struct {
	TimeMs     float64    `json:"time_ms"`
	Kind       AnchorKind `json:"kind"`
	Amplitude  float64    `json:"amplitude"`  // 0..1
	Confidence float64    `json:"confidence"` // 0..1
	DurationMs float64    `json:"duration_ms,omitempty"`
	Label      string     `json:"label,omitempty"`
}

// SegmentResult is one windowed offset estimate on the reference timeline.
// DelayMs is signed: positive means the target lags the reference.
type SegmentResult struct {
	StartMs    float64         `json:"start_ms"`
	EndMs      float64         `json:"end_ms"`
	DelayMs    float64         `json:"delay_ms"`
	Confidence float64         `json:"confidence"` // 0..1
	Source     DetectionSource `json:"source"`
}

// StructuralDiffType distinguishes content removed from, added to, or swapped
// in one track relative to the other.
type StructuralDiffType string

const (
	DiffCut         StructuralDiffType = "cut"
	DiffInsertion   StructuralDiffType = "insertion"
	DiffReplacement StructuralDiffType = "replacement"
)

// StructuralDifference marks a discontinuous offset jump between the tracks.
type StructuralDifference struct {
	Type          StructuralDiffType `json:"type"`
	RefStartMs    float64            `json:"ref_start_ms"`
	RefEndMs      float64            `json:"ref_end_ms"`
	TargetStartMs float64            `json:"target_start_ms"`
	TargetEndMs   float64            `json:"target_end_ms"`
	DurationMs    float64            `json:"duration_ms"`
}

// SyncEventType tags entries of the chronological event log.
type SyncEventType string

const (
	EventAnchorMatch SyncEventType = "anchor_match"
	EventCut         SyncEventType = "cut"
	EventInsertion   SyncEventType = "insertion"
	EventDriftChange SyncEventType = "drift_change"
)

// SyncEvent is one entry in the chronological analysis event log.
type SyncEvent struct {
	TimeMs      float64       `json:"time_ms"`
	Type        SyncEventType `json:"type"`
	DelayMs     float64       `json:"delay_ms"`
	Description string        `json:"description,omitempty"`
}

// SegmentCorrection is a per-segment delay fix for segment_repair corrections.
// DelayMs is the adjustment to apply to the target inside [StartMs, EndMs].
type SegmentCorrection struct {
	StartMs float64 `json:"start_ms"`
	EndMs   float64 `json:"end_ms"`
	DelayMs float64 `json:"delay_ms"`
}

// CorrectionRecommendation is the engine's actionable output. DelayMs and the
// per-segment corrections are expressed as the adjustment to apply to the
// target, i.e. the inverse of the detected delay. A recommendation with
// IsSafe=false requires human review and must never be auto-applied.
type CorrectionRecommendation struct {
	Type        CorrectionType      `json:"type"`
	DelayMs     float64             `json:"delay_ms,omitempty"`
	TempoFactor float64             `json:"tempo_factor,omitempty"`
	Segments    []SegmentCorrection `json:"segments,omitempty"`
	IsSafe      bool                `json:"is_safe"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// SyncAnalysisResult is the terminal output of one analysis call. It is built
// once and never mutated afterwards, so it is safe to share read-only.
type SyncAnalysisResult struct {
	Status             SyncStatus               `json:"status"`
	GlobalDelayMs      float64                  `json:"global_delay_ms"` // rounded consensus value
	Confidence         float64                  `json:"confidence"`      // 0..1
	SameSource         bool                     `json:"same_source"`
	Similarity         float64                  `json:"similarity"` // 0..1
	HasDrift           bool                     `json:"has_drift"`
	DriftRate          float64                  `json:"drift_rate"` // ms per second of playback
	HasStructuralDiffs bool                     `json:"has_structural_diffs"`
	StructuralDiffs    []StructuralDifference   `json:"structural_diffs,omitempty"`
	Segments           []SegmentResult          `json:"segments,omitempty"`
	Events             []SyncEvent              `json:"events,omitempty"`
	Recommendation     CorrectionRecommendation `json:"recommendation"`
}

// QuickCheckResult is the output of the correlation-only fast path.
type QuickCheckResult struct {
	InSync                bool    `json:"in_sync"`
	OffsetMs              float64 `json:"offset_ms"`
	Confidence            float64 `json:"confidence"`
	NeedsDetailedAnalysis bool    `json:"needs_detailed_analysis"`
}

// Clamp01 bounds a confidence-like value to [0, 1]. NaN clamps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
