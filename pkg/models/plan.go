package models

// OperationType enumerates abstract correction operations.
type OperationType string

const (
	OpDelayInsert  OperationType = "delay_insert"
	OpTempoRescale OperationType = "tempo_rescale"
	OpTrim         OperationType = "trim"
	OpPad          OperationType = "pad"
	OpReject       OperationType = "reject"
)

// Operation is one step of a correction plan. Fields are populated per type:
// delay_insert and pad carry DelayMs, tempo_rescale carries Factor, trim
// carries a time range.
type Operation struct {
	Type    OperationType `json:"type"`
	DelayMs float64       `json:"delay_ms,omitempty"`
	Factor  float64       `json:"factor,omitempty"`
	StartMs float64       `json:"start_ms,omitempty"`
	EndMs   float64       `json:"end_ms,omitempty"`
	Note    string        `json:"note,omitempty"`
}

// Checkpoint is a post-correction verification point: the muxer should
// re-measure the offset at TimeMs and expect it within the tolerance.
type Checkpoint struct {
	TimeMs           float64 `json:"time_ms"`
	ExpectedOffsetMs float64 `json:"expected_offset_ms"`
	ToleranceMs      float64 `json:"tolerance_ms"`
}

// CorrectionPlan is the ordered operation list plus verification points.
type CorrectionPlan struct {
	Operations     []Operation  `json:"operations"`
	Checkpoints    []Checkpoint `json:"checkpoints,omitempty"`
	RequiresReview bool         `json:"requires_review"`
}
