package avsync

import "time"

// AnalysisRecord is one audited analysis run: the summary columns plus the
// full result serialized as JSON.
type AnalysisRecord struct {
	ID             string    // UUID assigned at save time
	ReferencePath  string    // reference media path as given
	TargetPath     string    // target media path as given
	Status         string    // sync status verdict
	GlobalDelayMs  float64   // consensus delay of target vs reference
	Confidence     float64   // overall confidence (0-1)
	CorrectionType string    // recommended correction type
	IsSafe         bool      // automatic application safe
	Warnings       []string  // recommendation warnings
	ResultJSON     string    // full SyncAnalysisResult as JSON
	CreatedAt      time.Time // when the analysis completed
}
