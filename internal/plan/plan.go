// Package plan maps a correction recommendation onto an ordered list of
// abstract correction operations for the processing layer to execute. It
// performs no signal analysis: the mapping is pure and deterministic.
package plan

import (
	"fmt"
	"math"

	"github.com/shlokdhakrey/avsync/pkg/models"
)

// Native per-stage tempo range: factors outside it are split into chained
// stages applied geometrically (the atempo model).
const (
	tempoStageMin = 0.5
	tempoStageMax = 2.0
)

const checkpointToleranceMs = 30.0

// Build translates a recommendation into a plan. mediaDurationMs positions
// the verification checkpoints; zero disables them. The only error is a
// malformed recommendation (unknown type or non-positive tempo factor).
func Build(rec models.CorrectionRecommendation, mediaDurationMs float64) (*models.CorrectionPlan, error) {
	p := &models.CorrectionPlan{RequiresReview: !rec.IsSafe}

	switch rec.Type {
	case models.CorrectionNone:
		// Nothing to do; no checkpoints needed either.
		return p, nil

	case models.CorrectionManual:
		p.Operations = append(p.Operations, models.Operation{
			Type: models.OpReject,
			Note: firstWarning(rec),
		})
		p.RequiresReview = true
		return p, nil

	case models.CorrectionDelay:
		p.Operations = append(p.Operations, delayOps(rec.DelayMs)...)
		p.Checkpoints = spreadCheckpoints(mediaDurationMs)
		return p, nil

	case models.CorrectionStretch:
		if rec.TempoFactor <= 0 {
			return nil, fmt.Errorf("plan: non-positive tempo factor %v", rec.TempoFactor)
		}
		for _, f := range splitTempo(rec.TempoFactor) {
			p.Operations = append(p.Operations, models.Operation{Type: models.OpTempoRescale, Factor: f})
		}
		p.Checkpoints = spreadCheckpoints(mediaDurationMs)
		return p, nil

	case models.CorrectionSegmentRepair:
		for _, seg := range rec.Segments {
			p.Operations = append(p.Operations, segmentOps(seg)...)
			p.Checkpoints = append(p.Checkpoints, models.Checkpoint{
				TimeMs:           seg.EndMs,
				ExpectedOffsetMs: 0,
				ToleranceMs:      checkpointToleranceMs,
			})
		}
		p.RequiresReview = true
		return p, nil

	default:
		return nil, fmt.Errorf("plan: unknown correction type %q", rec.Type)
	}
}

// delayOps maps a signed target adjustment onto operations: a positive
// adjustment pads the target start, a negative one trims it.
func delayOps(delayMs float64) []models.Operation {
	if delayMs == 0 {
		return nil
	}
	if delayMs > 0 {
		return []models.Operation{{Type: models.OpDelayInsert, DelayMs: delayMs}}
	}
	return []models.Operation{{Type: models.OpTrim, StartMs: 0, EndMs: -delayMs}}
}

func segmentOps(seg models.SegmentCorrection) []models.Operation {
	if seg.DelayMs == 0 {
		return nil
	}
	if seg.DelayMs > 0 {
		return []models.Operation{{
			Type:    models.OpPad,
			DelayMs: seg.DelayMs,
			StartMs: seg.StartMs,
			EndMs:   seg.EndMs,
		}}
	}
	return []models.Operation{{
		Type:    models.OpTrim,
		StartMs: seg.StartMs,
		EndMs:   seg.StartMs - seg.DelayMs,
	}}
}

// splitTempo chains rescale stages geometrically until the residual factor
// fits the native per-stage range. 3.0 becomes [2.0, 1.5]; 0.2 becomes
// [0.5, 0.5, 0.8].
func splitTempo(factor float64) []float64 {
	var stages []float64
	for factor > tempoStageMax {
		stages = append(stages, tempoStageMax)
		factor /= tempoStageMax
	}
	for factor < tempoStageMin {
		stages = append(stages, tempoStageMin)
		factor /= tempoStageMin
	}
	stages = append(stages, factor)
	return stages
}

// spreadCheckpoints places verification points at 10%, 50% and 90% of the
// corrected media, all expecting zero residual offset.
func spreadCheckpoints(mediaDurationMs float64) []models.Checkpoint {
	if mediaDurationMs <= 0 {
		return nil
	}
	points := []float64{0.1, 0.5, 0.9}
	cps := make([]models.Checkpoint, 0, len(points))
	for _, frac := range points {
		cps = append(cps, models.Checkpoint{
			TimeMs:           math.Round(mediaDurationMs * frac),
			ExpectedOffsetMs: 0,
			ToleranceMs:      checkpointToleranceMs,
		})
	}
	return cps
}

func firstWarning(rec models.CorrectionRecommendation) string {
	if len(rec.Warnings) > 0 {
		return rec.Warnings[0]
	}
	return "manual review required"
}
