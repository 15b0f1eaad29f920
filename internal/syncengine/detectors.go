package syncengine

import (
	"context"
	"time"

	"github.com/shlokdhakrey/avsync/internal/anchors"
	"github.com/shlokdhakrey/avsync/internal/audio"
	"github.com/shlokdhakrey/avsync/internal/fingerprint"
	"github.com/shlokdhakrey/avsync/pkg/models"
)

// runAnchors extracts anchor sequences from both waveforms, enriched with
// silence-boundary anchors from the provider when available, and matches
// them. Silence detection failures only lose the extra anchors.
func (e *Engine) runAnchors(ctx context.Context, refPath, targetPath string, refW, tgtW *audio.Waveform) *anchors.MatchResult {
	refAnchors := anchors.Extract(refW, anchors.Options{})
	tgtAnchors := anchors.Extract(tgtW, anchors.Options{})

	if refSil, err := e.provider.Silences(ctx, refPath, e.opts.SampleRate); err == nil {
		refAnchors = append(refAnchors, anchors.FromSilences(refSil)...)
	} else {
		e.log.Debugf("silence detection skipped for %s: %v", refPath, err)
	}
	if tgtSil, err := e.provider.Silences(ctx, targetPath, e.opts.SampleRate); err == nil {
		tgtAnchors = append(tgtAnchors, anchors.FromSilences(tgtSil)...)
	} else {
		e.log.Debugf("silence detection skipped for %s: %v", targetPath, err)
	}

	return anchors.Match(refAnchors, tgtAnchors, anchors.MatchOptions{
		MaxOffset: e.opts.MaxOffset,
	})
}

// fingerprintOutcome is the fingerprint detector's contribution: a global
// alignment candidate, a same-source similarity score, and windowed segments.
type fingerprintOutcome struct {
	similarity float64
	best       fingerprint.OffsetMatch
	hasBest    bool
	segments   []models.SegmentResult
	structural bool
	stdDevMs   float64
}

// runFingerprint fingerprints both files globally and per window. Any
// provider failure makes the whole detector fail soft (nil outcome); the
// orchestrator is designed to work without it.
func (e *Engine) runFingerprint(ctx context.Context, refPath, targetPath string) *fingerprintOutcome {
	refFP, err := e.provider.Fingerprint(ctx, refPath, 0, 0)
	if err != nil {
		e.log.Warnf("fingerprinting unavailable for %s: %v", refPath, err)
		return nil
	}
	tgtFP, err := e.provider.Fingerprint(ctx, targetPath, 0, 0)
	if err != nil {
		e.log.Warnf("fingerprinting unavailable for %s: %v", targetPath, err)
		return nil
	}

	maxOffsetChunks := int(e.opts.MaxOffset.Seconds() * 1000.0 / fingerprint.ChunkDurationMs)
	out := &fingerprintOutcome{
		similarity: fingerprint.Similarity(refFP, tgtFP),
	}
	out.best, out.hasBest = fingerprint.BestOffset(refFP, tgtFP, maxOffsetChunks, fingerprint.DefaultMinConfidence)

	out.segments = e.fingerprintSegments(ctx, refPath, targetPath, refFP, tgtFP, maxOffsetChunks)
	analysis := fingerprint.AnalyzeSegments(out.segments)
	out.structural = analysis.Structural
	out.stdDevMs = analysis.DelayStdDevMs
	return out
}

// fingerprintSegments re-fingerprints fixed windows of both files
// independently and runs the offset search per window.
func (e *Engine) fingerprintSegments(ctx context.Context, refPath, targetPath string, refFP, tgtFP *fingerprint.Fingerprint, maxOffsetChunks int) []models.SegmentResult {
	window := e.opts.FingerprintWindow
	step := e.opts.FingerprintStep

	total := refFP.Duration
	if tgtFP.Duration < total {
		total = tgtFP.Duration
	}
	totalDur := time.Duration(total * float64(time.Second))
	if totalDur < window {
		return nil
	}

	// Per-window search stays within the window itself.
	winChunks := int(window.Seconds() * 1000.0 / fingerprint.ChunkDurationMs)
	searchChunks := maxOffsetChunks
	if half := winChunks / 2; searchChunks > half {
		searchChunks = half
	}

	windows := int((totalDur-window)/step) + 1
	var segments []models.SegmentResult
	for i := 0; i < windows; i++ {
		offset := time.Duration(i) * step
		refWin, err := e.provider.Fingerprint(ctx, refPath, offset, window)
		if err != nil {
			e.log.Debugf("fingerprint window %d skipped: %v", i, err)
			continue
		}
		tgtWin, err := e.provider.Fingerprint(ctx, targetPath, offset, window)
		if err != nil {
			e.log.Debugf("fingerprint window %d skipped: %v", i, err)
			continue
		}
		match, ok := fingerprint.BestOffset(refWin, tgtWin, searchChunks, fingerprint.DefaultMinConfidence)
		e.progress("fingerprint_segments", i+1, windows)
		if !ok {
			continue
		}
		startMs := offset.Seconds() * 1000.0
		segments = append(segments, models.SegmentResult{
			StartMs:    startMs,
			EndMs:      startMs + window.Seconds()*1000.0,
			DelayMs:    match.DelayMs,
			Confidence: models.Clamp01(match.Confidence),
			Source:     models.SourceFingerprint,
		})
	}
	return segments
}
