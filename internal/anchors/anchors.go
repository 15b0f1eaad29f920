// Package anchors extracts transient/amplitude anchor events from a waveform
// and aligns two anchor sequences to estimate an offset independent of raw
// correlation.
package anchors

import (
	"math"
	"time"

	"github.com/shlokdhakrey/avsync/internal/audio"
	"github.com/shlokdhakrey/avsync/pkg/models"
)

// Options tunes transient extraction. Sensitivity is a policy knob, not a
// fixed contract: higher values admit weaker transients.
type Options struct {
	Sensitivity float64       // 0..1, default 0.5
	MinSpacing  time.Duration // minimum gap between anchors, default 150ms
	Frame       time.Duration // envelope frame length, default 10ms
	MaxAnchors  int           // cap per waveform, default 500
}

func (o Options) withDefaults() Options {
	if o.Sensitivity <= 0 || o.Sensitivity > 1 {
		o.Sensitivity = 0.5
	}
	if o.MinSpacing <= 0 {
		o.MinSpacing = 150 * time.Millisecond
	}
	if o.Frame <= 0 {
		o.Frame = 10 * time.Millisecond
	}
	if o.MaxAnchors <= 0 {
		o.MaxAnchors = 500
	}
	return o
}

// Extract finds amplitude transients by scanning the short-frame RMS
// envelope for rising edges. Frames whose envelope rises faster than the
// sensitivity-scaled threshold become transient anchors; frames at the
// envelope ceiling become peak anchors.
func Extract(w *audio.Waveform, opts Options) []models.AnchorPoint {
	opts = opts.withDefaults()
	if w == nil || w.Len() == 0 || w.SampleRate == 0 {
		return nil
	}

	frameLen := int(opts.Frame.Seconds() * float64(w.SampleRate))
	if frameLen < 1 {
		frameLen = 1
	}
	frames := w.Len() / frameLen
	if frames < 2 {
		return nil
	}
	frameMs := float64(frameLen) / float64(w.SampleRate) * 1000.0

	env := envelope(w.Samples, frameLen, frames)
	var peakEnv float64
	for _, e := range env {
		if e > peakEnv {
			peakEnv = e
		}
	}
	if peakEnv == 0 {
		return nil
	}

	// A rise of riseThreshold within one frame marks a transient onset.
	riseThreshold := (1.0 - opts.Sensitivity) * peakEnv * 0.5
	if riseThreshold <= 0 {
		riseThreshold = peakEnv * 0.05
	}
	minSpacingMs := opts.MinSpacing.Seconds() * 1000.0

	var anchors []models.AnchorPoint
	lastMs := -minSpacingMs
	for f := 1; f < frames && len(anchors) < opts.MaxAnchors; f++ {
		rise := env[f] - env[f-1]
		if rise < riseThreshold {
			continue
		}
		tMs := float64(f) * frameMs
		if tMs-lastMs < minSpacingMs {
			continue
		}
		kind := models.AnchorTransient
		if env[f] >= 0.9*peakEnv {
			kind = models.AnchorPeak
		}
		anchors = append(anchors, models.AnchorPoint{
			TimeMs:     tMs,
			Kind:       kind,
			Amplitude:  models.Clamp01(env[f] / peakEnv),
			Confidence: models.Clamp01(rise / (peakEnv * 0.5)),
		})
		lastMs = tMs
	}
	return anchors
}

// FromSilences turns silence intervals into anchors: one silence anchor for
// the interval itself and one transition anchor at the silence-to-sound edge.
func FromSilences(intervals []audio.Interval) []models.AnchorPoint {
	var anchors []models.AnchorPoint
	for _, iv := range intervals {
		anchors = append(anchors,
			models.AnchorPoint{
				TimeMs:     iv.StartMs,
				Kind:       models.AnchorSilence,
				Confidence: 0.8,
				DurationMs: iv.DurationMs(),
			},
			models.AnchorPoint{
				TimeMs:     iv.EndMs,
				Kind:       models.AnchorTransition,
				Confidence: 0.9,
				Label:      "silence exit",
			},
		)
	}
	return anchors
}

// envelope computes per-frame RMS amplitude.
func envelope(samples []float64, frameLen, frames int) []float64 {
	env := make([]float64, frames)
	for f := 0; f < frames; f++ {
		base := f * frameLen
		var sumSq float64
		for i := base; i < base+frameLen; i++ {
			sumSq += samples[i] * samples[i]
		}
		env[f] = sumSq / float64(frameLen)
	}
	// Mean square without the root would overweight loud frames.
	for f := range env {
		env[f] = math.Sqrt(env[f])
	}
	return env
}
