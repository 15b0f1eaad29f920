package audio

import "time"

// Interval is a time range within a single track, in milliseconds.
type Interval struct {
	StartMs float64
	EndMs   float64
}

// DurationMs returns the interval length in milliseconds.
func (iv Interval) DurationMs() float64 { return iv.EndMs - iv.StartMs }

// SilenceOptions tunes energy-window silence detection.
type SilenceOptions struct {
	Threshold   float64       // RMS amplitude below which a frame counts as silent
	MinDuration time.Duration // shortest run of silent frames reported
	Frame       time.Duration // analysis frame length
}

func (o SilenceOptions) withDefaults() SilenceOptions {
	if o.Threshold <= 0 {
		o.Threshold = 0.01
	}
	if o.MinDuration <= 0 {
		o.MinDuration = 300 * time.Millisecond
	}
	if o.Frame <= 0 {
		o.Frame = 20 * time.Millisecond
	}
	return o
}

// DetectSilences scans the waveform with fixed frames and reports runs where
// the frame RMS stays below the threshold for at least MinDuration.
func DetectSilences(w *Waveform, opts SilenceOptions) []Interval {
	opts = opts.withDefaults()
	if w == nil || w.Len() == 0 || w.SampleRate == 0 {
		return nil
	}

	frameLen := int(opts.Frame.Seconds() * float64(w.SampleRate))
	if frameLen < 1 {
		frameLen = 1
	}
	frameMs := float64(frameLen) / float64(w.SampleRate) * 1000.0
	minFrames := int(opts.MinDuration.Seconds()*float64(w.SampleRate)) / frameLen
	if minFrames < 1 {
		minFrames = 1
	}

	var intervals []Interval
	runStart := -1
	frames := w.Len() / frameLen
	for f := 0; f < frames; f++ {
		var sumSq float64
		base := f * frameLen
		for i := base; i < base+frameLen; i++ {
			sumSq += w.Samples[i] * w.Samples[i]
		}
		rms := sumSq / float64(frameLen)
		silent := rms < opts.Threshold*opts.Threshold

		switch {
		case silent && runStart < 0:
			runStart = f
		case !silent && runStart >= 0:
			if f-runStart >= minFrames {
				intervals = append(intervals, Interval{
					StartMs: float64(runStart) * frameMs,
					EndMs:   float64(f) * frameMs,
				})
			}
			runStart = -1
		}
	}
	if runStart >= 0 && frames-runStart >= minFrames {
		intervals = append(intervals, Interval{
			StartMs: float64(runStart) * frameMs,
			EndMs:   float64(frames) * frameMs,
		})
	}
	return intervals
}
