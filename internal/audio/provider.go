package audio

import (
	"context"
	"os"
	"time"

	"github.com/shlokdhakrey/avsync/internal/fingerprint"
	"github.com/shlokdhakrey/avsync/pkg/utils"
)

// FFmpegProvider is the production waveform/fingerprint provider. It shells
// out to ffmpeg for decoding and owns the temporary WAV lifecycle: every
// decoded buffer is deleted before the call returns, on all exit paths.
type FFmpegProvider struct {
	FFmpegPath string
	TempDir    string
	Timeout    time.Duration
	Silence    SilenceOptions
}

// NewFFmpegProvider builds a provider with the given binary path and scratch
// directory. Empty arguments fall back to "ffmpeg" on PATH and os.TempDir().
func NewFFmpegProvider(ffmpegPath, tempDir string, timeout time.Duration) *FFmpegProvider {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if timeout <= 0 {
		timeout = DefaultExtractTimeout
	}
	return &FFmpegProvider{FFmpegPath: ffmpegPath, TempDir: tempDir, Timeout: timeout}
}

// Waveform extracts mono PCM at the requested rate for a sub-window of path.
// duration == 0 means to end of file.
func (p *FFmpegProvider) Waveform(ctx context.Context, path string, sampleRate int, offset, duration time.Duration) (*Waveform, error) {
	wavPath, err := ExtractMonoWAV(ctx, p.FFmpegPath, path, p.TempDir, ExtractOptions{
		SampleRate: sampleRate,
		Offset:     offset,
		Duration:   duration,
		Timeout:    p.Timeout,
	})
	if err != nil {
		return nil, err
	}
	defer utils.DeleteFile(wavPath)
	return ReadWAV(wavPath)
}

// Silences decodes path at the given rate and reports silence intervals.
func (p *FFmpegProvider) Silences(ctx context.Context, path string, sampleRate int) ([]Interval, error) {
	w, err := p.Waveform(ctx, path, sampleRate, 0, 0)
	if err != nil {
		return nil, err
	}
	return DetectSilences(w, p.Silence), nil
}

// Fingerprint computes the acoustic fingerprint of a sub-window of path at
// the fixed fingerprint rate.
func (p *FFmpegProvider) Fingerprint(ctx context.Context, path string, offset, duration time.Duration) (*fingerprint.Fingerprint, error) {
	w, err := p.Waveform(ctx, path, fingerprint.SampleRate, offset, duration)
	if err != nil {
		return nil, err
	}
	return fingerprint.Generate(w.Samples, w.SampleRate)
}
