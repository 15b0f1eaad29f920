package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shlokdhakrey/avsync/pkg/utils"
)

// DefaultExtractTimeout bounds a single ffmpeg decode. Long files decode well
// within this; the timeout exists so a wedged subprocess cannot pin a job.
const DefaultExtractTimeout = 5 * time.Minute

// ExtractOptions controls PCM extraction of a media file sub-window.
type ExtractOptions struct {
	SampleRate int           // e.g. 8000, 11025
	Offset     time.Duration // start position within the source; 0 = beginning
	Duration   time.Duration // length to extract; 0 = to end of file
	Timeout    time.Duration // subprocess deadline; 0 = DefaultExtractTimeout
}

// ExtractMonoWAV decodes inputPath to a mono 16-bit PCM WAV in outputDir
// using ffmpeg and returns the written path. The output name is unique per
// call so concurrent analyses of the same source never collide.
func ExtractMonoWAV(ctx context.Context, ffmpegPath, inputPath, outputDir string, opts ExtractOptions) (string, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 11025
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultExtractTimeout
	}
	if opts.Offset < 0 || opts.Duration < 0 {
		return "", fmt.Errorf("extract: negative offset or duration")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	outputPath := filepath.Join(outputDir, uuid.NewString()+".wav")
	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	args := []string{"-y", "-v", "quiet"}
	if opts.Offset > 0 {
		args = append(args, "-ss", formatSeconds(opts.Offset))
	}
	args = append(args, "-i", inputPath)
	if opts.Duration > 0 {
		args = append(args, "-t", formatSeconds(opts.Duration))
	}
	args = append(args,
		"-ac", "1",
		"-ar", strconv.Itoa(opts.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
