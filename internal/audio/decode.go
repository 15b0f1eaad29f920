package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// ReadWAV decodes a PCM WAV file into a mono, normalized Waveform. Stereo
// input is downmixed by averaging channels; more channels are rejected.
func ReadWAV(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file: %s", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil {
		return nil, errors.New("decode wav: empty PCM buffer")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))

	channels := buf.Format.NumChannels
	switch channels {
	case 1:
		samples := make([]float64, len(buf.Data))
		for i, v := range buf.Data {
			samples[i] = float64(v) * scale
		}
		return NewWaveform(samples, buf.Format.SampleRate), nil
	case 2:
		frames := len(buf.Data) / 2
		samples := make([]float64, frames)
		for i := 0; i < frames; i++ {
			l := float64(buf.Data[2*i]) * scale
			r := float64(buf.Data[2*i+1]) * scale
			samples[i] = (l + r) * 0.5
		}
		return NewWaveform(samples, buf.Format.SampleRate), nil
	default:
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}
}
