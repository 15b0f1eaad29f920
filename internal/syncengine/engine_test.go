package syncengine

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/shlokdhakrey/avsync/internal/audio"
	"github.com/shlokdhakrey/avsync/internal/fingerprint"
	"github.com/shlokdhakrey/avsync/pkg/models"
)

// fakeProvider serves in-memory samples instead of shelling out to ffmpeg.
type fakeProvider struct {
	tracks map[string][]float64
	rate   int
}

func (p *fakeProvider) Waveform(_ context.Context, path string, sampleRate int, offset, duration time.Duration) (*audio.Waveform, error) {
	samples, ok := p.tracks[path]
	if !ok {
		return nil, errors.New("unknown track: " + path)
	}
	start := int(offset.Seconds() * float64(p.rate))
	if start > len(samples) {
		start = len(samples)
	}
	end := len(samples)
	if duration > 0 {
		if limit := start + int(duration.Seconds()*float64(p.rate)); limit < end {
			end = limit
		}
	}
	return audio.NewWaveform(samples[start:end], p.rate), nil
}

func (p *fakeProvider) Silences(ctx context.Context, path string, sampleRate int) ([]audio.Interval, error) {
	w, err := p.Waveform(ctx, path, sampleRate, 0, 0)
	if err != nil {
		return nil, err
	}
	return audio.DetectSilences(w, audio.SilenceOptions{}), nil
}

func (p *fakeProvider) Fingerprint(ctx context.Context, path string, offset, duration time.Duration) (*fingerprint.Fingerprint, error) {
	w, err := p.Waveform(ctx, path, p.rate, offset, duration)
	if err != nil {
		return nil, err
	}
	return fingerprint.Generate(w.Samples, w.SampleRate)
}

func noiseTrack(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = rng.Float64()*2 - 1
	}
	return samples
}

func delayedTrack(samples []float64, padSamples int) []float64 {
	out := make([]float64, len(samples))
	copy(out[padSamples:], samples[:len(samples)-padSamples])
	return out
}

func newTestEngine(t *testing.T, provider Provider, opts Options) *Engine {
	t.Helper()
	e, err := New(provider, opts, nil)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return e
}

func TestAnalyzeDetectsOffset(t *testing.T) {
	rate := 4000
	ref := noiseTrack(12*rate, 42)
	provider := &fakeProvider{
		rate: rate,
		tracks: map[string][]float64{
			"ref.mkv": ref,
			"tgt.mkv": delayedTrack(ref, rate/2), // +500ms
		},
	}
	e := newTestEngine(t, provider, Options{SampleRate: rate, MaxOffset: 2 * time.Second})

	res, err := e.Analyze(context.Background(), "ref.mkv", "tgt.mkv")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Status != models.StatusOffset {
		t.Errorf("Expected offset status, got %s", res.Status)
	}
	if math.Abs(res.GlobalDelayMs-500) > 20 {
		t.Errorf("Expected delay near +500ms, got %f", res.GlobalDelayMs)
	}
	if res.Confidence < 0.5 {
		t.Errorf("Expected solid confidence, got %f", res.Confidence)
	}
	if res.Recommendation.Type != models.CorrectionDelay {
		t.Fatalf("Expected delay correction, got %s", res.Recommendation.Type)
	}
	// The recommended adjustment inverts the measured delay.
	if res.Recommendation.DelayMs != -res.GlobalDelayMs {
		t.Errorf("Expected correction %f, got %f", -res.GlobalDelayMs, res.Recommendation.DelayMs)
	}
	if len(res.Segments) == 0 {
		t.Error("Expected pooled segments")
	}
}

func TestAnalyzeInSync(t *testing.T) {
	rate := 4000
	ref := noiseTrack(12*rate, 7)
	provider := &fakeProvider{
		rate: rate,
		tracks: map[string][]float64{
			"ref.mkv": ref,
			"tgt.mkv": ref,
		},
	}
	e := newTestEngine(t, provider, Options{SampleRate: rate, MaxOffset: 2 * time.Second})

	res, err := e.Analyze(context.Background(), "ref.mkv", "tgt.mkv")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Status != models.StatusInSync {
		t.Errorf("Expected in_sync, got %s", res.Status)
	}
	if res.GlobalDelayMs != 0 {
		t.Errorf("Expected zero delay, got %f", res.GlobalDelayMs)
	}
	if res.Confidence < 0.9 {
		t.Errorf("Self-comparison must be highly confident, got %f", res.Confidence)
	}
	if res.Recommendation.Type != models.CorrectionNone || !res.Recommendation.IsSafe {
		t.Errorf("Expected safe none correction, got %s safe=%v",
			res.Recommendation.Type, res.Recommendation.IsSafe)
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	rate := 4000
	ref := noiseTrack(12*rate, 42)
	provider := &fakeProvider{
		rate: rate,
		tracks: map[string][]float64{
			"ref.mkv": ref,
			"tgt.mkv": delayedTrack(ref, rate/2),
		},
	}
	e := newTestEngine(t, provider, Options{SampleRate: rate, MaxOffset: 2 * time.Second})

	first, err := e.Analyze(context.Background(), "ref.mkv", "tgt.mkv")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := e.Analyze(context.Background(), "ref.mkv", "tgt.mkv")
		if err != nil {
			t.Fatalf("Repeat analyze %d failed: %v", i, err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Repeat analyze %d diverged: first delay=%f conf=%f, again delay=%f conf=%f",
				i, first.GlobalDelayMs, first.Confidence, again.GlobalDelayMs, again.Confidence)
		}
	}
}

func TestAnalyzeDegradesWhenProviderFails(t *testing.T) {
	provider := &fakeProvider{rate: 4000, tracks: map[string][]float64{}}
	e := newTestEngine(t, provider, Options{SampleRate: 4000})

	res, err := e.Analyze(context.Background(), "missing-a.mkv", "missing-b.mkv")
	if err != nil {
		t.Fatalf("Detector failures must degrade, not error: %v", err)
	}
	if res.Status != models.StatusUnsyncable {
		t.Errorf("Expected unsyncable, got %s", res.Status)
	}
	if res.Confidence != 0 {
		t.Errorf("Expected zero confidence, got %f", res.Confidence)
	}
	if res.Recommendation.Type != models.CorrectionManual {
		t.Errorf("Expected manual correction, got %s", res.Recommendation.Type)
	}
	if len(res.Recommendation.Warnings) == 0 {
		t.Error("Expected a diagnostic warning")
	}
}

func TestAnalyzeEmptyPaths(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{rate: 4000}, Options{})
	if _, err := e.Analyze(context.Background(), "", "target"); err == nil {
		t.Error("Expected error for empty reference path")
	}
	if _, err := e.Analyze(context.Background(), "ref", ""); err == nil {
		t.Error("Expected error for empty target path")
	}
}

func TestAnalyzeCancelledContext(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{rate: 4000}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Analyze(ctx, "a", "b"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestAnalyzeProgressCallback(t *testing.T) {
	rate := 4000
	ref := noiseTrack(10*rate, 3)
	provider := &fakeProvider{
		rate:   rate,
		tracks: map[string][]float64{"a": ref, "b": ref},
	}

	var mu sync.Mutex
	stages := map[string]bool{}
	e := newTestEngine(t, provider, Options{
		SampleRate: rate,
		MaxOffset:  time.Second,
		Progress: func(stage string, done, total int) {
			mu.Lock()
			stages[stage] = true
			mu.Unlock()
		},
	})

	if _, err := e.Analyze(context.Background(), "a", "b"); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	for _, want := range []string{"cross_correlation", "peak_match"} {
		if !stages[want] {
			t.Errorf("Expected progress for stage %s", want)
		}
	}
}

func TestQuickSyncCheck(t *testing.T) {
	rate := 4000
	ref := noiseTrack(12*rate, 9)
	provider := &fakeProvider{
		rate: rate,
		tracks: map[string][]float64{
			"ref.mkv": ref,
			"tgt.mkv": delayedTrack(ref, rate), // +1000ms
		},
	}
	e := newTestEngine(t, provider, Options{SampleRate: rate})

	same, err := e.QuickSyncCheck(context.Background(), "ref.mkv", "ref.mkv")
	if err != nil {
		t.Fatalf("QuickSyncCheck failed: %v", err)
	}
	if !same.InSync {
		t.Errorf("Identical input should be in sync, offset=%f conf=%f", same.OffsetMs, same.Confidence)
	}
	if same.NeedsDetailedAnalysis {
		t.Error("Confident in-sync result should not need detailed analysis")
	}

	shifted, err := e.QuickSyncCheck(context.Background(), "ref.mkv", "tgt.mkv")
	if err != nil {
		t.Fatalf("QuickSyncCheck failed: %v", err)
	}
	if shifted.InSync {
		t.Errorf("1s shift must not be in sync, offset=%f", shifted.OffsetMs)
	}
	if !shifted.NeedsDetailedAnalysis {
		t.Error("Out-of-sync result must request detailed analysis")
	}
	if math.Abs(shifted.OffsetMs-1000) > 30 {
		t.Errorf("Expected offset near +1000ms, got %f", shifted.OffsetMs)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, Options{}, nil); err == nil {
		t.Error("Expected error for nil provider")
	}
	if _, err := New(&fakeProvider{rate: 4000}, Options{SampleRate: -1}, nil); err == nil {
		t.Error("Expected error for negative sample rate")
	}
	if _, err := New(&fakeProvider{rate: 4000}, Options{MinSegmentConfidence: 2}, nil); err == nil {
		t.Error("Expected error for out-of-range segment confidence")
	}
}
