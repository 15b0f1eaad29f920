// Package syncengine orchestrates the sync detectors: it fans out
// cross-correlation, anchor matching and fingerprint comparison over one
// reference/target pair, reconciles their noisy estimates into a single
// consensus delay, and derives a safety-graded correction recommendation.
package syncengine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shlokdhakrey/avsync/internal/anchors"
	"github.com/shlokdhakrey/avsync/internal/audio"
	"github.com/shlokdhakrey/avsync/internal/correlation"
	"github.com/shlokdhakrey/avsync/internal/fingerprint"
	"github.com/shlokdhakrey/avsync/pkg/models"
)

// Provider is the boundary to the external decoding/fingerprinting facility.
// Calls are synchronous from the engine's perspective: they return data or
// fail, and they are the only points where the engine touches the filesystem
// or external processes.
type Provider interface {
	Waveform(ctx context.Context, path string, sampleRate int, offset, duration time.Duration) (*audio.Waveform, error)
	Silences(ctx context.Context, path string, sampleRate int) ([]audio.Interval, error)
	Fingerprint(ctx context.Context, path string, offset, duration time.Duration) (*fingerprint.Fingerprint, error)
}

// Logger is the minimal logging surface the engine needs.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Debugf(string, ...any) {}

// ProgressFunc is invoked at well-defined checkpoints: once per completed
// analysis stage and once per completed fingerprint window.
type ProgressFunc func(stage string, done, total int)

// Options configures one engine instance.
type Options struct {
	SampleRate           int           // correlation/anchor analysis rate, default 8000
	MaxOffset            time.Duration // offset search range, default 30s
	Window               time.Duration // correlation segment window, default 8s
	Step                 time.Duration // correlation segment stride, default 3s
	Fingerprinting       bool          // enable the fingerprint detector
	Deep                 bool          // no length cap, finer windows
	MaxDuration          time.Duration // analyzed audio cap, default 10min (ignored in deep mode)
	FingerprintWindow    time.Duration // default 30s
	FingerprintStep      time.Duration // default 10s
	MinSegmentConfidence float64       // consensus segment filter, default 0.3
	Progress             ProgressFunc
}

func (o Options) withDefaults() Options {
	if o.SampleRate == 0 {
		o.SampleRate = 8000
	}
	if o.MaxOffset == 0 {
		o.MaxOffset = 30 * time.Second
	}
	if o.Window == 0 {
		o.Window = 8 * time.Second
	}
	if o.Step == 0 {
		o.Step = 3 * time.Second
	}
	if o.MaxDuration == 0 {
		o.MaxDuration = 10 * time.Minute
	}
	if o.FingerprintWindow == 0 {
		o.FingerprintWindow = 30 * time.Second
	}
	if o.FingerprintStep == 0 {
		o.FingerprintStep = 10 * time.Second
	}
	if o.MinSegmentConfidence == 0 {
		o.MinSegmentConfidence = 0.3
	}
	if o.Deep {
		// Deep analysis trades time for finer consensus granularity.
		o.Window = 5 * time.Second
		o.Step = 2 * time.Second
		o.MaxDuration = 0
	}
	return o
}

func (o Options) validate() error {
	if o.SampleRate < 0 {
		return fmt.Errorf("syncengine: negative sample rate %d", o.SampleRate)
	}
	if o.MaxOffset < 0 || o.Window < 0 || o.Step < 0 || o.MaxDuration < 0 ||
		o.FingerprintWindow < 0 || o.FingerprintStep < 0 {
		return fmt.Errorf("syncengine: negative duration option")
	}
	if o.MinSegmentConfidence < 0 || o.MinSegmentConfidence > 1 {
		return fmt.Errorf("syncengine: segment confidence %v outside [0,1]", o.MinSegmentConfidence)
	}
	return nil
}

// Engine runs multi-method sync analysis. Each Analyze call is independent
// and side-effect-free with respect to other calls; the engine holds no
// mutable shared state.
type Engine struct {
	provider Provider
	opts     Options
	log      Logger
}

// New builds an engine. A nil logger disables logging.
func New(provider Provider, opts Options, log Logger) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("syncengine: nil provider")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Engine{provider: provider, opts: opts.withDefaults(), log: log}, nil
}

// Analyze runs the full multi-method analysis of target against reference.
// Detector failures degrade the result instead of propagating: the only
// error return is for invalid input paths or a cancelled context before any
// work started.
func (e *Engine) Analyze(ctx context.Context, refPath, targetPath string) (*models.SyncAnalysisResult, error) {
	if refPath == "" || targetPath == "" {
		return nil, fmt.Errorf("syncengine: empty input path")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := e.opts.MaxDuration
	if e.opts.Deep {
		limit = 0
	}

	refW, tgtW := e.extractPair(ctx, refPath, targetPath, limit)

	var (
		wg    sync.WaitGroup
		corr  *correlation.Result
		peaks *anchors.MatchResult
		fp    *fingerprintOutcome
	)

	if refW != nil && tgtW != nil {
		wg.Add(2)
		go func() {
			defer wg.Done()
			corr = correlation.Analyze(refW, tgtW, correlation.Options{
				MaxOffset: e.opts.MaxOffset,
				Window:    e.opts.Window,
				Step:      e.opts.Step,
			})
			e.progress("cross_correlation", 1, 1)
		}()
		go func() {
			defer wg.Done()
			peaks = e.runAnchors(ctx, refPath, targetPath, refW, tgtW)
			e.progress("peak_match", 1, 1)
		}()
	}
	if e.opts.Fingerprinting {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fp = e.runFingerprint(ctx, refPath, targetPath)
			e.progress("fingerprint", 1, 1)
		}()
	}
	wg.Wait()

	return e.reconcile(corr, peaks, fp), nil
}

// QuickSyncCheck is the cross-correlation-only fast path: a shorter sample,
// smaller windows and a tighter offset range, used to gate whether the full
// analysis is worth running.
func (e *Engine) QuickSyncCheck(ctx context.Context, refPath, targetPath string) (*models.QuickCheckResult, error) {
	if refPath == "" || targetPath == "" {
		return nil, fmt.Errorf("syncengine: empty input path")
	}

	const quickSample = 60 * time.Second
	refW, err := e.provider.Waveform(ctx, refPath, e.opts.SampleRate, 0, quickSample)
	if err != nil {
		return nil, fmt.Errorf("quick check: reference: %w", err)
	}
	tgtW, err := e.provider.Waveform(ctx, targetPath, e.opts.SampleRate, 0, quickSample)
	if err != nil {
		return nil, fmt.Errorf("quick check: target: %w", err)
	}

	res := correlation.Analyze(refW, tgtW, correlation.Options{
		MaxOffset: 10 * time.Second,
		Window:    5 * time.Second,
		Step:      5 * time.Second,
	})

	inSync := math.Abs(res.DelayMs) < inSyncThresholdMs && res.Confidence >= 0.5
	return &models.QuickCheckResult{
		InSync:                inSync,
		OffsetMs:              math.Round(res.DelayMs),
		Confidence:            models.Clamp01(res.Confidence),
		NeedsDetailedAnalysis: !inSync || res.Confidence < 0.6,
	}, nil
}

// extractPair fetches both waveforms concurrently. Extraction failures are
// logged and return nil slots; the caller degrades to whatever detectors can
// still run.
func (e *Engine) extractPair(ctx context.Context, refPath, targetPath string, limit time.Duration) (*audio.Waveform, *audio.Waveform) {
	var (
		wg         sync.WaitGroup
		refW, tgtW *audio.Waveform
		refE, tgtE error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		refW, refE = e.provider.Waveform(ctx, refPath, e.opts.SampleRate, 0, limit)
	}()
	go func() {
		defer wg.Done()
		tgtW, tgtE = e.provider.Waveform(ctx, targetPath, e.opts.SampleRate, 0, limit)
	}()
	wg.Wait()

	if refE != nil {
		e.log.Warnf("waveform extraction failed for reference %s: %v", refPath, refE)
		refW = nil
	}
	if tgtE != nil {
		e.log.Warnf("waveform extraction failed for target %s: %v", targetPath, tgtE)
		tgtW = nil
	}
	return refW, tgtW
}

func (e *Engine) progress(stage string, done, total int) {
	if e.opts.Progress != nil {
		e.opts.Progress(stage, done, total)
	}
}

// poolSegments merges detector segments chronologically without merging
// overlapping windows; consensus wants every vote.
func poolSegments(corr *correlation.Result, peaks *anchors.MatchResult, fp *fingerprintOutcome) []models.SegmentResult {
	var pooled []models.SegmentResult
	if corr != nil {
		pooled = append(pooled, corr.Segments...)
	}
	if peaks != nil {
		pooled = append(pooled, peaks.Segments...)
	}
	if fp != nil {
		pooled = append(pooled, fp.segments...)
	}
	sort.SliceStable(pooled, func(i, j int) bool { return pooled[i].StartMs < pooled[j].StartMs })
	return pooled
}
