package fingerprint

import (
	"math"
	"math/rand"
	"testing"

	"github.com/shlokdhakrey/avsync/pkg/models"
)

func randomCodes(n int, seed int64) []uint32 {
	rng := rand.New(rand.NewSource(seed))
	codes := make([]uint32, n)
	for i := range codes {
		codes[i] = rng.Uint32()
	}
	return codes
}

func TestDistance(t *testing.T) {
	cases := []struct {
		a, b uint32
		want int
	}{
		{0, 0, 0},
		{0xFFFFFFFF, 0xFFFFFFFF, 0},
		{0, 0xFFFFFFFF, 32},
		{0b1010, 0b0101, 4},
		{1, 0, 1},
	}
	for _, tc := range cases {
		if got := Distance(tc.a, tc.b); got != tc.want {
			t.Errorf("Distance(%#x, %#x) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	codes := randomCodes(40, 11)
	fp := &Fingerprint{Codes: codes, SampleRate: SampleRate}

	if got := Similarity(fp, fp); got != 1.0 {
		t.Errorf("Self-similarity should be 1.0, got %f", got)
	}

	inverted := make([]uint32, len(codes))
	for i, c := range codes {
		inverted[i] = ^c
	}
	anti := &Fingerprint{Codes: inverted, SampleRate: SampleRate}
	if got := Similarity(fp, anti); got != 0.0 {
		t.Errorf("Complement similarity should be 0.0, got %f", got)
	}

	if got := Similarity(nil, fp); got != 0 {
		t.Errorf("Nil fingerprint similarity should be 0, got %f", got)
	}
}

func TestBestOffsetShiftedCodes(t *testing.T) {
	codes := randomCodes(50, 42)
	ref := &Fingerprint{Codes: codes, SampleRate: SampleRate}

	// Target content starts 3 chunks later.
	shifted := append(randomCodes(3, 99), codes[:47]...)
	tgt := &Fingerprint{Codes: shifted, SampleRate: SampleRate}

	match, ok := BestOffset(ref, tgt, 10, 0)
	if !ok {
		t.Fatal("Expected an offset match")
	}
	if match.OffsetChunks != 3 {
		t.Errorf("Expected offset of 3 chunks, got %d", match.OffsetChunks)
	}
	wantMs := 3 * ChunkDurationMs
	if math.Abs(match.DelayMs-wantMs) > 1e-9 {
		t.Errorf("Expected delay %fms, got %f", wantMs, match.DelayMs)
	}
	if match.Confidence < 0.8 {
		t.Errorf("Expected high confidence for exact code match, got %f", match.Confidence)
	}
}

func TestBestOffsetUnrelatedCodes(t *testing.T) {
	ref := &Fingerprint{Codes: randomCodes(60, 1), SampleRate: SampleRate}
	tgt := &Fingerprint{Codes: randomCodes(60, 2), SampleRate: SampleRate}

	if _, ok := BestOffset(ref, tgt, 10, 0); ok {
		t.Error("Unrelated random codes must not clear the confidence threshold")
	}
}

func TestBestOffsetEmptyInput(t *testing.T) {
	fp := &Fingerprint{Codes: randomCodes(10, 5), SampleRate: SampleRate}
	empty := &Fingerprint{SampleRate: SampleRate}

	if _, ok := BestOffset(nil, fp, 5, 0); ok {
		t.Error("Nil reference must not match")
	}
	if _, ok := BestOffset(fp, empty, 5, 0); ok {
		t.Error("Empty target must not match")
	}
}

func TestAnalyzeSegmentsSpread(t *testing.T) {
	wide := []models.SegmentResult{
		{DelayMs: 0, Source: models.SourceFingerprint},
		{DelayMs: 400, Source: models.SourceFingerprint},
	}
	res := AnalyzeSegments(wide)
	if !res.Structural {
		t.Errorf("Expected 200ms stddev to flag structural, got %f", res.DelayStdDevMs)
	}

	narrow := []models.SegmentResult{
		{DelayMs: 0, Source: models.SourceFingerprint},
		{DelayMs: 50, Source: models.SourceFingerprint},
	}
	res = AnalyzeSegments(narrow)
	if res.Structural {
		t.Errorf("25ms stddev must not flag structural, got %f", res.DelayStdDevMs)
	}

	if res := AnalyzeSegments(nil); res.Structural || res.DelayStdDevMs != 0 {
		t.Error("Expected zero analysis for empty segments")
	}
}
