package anchors

import (
	"math"
	"sort"
	"time"

	"github.com/shlokdhakrey/avsync/pkg/models"
)

// MatchOptions tunes anchor sequence alignment.
type MatchOptions struct {
	MaxOffset time.Duration // candidate offset range, default 30s
	Tolerance time.Duration // timestamp alignment tolerance, default 50ms
	SegmentMs float64       // segment bucket width, default 10000ms
}

func (o MatchOptions) withDefaults() MatchOptions {
	if o.MaxOffset <= 0 {
		o.MaxOffset = 30 * time.Second
	}
	if o.Tolerance <= 0 {
		o.Tolerance = 50 * time.Millisecond
	}
	if o.SegmentMs <= 0 {
		o.SegmentMs = 10000
	}
	return o
}

// MatchResult is the anchor-based offset estimate. OffsetMs follows the
// engine-wide sign convention: positive means the target lags the reference.
type MatchResult struct {
	OffsetMs   float64
	Confidence float64
	MatchCount int
	Segments   []models.SegmentResult
}

type pairVote struct {
	refTimeMs float64
	offsetMs  float64
	weight    float64
}

// Match aligns two anchor sequences. Every anchor pair within MaxOffset
// votes for its offset, weighted by per-anchor confidence and amplitude
// compatibility; the densest tolerance-wide offset bucket wins. Matched
// pairs are then bucketed into time segments shaped like correlation
// segments so both detectors pool into the same consensus.
func Match(ref, target []models.AnchorPoint, opts MatchOptions) *MatchResult {
	opts = opts.withDefaults()
	if len(ref) == 0 || len(target) == 0 {
		return &MatchResult{}
	}

	maxOffsetMs := opts.MaxOffset.Seconds() * 1000.0
	toleranceMs := opts.Tolerance.Seconds() * 1000.0

	// Bucket votes by offset rounded to the tolerance.
	votes := make(map[int][]pairVote)
	for _, ra := range ref {
		for _, ta := range target {
			offset := ta.TimeMs - ra.TimeMs
			if math.Abs(offset) > maxOffsetMs {
				continue
			}
			weight := pairWeight(ra, ta)
			if weight <= 0 {
				continue
			}
			bucket := int(math.Round(offset / toleranceMs))
			votes[bucket] = append(votes[bucket], pairVote{
				refTimeMs: ra.TimeMs,
				offsetMs:  offset,
				weight:    weight,
			})
		}
	}
	if len(votes) == 0 {
		return &MatchResult{}
	}

	// Score each bucket together with its direct neighbors so a true offset
	// straddling a bucket edge is not split in two.
	buckets := make([]int, 0, len(votes))
	for bucket := range votes {
		buckets = append(buckets, bucket)
	}
	sort.Ints(buckets)

	// Equal weights resolve to the smaller absolute bucket, and mirrored
	// buckets to the positive one, keeping repeated runs identical.
	bestBucket, bestWeight := 0, -1.0
	for _, bucket := range buckets {
		w := bucketWeight(votes, bucket)
		if w > bestWeight ||
			(w == bestWeight && absInt(bucket) < absInt(bestBucket)) ||
			(w == bestWeight && absInt(bucket) == absInt(bestBucket) && bucket > bestBucket) {
			bestBucket, bestWeight = bucket, w
		}
	}

	matched := append([]pairVote{}, votes[bestBucket]...)
	matched = append(matched, votes[bestBucket-1]...)
	matched = append(matched, votes[bestBucket+1]...)

	var weightSum, offsetSum float64
	for _, v := range matched {
		weightSum += v.weight
		offsetSum += v.offsetMs * v.weight
	}
	offset := offsetSum / weightSum

	minCount := len(ref)
	if len(target) < minCount {
		minCount = len(target)
	}
	// Confidence scales with weighted match density against the shorter
	// anchor sequence.
	confidence := models.Clamp01(1.5 * weightSum / float64(minCount))

	return &MatchResult{
		OffsetMs:   offset,
		Confidence: confidence,
		MatchCount: len(matched),
		Segments:   segmentize(matched, opts.SegmentMs, confidence),
	}
}

// pairWeight combines anchor confidences with amplitude compatibility.
// Anchors of different kinds can still match (a peak in one encode may read
// as a transient in another) but incompatible amplitudes zero the pair out.
func pairWeight(a, b models.AnchorPoint) float64 {
	ampDiff := math.Abs(a.Amplitude - b.Amplitude)
	if ampDiff > 0.5 {
		return 0
	}
	compat := 1.0 - ampDiff/0.5
	return a.Confidence * b.Confidence * compat
}

func bucketWeight(votes map[int][]pairVote, bucket int) float64 {
	var w float64
	for _, v := range votes[bucket-1] {
		w += v.weight / 2
	}
	for _, v := range votes[bucket] {
		w += v.weight
	}
	for _, v := range votes[bucket+1] {
		w += v.weight / 2
	}
	return w
}

// segmentize groups matched pairs into fixed time buckets on the reference
// timeline and emits one peak_match segment per non-empty bucket.
func segmentize(matched []pairVote, segmentMs, confidence float64) []models.SegmentResult {
	if len(matched) == 0 {
		return nil
	}
	buckets := make(map[int][]pairVote)
	for _, v := range matched {
		buckets[int(v.refTimeMs/segmentMs)] = append(buckets[int(v.refTimeMs/segmentMs)], v)
	}

	segments := make([]models.SegmentResult, 0, len(buckets))
	for idx, vs := range buckets {
		var weightSum, offsetSum float64
		for _, v := range vs {
			weightSum += v.weight
			offsetSum += v.offsetMs * v.weight
		}
		segments = append(segments, models.SegmentResult{
			StartMs:    float64(idx) * segmentMs,
			EndMs:      float64(idx+1) * segmentMs,
			DelayMs:    offsetSum / weightSum,
			Confidence: models.Clamp01(confidence * weightSum / float64(len(vs))),
			Source:     models.SourcePeakMatch,
		})
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].StartMs < segments[j].StartMs })
	return segments
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
