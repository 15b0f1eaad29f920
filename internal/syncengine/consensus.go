package syncengine

import (
	"math"
	"sort"

	"github.com/shlokdhakrey/avsync/internal/anchors"
	"github.com/shlokdhakrey/avsync/internal/correlation"
	"github.com/shlokdhakrey/avsync/pkg/models"
)

// Consensus tunables.
const (
	// globalTrustConfidence is the correlation confidence above which the
	// whole-file estimate is used directly, bypassing segment votes.
	globalTrustConfidence = 0.6

	// binWidthMs is the histogram bucket width for segment consensus.
	binWidthMs = 50.0

	// nearTopRatio keeps every bin scoring at least this fraction of the top
	// bin in the tie-break set.
	nearTopRatio = 0.7

	// minSupportFloor and minSupportFraction define the minimum segment count
	// the winning bin must hold: max(floor, fraction of filtered segments).
	minSupportFloor    = 5
	minSupportFraction = 0.10
)

// consensusDecision is the reconciled global delay with its provenance tier.
type consensusDecision struct {
	delayMs    float64
	confidence float64
	tier       string // "global_correlation" | "segment_consensus" | "weighted_average"
}

// decideDelay reconciles detector outputs into one global delay using the
// three-tier strategy: trust a strong whole-file correlation, otherwise
// cluster segment votes into a histogram, otherwise fall back to a
// confidence-weighted average of the global estimates.
func decideDelay(corr *correlation.Result, peaks *anchors.MatchResult, fp *fingerprintOutcome, pooled []models.SegmentResult, minSegConf float64) consensusDecision {
	if corr != nil && corr.Confidence > globalTrustConfidence {
		return consensusDecision{
			delayMs:    corr.DelayMs,
			confidence: models.Clamp01(corr.Confidence),
			tier:       "global_correlation",
		}
	}

	if dec, ok := segmentConsensus(pooled, minSegConf); ok {
		return dec
	}

	return weightedAverage(corr, peaks, fp)
}

type bin struct {
	count     int
	confSum   float64
	weightSum float64 // sum of confidences, used as weights
	delaySum  float64 // confidence-weighted delay sum
}

func (b bin) score() float64 {
	if b.count == 0 {
		return 0
	}
	return float64(b.count) * (b.confSum / float64(b.count))
}

func (b bin) meanDelay() float64 {
	if b.weightSum == 0 {
		return 0
	}
	return b.delaySum / b.weightSum
}

// segmentConsensus buckets filtered segment delays into 50 ms histogram bins
// scored by count x average confidence. Among bins within nearTopRatio of
// the top score, the smallest absolute delay wins; a symmetric ±3000 ms
// ambiguity therefore never selects the arbitrarily large offset. The
// winning bin must also hold minimum support or the consensus abstains.
func segmentConsensus(pooled []models.SegmentResult, minSegConf float64) (consensusDecision, bool) {
	var filtered []models.SegmentResult
	for _, s := range pooled {
		if s.Confidence > minSegConf {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return consensusDecision{}, false
	}

	bins := make(map[int]*bin)
	for _, s := range filtered {
		key := int(math.Floor(s.DelayMs / binWidthMs))
		b := bins[key]
		if b == nil {
			b = &bin{}
			bins[key] = b
		}
		b.count++
		b.confSum += s.Confidence
		b.weightSum += s.Confidence
		b.delaySum += s.DelayMs * s.Confidence
	}

	var topScore float64
	for _, b := range bins {
		if s := b.score(); s > topScore {
			topScore = s
		}
	}
	if topScore == 0 {
		return consensusDecision{}, false
	}

	keys := make([]int, 0, len(bins))
	for k := range bins {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	// Tie-break: among near-top bins, smallest absolute delay wins. Exactly
	// mirrored positive/negative bins resolve to the positive one so repeated
	// runs over the same input always pick the same bin.
	var winner *bin
	winnerAbs := math.Inf(1)
	for _, k := range keys {
		b := bins[k]
		if b.score() < nearTopRatio*topScore {
			continue
		}
		a := math.Abs(b.meanDelay())
		if a < winnerAbs || (a == winnerAbs && winner != nil && b.meanDelay() > winner.meanDelay()) {
			winner = b
			winnerAbs = a
		}
	}
	if winner == nil {
		return consensusDecision{}, false
	}

	minSupport := int(math.Ceil(minSupportFraction * float64(len(filtered))))
	if minSupport < minSupportFloor {
		minSupport = minSupportFloor
	}
	if winner.count < minSupport {
		return consensusDecision{}, false
	}

	return consensusDecision{
		delayMs:    winner.meanDelay(),
		confidence: models.Clamp01(winner.confSum / float64(winner.count)),
		tier:       "segment_consensus",
	}, true
}

// weightedAverage combines whatever global estimates are available. The
// correlation estimate is weighted double: it integrates the whole file
// rather than sparse events or coarse chunks.
func weightedAverage(corr *correlation.Result, peaks *anchors.MatchResult, fp *fingerprintOutcome) consensusDecision {
	var delaySum, weightSum, confSum float64

	if corr != nil && corr.Confidence > 0 {
		w := corr.Confidence * 2
		delaySum += corr.DelayMs * w
		confSum += corr.Confidence * w
		weightSum += w
	}
	if peaks != nil && peaks.Confidence > 0 {
		w := peaks.Confidence
		delaySum += peaks.OffsetMs * w
		confSum += peaks.Confidence * w
		weightSum += w
	}
	if fp != nil && fp.hasBest {
		w := fp.best.Confidence
		delaySum += fp.best.DelayMs * w
		confSum += fp.best.Confidence * w
		weightSum += w
	}

	if weightSum == 0 {
		return consensusDecision{tier: "weighted_average"}
	}
	return consensusDecision{
		delayMs:    delaySum / weightSum,
		confidence: models.Clamp01(confSum / weightSum),
		tier:       "weighted_average",
	}
}
