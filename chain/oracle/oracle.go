// Package oracle implements the Oracle Aggregator (spec.md §4.6):
// submission validation, combined outlier detection over a rolling
// window, weighted aggregation, exponential smoothing, confidence
// decay, circuit breaker, and validator reward/reputation feedback.
//
// Grounded on chain/monitoring/metrics.go's rolling-window DataCollector
// pattern for the submission window, and chain/crypto/aggregation.go's
// weighting/bitmap bookkeeping, repurposed from signature aggregation to
// price-sample weighting.
package oracle

import (
	"finova-core/chain/fintypes"
	"finova-core/chain/fixedpoint"
)

// Config holds the Oracle Aggregator's tunable thresholds (spec.md §4.6).
type Config struct {
	MinSources        int
	MinConfidenceBPS  uint16
	MaxDeviationBPS   uint16 // cross-source check margin is 2x this
	BreakerThresholdBPS uint16
	SmoothingPeriod   uint64 // samples, used in alpha = 2/(period+1)
	ReputationPenaltyBPS uint16
	BaseValidatorReward  uint64
}

func DefaultConfig() Config {
	return Config{
		MinSources:           3,
		MinConfidenceBPS:     5000, // 50%
		MaxDeviationBPS:      500,  // 5%
		BreakerThresholdBPS:  2000, // 20%
		SmoothingPeriod:      14,
		ReputationPenaltyBPS: 500,
		BaseValidatorReward:  1_000_000, // 1 FIN in micro-FIN
	}
}

// Submission is one validator's price observation across its sources.
type Submission struct {
	ValidatorIndex uint8
	Price          uint64
	ConfidenceBPS  uint16
	StalenessSec   int64
	SourcePrices   []uint64 // per-exchange prices contributing to Price
	SubmittedTS    int64
}

// Engine runs submission validation, aggregation, and circuit-breaker
// logic. It holds no feed state; callers pass the PriceFeed/ValidatorSet
// to mutate.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// ValidateSubmission implements spec.md §4.6's submission validation:
// staleness, confidence floor, minimum distinct sources, and the
// cross-source deviation check.
func (e *Engine) ValidateSubmission(feed *fintypes.PriceFeed, sub Submission) error {
	if sub.StalenessSec > feed.MaxStalenessSeconds {
		return fintypes.ErrStaleness(fintypes.CodeStaleTimestamp, "submission staleness %ds exceeds max %ds", sub.StalenessSec, feed.MaxStalenessSeconds)
	}
	if sub.ConfidenceBPS < e.cfg.MinConfidenceBPS {
		return fintypes.ErrInvariant(fintypes.CodeBadThreshold, "confidence %d below minimum %d", sub.ConfidenceBPS, e.cfg.MinConfidenceBPS)
	}
	if len(sub.SourcePrices) < e.cfg.MinSources {
		return fintypes.ErrInvariant(fintypes.CodeBadThreshold, "%d sources below minimum %d", len(sub.SourcePrices), e.cfg.MinSources)
	}

	var sum uint64
	for _, p := range sub.SourcePrices {
		sum += p
	}
	mean := sum / uint64(len(sub.SourcePrices))
	margin := uint16(2) * e.cfg.MaxDeviationBPS
	for _, p := range sub.SourcePrices {
		if deviationBPS(p, mean) > margin {
			return fintypes.ErrInvariant(fintypes.CodeBadThreshold, "source price %d deviates more than %d bps from mean %d", p, margin, mean)
		}
	}
	return nil
}

func deviationBPS(x, ref uint64) uint16 {
	if ref == 0 {
		return 0
	}
	var diff uint64
	if x > ref {
		diff = x - ref
	} else {
		diff = ref - x
	}
	return uint16(fixedpoint.MulDivUint64(diff, fixedpoint.BPSScale, ref))
}

// IsOutlier implements spec.md §4.6's combined outlier detection: a
// submission is an outlier when 2 or more of the 4 statistical methods
// flag it against the rolling window's stats.
func IsOutlier(price uint64, window []uint64) bool {
	if len(window) < 10 {
		return false
	}
	stats := fixedpoint.ComputeStats(window)
	return fixedpoint.CombinedOutlierFlags(price, stats) >= 2
}

// recencyWeightBPS decays linearly over one hour, floored at 10%
// (spec.md §4.6 "recency_weight(age)").
func recencyWeightBPS(ageSeconds int64) fixedpoint.BPS {
	const oneHour = 3600
	if ageSeconds <= 0 {
		return fixedpoint.One
	}
	if ageSeconds >= oneHour {
		return fixedpoint.BPS(1000) // 10% floor
	}
	decay := fixedpoint.MulDivUint64(uint64(ageSeconds), uint64(fixedpoint.BPSScale-1000), oneHour)
	return fixedpoint.BPS(uint64(fixedpoint.BPSScale) - decay)
}

// confidenceWeightBPS is "conf × factor / 10000 capped at 2x"; factor is
// taken as 1.0x (10000), so this reduces to conf itself, capped at 2x.
func confidenceWeightBPS(confidenceBPS uint16) fixedpoint.BPS {
	return fixedpoint.ClampBPS(fixedpoint.BPS(confidenceBPS), 0, 2*fixedpoint.BPSScale)
}

// weight combines source_weight x recency_weight x confidence_weight
// (spec.md §4.6 "Aggregation").
func weight(sourceWeightBPS uint16, ageSeconds int64, confidenceBPS uint16) uint64 {
	w := fixedpoint.ComposeBPS(fixedpoint.BPS(sourceWeightBPS), recencyWeightBPS(ageSeconds))
	w = fixedpoint.ComposeBPS(w, confidenceWeightBPS(confidenceBPS))
	return uint64(w)
}

// Aggregate implements spec.md §4.6's weighted-mean aggregation over the
// surviving (non-outlier) submissions, each carrying its source weight
// and age at evaluation time now.
func Aggregate(survivors []Submission, sourceWeightBPS []uint16, now int64) uint64 {
	var weightedSum, totalWeight uint64
	for i, s := range survivors {
		age := now - s.SubmittedTS
		w := weight(sourceWeightBPS[i], age, s.ConfidenceBPS)
		weightedSum += w * s.Price
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// Smooth implements spec.md §4.6's exponential smoothing: new_price =
// alpha*candidate + (1-alpha)*current, alpha = 2/(period+1).
func Smooth(current, candidate uint64, smoothingPeriod uint64) uint64 {
	alphaBPS := fixedpoint.BPS(fixedpoint.MulDivUint64(2, fixedpoint.BPSScale, smoothingPeriod+1))
	return fixedpoint.MulBPS(candidate, alphaBPS) + fixedpoint.MulBPS(current, fixedpoint.One-alphaBPS)
}

// DecayConfidence implements spec.md §4.6's "adjusted = raw *
// decay(time_since_update), floor 10%", reusing the same linear-over-
// one-hour decay curve as recency weighting.
func DecayConfidence(rawConfidenceBPS uint16, secondsSinceUpdate int64) uint16 {
	return uint16(fixedpoint.MulBPS(uint64(rawConfidenceBPS), recencyWeightBPS(secondsSinceUpdate)))
}

// ApplyUpdate implements the full per-update pipeline. The circuit
// breaker is evaluated against the raw aggregated candidate_price, not
// the smoothed new_price: spec.md §8 scenario S4 ("submission
// aggregates to 125 -> ΔP/P=25% -> breaker trips") checks the move
// before smoothing would otherwise dampen it — smoothing a move the
// breaker should catch would let a manipulated feed slip through at a
// fraction of its true deviation.
func (e *Engine) ApplyUpdate(feed *fintypes.PriceFeed, candidate uint64, now int64) error {
	if feed.CircuitBreaker == fintypes.CircuitHalted {
		return fintypes.ErrSystemState(fintypes.CodeCircuitHalted, "feed %s is halted", feed.Symbol)
	}

	if feed.CurrentPrice > 0 && deviationBPS(candidate, feed.CurrentPrice) > e.cfg.BreakerThresholdBPS {
		feed.CircuitBreaker = fintypes.CircuitHalted
		feed.CircuitTrippedAtTS = now
		return fintypes.ErrSystemState(fintypes.CodeCircuitHalted, "price move %d bps exceeds breaker threshold %d bps", deviationBPS(candidate, feed.CurrentPrice), e.cfg.BreakerThresholdBPS)
	}

	newPrice := Smooth(feed.CurrentPrice, candidate, e.cfg.SmoothingPeriod)
	feed.PreviousPrice = feed.CurrentPrice
	feed.CurrentPrice = newPrice
	feed.LastUpdateTS = now
	return nil
}

// ResetCircuitBreaker requires emergency authority (enforced by the
// caller); it restores normal feed operation after a trip.
func ResetCircuitBreaker(feed *fintypes.PriceFeed) {
	feed.CircuitBreaker = fintypes.CircuitNormal
	feed.CircuitTrippedAtTS = 0
}

// QualityScore implements spec.md §4.6's observer-facing quality in
// [0,1] (returned as basis points): combines the outlier ratio,
// coefficient of variation, and sample-size confidence, each
// contributing equally.
func QualityScore(window []uint64, outlierCount, totalSubmissions int) fixedpoint.BPS {
	if totalSubmissions == 0 {
		return 0
	}
	outlierRatioBPS := fixedpoint.BPS(fixedpoint.MulDivUint64(uint64(outlierCount), fixedpoint.BPSScale, uint64(totalSubmissions)))
	outlierComponent := fixedpoint.One - fixedpoint.ClampBPS(outlierRatioBPS, 0, fixedpoint.One)

	stats := fixedpoint.ComputeStats(window)
	var cvComponent fixedpoint.BPS = fixedpoint.One
	if stats.Mean > 0 {
		cvBPS := fixedpoint.BPS(fixedpoint.MulDivUint64(stats.StdDev, fixedpoint.BPSScale, stats.Mean))
		cvComponent = fixedpoint.One - fixedpoint.ClampBPS(cvBPS, 0, fixedpoint.One)
	}

	sampleSizeComponent := fixedpoint.ClampBPS(fixedpoint.BPS(fixedpoint.MulDivUint64(uint64(len(window)), fixedpoint.BPSScale, fintypes.MaxPriceSamples)), 0, fixedpoint.One)

	return (outlierComponent + cvComponent + sampleSizeComponent) / 3
}

// ValidatorReward implements spec.md §4.6's "base * (conf_pct +
// accuracy_pct + reputation_pct)/3, capped at 2x base; on outlier, pays
// 10% base". accuracyBPS measures how close the submission landed to
// the final aggregated price.
func (e *Engine) ValidatorReward(isOutlier bool, confidenceBPS, accuracyBPS, reputationBPS uint16) uint64 {
	if isOutlier {
		return fixedpoint.MulBPS(e.cfg.BaseValidatorReward, 1000) // 10%
	}
	avgBPS := (uint64(confidenceBPS) + uint64(accuracyBPS) + uint64(reputationBPS)) / 3
	reward := fixedpoint.MulBPS(e.cfg.BaseValidatorReward, fixedpoint.BPS(avgBPS))
	cap := fixedpoint.MulBPS(e.cfg.BaseValidatorReward, 2*fixedpoint.BPSScale)
	return fixedpoint.MinUint64(reward, cap)
}

// PenalizeReputation implements "outliers reduce the submitting
// validator's reputation by a fixed penalty" (spec.md §4.6).
func (e *Engine) PenalizeReputation(v *fintypes.ValidatorEntry) {
	if v.Reputation > e.cfg.ReputationPenaltyBPS {
		v.Reputation -= e.cfg.ReputationPenaltyBPS
	} else {
		v.Reputation = 0
	}
}
