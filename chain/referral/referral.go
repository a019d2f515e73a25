// Package referral implements the Referral Graph (spec.md §4.3): cycle-safe
// registration, three-level RP accrual from downstream activity, tier
// assignment with one-shot upgrade bonuses, and the network-quality
// regression applied to referral-chain reward calculations.
//
// Grounded on chain/governance/governance.go's ValidatorSet voting-power
// rollup (tree bookkeeping over a flat map, mutex-guarded mutation
// methods), repurposed from validator voting weight to referral-point
// accrual.
package referral

import (
	"finova-core/chain/fintypes"
	"finova-core/chain/fixedpoint"
)

// ActivityKind names a downstream event that accrues RP to a referral
// chain (spec.md §4.3 "Base RP").
type ActivityKind uint8

const (
	ActivityNewReferral ActivityKind = iota
	ActivityReferralCompletesKYC
	ActivityReferralFirstMine
	ActivityDownstreamXP
	ActivityDownstreamMining
)

// baseRP returns base_rp(activity) for the fixed-amount events, or zero
// for the percentage-of-amount events (XP gain, mining) whose base is
// computed directly in AccrueRP from the amount parameter.
func baseRP(kind ActivityKind) uint64 {
	switch kind {
	case ActivityNewReferral:
		return 100
	case ActivityReferralCompletesKYC:
		return 100
	case ActivityReferralFirstMine:
		return 25
	default:
		return 0
	}
}

// Config holds the tier ladder, one-shot upgrade bonuses, and per-tier
// referral caps. Tier thresholds and max_referrals_for_tier come
// straight from spec.md §4.3; tier_upgrade_bonus only names the
// Influencer value (1500 RP, scenario S6) — the remaining tiers are a
// gap-filling decision (see DESIGN.md).
type Config struct {
	// TierThresholds[i] is the cumulative RP at which tier i+1 begins.
	// TierThresholds[0] is Connector's floor, ... TierThresholds[3] is Ambassador's.
	TierThresholds [4]uint64

	// TierUpgradeBonus[t] is the one-shot RP credit awarded the instant
	// rp_tier transitions to t. Index 0 (Explorer) is unused: a user
	// starts there, never "transitions" into it.
	TierUpgradeBonus [5]uint64

	// MaxReferralsForTier[t] bounds direct_referral_count while the
	// referrer is at tier t. Zero means unbounded (Ambassador).
	MaxReferralsForTier [5]uint32
}

func DefaultConfig() Config {
	return Config{
		TierThresholds:      [4]uint64{1000, 5000, 15000, 50000},
		TierUpgradeBonus:    [5]uint64{0, 250, 1500, 5000, 15000},
		MaxReferralsForTier: [5]uint32{10, 25, 50, 100, 0},
	}
}

// Engine drives referral registration, RP accrual, and tier transitions.
// Like chain/staking.Engine and chain/emission.Engine it holds no user
// state of its own; callers pass the User records to mutate.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// AncestorLookup resolves a user's referrer record by address, or nil if
// the address has no referrer (or is the zero address).
type AncestorLookup func(addr fintypes.Address) (*fintypes.User, error)

// RegisterReferral attaches referee to referrer, after two checks:
// referrer must not already be at its tier's referral cap, and
// referrer's own ancestor chain must not contain referee (no cycles).
func (e *Engine) RegisterReferral(referee, referrer *fintypes.User, lookup AncestorLookup) error {
	if referrer.Addr == referee.Addr {
		return fintypes.ErrInvariant(fintypes.CodeCyclicReferral, "user cannot refer itself")
	}

	cap := e.cfg.MaxReferralsForTier[referrer.RPTierValue]
	if cap > 0 && referrer.DirectReferralCount >= cap {
		return fintypes.ErrInvariant(fintypes.CodeReferralCapExceeded, "referrer %x at cap %d for tier %s", referrer.Addr, cap, referrer.RPTierValue)
	}

	cursor := referrer
	for depth := 0; depth < fintypes.MaxReferralWalkDepth; depth++ {
		if cursor.Referrer == fintypes.ZeroAddress {
			break
		}
		if cursor.Referrer == referee.Addr {
			return fintypes.ErrInvariant(fintypes.CodeCyclicReferral, "registering referee %x under %x would create a cycle", referee.Addr, referrer.Addr)
		}
		next, err := lookup(cursor.Referrer)
		if err != nil {
			return err
		}
		if next == nil {
			break
		}
		cursor = next
	}

	referee.Referrer = referrer.Addr
	referrer.DirectReferralCount++
	return nil
}

// l1RP computes base_rp(activity, amount) * network_quality(referrer) *
// tier_mult(referrer) — spec.md §4.3's L1 formula.
func (e *Engine) l1RP(referrer *fintypes.User, kind ActivityKind, amount uint64) uint64 {
	var base uint64
	switch kind {
	case ActivityDownstreamXP:
		base = fixedpoint.MulDivUint64(amount, 5, 100) // 5% of XP
	case ActivityDownstreamMining:
		base = fixedpoint.MulDivUint64(amount, 10, 100) // 10% of micro-FIN mined
	default:
		base = baseRP(kind)
	}

	qualityBPS := fixedpoint.BPS(fixedpoint.MulDivUint64(uint64(referrer.NetworkQualityPPM), fixedpoint.BPSScale, 1_000_000))
	tierMultBPS := tierMultiplierBPS(referrer.RPTierValue)
	return fixedpoint.MulBPS(fixedpoint.MulBPS(base, qualityBPS), tierMultBPS)
}

// tierMultiplierBPS scales L1 RP by the referrer's own standing: higher
// tiers compound their downstream referrals slightly faster. Explorer is
// the 1x baseline; each tier above adds 10%.
func tierMultiplierBPS(tier fintypes.RPTier) fixedpoint.BPS {
	return fixedpoint.One + fixedpoint.BPS(tier)*1000
}

// AccrueRP implements spec.md §4.3's three-level rollup: l1 is the
// direct referrer (required), l2 and l3 may be nil if the chain is
// shorter than three levels. Each user that crosses a tier threshold
// receives its one-shot upgrade bonus before the next activity is
// processed (RP gain itself can trigger at most one upgrade, per the
// monotonic tier invariant).
func (e *Engine) AccrueRP(l1, l2, l3 *fintypes.User, kind ActivityKind, amount uint64, now int64) {
	gain1 := e.l1RP(l1, kind, amount)
	e.creditRP(l1, gain1, now)

	if l2 != nil {
		gain2 := fixedpoint.MulDivUint64(gain1, 30, 100)
		e.creditRP(l2, gain2, now)
	}
	if l3 != nil {
		gain3 := fixedpoint.MulDivUint64(gain1, 10, 100)
		e.creditRP(l3, gain3, now)
	}
}

func (e *Engine) creditRP(u *fintypes.User, gain uint64, now int64) {
	if gain == 0 {
		return
	}
	u.RPTotal += gain
	u.LastActivityTS = now
	e.maybeUpgradeTier(u)
}

// TierForRP returns the tier that cumulative rp belongs to.
func (e *Engine) TierForRP(rp uint64) fintypes.RPTier {
	tier := fintypes.TierExplorer
	for i, threshold := range e.cfg.TierThresholds {
		if rp >= threshold {
			tier = fintypes.RPTier(i + 1)
		}
	}
	return tier
}

// maybeUpgradeTier fires the one-shot upgrade bonus exactly once per
// crossing: spec.md §4.3 "on crossing a threshold, fire one-shot bonus
// and update rp_tier", and scenario S6's "updated once, not again on
// further earnings within tier."
func (e *Engine) maybeUpgradeTier(u *fintypes.User) {
	target := e.TierForRP(u.RPTotal)
	if target <= u.RPTierValue {
		return
	}
	u.RPTierValue = target
	u.RPTotal += e.cfg.TierUpgradeBonus[target]
}

// NetworkRegressionBPS implements spec.md §4.3's network regression:
// clamp(1000*(1+x+x²/2), 50, 1000)/1000 where x = -0.0001 *
// network_size * quality, expressed in basis points (scale 10000) to
// match every other multiplier in the codebase.
//
// The intermediate terms are carried at micro scale (10^6) through
// fixedpoint.MulDivUint64's 128-bit-safe division so neither the
// network_size*quality product nor its square silently wraps.
func NetworkRegressionBPS(networkSize uint64, qualityPPM uint32) fixedpoint.BPS {
	xMagMicro := fixedpoint.MulDivUint64(networkSize, uint64(qualityPPM), 10_000)
	x2Micro := fixedpoint.MulDivUint64(xMagMicro, xMagMicro, 1_000_000)

	termMicro := int64(1_000_000) - int64(xMagMicro) + int64(x2Micro)/2

	milli := termMicro * 1000 / 1_000_000
	if milli < 50 {
		milli = 50
	}
	if milli > 1000 {
		milli = 1000
	}
	return fixedpoint.BPS(milli * 10)
}

// NetworkQualityPPM implements spec.md §4.3's "active_ratio ×
// (avg_level/100) × retention, clamped to [0.1, 2.0]", with
// activeRatioBPS and retentionBPS given as basis points in [0, 10000]
// and avgLevel as a plain level (divided by 100 here, so level 100 is
// 1.0×), and the result stored in the ppm scale User.NetworkQualityPPM
// already uses.
func NetworkQualityPPM(activeRatioBPS, avgLevel, retentionBPS fixedpoint.BPS) uint32 {
	avgLevelBPS := fixedpoint.BPS(fixedpoint.MulDivUint64(uint64(avgLevel), fixedpoint.BPSScale, 100))
	q := fixedpoint.ComposeBPS(fixedpoint.ComposeBPS(activeRatioBPS, avgLevelBPS), retentionBPS)
	q = fixedpoint.ClampBPS(q, 1000, 20000) // [0.1x, 2.0x] in basis points
	return uint32(fixedpoint.MulDivUint64(uint64(q), 1_000_000, fixedpoint.BPSScale))
}
