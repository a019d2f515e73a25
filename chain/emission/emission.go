// Package emission implements the Emission Engine (spec.md §4.1): a
// pure function of user state and global network state producing a
// reward amount and its multiplier breakdown, with anti-whale
// regression and a daily cap. Grounded on the teacher's
// chain/economics/tokenomics.go (TokenomicsEngine's table-driven rate
// lookup, mutex-guarded engine, breakdown-struct return) with the
// arithmetic substance replaced: every multiplier here is carried in
// chain/fixedpoint basis points instead of the teacher's big.Float APY
// math, per spec.md §9's floating-point prohibition.
package emission

import (
	"sync"

	"finova-core/chain/fintypes"
	"finova-core/chain/fixedpoint"
)

const (
	microPerFIN    = 1_000_000_000
	secondsPerHour = 3600
	secondsPerDay  = 86400
)

// rpTierMultiplierBPS is spec.md §4.1's {1.0,1.2,1.5,2.0,3.0} table,
// indexed by fintypes.RPTier.
var rpTierMultiplierBPS = [...]fixedpoint.BPS{
	fintypes.TierExplorer:   10000,
	fintypes.TierConnector:  12000,
	fintypes.TierInfluencer: 15000,
	fintypes.TierLeader:     20000,
	fintypes.TierAmbassador: 30000,
}

// PhaseParams is one row of spec.md §4.1's phase table: base rate per
// hour (micro-FIN) and the finizen bonus cap for that phase.
type PhaseParams struct {
	BaseRatePerHourMicro uint64
	FinizenCapBPS        fixedpoint.BPS
}

// Config holds the phase table and daily-cap policy (spec.md §7 Size
// Budget: "daily cap ... ceiling <= 15 FIN/day").
type Config struct {
	Phases               [5]PhaseParams // index 0 unused, phases are 1-4
	DailyCapCeilingMicro uint64
}

// DefaultConfig matches spec.md §4.1's phase parameters table exactly.
func DefaultConfig() Config {
	return Config{
		Phases: [5]PhaseParams{
			1: {BaseRatePerHourMicro: microPerFIN / 10, FinizenCapBPS: 20000},  // 0.1 FIN, 2.0x
			2: {BaseRatePerHourMicro: microPerFIN / 20, FinizenCapBPS: 15000},  // 0.05 FIN, 1.5x
			3: {BaseRatePerHourMicro: microPerFIN / 40, FinizenCapBPS: 12000},  // 0.025 FIN, 1.2x
			4: {BaseRatePerHourMicro: microPerFIN / 100, FinizenCapBPS: 10000}, // 0.01 FIN, 1.0x
		},
		DailyCapCeilingMicro: 15 * microPerFIN,
	}
}

// RewardBreakdown exposes every multiplier so callers (and tests) can
// inspect the formula's intermediate terms, mirroring the teacher's
// EconomicMetrics-style breakdown return.
type RewardBreakdown struct {
	Hours         uint64
	BaseRateMicro uint64
	FinizenBPS    fixedpoint.BPS
	RefBonusBPS   fixedpoint.BPS
	SecurityBPS   fixedpoint.BPS
	XPMultBPS     fixedpoint.BPS
	RPMultBPS     fixedpoint.BPS
	StakeMultBPS  fixedpoint.BPS
	RegressionBPS fixedpoint.BPS
	CardBonusBPS  fixedpoint.BPS
	RatePerHour   uint64
	RawReward     uint64
	DailyCap      uint64
	FinalReward   uint64
}

// Engine computes rewards. It holds no per-user state; Config is its
// only field, mirroring the teacher's table-driven TokenomicsEngine
// generalized away from the big.Int supply bookkeeping this spec does
// not need.
type Engine struct {
	cfg Config
	mu  sync.RWMutex
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// ComputeReward implements spec.md §4.1's exact formula. stakedFIN is
// the user's staked balance in whole FIN (chain/rpc passes the Staking
// Vault's StakedAmount unchanged);
// cardBonusBPS is the Card Scheduler's already-clamped per-axis mining
// bonus (spec.md §4.4) composed in by the caller. ComputeReward never
// mutates user or net; DebitDailyCap does the only stateful write.
func (e *Engine) ComputeReward(user *fintypes.User, net *fintypes.NetworkState, stakedFIN uint64, cardBonusBPS fixedpoint.BPS, now int64) (RewardBreakdown, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if user.IsSuspended {
		return RewardBreakdown{}, fintypes.ErrSystemState(fintypes.CodeUserSuspended, "user %s is suspended", user.Addr.Hex())
	}
	if now < user.CoolingPeriodEnd {
		return RewardBreakdown{}, fintypes.ErrRateLimited(fintypes.CodeInCoolingPeriod, "user %s is in cooling period until %d", user.Addr.Hex(), user.CoolingPeriodEnd)
	}
	if net.IsPaused {
		return RewardBreakdown{}, fintypes.ErrSystemState(fintypes.CodeNetworkPaused, "network is paused")
	}

	var hours uint64
	if now > user.LastClaimTS {
		hours = uint64(now-user.LastClaimTS) / secondsPerHour
	}

	phase := net.CurrentPhase
	if phase < 1 || int(phase) >= len(e.cfg.Phases) {
		return RewardBreakdown{}, fintypes.ErrConfiguration(fintypes.CodeUnknownTier, "unknown network phase %d", phase)
	}
	params := e.cfg.Phases[phase]

	finizenBPS := finizenBonusBPS(net.TotalUsers, params.FinizenCapBPS)
	refBonusBPS := referralBonusBPS(user.DirectReferralCount)
	securityBPS := fixedpoint.BPS(8000)
	if user.KYCVerified {
		securityBPS = 12000
	}
	xpMultBPS := fixedpoint.One + fixedpoint.BPS(user.XPLevel)*fixedpoint.One/100
	rpMultBPS := rpTierMultiplierBPS[user.RPTierValue]
	stakeMult := stakeMultiplierBPS(stakedFIN)
	regressionBPS := fixedpoint.RegressionBPS(user.TotalMined / microPerFIN)

	rate := params.BaseRatePerHourMicro
	rate = fixedpoint.MulBPS(rate, finizenBPS)
	rate = fixedpoint.MulBPS(rate, refBonusBPS)
	rate = fixedpoint.MulBPS(rate, securityBPS)
	rate = fixedpoint.MulBPS(rate, xpMultBPS)
	rate = fixedpoint.MulBPS(rate, rpMultBPS)
	rate = fixedpoint.MulBPS(rate, stakeMult)
	rate = fixedpoint.MulBPS(rate, regressionBPS)
	rate = fixedpoint.MulBPS(rate, cardBonusBPS)

	rawReward := rate * hours

	cap := e.dailyCapFor(user, stakedFIN)
	credited := creditedToday(user, now)
	remaining := uint64(0)
	if cap > credited {
		remaining = cap - credited
	}
	finalReward := fixedpoint.MinUint64(rawReward, remaining)

	return RewardBreakdown{
		Hours: hours, BaseRateMicro: params.BaseRatePerHourMicro,
		FinizenBPS: finizenBPS, RefBonusBPS: refBonusBPS, SecurityBPS: securityBPS,
		XPMultBPS: xpMultBPS, RPMultBPS: rpMultBPS, StakeMultBPS: stakeMult,
		RegressionBPS: regressionBPS, CardBonusBPS: cardBonusBPS,
		RatePerHour: rate, RawReward: rawReward, DailyCap: cap, FinalReward: finalReward,
	}, nil
}

// DebitDailyCap credits reward into user.PendingRewards and the
// per-day counter, resetting the counter when the calendar day (floor
// now/86400) has changed since CapDay. This is the one stateful write
// ComputeReward itself never performs.
func (e *Engine) DebitDailyCap(user *fintypes.User, reward uint64, now int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	day := now / secondsPerDay
	if user.CapDay != day {
		user.CapDay = day
		user.RewardCreditedToday = 0
	}
	user.RewardCreditedToday += reward
	user.PendingRewards += reward
	user.TotalMined += reward
	user.LastActivityTS = now
}

func (e *Engine) dailyCapFor(user *fintypes.User, stakedFIN uint64) uint64 {
	cap := dailyCapTable(user.XPLevel, user.RPTierValue, stakeTierBand(stakedFIN))
	if cap > e.cfg.DailyCapCeilingMicro {
		cap = e.cfg.DailyCapCeilingMicro
	}
	return cap
}

// creditedToday returns the counter already credited for now's
// calendar day, treating a stale CapDay as zero (not yet reset).
func creditedToday(u *fintypes.User, now int64) uint64 {
	if u.CapDay != now/secondsPerDay {
		return 0
	}
	return u.RewardCreditedToday
}

// finizenBonusBPS implements max(1.0, cap - total_users/1_000_000) in
// basis points: cap - totalUsers/100 (since 1/1_000_000 in bps terms
// is totalUsers*10000/1_000_000 == totalUsers/100), floored at 1.0x.
func finizenBonusBPS(totalUsers uint64, capBPS fixedpoint.BPS) fixedpoint.BPS {
	decay := fixedpoint.BPS(totalUsers / 100)
	if decay >= capBPS {
		return fixedpoint.One
	}
	v := capBPS - decay
	if v < fixedpoint.One {
		return fixedpoint.One
	}
	return v
}

// referralBonusBPS implements 1 + 0.1 * min(direct_referrals, 30).
func referralBonusBPS(directReferrals uint32) fixedpoint.BPS {
	n := uint64(directReferrals)
	if n > 30 {
		n = 30
	}
	return fixedpoint.One + fixedpoint.BPS(n)*1000
}

// stakeMultiplierBPS implements 1 + min(staked_units/1000, 2.0).
func stakeMultiplierBPS(stakedFIN uint64) fixedpoint.BPS {
	ratio := fixedpoint.BPS(stakedFIN) * fixedpoint.One / 1000
	if ratio > 20000 {
		ratio = 20000
	}
	return fixedpoint.One + ratio
}
