// Package staking implements the Staking Vault (spec.md §4.2): the
// classic MasterChef per-share accumulator, generalized from the
// teacher's chain/consensus/multi_validator_consensus.go stake/
// delegation bookkeeping (mutex-guarded mutation methods on a shared
// state struct) to reward-per-share accounting instead of voting
// power.
package staking

import (
	"sync"

	"finova-core/chain/fintypes"
	"finova-core/chain/fixedpoint"
)

// Engine drives StakingPool/StakePosition transitions. It holds no
// pool state itself — pools and positions are passed in by the caller,
// per spec.md §9 "no ambient singletons" — only the mutex that
// serializes concurrent callers touching the same pool.
type Engine struct {
	mu sync.Mutex
}

func NewEngine() *Engine {
	return &Engine{}
}

// UpdatePool implements spec.md §4.2's update_pool: accrues reward
// into the per-share accumulator for the elapsed time since its last
// update, capped at the pool's end time.
func (e *Engine) UpdatePool(pool *fintypes.StakingPool, now int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updatePoolLocked(pool, now)
}

func (e *Engine) updatePoolLocked(pool *fintypes.StakingPool, now int64) error {
	if pool.TotalStaked == 0 || now <= pool.LastUpdateTS {
		pool.LastUpdateTS = now
		return nil
	}
	effectiveNow := fixedpoint.MinInt64(now, pool.EndTS)
	elapsed := effectiveNow - pool.LastUpdateTS
	if elapsed <= 0 {
		pool.LastUpdateTS = now
		return nil
	}

	delta, err := rewardPerShareDelta(pool.RewardRatePerSecond, uint64(elapsed), pool.TotalStaked, pool.MultiplierBPS)
	if err != nil {
		return err
	}
	pool.AccumulatedRewardPerShare = pool.AccumulatedRewardPerShare.Add(delta)
	pool.LastUpdateTS = now
	return nil
}

// settlePending folds any newly accrued reward into pos.PendingRewards
// and advances pos.RewardDebt to the pool's current accumulator,
// implementing the settle step shared by deposit/withdraw/claim.
func settlePending(pool *fintypes.StakingPool, pos *fintypes.StakePosition) error {
	if pos.StakedAmount > 0 {
		settled, err := settledReward(pos.StakedAmount, pool.AccumulatedRewardPerShare)
		if err != nil {
			return err
		}
		if settled.Cmp(pos.RewardDebt) > 0 {
			pos.PendingRewards += settled.Sub(pos.RewardDebt).Uint64()
		}
		pos.RewardDebt = settled
	}
	return nil
}

// Deposit implements spec.md §4.2's deposit: settle pending at the old
// balance, increase stake, re-baseline reward_debt, and extend the
// lock.
func (e *Engine) Deposit(pool *fintypes.StakingPool, pos *fintypes.StakePosition, amount uint64, now int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pool.Status != fintypes.PoolActive {
		return fintypes.ErrInvariant(fintypes.CodePoolInactive, "pool %d is not active", pool.ID)
	}
	if pool.StartTS != 0 && now < pool.StartTS {
		return fintypes.ErrInvariant(fintypes.CodeNotStarted, "pool %d has not started", pool.ID)
	}
	if pool.EndTS != 0 && now > pool.EndTS {
		return fintypes.ErrInvariant(fintypes.CodeEnded, "pool %d has ended", pool.ID)
	}
	if amount == 0 {
		return fintypes.ErrInvariant(fintypes.CodeInsufficientStake, "deposit amount must be non-zero")
	}

	if err := e.updatePoolLocked(pool, now); err != nil {
		return err
	}
	if err := settlePending(pool, pos); err != nil {
		return err
	}

	pos.StakedAmount += amount
	pool.TotalStaked += amount

	settled, err := settledReward(pos.StakedAmount, pool.AccumulatedRewardPerShare)
	if err != nil {
		return err
	}
	pos.RewardDebt = settled

	lockEnd := now + pool.LockDurationSeconds
	pos.LockEndTS = fixedpoint.MaxInt64(pos.LockEndTS, lockEnd)
	pos.LastStakeTS = now
	return nil
}

// Withdraw implements spec.md §4.2's withdraw: settle, reduce balance,
// rebaseline debt. A withdraw before pos.LockEndTS is rejected unless
// emergency-authorized; the early-exit penalty applies when fewer than
// pool.LockDurationSeconds have passed since pos.LastStakeTS.
func (e *Engine) Withdraw(pool *fintypes.StakingPool, pos *fintypes.StakePosition, amount uint64, now int64, emergencyAuthorized bool) (payout, penalty uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount > pos.StakedAmount {
		return 0, 0, fintypes.ErrInvariant(fintypes.CodeInsufficientStake, "withdraw amount %d exceeds staked %d", amount, pos.StakedAmount)
	}
	if now < pos.LockEndTS && !emergencyAuthorized {
		return 0, 0, fintypes.ErrInvariant(fintypes.CodeStillLocked, "position locked until %d", pos.LockEndTS)
	}

	if err := e.updatePoolLocked(pool, now); err != nil {
		return 0, 0, err
	}
	if err := settlePending(pool, pos); err != nil {
		return 0, 0, err
	}

	pos.StakedAmount -= amount
	pool.TotalStaked -= amount

	settled, err := settledReward(pos.StakedAmount, pool.AccumulatedRewardPerShare)
	if err != nil {
		return 0, 0, err
	}
	pos.RewardDebt = settled

	payout = amount
	if now-pos.LastStakeTS < pool.LockDurationSeconds {
		penalty = fixedpoint.MulBPS(amount, fixedpoint.BPS(pool.EarlyExitPenaltyBPS))
		payout -= penalty
	}
	return payout, penalty, nil
}

// Claim implements spec.md §4.2's claim: settle, pay out pending minus
// the performance fee, and zero the position's pending balance.
func (e *Engine) Claim(pool *fintypes.StakingPool, pos *fintypes.StakePosition, now int64) (payout, fee uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.updatePoolLocked(pool, now); err != nil {
		return 0, 0, err
	}
	if err := settlePending(pool, pos); err != nil {
		return 0, 0, err
	}
	if pos.PendingRewards == 0 {
		return 0, 0, fintypes.ErrInvariant(fintypes.CodeInsufficientRewards, "position has no pending rewards")
	}

	fee = fixedpoint.MulBPS(pos.PendingRewards, fixedpoint.BPS(pool.PerformanceFeeBPS))
	payout = pos.PendingRewards - fee
	pos.PendingRewards = 0
	return payout, fee, nil
}

// Compound implements spec.md §4.2's compound: only legal when the
// pool's stake and reward mints are the same asset, since it moves
// pending reward directly into staked balance.
func (e *Engine) Compound(pool *fintypes.StakingPool, pos *fintypes.StakePosition, now int64) (compounded uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pool.StakeMint != pool.RewardMint {
		return 0, fintypes.ErrInvariant(fintypes.CodeCompoundUnsupported, "pool %d does not support compounding (stake/reward mint differ)", pool.ID)
	}

	if err := e.updatePoolLocked(pool, now); err != nil {
		return 0, err
	}
	if err := settlePending(pool, pos); err != nil {
		return 0, err
	}
	if pos.PendingRewards == 0 {
		return 0, nil
	}

	compounded = pos.PendingRewards
	pos.PendingRewards = 0
	pos.StakedAmount += compounded
	pool.TotalStaked += compounded
	pos.CompoundCount++

	settled, err := settledReward(pos.StakedAmount, pool.AccumulatedRewardPerShare)
	if err != nil {
		return 0, err
	}
	pos.RewardDebt = settled
	return compounded, nil
}
