package fintypes

import "finova-core/chain/fixedpoint"

// RewardPerShareScale is spec.md §3/§6's SCALE = 10^12 fixed-point
// precision for the staking accumulator.
const RewardPerShareScale = 1_000_000_000_000

// StakePosition is one user's stake in one StakingPool (spec.md §3).
type StakePosition struct {
	Version uint8
	Owner   Address
	PoolID  uint64

	StakedAmount   uint64
	RewardDebt     fixedpoint.Uint128
	PendingRewards uint64

	LockEndTS     int64
	LastStakeTS   int64
	CompoundCount uint32
}

// StakingPool is a per-reward-program pool (spec.md §3).
type StakingPool struct {
	Version uint8
	ID      uint64

	TotalStaked               uint64
	RewardRatePerSecond       uint64
	AccumulatedRewardPerShare fixedpoint.Uint128
	LastUpdateTS              int64

	StartTS             int64
	EndTS               int64
	LockDurationSeconds int64
	EarlyExitPenaltyBPS uint16
	PerformanceFeeBPS   uint16
	MultiplierBPS       uint16
	StakerCount         uint32
	Status              PoolStatus

	StakeMint  Address
	RewardMint Address
}
