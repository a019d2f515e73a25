package staking

import (
	"encoding/binary"

	"finova-core/chain/fintypes"
	"finova-core/chain/fixedpoint"

	"github.com/holiman/uint256"
)

// rewardPerShareDelta computes reward * SCALE / total_staked (spec.md
// §4.2 update_pool) where reward = reward_rate_per_second * elapsed *
// multiplier_bps / 10000. The intermediate product can exceed 64 bits
// well before the final per-share delta does, so the multiplication
// chain runs in 256-bit arithmetic (github.com/holiman/uint256, the
// same library the teacher's chain/types/transaction.go uses for wei
// amounts) and is narrowed back to the accumulator's declared 128-bit
// width only at the end, with an explicit overflow check rather than
// a silent truncation.
func rewardPerShareDelta(rewardRatePerSecond, elapsed, totalStaked uint64, multiplierBPS uint16) (fixedpoint.Uint128, error) {
	reward := new(uint256.Int).Mul(uint256.NewInt(rewardRatePerSecond), uint256.NewInt(elapsed))
	reward.Mul(reward, uint256.NewInt(uint64(multiplierBPS)))
	reward.Div(reward, uint256.NewInt(fixedpoint.BPSScale))

	numerator := new(uint256.Int).Mul(reward, uint256.NewInt(fintypes.RewardPerShareScale))
	delta := new(uint256.Int).Div(numerator, uint256.NewInt(totalStaked))

	b := delta.Bytes32()
	for i := 0; i < 16; i++ {
		if b[i] != 0 {
			return fixedpoint.Uint128{}, fintypes.ErrArithmetic(fintypes.CodeMathOverflow, "reward-per-share delta exceeds 128 bits")
		}
	}
	return fixedpoint.Uint128{
		Hi: binary.BigEndian.Uint64(b[16:24]),
		Lo: binary.BigEndian.Uint64(b[24:32]),
	}, nil
}

func uint256FromUint128(u fixedpoint.Uint128) *uint256.Int {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], u.Hi)
	binary.BigEndian.PutUint64(b[8:16], u.Lo)
	return new(uint256.Int).SetBytes(b)
}

// settledReward computes staked_amount * accumulated_reward_per_share
// / SCALE (spec.md §4.2's deposit/withdraw settlement term). The
// product can exceed 128 bits before the division narrows it back
// down, so it also runs through uint256.
func settledReward(stakedAmount uint64, accum fixedpoint.Uint128) (fixedpoint.Uint128, error) {
	prod := new(uint256.Int).Mul(uint256.NewInt(stakedAmount), uint256FromUint128(accum))
	result := new(uint256.Int).Div(prod, uint256.NewInt(fintypes.RewardPerShareScale))

	b := result.Bytes32()
	for i := 0; i < 16; i++ {
		if b[i] != 0 {
			return fixedpoint.Uint128{}, fintypes.ErrArithmetic(fintypes.CodeMathOverflow, "settled reward exceeds 128 bits")
		}
	}
	return fixedpoint.Uint128{
		Hi: binary.BigEndian.Uint64(b[16:24]),
		Lo: binary.BigEndian.Uint64(b[24:32]),
	}, nil
}
