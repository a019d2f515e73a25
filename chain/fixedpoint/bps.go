package fixedpoint

import "math"

// BPSScale is spec.md §3's basis-points scale: 1.0x == 10000.
const BPSScale = 10000

// BPS is a ratio or multiplier carried in basis points. Every multiplier
// in the core formulas (spec.md §4.1) is a BPS value; this distinct type
// keeps basis-point quantities from being mixed with the one ppm-scaled
// field (User.NetworkQualityPPM) by accident, resolving spec.md §9 Open
// Question (c) by construction rather than by convention.
type BPS uint64

// One is 1.0x in basis points.
const One BPS = BPSScale

// MulBPS returns floor(amount * bps / BPSScale), the fixed-point
// replacement for "amount * multiplier" used throughout the Emission
// Engine and Staking Vault. Uses a 128-bit intermediate product so large
// amounts never silently overflow (spec.md §9: "implementers must carry
// ... to avoid silent wrap").
func MulBPS(amount uint64, bps BPS) uint64 {
	return MulDivUint64(amount, uint64(bps), BPSScale)
}

// ComposeBPS multiplies two basis-point ratios, returning the result
// still in basis points: compose(1.2x, 1.5x) == 1.8x. Used to fold the
// Emission Engine's chain of multipliers (finizen × ref_bonus × ... )
// without ever leaving integer basis points.
func ComposeBPS(a, b BPS) BPS {
	return BPS(MulDivUint64(uint64(a), uint64(b), BPSScale))
}

// ClampBPS bounds x to [lo, hi].
func ClampBPS(x, lo, hi BPS) BPS {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// CheckedAddUint64 returns a+b and false if it would overflow.
func CheckedAddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}

// CheckedSubUint64 returns a-b and false if it would underflow.
func CheckedSubUint64(a, b uint64) (uint64, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

// CheckedMulUint64 returns a*b and false if it overflows 64 bits.
func CheckedMulUint64(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	return p, p/a == b
}

// MinUint64 and MaxUint64 are small integer helpers used throughout the
// engines (spec.md formulas lean on max(0, ...) / min(x, cap) repeatedly).
func MinUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func MaxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func MinInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func MaxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// BPSFromFraction converts a float ratio into basis points, used only at
// configuration-load boundaries (genesis/governance parameters), never
// inside a state transition — spec.md §9 forbids floating point in the
// transition itself.
func BPSFromFraction(f float64) BPS {
	if f < 0 {
		f = 0
	}
	return BPS(math.Round(f * BPSScale))
}
