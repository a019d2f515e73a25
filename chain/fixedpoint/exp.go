package fixedpoint

import "math"

// regressionStepFIN is the holdings granularity at which the anti-whale
// regression term steps down (spec.md §4.1: "piecewise decrement every
// ~1000 units of holdings").
const regressionStepFIN = 1000

// regressionStepCount covers holdings out to the whale regression
// threshold (100,000 FIN, spec.md §6) with a safety margin; beyond the
// table's range the multiplier has already saturated to its floor.
const regressionStepCount = 128

// regressionTableBPS is exp(-0.001 * n*regressionStepFIN) for n in
// [0, regressionStepCount), precomputed once at package init to the
// spec's stated 0.1x precision. Spec.md §9 forbids floating point
// *inside a state transition*; the table itself is a constant computed
// exactly once at process start, and every transition only ever indexes
// into it — no trigonometric/exponential evaluation happens on the hot
// path.
var regressionTableBPS [regressionStepCount]BPS

func init() {
	for n := 0; n < regressionStepCount; n++ {
		x := 0.001 * float64(n*regressionStepFIN)
		v := math.Exp(-x)
		regressionTableBPS[n] = BPSFromFraction(v)
	}
}

// RegressionBPS returns the anti-whale regression multiplier exp(-0.001 *
// totalMinedFIN) in basis points, per spec.md §4.1. totalMinedFIN is the
// user's cumulative mined amount expressed in whole FIN (micro-FIN / 1e9,
// floored) — the formula's "total_mined_units" is read as whole-FIN units
// so that the named "whale regression threshold" of 100,000 FIN lands at
// the table's tail, where the multiplier has decayed to its floor.
func RegressionBPS(totalMinedFIN uint64) BPS {
	n := totalMinedFIN / regressionStepFIN
	if n >= regressionStepCount {
		return regressionTableBPS[regressionStepCount-1]
	}
	return regressionTableBPS[n]
}
