package fixedpoint

import "testing"

func TestMulDivUint64NoOverflow(t *testing.T) {
	got := MulDivUint64(1_000_000_000_000, 1_000_000_000_000, 1_000_000)
	want := uint64(1_000_000_000_000_000_000)
	if got != want {
		t.Fatalf("MulDivUint64 = %d, want %d", got, want)
	}
}

func TestMulBPS(t *testing.T) {
	if got := MulBPS(1000, One); got != 1000 {
		t.Fatalf("1x of 1000 = %d, want 1000", got)
	}
	if got := MulBPS(1000, 15000); got != 1500 {
		t.Fatalf("1.5x of 1000 = %d, want 1500", got)
	}
}

func TestComposeBPS(t *testing.T) {
	got := ComposeBPS(12000, 15000) // 1.2x * 1.5x = 1.8x
	if got != 18000 {
		t.Fatalf("ComposeBPS(1.2x,1.5x) = %d, want 18000", got)
	}
}

func TestUint128MulDiv(t *testing.T) {
	acc := Uint128FromUint64(0)
	reward := MulDivUint64(1000, 100, 1) // reward_rate*elapsed
	scaled := Uint128FromUint64(reward).MulUint64(1_000_000_000_000)
	acc = acc.Add(Uint128{Lo: scaled.DivUint64(10000 /* total_staked */)})
	if acc.Lo == 0 {
		t.Fatalf("expected non-zero accumulator increment")
	}
}

func TestUint128Cmp(t *testing.T) {
	a := Uint128{Hi: 0, Lo: 5}
	b := Uint128{Hi: 0, Lo: 10}
	if a.Cmp(b) != -1 || b.Cmp(a) != 1 || a.Cmp(a) != 0 {
		t.Fatalf("Cmp behaved unexpectedly")
	}
}

func TestRegressionBPSMonotoneDecreasing(t *testing.T) {
	prev := RegressionBPS(0)
	if prev != One {
		t.Fatalf("RegressionBPS(0) = %d, want %d (1.0x, no mining yet)", prev, One)
	}
	for _, n := range []uint64{1000, 10000, 50000, 100000} {
		cur := RegressionBPS(n)
		if cur > prev {
			t.Fatalf("RegressionBPS not monotone decreasing at %d: prev=%d cur=%d", n, prev, cur)
		}
		prev = cur
	}
	if RegressionBPS(100000) > 100 {
		t.Fatalf("expected near-zero regression at whale threshold, got %d bps", RegressionBPS(100000))
	}
}

func TestIntSqrt(t *testing.T) {
	cases := map[uint64]uint64{0: 0, 1: 1, 4: 2, 15: 3, 16: 4, 1_000_000: 1000}
	for in, want := range cases {
		if got := IntSqrt(in); got != want {
			t.Fatalf("IntSqrt(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestOutlierDetectionFlagsSpike(t *testing.T) {
	window := []Sample{100, 102, 98, 101, 99, 97, 100, 103, 99, 101}
	s := ComputeStats(window)
	flags := CombinedOutlierFlags(200, s)
	if flags < 2 {
		t.Fatalf("expected spike at 200 to be flagged by >=2 methods, got %d", flags)
	}
	flags = CombinedOutlierFlags(100, s)
	if flags >= 2 {
		t.Fatalf("expected in-window value 100 to not be an outlier, got %d flags", flags)
	}
}
