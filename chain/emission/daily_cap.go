package emission

import "finova-core/chain/fintypes"

// dailyCapTable implements spec.md §4.1's "table keyed by (xp_level
// band, rp_tier band, stake_tier band) returning a micro-unit ceiling
// <= 15 FIN/day". The spec names the table's shape and ceiling but not
// its cell values; this is the gap-filling decision (see DESIGN.md):
// each band contributes a flat FIN increment to a base floor, summed
// and converted to micro-FIN, then clamped by the caller to the 15
// FIN/day ceiling.
const (
	dailyCapFloorFIN = 2 // lowest band: new, unstaked, Explorer-tier user
)

func xpLevelBand(level uint32) uint64 {
	switch {
	case level < 10:
		return 0
	case level < 50:
		return 1
	case level < 100:
		return 2
	default:
		return 3
	}
}

func stakeTierBand(stakedFIN uint64) uint64 {
	switch {
	case stakedFIN < 100:
		return 0
	case stakedFIN < 1_000:
		return 1
	case stakedFIN < 10_000:
		return 2
	default:
		return 3
	}
}

func dailyCapTable(xpLevel uint32, tier fintypes.RPTier, stakeBand uint64) uint64 {
	capFIN := dailyCapFloorFIN + xpLevelBand(xpLevel) + uint64(tier) + stakeBand
	return capFIN * microPerFIN
}
