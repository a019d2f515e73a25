package fintypes

// NetworkState is the single global record of spec.md §3/§4.7/§9 ("no
// ambient singletons" — one named record with explicit init and a
// single admin authority).
type NetworkState struct {
	Version uint8

	CurrentPhase NetworkPhase
	TotalUsers   uint64
	ActiveUsers  uint64
	KYCVerifiedUsers uint64

	BaseMiningRatePerHour uint64 // micro-FIN/hour, phase-indexed
	FinizenBonusCapBPS    uint32
	NetworkQualityScore   uint16 // [0,1000], observer-facing only

	IsPaused bool

	Admin          Address
	EmergencyAuth  Address
	GovernanceAuth Address
}

// PhaseForTotalUsers implements spec.md §4.1/§8's phase boundaries:
// Phase 1 <= 100k, Phase 2 <= 1M, Phase 3 <= 10M, Phase 4 beyond, each
// bound strict-<=.
func PhaseForTotalUsers(totalUsers uint64) NetworkPhase {
	switch {
	case totalUsers <= 100_000:
		return Phase1
	case totalUsers <= 1_000_000:
		return Phase2
	case totalUsers <= 10_000_000:
		return Phase3
	default:
		return Phase4
	}
}
