package fintypes

// RPTier is a referral-point tier, monotonic in cumulative RP (spec.md §3, §4.3).
type RPTier uint8

const (
	TierExplorer RPTier = iota
	TierConnector
	TierInfluencer
	TierLeader
	TierAmbassador
)

func (t RPTier) String() string {
	switch t {
	case TierExplorer:
		return "Explorer"
	case TierConnector:
		return "Connector"
	case TierInfluencer:
		return "Influencer"
	case TierLeader:
		return "Leader"
	case TierAmbassador:
		return "Ambassador"
	default:
		return "Unknown"
	}
}

// CardType names a boost-card axis (spec.md §3 CardInstance).
type CardType uint8

const (
	CardMiningBoost CardType = iota
	CardXPAccelerator
	CardReferralPower
	CardNetworkAmplifier
	CardGuildPower
	CardStreakSaver
	CardLevelRush
)

// Rarity bounds a card's multiplier and its use-cooldown (spec.md §4.4).
type Rarity uint8

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
)

// NetworkPhase is the four-phase emission schedule of spec.md §4.1.
type NetworkPhase uint8

const (
	Phase1 NetworkPhase = 1
	Phase2 NetworkPhase = 2
	Phase3 NetworkPhase = 3
	Phase4 NetworkPhase = 4
)

// PoolStatus is a StakingPool's lifecycle state (spec.md §3 StakingPool).
type PoolStatus uint8

const (
	PoolActive PoolStatus = iota
	PoolPaused
	PoolClosed
	PoolEmergency
)

// CircuitState is an oracle feed's circuit-breaker state (spec.md §3 PriceFeed).
type CircuitState uint8

const (
	CircuitNormal CircuitState = iota
	CircuitWarning
	CircuitHalted
)

// BridgeStatus is a LockedTokens entry's one-way state machine (spec.md §4.5).
type BridgeStatus uint8

const (
	BridgeLocked BridgeStatus = iota
	BridgeReadyToUnlock
	BridgeUnlocked
	BridgeCancelled
	BridgePausedState
	BridgeFailed
)

func (s BridgeStatus) String() string {
	switch s {
	case BridgeLocked:
		return "Locked"
	case BridgeReadyToUnlock:
		return "ReadyToUnlock"
	case BridgeUnlocked:
		return "Unlocked"
	case BridgeCancelled:
		return "Cancelled"
	case BridgePausedState:
		return "Paused"
	case BridgeFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
