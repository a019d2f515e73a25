package fintypes

const (
	// MaxActiveCardSlots is the per-user bound on concurrent boost cards (spec.md §6).
	MaxActiveCardSlots = 5
	// MaxReferralWalkDepth bounds the ancestor walk used for cycle detection (spec.md §9).
	MaxReferralWalkDepth = 32
)

// CardInstance is a consumed boost card with a wall-clock lifetime
// (spec.md §3 CardInstance).
type CardInstance struct {
	Version        uint8
	CardType       CardType
	Rarity         Rarity
	MultiplierBPS  uint16
	ExpiryTS       int64
	SingleUse      bool
	Consumed       bool
}

// Active reports whether the card still contributes a multiplier at now:
// not consumed, and not yet past its expiry.
func (c CardInstance) Active(now int64) bool {
	return !c.Consumed && now < c.ExpiryTS
}

// User is one ledger participant, keyed by Address (spec.md §3 User).
type User struct {
	Version uint8
	Addr    Address

	XPTotal           uint64
	XPLevel           uint32
	CurrentStreakDays uint32
	LastActivityTS    int64

	RPTotal             uint64
	RPTierValue         RPTier
	DirectReferralCount uint32
	NetworkQualityPPM   uint32 // canonical ppm representation, see DESIGN.md Open Question (a)

	Referrer Address // ZeroAddress if none; a weak back-ref, not ownership

	KYCVerified       bool
	BotFlags          uint32
	CoolingPeriodEnd  int64
	IsSuspended       bool

	TotalMined     uint64
	LastClaimTS    int64
	PendingRewards uint64

	RewardCreditedToday uint64 // resets when CapDay changes (spec.md §4.1 "cap resets at floor(now/86400) change")
	CapDay              int64

	ActiveCardSlots [MaxActiveCardSlots]CardInstance
	ActiveCardCount uint8

	StreakProtectionUntilTS int64 // StreakSaver card effect; current streak is not reset while now < this

	CardsUsedCount uint32
	LastCardUseTS  int64
}

// NewUser returns a freshly initialized user record.
func NewUser(addr Address, now int64) *User {
	return &User{
		Version:           1,
		Addr:              addr,
		LastActivityTS:    now,
		RPTierValue:       TierExplorer,
		NetworkQualityPPM: 1_000_000, // neutral 1.0x until a rollup runs
		LastClaimTS:       now,
	}
}

// ActiveCards returns the slice of non-expired, non-consumed cards at now.
func (u *User) ActiveCards(now int64) []*CardInstance {
	out := make([]*CardInstance, 0, MaxActiveCardSlots)
	for i := range u.ActiveCardSlots {
		c := &u.ActiveCardSlots[i]
		if i < int(u.ActiveCardCount) && c.Active(now) {
			out = append(out, c)
		}
	}
	return out
}
