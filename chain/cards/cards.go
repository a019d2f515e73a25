// Package cards implements the Card Scheduler (spec.md §4.4):
// time-bounded, stackable, cooldown-gated multipliers with synergy
// bonuses, dispatched through a (card_type, rarity) table rather than
// per-card virtual interfaces (spec.md §9).
//
// Grounded on chain/evm/precompiles.go's map[Address]PrecompiledContract
// dispatch table shape, repurposed here as a CardKey -> CardEffect lookup
// (effectFor, a switch over the key rather than a map).
package cards

import (
	"finova-core/chain/fintypes"
	"finova-core/chain/fixedpoint"
)

// Axis is one of the four multiplier tracks the Emission Engine reads
// (spec.md §4.4 "relevant axis (mining / xp / referral / guild)").
type Axis uint8

const (
	AxisMining Axis = iota
	AxisXP
	AxisReferral
	AxisGuild
	axisCount
)

// maxAxisMultiplierBPS is invariant I7: card bonus per axis <= 10x.
const maxAxisMultiplierBPS = fixedpoint.BPS(100_000)

// CardKey is the sum-type discriminant: (card_type, rarity).
type CardKey struct {
	Type   fintypes.CardType
	Rarity fintypes.Rarity
}

// CardEffect is one dispatch-table entry. Special (non-multiplier) cards
// carry Special=true and zero multiplier fields; ApplyCard short-
// circuits to applySpecialCard for those instead of installing a slot.
type CardEffect struct {
	Axis            Axis
	MultiplierBPS   fixedpoint.BPS
	DurationSeconds int64
	SingleUse       bool
	Special         bool
}

// cooldownByRarity implements spec.md §4.4's per-rarity cooldown table.
var cooldownByRarity = [...]int64{
	fintypes.RarityCommon:    24 * 3600,
	fintypes.RarityUncommon:  18 * 3600,
	fintypes.RarityRare:      12 * 3600,
	fintypes.RarityEpic:      4 * 3600,
	fintypes.RarityLegendary: 3 * 3600,
}

// rarityMultiplierBPS and rarityDurationSeconds are the gap-filling
// decision documented in DESIGN.md: spec.md names the cooldown table
// but not a card's own multiplier strength or lifetime, so each is a
// flat function of rarity alone, independent of card_type.
var rarityMultiplierBPS = [...]fixedpoint.BPS{
	fintypes.RarityCommon:    12_000, // 1.2x
	fintypes.RarityUncommon:  13_500, // 1.35x
	fintypes.RarityRare:      15_000, // 1.5x
	fintypes.RarityEpic:      20_000, // 2.0x
	fintypes.RarityLegendary: 30_000, // 3.0x
}

var rarityDurationSeconds = [...]int64{
	fintypes.RarityCommon:    3 * 24 * 3600,
	fintypes.RarityUncommon:  7 * 24 * 3600,
	fintypes.RarityRare:      14 * 24 * 3600,
	fintypes.RarityEpic:      21 * 24 * 3600,
	fintypes.RarityLegendary: 30 * 24 * 3600,
}

// axisForCardType maps each multiplier card to the axis it boosts.
// NetworkAmplifier has no axis named in spec.md's four (mining / xp /
// referral / guild); it is read as a network-wide mining accelerant and
// mapped to AxisMining (see DESIGN.md).
func axisForCardType(t fintypes.CardType) Axis {
	switch t {
	case fintypes.CardMiningBoost, fintypes.CardNetworkAmplifier:
		return AxisMining
	case fintypes.CardXPAccelerator:
		return AxisXP
	case fintypes.CardReferralPower:
		return AxisReferral
	case fintypes.CardGuildPower:
		return AxisGuild
	default:
		return AxisMining
	}
}

func effectFor(key CardKey) CardEffect {
	switch key.Type {
	case fintypes.CardStreakSaver, fintypes.CardLevelRush:
		return CardEffect{Special: true, SingleUse: true, DurationSeconds: rarityDurationSeconds[key.Rarity]}
	default:
		return CardEffect{
			Axis:            axisForCardType(key.Type),
			MultiplierBPS:   rarityMultiplierBPS[key.Rarity],
			DurationSeconds: rarityDurationSeconds[key.Rarity],
			SingleUse:       false,
		}
	}
}

// levelRushBonusXP is the fixed instant-credit amount spec.md §4.4
// names only by effect ("instant XP credit"), not by magnitude — a
// further gap-filling decision (see DESIGN.md).
const levelRushBonusXP = 500

// Engine applies cards and computes axis multipliers. It holds no user
// state; every method takes the User record to mutate.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// ApplyCard implements spec.md §4.4's apply_card: enforces the active-
// slot cap, the per-rarity cooldown since the user's last card use of
// any type, and either installs a multiplier card into a free/expired
// slot or short-circuits to the special-card path.
func (e *Engine) ApplyCard(user *fintypes.User, cardType fintypes.CardType, rarity fintypes.Rarity, now int64) error {
	if user.CardsUsedCount > 0 && now-user.LastCardUseTS < cooldownByRarity[rarity] {
		return fintypes.ErrRateLimited(fintypes.CodeCooldownActive, "card cooldown active until %d", user.LastCardUseTS+cooldownByRarity[rarity])
	}

	effect := effectFor(CardKey{Type: cardType, Rarity: rarity})
	if effect.Special {
		e.applySpecialCard(user, cardType, effect, now)
		user.LastCardUseTS = now
		user.CardsUsedCount++
		return nil
	}

	slot, err := e.freeSlot(user, now)
	if err != nil {
		return err
	}

	*slot = fintypes.CardInstance{
		Version:       1,
		CardType:      cardType,
		Rarity:        rarity,
		MultiplierBPS: uint16(effect.MultiplierBPS),
		ExpiryTS:      now + effect.DurationSeconds,
		SingleUse:     effect.SingleUse,
	}
	user.LastCardUseTS = now
	user.CardsUsedCount++
	return nil
}

// freeSlot returns a pointer to an expired or unused slot, extending
// ActiveCardCount if one wasn't already tracked, or CodeSlotsFull if
// all 5 slots hold a still-active card.
func (e *Engine) freeSlot(user *fintypes.User, now int64) (*fintypes.CardInstance, error) {
	for i := 0; i < int(user.ActiveCardCount); i++ {
		if !user.ActiveCardSlots[i].Active(now) {
			return &user.ActiveCardSlots[i], nil
		}
	}
	if int(user.ActiveCardCount) < fintypes.MaxActiveCardSlots {
		slot := &user.ActiveCardSlots[user.ActiveCardCount]
		user.ActiveCardCount++
		return slot, nil
	}
	return nil, fintypes.ErrInvariant(fintypes.CodeSlotsFull, "user %x has no free card slot", user.Addr)
}

// applySpecialCard implements spec.md §4.4's "special cards without
// multiplier semantics": StreakSaver extends streak protection,
// LevelRush grants an instant XP credit. Neither occupies a slot.
func (e *Engine) applySpecialCard(user *fintypes.User, cardType fintypes.CardType, effect CardEffect, now int64) {
	switch cardType {
	case fintypes.CardStreakSaver:
		protectUntil := now + effect.DurationSeconds
		if protectUntil > user.StreakProtectionUntilTS {
			user.StreakProtectionUntilTS = protectUntil
		}
	case fintypes.CardLevelRush:
		user.XPTotal += levelRushBonusXP
	}
}

// ComputeAxisMultiplier implements spec.md §4.4's multiplier
// computation: the product of every active card's multiplier on this
// axis, the synergy bonus (100+10*active_count)/100 when 2 or more are
// active, clamped at the I7 ceiling of 10x.
func ComputeAxisMultiplier(user *fintypes.User, axis Axis, now int64) fixedpoint.BPS {
	product := fixedpoint.One
	activeCount := 0

	for i := 0; i < int(user.ActiveCardCount); i++ {
		c := &user.ActiveCardSlots[i]
		if !c.Active(now) {
			continue
		}
		if axisForCardType(c.CardType) != axis {
			continue
		}
		product = fixedpoint.ComposeBPS(product, fixedpoint.BPS(c.MultiplierBPS))
		activeCount++
	}

	if activeCount >= 2 {
		synergyBPS := fixedpoint.BPS(fixedpoint.BPSScale + 1000*activeCount)
		product = fixedpoint.ComposeBPS(product, synergyBPS)
	}

	return fixedpoint.ClampBPS(product, fixedpoint.One, maxAxisMultiplierBPS)
}

// StreakProtected reports whether the user's streak is currently
// shielded from reset by an active StreakSaver effect.
func StreakProtected(user *fintypes.User, now int64) bool {
	return now < user.StreakProtectionUntilTS
}
