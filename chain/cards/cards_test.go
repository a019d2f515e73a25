package cards

import (
	"testing"

	"finova-core/chain/fintypes"
	"finova-core/chain/fixedpoint"
)

func TestApplyCardFillsFreeSlot(t *testing.T) {
	e := NewEngine()
	u := fintypes.NewUser(fintypes.Address{1}, 0)

	if err := e.ApplyCard(u, fintypes.CardMiningBoost, fintypes.RarityCommon, 0); err != nil {
		t.Fatalf("ApplyCard: %v", err)
	}
	if u.ActiveCardCount != 1 {
		t.Fatalf("ActiveCardCount = %d, want 1", u.ActiveCardCount)
	}
	if u.ActiveCardSlots[0].CardType != fintypes.CardMiningBoost {
		t.Fatalf("wrong card type in slot 0")
	}
}

func TestApplyCardRejectsWhenSlotsFull(t *testing.T) {
	e := NewEngine()
	u := fintypes.NewUser(fintypes.Address{1}, 0)

	for i := 0; i < fintypes.MaxActiveCardSlots; i++ {
		if err := e.ApplyCard(u, fintypes.CardMiningBoost, fintypes.RarityLegendary, int64(i)*20_000); err != nil {
			t.Fatalf("slot %d: %v", i, err)
		}
	}

	err := e.ApplyCard(u, fintypes.CardMiningBoost, fintypes.RarityLegendary, 100_000)
	ce, ok := err.(*fintypes.CoreError)
	if !ok || ce.Code != fintypes.CodeSlotsFull {
		t.Fatalf("expected CodeSlotsFull, got %v", err)
	}
}

func TestApplyCardEnforcesCooldown(t *testing.T) {
	e := NewEngine()
	u := fintypes.NewUser(fintypes.Address{1}, 0)

	if err := e.ApplyCard(u, fintypes.CardMiningBoost, fintypes.RarityLegendary, 0); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	err := e.ApplyCard(u, fintypes.CardMiningBoost, fintypes.RarityLegendary, 100)
	ce, ok := err.(*fintypes.CoreError)
	if !ok || ce.Code != fintypes.CodeCooldownActive {
		t.Fatalf("expected CodeCooldownActive, got %v", err)
	}

	// Legendary cooldown is 3h; past it, a second application succeeds.
	if err := e.ApplyCard(u, fintypes.CardMiningBoost, fintypes.RarityLegendary, 3*3600+1); err != nil {
		t.Fatalf("apply after cooldown: %v", err)
	}
}

func TestComputeAxisMultiplierNeutralWhenNoCards(t *testing.T) {
	u := fintypes.NewUser(fintypes.Address{1}, 0)
	got := ComputeAxisMultiplier(u, AxisMining, 0)
	if got != fixedpoint.One {
		t.Fatalf("multiplier with no cards = %d, want %d (1.0x)", got, fixedpoint.One)
	}
}

// TestComputeAxisMultiplierNeutralJustPastExpiry checks the exact
// expiry boundary: a card is active for now < expiry_ts, so at
// now == expiry_ts it no longer contributes.
func TestComputeAxisMultiplierNeutralJustPastExpiry(t *testing.T) {
	e := NewEngine()
	u := fintypes.NewUser(fintypes.Address{1}, 0)
	if err := e.ApplyCard(u, fintypes.CardMiningBoost, fintypes.RarityCommon, 0); err != nil {
		t.Fatalf("ApplyCard: %v", err)
	}
	expiry := u.ActiveCardSlots[0].ExpiryTS

	before := ComputeAxisMultiplier(u, AxisMining, expiry-1)
	if before == fixedpoint.One {
		t.Fatalf("card should still be active just before expiry")
	}

	atExpiry := ComputeAxisMultiplier(u, AxisMining, expiry)
	if atExpiry != fixedpoint.One {
		t.Fatalf("multiplier at expiry = %d, want neutral %d", atExpiry, fixedpoint.One)
	}
}

// TestComputeAxisMultiplierSynergyBonus checks spec.md §4.4's synergy
// rule: 2+ active cards on one axis multiply the combined product by
// (100+10*count)/100.
func TestComputeAxisMultiplierSynergyBonus(t *testing.T) {
	e := NewEngine()
	u := fintypes.NewUser(fintypes.Address{1}, 0)
	if err := e.ApplyCard(u, fintypes.CardMiningBoost, fintypes.RarityCommon, 0); err != nil {
		t.Fatalf("apply 1: %v", err)
	}
	if err := e.ApplyCard(u, fintypes.CardNetworkAmplifier, fintypes.RarityCommon, 24*3600); err != nil {
		t.Fatalf("apply 2: %v", err)
	}

	got := ComputeAxisMultiplier(u, AxisMining, 24*3600)
	// base product: 1.2x * 1.2x = 1.44x; synergy for count=2: *1.2 => 1.728x => 17280 bps.
	const want = 17280
	if got != want {
		t.Fatalf("synergy multiplier = %d, want %d", got, want)
	}
}

// TestComputeAxisMultiplierClampsAtTenX checks invariant I7.
func TestComputeAxisMultiplierClampsAtTenX(t *testing.T) {
	e := NewEngine()
	u := fintypes.NewUser(fintypes.Address{1}, 0)

	types := []fintypes.CardType{fintypes.CardMiningBoost, fintypes.CardNetworkAmplifier}
	for i, ct := range types {
		if err := e.ApplyCard(u, ct, fintypes.RarityLegendary, int64(i)*20_000); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	got := ComputeAxisMultiplier(u, AxisMining, 40_000)
	if got > 100_000 {
		t.Fatalf("axis multiplier %d exceeds the 10x ceiling (100000 bps)", got)
	}
}

func TestApplyStreakSaverExtendsProtection(t *testing.T) {
	e := NewEngine()
	u := fintypes.NewUser(fintypes.Address{1}, 0)
	if err := e.ApplyCard(u, fintypes.CardStreakSaver, fintypes.RarityRare, 1000); err != nil {
		t.Fatalf("ApplyCard: %v", err)
	}
	if !StreakProtected(u, 1000) {
		t.Fatalf("streak should be protected immediately after applying StreakSaver")
	}
	if u.ActiveCardCount != 0 {
		t.Fatalf("special cards must not occupy a slot, got ActiveCardCount=%d", u.ActiveCardCount)
	}
}

func TestApplyLevelRushCreditsXP(t *testing.T) {
	e := NewEngine()
	u := fintypes.NewUser(fintypes.Address{1}, 0)
	before := u.XPTotal
	if err := e.ApplyCard(u, fintypes.CardLevelRush, fintypes.RarityEpic, 0); err != nil {
		t.Fatalf("ApplyCard: %v", err)
	}
	if u.XPTotal != before+levelRushBonusXP {
		t.Fatalf("XPTotal = %d, want %d", u.XPTotal, before+levelRushBonusXP)
	}
}
