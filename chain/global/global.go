// Package global implements Global State & Phases (spec.md §4.7): the
// single NetworkState record's phase transitions, the pause gate every
// other engine's mutating entry points must honor, and the
// observer-facing network health score.
//
// Grounded on chain/config/genesis.go's versioned config struct and
// chain/node.Node's mutex-guarded running flag, generalized to
// NetworkState.IsPaused per spec.md §9 "no ambient singletons".
package global

import (
	"finova-core/chain/emission"
	"finova-core/chain/fintypes"
	"finova-core/chain/fixedpoint"
)

// Engine drives NetworkState transitions, re-deriving base_mining_rate
// and finizen_bonus from the same phase table chain/emission.Config
// uses for its per-hour rate lookup, so the two never drift apart.
type Engine struct {
	emissionCfg emission.Config
}

func NewEngine(emissionCfg emission.Config) *Engine {
	return &Engine{emissionCfg: emissionCfg}
}

// UpdateTotalUsers implements spec.md §4.7's phase transition: total
// users moves monotonically, and crossing a threshold re-derives
// base_mining_rate/finizen_bonus from the phase table.
func (e *Engine) UpdateTotalUsers(net *fintypes.NetworkState, totalUsers uint64) {
	net.TotalUsers = totalUsers
	newPhase := fintypes.PhaseForTotalUsers(totalUsers)
	if newPhase == net.CurrentPhase {
		return
	}
	net.CurrentPhase = newPhase
	rates := e.emissionCfg.Phases[newPhase]
	net.BaseMiningRatePerHour = rates.BaseRatePerHourMicro
	net.FinizenBonusCapBPS = uint32(rates.FinizenCapBPS)
}

// RequireNotPaused implements spec.md §4.7's "is_paused gates all
// state-mutating entry points except resume and emergency-unlock".
func RequireNotPaused(net *fintypes.NetworkState) error {
	if net.IsPaused {
		return fintypes.ErrSystemState(fintypes.CodeNetworkPaused, "network is paused")
	}
	return nil
}

// Pause and Resume flip the global gate; Resume is one of the two
// operations spec.md §4.7 exempts from the gate itself, so it takes no
// RequireNotPaused check of its own.
func Pause(net *fintypes.NetworkState) {
	net.IsPaused = true
}

func Resume(net *fintypes.NetworkState) {
	net.IsPaused = false
}

// HealthSignals are the five rolling-window inputs to the network
// health score (spec.md §4.7), each given as a basis-points ratio in
// [0, 10000] by the caller.
type HealthSignals struct {
	ActiveRatioBPS       fixedpoint.BPS
	KYCRatioBPS          fixedpoint.BPS
	BotDetectionRateBPS  fixedpoint.BPS
	GuildActivityBPS     fixedpoint.BPS
	PlatformDiversityBPS fixedpoint.BPS
}

// HealthScore implements spec.md §4.7's "weighted blend ... scored
// 0-1000 for observer consumption only" as an equal-weighted average
// of the five signals, rescaled from basis points (0-10000) to the
// spec's 0-1000 observer scale.
func HealthScore(s HealthSignals) uint16 {
	sumBPS := uint64(s.ActiveRatioBPS) + uint64(s.KYCRatioBPS) + uint64(s.BotDetectionRateBPS) + uint64(s.GuildActivityBPS) + uint64(s.PlatformDiversityBPS)
	avgBPS := sumBPS / 5
	return uint16(fixedpoint.MulDivUint64(avgBPS, 1000, fixedpoint.BPSScale))
}
