package rpc

import (
	"net/http"
	"strconv"
	"time"

	"finova-core/chain/bridge"
	"finova-core/chain/cards"
	"finova-core/chain/emission"
	"finova-core/chain/evm"
	"finova-core/chain/fintypes"
	"finova-core/chain/fixedpoint"
	"finova-core/chain/global"
	"finova-core/chain/monitoring"
	"finova-core/chain/oracle"
	"finova-core/chain/referral"
	"finova-core/chain/staking"
	"finova-core/chain/store"
)

// Handlers wires the store and the six engines behind one instruction
// surface: one method per instruction of spec.md §6, each taking a
// typed params struct and returning a typed result or error.
type Handlers struct {
	Store *store.Store

	Emission *emission.Engine
	Staking  *staking.Engine
	Referral *referral.Engine
	Cards    *cards.Engine
	Bridge   *bridge.Engine
	Oracle   *oracle.Engine

	// Metrics is the write side of the /metrics surface. It is nil in
	// tests that build Handlers directly; record calls below guard on
	// that.
	Metrics *monitoring.MetricsServer

	events *Hub
}

// NewHandlers builds a Handlers instance over an already-open store and
// the given engine configurations. metrics may be nil.
func NewHandlers(st *store.Store, emissionCfg emission.Config, referralCfg referral.Config, bridgeCfg bridge.Config, oracleCfg oracle.Config, metrics *monitoring.MetricsServer) *Handlers {
	return &Handlers{
		Store:    st,
		Metrics:  metrics,
		Emission: emission.NewEngine(emissionCfg),
		Staking:  staking.NewEngine(),
		Referral: referral.NewEngine(referralCfg),
		Cards:    cards.NewEngine(),
		Bridge:   bridge.NewEngine(bridgeCfg),
		Oracle:   oracle.NewEngine(oracleCfg),
	}
}

func (h *Handlers) emit(kind string, data interface{}) {
	if h.events == nil {
		return
	}
	h.events.Broadcast(Event{Kind: kind, Data: data, TS: time.Now().Unix()})
}

func (h *Handlers) requireUnpaused() error {
	net, found, err := h.Store.GetNetworkState()
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return global.RequireNotPaused(net)
}

// --- Staking -----------------------------------------------------------

type stakingRequest struct {
	Owner  fintypes.Address `json:"owner"`
	PoolID uint64           `json:"poolId"`
	Amount uint64           `json:"amount"`
	Now    int64            `json:"now"`
}

type depositResponse struct {
	StakedAmount uint64 `json:"stakedAmount"`
	LockEndTS    int64  `json:"lockEndTs"`
}

const secondsPerYear = 365 * 24 * 3600

// recordPoolMetrics reports a pool's TVL and reward rate annualized to
// basis points, the same numbers an operator would read off StakingPool
// directly, after any mutating staking op.
func (h *Handlers) recordPoolMetrics(pool *fintypes.StakingPool) {
	if h.Metrics == nil {
		return
	}
	var apyBPS uint64
	if pool.TotalStaked > 0 {
		apyBPS = fixedpoint.MulDivUint64(pool.RewardRatePerSecond, secondsPerYear*uint64(fixedpoint.BPSScale), pool.TotalStaked)
	}
	h.Metrics.RecordStakingPool(strconv.FormatUint(pool.ID, 10), pool.TotalStaked, uint32(apyBPS))
}

func (h *Handlers) loadPoolAndPosition(req stakingRequest) (*fintypes.StakingPool, *fintypes.StakePosition, error) {
	pool, found, err := h.Store.GetStakingPool(req.PoolID)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, fintypes.ErrInvariant(fintypes.CodePoolInactive, "pool %d does not exist", req.PoolID)
	}
	pos, found, err := h.Store.GetStakePosition(req.Owner, req.PoolID)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		pos = &fintypes.StakePosition{Version: 1, Owner: req.Owner, PoolID: req.PoolID}
	}
	return pool, pos, nil
}

// Deposit implements spec.md §6's deposit(pool, amount).
func (h *Handlers) Deposit(r *http.Request) (interface{}, error) {
	if err := h.requireUnpaused(); err != nil {
		return nil, err
	}
	var req stakingRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}
	pool, pos, err := h.loadPoolAndPosition(req)
	if err != nil {
		return nil, err
	}
	if err := h.Staking.Deposit(pool, pos, req.Amount, req.Now); err != nil {
		return nil, err
	}
	if err := h.Store.PutStakingPool(pool); err != nil {
		return nil, err
	}
	if err := h.Store.PutStakePosition(pos); err != nil {
		return nil, err
	}
	h.recordPoolMetrics(pool)
	h.emit("RewardsClaimed", nil)
	return depositResponse{StakedAmount: pos.StakedAmount, LockEndTS: pos.LockEndTS}, nil
}

type withdrawResponse struct {
	Payout  uint64 `json:"payout"`
	Penalty uint64 `json:"penalty"`
}

// Withdraw implements spec.md §6's withdraw(pool, amount).
func (h *Handlers) Withdraw(r *http.Request) (interface{}, error) {
	var req stakingRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}
	pool, pos, err := h.loadPoolAndPosition(req)
	if err != nil {
		return nil, err
	}
	payout, penalty, err := h.Staking.Withdraw(pool, pos, req.Amount, req.Now, false)
	if err != nil {
		return nil, err
	}
	if err := h.Store.PutStakingPool(pool); err != nil {
		return nil, err
	}
	if err := h.Store.PutStakePosition(pos); err != nil {
		return nil, err
	}
	h.recordPoolMetrics(pool)
	if h.Metrics != nil {
		h.Metrics.RecordStakingClaim(penalty > 0)
	}
	return withdrawResponse{Payout: payout, Penalty: penalty}, nil
}

type claimResponse struct {
	Payout uint64 `json:"payout"`
	Fee    uint64 `json:"fee"`
}

// Claim implements spec.md §6's claim(pool).
func (h *Handlers) Claim(r *http.Request) (interface{}, error) {
	var req stakingRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}
	pool, pos, err := h.loadPoolAndPosition(req)
	if err != nil {
		return nil, err
	}
	payout, fee, err := h.Staking.Claim(pool, pos, req.Now)
	if err != nil {
		return nil, err
	}
	if err := h.Store.PutStakePosition(pos); err != nil {
		return nil, err
	}
	if h.Metrics != nil {
		h.Metrics.RecordStakingClaim(false)
	}
	h.emit("RewardsClaimed", claimResponse{Payout: payout, Fee: fee})
	return claimResponse{Payout: payout, Fee: fee}, nil
}

type compoundResponse struct {
	Compounded uint64 `json:"compounded"`
}

// Compound implements spec.md §6's compound(pool).
func (h *Handlers) Compound(r *http.Request) (interface{}, error) {
	var req stakingRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}
	pool, pos, err := h.loadPoolAndPosition(req)
	if err != nil {
		return nil, err
	}
	compounded, err := h.Staking.Compound(pool, pos, req.Now)
	if err != nil {
		return nil, err
	}
	if err := h.Store.PutStakingPool(pool); err != nil {
		return nil, err
	}
	if err := h.Store.PutStakePosition(pos); err != nil {
		return nil, err
	}
	h.recordPoolMetrics(pool)
	return compoundResponse{Compounded: compounded}, nil
}

// --- Emission ------------------------------------------------------------

type claimRewardsRequest struct {
	User   fintypes.Address `json:"user"`
	PoolID uint64           `json:"poolId"`
	Now    int64            `json:"now"`
}

// ClaimRewards implements spec.md §6's claim_rewards() -> MiningReward.
func (h *Handlers) ClaimRewards(r *http.Request) (interface{}, error) {
	if err := h.requireUnpaused(); err != nil {
		return nil, err
	}
	var req claimRewardsRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}

	user, found, err := h.Store.GetUser(req.User)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fintypes.ErrInvariant(fintypes.CodeNotAuthority, "user %s is not initialized", req.User.Hex())
	}
	net, found, err := h.Store.GetNetworkState()
	if err != nil {
		return nil, err
	}
	if !found {
		net = &fintypes.NetworkState{Version: 1}
	}

	var stakedFIN uint64
	if pos, found, err := h.Store.GetStakePosition(req.User, req.PoolID); err != nil {
		return nil, err
	} else if found {
		stakedFIN = pos.StakedAmount
	}

	cardBonusBPS := cards.ComputeAxisMultiplier(user, cards.AxisMining, req.Now)
	breakdown, err := h.Emission.ComputeReward(user, net, stakedFIN, cardBonusBPS, req.Now)
	if err != nil {
		return nil, err
	}
	h.Emission.DebitDailyCap(user, breakdown.FinalReward, req.Now)
	user.LastClaimTS = req.Now

	if err := h.Store.PutUser(user); err != nil {
		return nil, err
	}
	if h.Metrics != nil {
		h.Metrics.RecordEmission(breakdown.RatePerHour, breakdown.FinalReward, breakdown.FinalReward < breakdown.RawReward)
	}
	h.emit("RewardsClaimed", breakdown)
	return breakdown, nil
}

// --- Referral ------------------------------------------------------------

type registerReferralRequest struct {
	Referee  fintypes.Address `json:"referee"`
	Referrer fintypes.Address `json:"referrer"`
}

// RegisterReferral implements spec.md §6's register_referral(referrer_code).
func (h *Handlers) RegisterReferral(r *http.Request) (interface{}, error) {
	var req registerReferralRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}

	referee, found, err := h.Store.GetUser(req.Referee)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fintypes.ErrInvariant(fintypes.CodeNotAuthority, "referee %s is not initialized", req.Referee.Hex())
	}
	referrer, found, err := h.Store.GetUser(req.Referrer)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fintypes.ErrInvariant(fintypes.CodeNotAuthority, "referrer %s is not initialized", req.Referrer.Hex())
	}

	lookup := func(addr fintypes.Address) (*fintypes.User, error) {
		if addr.IsZero() {
			return nil, nil
		}
		u, found, err := h.Store.GetUser(addr)
		if err != nil || !found {
			return nil, err
		}
		return u, nil
	}

	if err := h.Referral.RegisterReferral(referee, referrer, lookup); err != nil {
		if h.Metrics != nil {
			if ce, ok := err.(*fintypes.CoreError); ok && ce.Code == fintypes.CodeCyclicReferral {
				h.Metrics.RecordReferralCycleRejected()
			}
		}
		return nil, err
	}
	if err := h.Store.PutUser(referee); err != nil {
		return nil, err
	}
	if err := h.Store.PutUser(referrer); err != nil {
		return nil, err
	}
	h.emit("ReferralRegistered", req)
	return struct{}{}, nil
}

// --- Cards -----------------------------------------------------------------

type useSpecialCardRequest struct {
	User     fintypes.Address  `json:"user"`
	CardType fintypes.CardType `json:"cardType"`
	Rarity   fintypes.Rarity   `json:"rarity"`
	Now      int64             `json:"now"`
}

// UseSpecialCard implements spec.md §6's use_special_card(card_type, target?).
func (h *Handlers) UseSpecialCard(r *http.Request) (interface{}, error) {
	var req useSpecialCardRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}
	user, found, err := h.Store.GetUser(req.User)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fintypes.ErrInvariant(fintypes.CodeNotAuthority, "user %s is not initialized", req.User.Hex())
	}
	if err := h.Cards.ApplyCard(user, req.CardType, req.Rarity, req.Now); err != nil {
		return nil, err
	}
	if err := h.Store.PutUser(user); err != nil {
		return nil, err
	}
	if h.Metrics != nil {
		h.Metrics.RecordCardApplied(strconv.Itoa(int(req.CardType)), int(user.ActiveCardCount))
	}
	return struct{}{}, nil
}

// --- Bridge ------------------------------------------------------------

type lockTokensRequest struct {
	User                  fintypes.Address                           `json:"user"`
	TokenMint             fintypes.Address                           `json:"tokenMint"`
	Amount                uint64                                     `json:"amount"`
	DestinationChain      uint8                                      `json:"destinationChain"`
	DestinationAddr       [fintypes.DestinationAddressLength]byte     `json:"destinationAddr"`
	RequiredConfirmations uint8                                      `json:"requiredConfirmations"`
	Nonce                 uint64                                     `json:"nonce"`
	Now                   int64                                      `json:"now"`
	ExpirySeconds         int64                                      `json:"expirySeconds"`
}

type lockTokensResponse struct {
	LockID fintypes.Hash `json:"lockId"`
}

// LockTokens implements spec.md §6's lock_tokens(amount, dest_chain, dest_addr) -> lock_id.
func (h *Handlers) LockTokens(r *http.Request) (interface{}, error) {
	if err := h.requireUnpaused(); err != nil {
		return nil, err
	}
	var req lockTokensRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}

	lockID := fintypes.SHA3(req.User.Bytes(), []byte{req.DestinationChain}, req.DestinationAddr[:], u64Bytes(req.Nonce))
	lock, err := h.Bridge.LockTokens(lockID, req.User, req.TokenMint, req.Amount, req.DestinationChain, req.DestinationAddr, req.RequiredConfirmations, req.Nonce, req.Now, req.ExpirySeconds)
	if err != nil {
		return nil, err
	}
	if err := h.Store.PutLockedTokens(lock); err != nil {
		return nil, err
	}
	h.emit("LockInitiated", lockTokensResponse{LockID: lockID})
	return lockTokensResponse{LockID: lockID}, nil
}

func u64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> (8 * i))
	}
	return b
}

type submitSignatureRequest struct {
	LockID         fintypes.Hash    `json:"lockId"`
	ValidatorIndex uint8            `json:"validatorIndex"`
	PublicKey      [32]byte         `json:"publicKey"`
	Signature      [64]byte         `json:"signature"`
	Message        []byte           `json:"message"`
	SourceTxHash   fintypes.Hash    `json:"sourceTxHash"`
	TS             int64            `json:"ts"`
	Now            int64            `json:"now"`
}

// SubmitSignature implements spec.md §6's submit_signature(lock_id,
// validator_index, signature, message_hash, ts). The Ed25519 check is
// run once through the precompile (as this transaction's sole call)
// before the bridge engine scans the resulting call log, per spec.md
// §9's precompile-scan pattern.
func (h *Handlers) SubmitSignature(r *http.Request) (interface{}, error) {
	var req submitSignatureRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}

	lock, found, err := h.Store.GetLockedTokens(req.LockID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fintypes.ErrInvariant(fintypes.CodeInvalidTransition, "lock %s does not exist", req.LockID.Hex())
	}
	validators, found, err := h.Store.GetValidatorSet()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fintypes.ErrAuthorization(fintypes.CodeUnknownValidator, "no validator set configured")
	}

	messageHash := fintypes.SHA3([]byte("finova-bridge-unlock"), req.Message)
	rec := &evm.Recorder{}
	contract := evm.FinovaPrecompiles()[evm.Ed25519VerifyAddress]
	input := append(append(append([]byte{}, messageHash[:]...), req.PublicKey[:]...), req.Signature[:]...)
	if _, err := rec.Call(evm.Ed25519VerifyAddress, contract, input); err != nil {
		return nil, fintypes.ErrCryptographic(fintypes.CodeBadSignature, "precompile call failed: %v", err)
	}

	if err := h.Bridge.SubmitSignature(lock, validators, req.ValidatorIndex, req.PublicKey, req.Signature, req.Message, req.SourceTxHash, req.TS, req.Now, rec.Log); err != nil {
		return nil, err
	}
	if err := h.Store.PutLockedTokens(lock); err != nil {
		return nil, err
	}
	if h.Metrics != nil {
		h.Metrics.RecordBridgeQuorumDepth(strconv.Itoa(int(lock.DestinationChain)), int(lock.CurrentConfirmations))
	}
	h.emit("SignatureAdded", submitSignatureRequest{LockID: req.LockID, ValidatorIndex: req.ValidatorIndex})
	return struct {
		Status                fintypes.BridgeStatus `json:"status"`
		CurrentConfirmations  uint8                 `json:"currentConfirmations"`
	}{Status: lock.Status, CurrentConfirmations: lock.CurrentConfirmations}, nil
}

type lockIDRequest struct {
	LockID fintypes.Hash `json:"lockId"`
	Now    int64         `json:"now"`
}

func (h *Handlers) loadLock(req lockIDRequest) (*fintypes.LockedTokens, error) {
	lock, found, err := h.Store.GetLockedTokens(req.LockID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fintypes.ErrInvariant(fintypes.CodeInvalidTransition, "lock %s does not exist", req.LockID.Hex())
	}
	return lock, nil
}

// UnlockTokens implements spec.md §6's unlock_tokens(lock_id).
func (h *Handlers) UnlockTokens(r *http.Request) (interface{}, error) {
	var req lockIDRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}
	lock, err := h.loadLock(req)
	if err != nil {
		return nil, err
	}
	if err := h.Bridge.UnlockTokens(lock, req.Now); err != nil {
		return nil, err
	}
	if err := h.Store.PutLockedTokens(lock); err != nil {
		return nil, err
	}
	if h.Metrics != nil {
		h.Metrics.RecordBridgeUnlock()
	}
	h.emit("Unlocked", req)
	return struct{}{}, nil
}

// BridgeEmergencyPause implements spec.md §6's emergency_pause(lock_id).
func (h *Handlers) BridgeEmergencyPause(r *http.Request) (interface{}, error) {
	var req lockIDRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}
	lock, err := h.loadLock(req)
	if err != nil {
		return nil, err
	}
	if err := h.Bridge.EmergencyPause(lock); err != nil {
		return nil, err
	}
	if err := h.Store.PutLockedTokens(lock); err != nil {
		return nil, err
	}
	if h.Metrics != nil {
		h.Metrics.RecordBridgePaused(true)
	}
	h.emit("Paused", req)
	return struct{}{}, nil
}

// BridgeResume implements spec.md §6's resume(lock_id).
func (h *Handlers) BridgeResume(r *http.Request) (interface{}, error) {
	var req lockIDRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}
	lock, err := h.loadLock(req)
	if err != nil {
		return nil, err
	}
	if err := h.Bridge.Resume(lock); err != nil {
		return nil, err
	}
	if err := h.Store.PutLockedTokens(lock); err != nil {
		return nil, err
	}
	if h.Metrics != nil {
		h.Metrics.RecordBridgePaused(false)
	}
	h.emit("Resumed", req)
	return struct{}{}, nil
}

// BridgeCancel implements spec.md §6's cancel(lock_id).
func (h *Handlers) BridgeCancel(r *http.Request) (interface{}, error) {
	var req lockIDRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}
	lock, err := h.loadLock(req)
	if err != nil {
		return nil, err
	}
	if err := h.Bridge.Cancel(lock); err != nil {
		return nil, err
	}
	return struct{}{}, h.Store.PutLockedTokens(lock)
}

// --- Oracle ------------------------------------------------------------

type submitPriceRequest struct {
	Symbol         string   `json:"symbol"`
	ValidatorIndex uint8    `json:"validatorIndex"`
	Price          uint64   `json:"price"`
	ConfidenceBPS  uint16   `json:"confidenceBps"`
	StalenessSec   int64    `json:"stalenessSec"`
	SourcePrices   []uint64 `json:"sourcePrices"`
	SubmittedTS    int64    `json:"submittedTs"`
	Now            int64    `json:"now"`
}

// SubmitPrice implements spec.md §6's submit_price(feed_id, PriceUpdateData).
func (h *Handlers) SubmitPrice(r *http.Request) (interface{}, error) {
	var req submitPriceRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}
	feed, found, err := h.Store.GetPriceFeed(req.Symbol)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fintypes.ErrInvariant(fintypes.CodeUnknownTier, "feed %s does not exist", req.Symbol)
	}
	if feed.Paused {
		return nil, fintypes.ErrSystemState(fintypes.CodeBridgePaused, "feed %s is paused", req.Symbol)
	}

	sub := oracle.Submission{
		ValidatorIndex: req.ValidatorIndex,
		Price:          req.Price,
		ConfidenceBPS:  req.ConfidenceBPS,
		StalenessSec:   req.StalenessSec,
		SourcePrices:   req.SourcePrices,
		SubmittedTS:    req.SubmittedTS,
	}
	if err := h.Oracle.ValidateSubmission(feed, sub); err != nil {
		if h.Metrics != nil {
			if ce, ok := err.(*fintypes.CoreError); ok && ce.Code == fintypes.CodeBadThreshold {
				h.Metrics.RecordOracleOutlierRejection()
			}
		}
		return nil, err
	}
	if err := h.Oracle.ApplyUpdate(feed, req.Price, req.Now); err != nil {
		if err := h.Store.PutPriceFeed(feed); err != nil {
			return nil, err
		}
		if h.Metrics != nil {
			h.Metrics.RecordOracleUpdate(req.Symbol, feed.ConfidenceBPS, true)
		}
		h.emit("CircuitBreakerTripped", req.Symbol)
		return nil, err
	}
	feed.PushSample(fintypes.PriceSample{Price: req.Price, TS: req.Now, Confidence: req.ConfidenceBPS})
	if err := h.Store.PutPriceFeed(feed); err != nil {
		return nil, err
	}
	if h.Metrics != nil {
		h.Metrics.RecordOracleUpdate(req.Symbol, feed.ConfidenceBPS, feed.CircuitBreaker == fintypes.CircuitHalted)
	}
	h.emit("PriceUpdated", struct {
		Symbol string `json:"symbol"`
		Price  uint64 `json:"price"`
	}{req.Symbol, feed.CurrentPrice})
	return feed, nil
}

type circuitBreakerRequest struct {
	Symbol string `json:"symbol"`
}

// ActivateCircuitBreaker implements spec.md §6's
// activate_circuit_breaker(feed_id, reason, duration_s).
func (h *Handlers) ActivateCircuitBreaker(r *http.Request) (interface{}, error) {
	var req circuitBreakerRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}
	feed, found, err := h.Store.GetPriceFeed(req.Symbol)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fintypes.ErrInvariant(fintypes.CodeUnknownTier, "feed %s does not exist", req.Symbol)
	}
	feed.CircuitBreaker = fintypes.CircuitHalted
	if err := h.Store.PutPriceFeed(feed); err != nil {
		return nil, err
	}
	if h.Metrics != nil {
		h.Metrics.RecordOracleUpdate(req.Symbol, feed.ConfidenceBPS, true)
	}
	h.emit("CircuitBreakerTripped", req.Symbol)
	return struct{}{}, nil
}

// DeactivateCircuitBreaker implements spec.md §6's deactivate_circuit_breaker(feed_id).
func (h *Handlers) DeactivateCircuitBreaker(r *http.Request) (interface{}, error) {
	var req circuitBreakerRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, fintypes.ErrConfiguration(0, "%v", err)
	}
	feed, found, err := h.Store.GetPriceFeed(req.Symbol)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fintypes.ErrInvariant(fintypes.CodeUnknownTier, "feed %s does not exist", req.Symbol)
	}
	oracle.ResetCircuitBreaker(feed)
	if err := h.Store.PutPriceFeed(feed); err != nil {
		return nil, err
	}
	if h.Metrics != nil {
		h.Metrics.RecordOracleUpdate(req.Symbol, feed.ConfidenceBPS, false)
	}
	return struct{}{}, nil
}
