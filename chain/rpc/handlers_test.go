package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"finova-core/chain/bridge"
	"finova-core/chain/emission"
	"finova-core/chain/fintypes"
	"finova-core/chain/oracle"
	"finova-core/chain/referral"
	"finova-core/chain/store"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	h := NewHandlers(st, emission.DefaultConfig(), referral.DefaultConfig(), bridge.DefaultConfig(), oracle.DefaultConfig(), nil)
	h.events = newHub()
	return h
}

func postJSON(t *testing.T, fn func(*http.Request) (interface{}, error), body interface{}) (int, map[string]interface{}) {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(buf))

	result, err := fn(req)
	if err != nil {
		return statusForError(err), map[string]interface{}{"error": err.Error()}
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return http.StatusOK, out
}

func TestClaimRewardsCreditsPendingRewards(t *testing.T) {
	h := newTestHandlers(t)
	addr := fintypes.Address{1}
	user := fintypes.NewUser(addr, 0)
	user.KYCVerified = true
	if err := h.Store.PutUser(user); err != nil {
		t.Fatalf("PutUser: %v", err)
	}
	net := &fintypes.NetworkState{CurrentPhase: fintypes.Phase1, TotalUsers: 1000}
	if err := h.Store.PutNetworkState(net); err != nil {
		t.Fatalf("PutNetworkState: %v", err)
	}

	status, out := postJSON(t, h.ClaimRewards, claimRewardsRequest{User: addr, PoolID: 0, Now: 3600})
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, out)
	}
	if out["FinalReward"].(float64) <= 0 {
		t.Fatalf("expected a positive FinalReward, got %v", out["FinalReward"])
	}

	got, found, err := h.Store.GetUser(addr)
	if err != nil || !found {
		t.Fatalf("GetUser: found=%v err=%v", found, err)
	}
	if got.PendingRewards == 0 {
		t.Fatalf("expected PendingRewards to be credited, got 0")
	}
}

// TestClaimRewardsHoursComesFromLastClaimTS pins down that the mining
// window is (now - LastClaimTS), not (now - LastActivityTS): a referral
// credit or card use bumping LastActivityTS must not inflate the next
// claim's accrued hours.
func TestClaimRewardsHoursComesFromLastClaimTS(t *testing.T) {
	h := newTestHandlers(t)
	addr := fintypes.Address{1}
	user := fintypes.NewUser(addr, 0)
	user.LastActivityTS = -1_000_000 // unrelated activity long ago
	user.LastClaimTS = 3600          // claimed one hour before "now"
	if err := h.Store.PutUser(user); err != nil {
		t.Fatalf("PutUser: %v", err)
	}
	net := &fintypes.NetworkState{CurrentPhase: fintypes.Phase1, TotalUsers: 1000}
	if err := h.Store.PutNetworkState(net); err != nil {
		t.Fatalf("PutNetworkState: %v", err)
	}

	status, out := postJSON(t, h.ClaimRewards, claimRewardsRequest{User: addr, Now: 7200})
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, out)
	}
	if out["Hours"].(float64) != 1 {
		t.Fatalf("Hours = %v, want 1 (from LastClaimTS=3600 to now=7200)", out["Hours"])
	}
}

func TestClaimRewardsAppliesStakeFromStore(t *testing.T) {
	h := newTestHandlers(t)
	addr := fintypes.Address{1}
	user := fintypes.NewUser(addr, 0)
	if err := h.Store.PutUser(user); err != nil {
		t.Fatalf("PutUser: %v", err)
	}
	if err := h.Store.PutStakePosition(&fintypes.StakePosition{Version: 1, Owner: addr, PoolID: 0, StakedAmount: 5000}); err != nil {
		t.Fatalf("PutStakePosition: %v", err)
	}
	net := &fintypes.NetworkState{CurrentPhase: fintypes.Phase1, TotalUsers: 1000}
	if err := h.Store.PutNetworkState(net); err != nil {
		t.Fatalf("PutNetworkState: %v", err)
	}

	status, out := postJSON(t, h.ClaimRewards, claimRewardsRequest{User: addr, PoolID: 0, Now: 3600})
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, out)
	}
	if out["StakeMultBPS"].(float64) <= 10000 {
		t.Fatalf("expected a stake multiplier above 1.0x for a 5000-FIN stake, got %v", out["StakeMultBPS"])
	}
}

func TestClaimRewardsRejectsUnknownUser(t *testing.T) {
	h := newTestHandlers(t)
	status, _ := postJSON(t, h.ClaimRewards, claimRewardsRequest{User: fintypes.Address{9}, Now: 3600})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", status, http.StatusUnprocessableEntity)
	}
}

func TestClaimRewardsRejectsWhenNetworkPaused(t *testing.T) {
	h := newTestHandlers(t)
	addr := fintypes.Address{1}
	if err := h.Store.PutUser(fintypes.NewUser(addr, 0)); err != nil {
		t.Fatalf("PutUser: %v", err)
	}
	net := &fintypes.NetworkState{CurrentPhase: fintypes.Phase1, TotalUsers: 1000, IsPaused: true}
	if err := h.Store.PutNetworkState(net); err != nil {
		t.Fatalf("PutNetworkState: %v", err)
	}

	status, _ := postJSON(t, h.ClaimRewards, claimRewardsRequest{User: addr, Now: 3600})
	if status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", status, http.StatusServiceUnavailable)
	}
}

func TestRegisterReferralRejectsSelfReferral(t *testing.T) {
	h := newTestHandlers(t)
	addr := fintypes.Address{3}
	u := fintypes.NewUser(addr, 0)
	if err := h.Store.PutUser(u); err != nil {
		t.Fatalf("PutUser: %v", err)
	}

	status, _ := postJSON(t, h.RegisterReferral, registerReferralRequest{Referee: addr, Referrer: addr})
	if status == http.StatusOK {
		t.Fatalf("expected self-referral to be rejected")
	}
}

func TestRegisterReferralPersistsReferrerLink(t *testing.T) {
	h := newTestHandlers(t)
	referee := fintypes.NewUser(fintypes.Address{4}, 0)
	referrer := fintypes.NewUser(fintypes.Address{5}, 0)
	if err := h.Store.PutUser(referee); err != nil {
		t.Fatalf("PutUser referee: %v", err)
	}
	if err := h.Store.PutUser(referrer); err != nil {
		t.Fatalf("PutUser referrer: %v", err)
	}

	status, _ := postJSON(t, h.RegisterReferral, registerReferralRequest{Referee: referee.Addr, Referrer: referrer.Addr})
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	got, found, err := h.Store.GetUser(referee.Addr)
	if err != nil || !found {
		t.Fatalf("GetUser: found=%v err=%v", found, err)
	}
	if got.Referrer != referrer.Addr {
		t.Fatalf("Referrer = %v, want %v", got.Referrer, referrer.Addr)
	}
}

func TestSubmitPriceRejectsUnknownFeed(t *testing.T) {
	h := newTestHandlers(t)
	status, _ := postJSON(t, h.SubmitPrice, submitPriceRequest{Symbol: "FIN/USD", Price: 100})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", status, http.StatusUnprocessableEntity)
	}
}

func TestSubmitPriceUpdatesCurrentPrice(t *testing.T) {
	h := newTestHandlers(t)
	feed := &fintypes.PriceFeed{
		Symbol:                "FIN/USD",
		CurrentPrice:          1_000_000,
		DeviationThresholdBPS: 500,
		MaxStalenessSeconds:   60,
	}
	if err := h.Store.PutPriceFeed(feed); err != nil {
		t.Fatalf("PutPriceFeed: %v", err)
	}

	req := submitPriceRequest{
		Symbol:         "FIN/USD",
		ValidatorIndex: 0,
		Price:          1_010_000,
		ConfidenceBPS:  9000,
		StalenessSec:   1,
		SourcePrices:   []uint64{1_005_000, 1_010_000, 1_015_000},
		SubmittedTS:    1,
		Now:            1,
	}
	status, _ := postJSON(t, h.SubmitPrice, req)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	got, found, err := h.Store.GetPriceFeed("FIN/USD")
	if err != nil || !found {
		t.Fatalf("GetPriceFeed: found=%v err=%v", found, err)
	}
	if got.CurrentPrice == 1_000_000 {
		t.Fatalf("expected CurrentPrice to move off its initial value")
	}
}

func TestActivateThenDeactivateCircuitBreakerRoundTrips(t *testing.T) {
	h := newTestHandlers(t)
	feed := &fintypes.PriceFeed{Symbol: "FIN/USD", CurrentPrice: 1_000_000}
	if err := h.Store.PutPriceFeed(feed); err != nil {
		t.Fatalf("PutPriceFeed: %v", err)
	}

	if status, _ := postJSON(t, h.ActivateCircuitBreaker, circuitBreakerRequest{Symbol: "FIN/USD"}); status != http.StatusOK {
		t.Fatalf("activate status = %d", status)
	}
	got, _, _ := h.Store.GetPriceFeed("FIN/USD")
	if got.CircuitBreaker != fintypes.CircuitHalted {
		t.Fatalf("expected CircuitHalted after activation, got %v", got.CircuitBreaker)
	}

	if status, _ := postJSON(t, h.DeactivateCircuitBreaker, circuitBreakerRequest{Symbol: "FIN/USD"}); status != http.StatusOK {
		t.Fatalf("deactivate status = %d", status)
	}
	got, _, _ = h.Store.GetPriceFeed("FIN/USD")
	if got.CircuitBreaker != fintypes.CircuitNormal {
		t.Fatalf("expected CircuitNormal after deactivation, got %v", got.CircuitBreaker)
	}
}

func TestLockTokensThenBridgeCancel(t *testing.T) {
	h := newTestHandlers(t)
	req := lockTokensRequest{
		User:                  fintypes.Address{6},
		TokenMint:             fintypes.Address{7},
		Amount:                1000,
		DestinationChain:      1,
		RequiredConfirmations: 2,
		Nonce:                 1,
		Now:                   10,
		ExpirySeconds:         3600,
	}
	status, out := postJSON(t, h.LockTokens, req)
	if status != http.StatusOK {
		t.Fatalf("lock status = %d, body = %v", status, out)
	}
	if _, ok := out["lockId"]; !ok {
		t.Fatalf("expected a lockId in the response, got %v", out)
	}

	lockID := fintypes.SHA3(req.User.Bytes(), []byte{req.DestinationChain}, req.DestinationAddr[:], u64Bytes(req.Nonce))
	lock, found, err := h.Store.GetLockedTokens(lockID)
	if err != nil || !found {
		t.Fatalf("GetLockedTokens: found=%v err=%v", found, err)
	}
	if lock.Status != fintypes.BridgeLocked {
		t.Fatalf("Status = %v, want BridgeLocked", lock.Status)
	}

	status, _ = postJSON(t, h.BridgeCancel, lockIDRequest{LockID: lockID})
	if status != http.StatusOK {
		t.Fatalf("cancel status = %d", status)
	}
	lock, _, _ = h.Store.GetLockedTokens(lockID)
	if lock.Status != fintypes.BridgeCancelled {
		t.Fatalf("Status after cancel = %v, want BridgeCancelled", lock.Status)
	}
}

func TestWithdrawRejectsAmountOverStake(t *testing.T) {
	h := newTestHandlers(t)
	pool := &fintypes.StakingPool{ID: 1, Status: fintypes.PoolActive, StakeMint: fintypes.Address{1}, RewardMint: fintypes.Address{2}}
	if err := h.Store.PutStakingPool(pool); err != nil {
		t.Fatalf("PutStakingPool: %v", err)
	}
	owner := fintypes.Address{8}
	pos := &fintypes.StakePosition{Owner: owner, PoolID: 1, StakedAmount: 500}
	if err := h.Store.PutStakePosition(pos); err != nil {
		t.Fatalf("PutStakePosition: %v", err)
	}

	status, _ := postJSON(t, h.Withdraw, stakingRequest{Owner: owner, PoolID: 1, Amount: 5000, Now: 0})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", status, http.StatusUnprocessableEntity)
	}
}

func TestDepositIncreasesStakedAmountAndPoolTotal(t *testing.T) {
	h := newTestHandlers(t)
	pool := &fintypes.StakingPool{ID: 2, Status: fintypes.PoolActive, StakeMint: fintypes.Address{1}, RewardMint: fintypes.Address{2}}
	if err := h.Store.PutStakingPool(pool); err != nil {
		t.Fatalf("PutStakingPool: %v", err)
	}
	owner := fintypes.Address{9}

	status, _ := postJSON(t, h.Deposit, stakingRequest{Owner: owner, PoolID: 2, Amount: 1000, Now: 0})
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	pos, found, err := h.Store.GetStakePosition(owner, 2)
	if err != nil || !found {
		t.Fatalf("GetStakePosition: found=%v err=%v", found, err)
	}
	if pos.StakedAmount != 1000 {
		t.Fatalf("StakedAmount = %d, want 1000", pos.StakedAmount)
	}
	gotPool, _, _ := h.Store.GetStakingPool(2)
	if gotPool.TotalStaked != 1000 {
		t.Fatalf("pool TotalStaked = %d, want 1000", gotPool.TotalStaked)
	}
}
