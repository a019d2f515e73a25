package store

import (
	"path/filepath"
	"testing"

	"finova-core/chain/fintypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetUserRoundTrips(t *testing.T) {
	s := newTestStore(t)
	addr := fintypes.Address{1, 2, 3}
	u := fintypes.NewUser(addr, 1000)
	u.XPTotal = 42

	if err := s.PutUser(u); err != nil {
		t.Fatalf("PutUser: %v", err)
	}

	got, found, err := s.GetUser(addr)
	if err != nil || !found {
		t.Fatalf("GetUser: found=%v err=%v", found, err)
	}
	if got.XPTotal != 42 {
		t.Fatalf("XPTotal = %d, want 42", got.XPTotal)
	}
}

func TestGetUserMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, found, err := s.GetUser(fintypes.Address{9})
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if found {
		t.Fatalf("expected not found for a never-written address")
	}
}

func TestUserSurvivesCacheEviction(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	addr := fintypes.Address{7}
	u := fintypes.NewUser(addr, 1000)
	u.TotalMined = 777
	if err := s.PutUser(u); err != nil {
		t.Fatalf("PutUser: %v", err)
	}
	s.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, found, err := s2.GetUser(addr)
	if err != nil || !found {
		t.Fatalf("GetUser after reopen: found=%v err=%v", found, err)
	}
	if got.TotalMined != 777 {
		t.Fatalf("TotalMined = %d, want 777 after reopen", got.TotalMined)
	}
}

func TestStakePositionKeyedByOwnerAndPool(t *testing.T) {
	s := newTestStore(t)
	owner := fintypes.Address{5}

	p1 := &fintypes.StakePosition{Owner: owner, PoolID: 1, StakedAmount: 100}
	p2 := &fintypes.StakePosition{Owner: owner, PoolID: 2, StakedAmount: 200}
	s.PutStakePosition(p1)
	s.PutStakePosition(p2)

	got1, _, _ := s.GetStakePosition(owner, 1)
	got2, _, _ := s.GetStakePosition(owner, 2)
	if got1.StakedAmount != 100 || got2.StakedAmount != 200 {
		t.Fatalf("positions not independently keyed by pool id: got %d, %d", got1.StakedAmount, got2.StakedAmount)
	}
}

func TestPriceFeedRoundTrips(t *testing.T) {
	s := newTestStore(t)
	f := &fintypes.PriceFeed{Symbol: "FIN/USD", CurrentPrice: 1_250_000}
	if err := s.PutPriceFeed(f); err != nil {
		t.Fatalf("PutPriceFeed: %v", err)
	}

	got, found, err := s.GetPriceFeed("FIN/USD")
	if err != nil || !found {
		t.Fatalf("GetPriceFeed: found=%v err=%v", found, err)
	}
	if got.CurrentPrice != 1_250_000 {
		t.Fatalf("CurrentPrice = %d, want 1250000", got.CurrentPrice)
	}
}

func TestNetworkStateIsASingleton(t *testing.T) {
	s := newTestStore(t)
	ns := &fintypes.NetworkState{TotalUsers: 500}
	if err := s.PutNetworkState(ns); err != nil {
		t.Fatalf("PutNetworkState: %v", err)
	}

	got, found, err := s.GetNetworkState()
	if err != nil || !found {
		t.Fatalf("GetNetworkState: found=%v err=%v", found, err)
	}
	if got.TotalUsers != 500 {
		t.Fatalf("TotalUsers = %d, want 500", got.TotalUsers)
	}
}
