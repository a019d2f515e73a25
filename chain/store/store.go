// Package store persists every entity of spec.md §3 keyed by its
// canonical id, adapted from the teacher's node.StateDB: an in-memory
// map fronting a goleveldb handle, read-through on miss and
// write-through on every put, so the six engines operate on plain Go
// structs and replay from genesis is never required.
package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"finova-core/chain/fintypes"
)

// Store is the persistence boundary for the core engines' state.
type Store struct {
	db *leveldb.DB
	mu sync.RWMutex

	users          map[fintypes.Address]*fintypes.User
	stakePositions map[stakeKey]*fintypes.StakePosition
	stakingPools   map[uint64]*fintypes.StakingPool
	locks          map[fintypes.Hash]*fintypes.LockedTokens
	priceFeeds     map[string]*fintypes.PriceFeed
	validatorSet   *fintypes.ValidatorSet
	networkState   *fintypes.NetworkState
}

type stakeKey struct {
	Owner  fintypes.Address
	PoolID uint64
}

// Open opens (creating if absent) a goleveldb database at dataDir.
func Open(dataDir string) (*Store, error) {
	db, err := leveldb.OpenFile(dataDir, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", dataDir, err)
	}
	return &Store{
		db:             db,
		users:          make(map[fintypes.Address]*fintypes.User),
		stakePositions: make(map[stakeKey]*fintypes.StakePosition),
		stakingPools:   make(map[uint64]*fintypes.StakingPool),
		locks:          make(map[fintypes.Hash]*fintypes.LockedTokens),
		priceFeeds:     make(map[string]*fintypes.PriceFeed),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getJSON(key []byte, out interface{}) (bool, error) {
	data, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) putJSON(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Put(key, data, nil)
}

func userKey(addr fintypes.Address) []byte {
	return append([]byte("user:"), addr.Bytes()...)
}

// GetUser returns a user by address, reading through to the database
// on a cache miss.
func (s *Store) GetUser(addr fintypes.Address) (*fintypes.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[addr]; ok {
		return u, true, nil
	}

	var u fintypes.User
	found, err := s.getJSON(userKey(addr), &u)
	if err != nil || !found {
		return nil, false, err
	}
	s.users[addr] = &u
	return &u, true, nil
}

// PutUser writes a user record through to the database and updates the cache.
func (s *Store) PutUser(u *fintypes.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.putJSON(userKey(u.Addr), u); err != nil {
		return err
	}
	s.users[u.Addr] = u
	return nil
}

func stakePositionKey(owner fintypes.Address, poolID uint64) []byte {
	key := append([]byte("stake:"), owner.Bytes()...)
	return append(key, []byte(fmt.Sprintf(":%d", poolID))...)
}

// GetStakePosition returns a user's position in a given pool.
func (s *Store) GetStakePosition(owner fintypes.Address, poolID uint64) (*fintypes.StakePosition, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := stakeKey{Owner: owner, PoolID: poolID}
	if p, ok := s.stakePositions[k]; ok {
		return p, true, nil
	}

	var p fintypes.StakePosition
	found, err := s.getJSON(stakePositionKey(owner, poolID), &p)
	if err != nil || !found {
		return nil, false, err
	}
	s.stakePositions[k] = &p
	return &p, true, nil
}

// PutStakePosition writes a stake position through to the database.
func (s *Store) PutStakePosition(p *fintypes.StakePosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.putJSON(stakePositionKey(p.Owner, p.PoolID), p); err != nil {
		return err
	}
	s.stakePositions[stakeKey{Owner: p.Owner, PoolID: p.PoolID}] = p
	return nil
}

func stakingPoolKey(id uint64) []byte {
	return []byte(fmt.Sprintf("pool:%d", id))
}

// GetStakingPool returns a staking pool by id.
func (s *Store) GetStakingPool(id uint64) (*fintypes.StakingPool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.stakingPools[id]; ok {
		return p, true, nil
	}

	var p fintypes.StakingPool
	found, err := s.getJSON(stakingPoolKey(id), &p)
	if err != nil || !found {
		return nil, false, err
	}
	s.stakingPools[id] = &p
	return &p, true, nil
}

// PutStakingPool writes a staking pool through to the database.
func (s *Store) PutStakingPool(p *fintypes.StakingPool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.putJSON(stakingPoolKey(p.ID), p); err != nil {
		return err
	}
	s.stakingPools[p.ID] = p
	return nil
}

func lockKey(id fintypes.Hash) []byte {
	return append([]byte("lock:"), id.Bytes()...)
}

// GetLockedTokens returns a bridge lock record by its lock id.
func (s *Store) GetLockedTokens(id fintypes.Hash) (*fintypes.LockedTokens, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.locks[id]; ok {
		return l, true, nil
	}

	var l fintypes.LockedTokens
	found, err := s.getJSON(lockKey(id), &l)
	if err != nil || !found {
		return nil, false, err
	}
	s.locks[id] = &l
	return &l, true, nil
}

// PutLockedTokens writes a bridge lock record through to the database.
func (s *Store) PutLockedTokens(l *fintypes.LockedTokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.putJSON(lockKey(l.LockID), l); err != nil {
		return err
	}
	s.locks[l.LockID] = l
	return nil
}

func priceFeedKey(symbol string) []byte {
	return append([]byte("feed:"), []byte(symbol)...)
}

// GetPriceFeed returns a price feed by its ticker symbol.
func (s *Store) GetPriceFeed(symbol string) (*fintypes.PriceFeed, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.priceFeeds[symbol]; ok {
		return f, true, nil
	}

	var f fintypes.PriceFeed
	found, err := s.getJSON(priceFeedKey(symbol), &f)
	if err != nil || !found {
		return nil, false, err
	}
	s.priceFeeds[symbol] = &f
	return &f, true, nil
}

// PutPriceFeed writes a price feed through to the database.
func (s *Store) PutPriceFeed(f *fintypes.PriceFeed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.putJSON(priceFeedKey(f.Symbol), f); err != nil {
		return err
	}
	s.priceFeeds[f.Symbol] = f
	return nil
}

var validatorSetKey = []byte("validators")

// GetValidatorSet returns the single global validator set record.
func (s *Store) GetValidatorSet() (*fintypes.ValidatorSet, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.validatorSet != nil {
		return s.validatorSet, true, nil
	}

	var vs fintypes.ValidatorSet
	found, err := s.getJSON(validatorSetKey, &vs)
	if err != nil || !found {
		return nil, false, err
	}
	s.validatorSet = &vs
	return &vs, true, nil
}

// PutValidatorSet writes the global validator set through to the database.
func (s *Store) PutValidatorSet(vs *fintypes.ValidatorSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.putJSON(validatorSetKey, vs); err != nil {
		return err
	}
	s.validatorSet = vs
	return nil
}

var networkStateKey = []byte("network")

// GetNetworkState returns the single global network state record.
func (s *Store) GetNetworkState() (*fintypes.NetworkState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.networkState != nil {
		return s.networkState, true, nil
	}

	var ns fintypes.NetworkState
	found, err := s.getJSON(networkStateKey, &ns)
	if err != nil || !found {
		return nil, false, err
	}
	s.networkState = &ns
	return &ns, true, nil
}

// PutNetworkState writes the global network state through to the database.
func (s *Store) PutNetworkState(ns *fintypes.NetworkState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.putJSON(networkStateKey, ns); err != nil {
		return err
	}
	s.networkState = ns
	return nil
}
