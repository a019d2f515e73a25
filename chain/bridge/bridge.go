// Package bridge implements the Bridge Signature Verifier (spec.md
// §4.5): multi-signature quorum over cross-chain unlock messages, with
// replay protection, staleness bounds, and emergency pause. Grounded on
// the teacher's chain/consensus/multi_validator_consensus.go (validator
// set bookkeeping, mutex-guarded mutation) generalized from stake-
// weighted block consensus to simple signature-count quorum, and on
// chain/evm's precompile-call-log scan in place of inline crypto.
package bridge

import (
	"encoding/binary"
	"sync"

	"finova-core/chain/crypto"
	"finova-core/chain/evm"
	"finova-core/chain/fintypes"
)

// Config bounds the verifier (spec.md §7 Size Budget table).
type Config struct {
	RequiredConfirmationsMin  uint8
	MaxValidatorsPerTx        uint8
	SignaturePastWindowSec    int64
	SignatureFutureToleranceS int64
}

// DefaultConfig matches spec.md §7.
func DefaultConfig() Config {
	return Config{
		RequiredConfirmationsMin:  2,
		MaxValidatorsPerTx:        fintypes.MaxValidatorsPerTx,
		SignaturePastWindowSec:    3600,
		SignatureFutureToleranceS: 300,
	}
}

// Engine verifies validator signatures and drives LockedTokens through
// its one-way state machine. It holds no singleton state of its own;
// the ValidatorSet and each LockedTokens record are passed in by the
// caller per spec.md §9 ("no ambient singletons").
type Engine struct {
	cfg Config
	mu  sync.RWMutex
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// LockTokens opens a new lock record in state Locked.
func (e *Engine) LockTokens(
	lockID fintypes.Hash,
	user, tokenMint fintypes.Address,
	amount uint64,
	destChain uint8,
	destAddr [fintypes.DestinationAddressLength]byte,
	requiredConfirmations uint8,
	nonce uint64,
	now int64,
	expirySeconds int64,
) (*fintypes.LockedTokens, error) {
	if amount == 0 {
		return nil, fintypes.ErrInvariant(fintypes.CodeBadThreshold, "lock amount must be non-zero")
	}
	if requiredConfirmations < e.cfg.RequiredConfirmationsMin {
		requiredConfirmations = e.cfg.RequiredConfirmationsMin
	}
	return &fintypes.LockedTokens{
		Version:               1,
		LockID:                lockID,
		User:                  user,
		TokenMint:             tokenMint,
		Amount:                amount,
		DestinationChain:      destChain,
		DestinationAddr:       destAddr,
		Status:                fintypes.BridgeLocked,
		RequiredConfirmations: requiredConfirmations,
		LockedAtTS:            now,
		ExpiryTS:              now + expirySeconds,
		Nonce:                 nonce,
	}, nil
}

// UnlockMessage returns the bytes the validator set signs over: spec.md
// §4.5 "the unlock message binds {lock_id, nonce, amount, recipient,
// source_tx_hash}" — this is what answers Open Question (b).
func UnlockMessage(lockID fintypes.Hash, nonce, amount uint64, destAddr [fintypes.DestinationAddressLength]byte, sourceTxHash fintypes.Hash) []byte {
	buf := make([]byte, 0, len(lockID)+8+8+len(destAddr)+len(sourceTxHash))
	buf = append(buf, lockID[:]...)
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	buf = binary.BigEndian.AppendUint64(buf, amount)
	buf = append(buf, destAddr[:]...)
	buf = append(buf, sourceTxHash[:]...)
	return buf
}

// RequiredThreshold computes spec.md §4.5's
// max(2, ceil(validator_count * threshold_pct / 100)), capped at
// validator_count.
func RequiredThreshold(validatorCount uint8, thresholdPct uint8, min uint8) uint8 {
	if validatorCount == 0 {
		return 0
	}
	num := uint32(validatorCount) * uint32(thresholdPct)
	calc := uint8((num + 99) / 100) // ceil
	if calc < min {
		calc = min
	}
	if calc > validatorCount {
		calc = validatorCount
	}
	return calc
}

// SubmitSignature implements spec.md §4.5's 5-point validation and
// appends a confirmation. callLog is the transaction's recorded
// precompile calls; point 5 is checked by scanning it rather than
// calling crypto.Verify directly, per spec.md §9 Design Notes.
func (e *Engine) SubmitSignature(
	lock *fintypes.LockedTokens,
	validators *fintypes.ValidatorSet,
	validatorIndex uint8,
	publicKey [32]byte,
	signature [64]byte,
	message []byte,
	sourceTxHash fintypes.Hash,
	ts int64,
	now int64,
	callLog evm.CallLog,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lock.Status != fintypes.BridgeLocked {
		return fintypes.ErrInvariant(fintypes.CodeInvalidTransition, "lock %s is not accepting signatures in status %s", lock.LockID.Hex(), lock.Status)
	}
	if now > lock.ExpiryTS {
		lock.Status = fintypes.BridgeFailed
		return fintypes.ErrStaleness(fintypes.CodeExpired, "lock %s expired at %d", lock.LockID.Hex(), lock.ExpiryTS)
	}

	// 1. ts within [now-3600, now+300].
	if ts < now-e.cfg.SignaturePastWindowSec || ts > now+e.cfg.SignatureFutureToleranceS {
		return fintypes.ErrStaleness(fintypes.CodeStaleTimestamp, "signature timestamp %d outside window around %d", ts, now)
	}

	// 2. validator_index resolves to an active validator whose recorded
	// public key matches the one submitted.
	if int(validatorIndex) >= int(validators.Count) {
		return fintypes.ErrAuthorization(fintypes.CodeUnknownValidator, "validator index %d out of range", validatorIndex)
	}
	entry := validators.Validators[validatorIndex]
	if !entry.Active {
		return fintypes.ErrAuthorization(fintypes.CodeUnknownValidator, "validator %d is not active", validatorIndex)
	}
	if entry.PublicKey != publicKey {
		return fintypes.ErrCryptographic(fintypes.CodeBadSignature, "public key mismatch for validator %d", validatorIndex)
	}

	// 3. message_hash == H(domain || message).
	messageHash := crypto.HashBridgeMessage(message)

	// 4. dedupe by validator index.
	if lock.HasSigned(validatorIndex) {
		return fintypes.ErrInvariant(fintypes.CodeDuplicateSignature, "validator %d already signed lock %s", validatorIndex, lock.LockID.Hex())
	}

	// 5. scan the transaction's precompile call log for a matching,
	// successful Ed25519 verification — never call crypto.Verify here.
	if !evm.ScanForEd25519Verification(callLog, messageHash[:], publicKey[:], signature[:]) {
		return fintypes.ErrCryptographic(fintypes.CodeBadSignature, "no verified Ed25519 precompile call found for validator %d", validatorIndex)
	}

	lock.ValidatorSignatures[lock.SignatureCount] = fintypes.ValidatorSignature{
		ValidatorIndex: validatorIndex,
		Signature:      signature,
		MessageHash:    messageHash,
		SubmittedTS:    ts,
	}
	lock.SignatureCount++
	lock.CurrentConfirmations = lock.SignatureCount

	if lock.CurrentConfirmations >= lock.RequiredConfirmations {
		lock.Status = fintypes.BridgeReadyToUnlock
	}
	return nil
}

// UnlockTokens transitions ReadyToUnlock -> Unlocked (terminal).
func (e *Engine) UnlockTokens(lock *fintypes.LockedTokens, now int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lock.Status != fintypes.BridgeReadyToUnlock {
		return fintypes.ErrInvariant(fintypes.CodeInvalidTransition, "lock %s is not ready to unlock (status %s)", lock.LockID.Hex(), lock.Status)
	}
	if now > lock.ExpiryTS {
		lock.Status = fintypes.BridgeFailed
		return fintypes.ErrStaleness(fintypes.CodeExpired, "lock %s expired before unlock", lock.LockID.Hex())
	}
	lock.Status = fintypes.BridgeUnlocked
	lock.UnlockedAtTS = now
	return nil
}

// EmergencyPause transitions Locked|ReadyToUnlock -> Paused.
func (e *Engine) EmergencyPause(lock *fintypes.LockedTokens) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lock.Status != fintypes.BridgeLocked && lock.Status != fintypes.BridgeReadyToUnlock {
		return fintypes.ErrInvariant(fintypes.CodeInvalidTransition, "lock %s cannot be paused from status %s", lock.LockID.Hex(), lock.Status)
	}
	lock.Status = fintypes.BridgePausedState
	return nil
}

// Resume restores the prior status based on the confirmation count,
// per spec.md §4.5's state machine (Paused -resume-> prior state).
func (e *Engine) Resume(lock *fintypes.LockedTokens) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lock.Status != fintypes.BridgePausedState {
		return fintypes.ErrInvariant(fintypes.CodeInvalidTransition, "lock %s is not paused", lock.LockID.Hex())
	}
	if lock.CurrentConfirmations >= lock.RequiredConfirmations {
		lock.Status = fintypes.BridgeReadyToUnlock
	} else {
		lock.Status = fintypes.BridgeLocked
	}
	return nil
}

// Cancel transitions Locked|ReadyToUnlock -> Cancelled (terminal,
// issuer only — authorization is enforced by the caller, which holds
// the issuer identity this package does not see).
func (e *Engine) Cancel(lock *fintypes.LockedTokens) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lock.Status != fintypes.BridgeLocked && lock.Status != fintypes.BridgeReadyToUnlock {
		return fintypes.ErrInvariant(fintypes.CodeInvalidTransition, "lock %s cannot be cancelled from status %s", lock.LockID.Hex(), lock.Status)
	}
	lock.Status = fintypes.BridgeCancelled
	return nil
}
