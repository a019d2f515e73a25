package bridge

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"finova-core/chain/crypto"
	"finova-core/chain/evm"
	"finova-core/chain/fintypes"
)

// testValidator holds a keypair plus its index in the set, for signing
// test unlock messages.
type testValidator struct {
	index uint8
	pub   [32]byte
	priv  ed25519.PrivateKey
}

func buildValidatorSet(t *testing.T, count int) (*fintypes.ValidatorSet, []testValidator) {
	t.Helper()
	vs := &fintypes.ValidatorSet{Version: 1, Count: uint8(count)}
	vals := make([]testValidator, count)
	for i := 0; i < count; i++ {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatalf("keygen: %v", err)
		}
		var pk [32]byte
		copy(pk[:], pub)
		vs.Validators[i] = fintypes.ValidatorEntry{PublicKey: pk, Active: true, Stake: 1_000_000, Reputation: 10000}
		vals[i] = testValidator{index: uint8(i), pub: pk, priv: priv}
	}
	return vs, vals
}

func sign(t *testing.T, v testValidator, message []byte) (sig [64]byte, callLog evm.CallLog) {
	t.Helper()
	qr, err := crypto.Sign(message, crypto.SigAlgEd25519, v.priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	copy(sig[:], qr.Signature)

	messageHash := crypto.HashBridgeMessage(message)
	input := append(append(append([]byte{}, messageHash[:]...), v.pub[:]...), sig[:]...)
	var rec evm.Recorder
	if _, err := rec.Call(evm.Ed25519VerifyAddress, &evm.Ed25519Verify{}, input); err != nil {
		t.Fatalf("precompile call: %v", err)
	}
	return sig, rec.Log
}

func TestBridgeQuorumScenarioS3(t *testing.T) {
	// S3: validator_count=5, threshold_pct=67 -> required=max(2,4)=4.
	required := RequiredThreshold(5, 67, 2)
	if required != 4 {
		t.Fatalf("RequiredThreshold(5,67,2) = %d, want 4", required)
	}

	vs, vals := buildValidatorSet(t, 5)
	e := NewEngine(DefaultConfig())

	lockID := fintypes.SHA3([]byte("lock-1"))
	var destAddr [fintypes.DestinationAddressLength]byte
	sourceTx := fintypes.SHA3([]byte("source-tx"))

	lock, err := e.LockTokens(lockID, fintypes.Address{}, fintypes.Address{}, 1000, 1, destAddr, required, 42, 1000, 3600)
	if err != nil {
		t.Fatalf("LockTokens: %v", err)
	}

	message := UnlockMessage(lockID, lock.Nonce, lock.Amount, destAddr, sourceTx)

	// 3 valid signatures: still Locked.
	for i := 0; i < 3; i++ {
		sig, callLog := sign(t, vals[i], message)
		if err := e.SubmitSignature(lock, vs, vals[i].index, vals[i].pub, sig, message, sourceTx, 1000, 1000, callLog); err != nil {
			t.Fatalf("SubmitSignature(%d): %v", i, err)
		}
	}
	if lock.Status != fintypes.BridgeLocked {
		t.Fatalf("after 3 sigs status = %s, want Locked", lock.Status)
	}

	// Duplicate signature from an already-signed validator: stays Locked, returns ValidatorAlreadySigned.
	sigDup, callLogDup := sign(t, vals[2], message)
	err = e.SubmitSignature(lock, vs, vals[2].index, vals[2].pub, sigDup, message, sourceTx, 1000, 1000, callLogDup)
	if err == nil {
		t.Fatalf("expected duplicate-signature error, got nil")
	}
	ce, ok := err.(*fintypes.CoreError)
	if !ok || ce.Code != fintypes.CodeDuplicateSignature {
		t.Fatalf("expected CodeDuplicateSignature, got %v", err)
	}
	if lock.Status != fintypes.BridgeLocked {
		t.Fatalf("after duplicate status = %s, want Locked", lock.Status)
	}

	// 4th non-duplicate valid signature: ReadyToUnlock.
	sig4, callLog4 := sign(t, vals[3], message)
	if err := e.SubmitSignature(lock, vs, vals[3].index, vals[3].pub, sig4, message, sourceTx, 1000, 1000, callLog4); err != nil {
		t.Fatalf("SubmitSignature(3): %v", err)
	}
	if lock.Status != fintypes.BridgeReadyToUnlock {
		t.Fatalf("after 4 sigs status = %s, want ReadyToUnlock", lock.Status)
	}
	if lock.CurrentConfirmations != uint8(len(lock.ValidatorSignatures[:lock.SignatureCount])) {
		t.Fatalf("I5 violated: current_confirmations=%d != len(signatures)=%d", lock.CurrentConfirmations, lock.SignatureCount)
	}
}

func TestUnlockTerminalAfterUnlocked(t *testing.T) {
	vs, vals := buildValidatorSet(t, 2)
	e := NewEngine(DefaultConfig())
	lockID := fintypes.SHA3([]byte("lock-2"))
	var destAddr [fintypes.DestinationAddressLength]byte
	sourceTx := fintypes.SHA3([]byte("source-tx-2"))

	lock, _ := e.LockTokens(lockID, fintypes.Address{}, fintypes.Address{}, 500, 1, destAddr, 2, 1, 1000, 3600)
	message := UnlockMessage(lockID, lock.Nonce, lock.Amount, destAddr, sourceTx)

	for i := 0; i < 2; i++ {
		sig, callLog := sign(t, vals[i], message)
		if err := e.SubmitSignature(lock, vs, vals[i].index, vals[i].pub, sig, message, sourceTx, 1000, 1000, callLog); err != nil {
			t.Fatalf("SubmitSignature(%d): %v", i, err)
		}
	}
	if err := e.UnlockTokens(lock, 1000); err != nil {
		t.Fatalf("UnlockTokens: %v", err)
	}
	if lock.Status != fintypes.BridgeUnlocked {
		t.Fatalf("status = %s, want Unlocked", lock.Status)
	}
	if err := e.Cancel(lock); err == nil {
		t.Fatalf("expected Cancel to fail after Unlocked (terminal)")
	}
	if err := e.UnlockTokens(lock, 1000); err == nil {
		t.Fatalf("expected second UnlockTokens to fail")
	}
}

func TestSignatureRejectedOnStaleTimestamp(t *testing.T) {
	vs, vals := buildValidatorSet(t, 2)
	e := NewEngine(DefaultConfig())
	lockID := fintypes.SHA3([]byte("lock-3"))
	var destAddr [fintypes.DestinationAddressLength]byte
	sourceTx := fintypes.SHA3([]byte("source-tx-3"))
	// Locked at now=10000 so the lock itself is not expired when the signature arrives.
	lock, _ := e.LockTokens(lockID, fintypes.Address{}, fintypes.Address{}, 500, 1, destAddr, 2, 1, 10000, 3600)
	message := UnlockMessage(lockID, lock.Nonce, lock.Amount, destAddr, sourceTx)

	sig, callLog := sign(t, vals[0], message)
	// now=10000, ts=10000-3601 falls outside the 1h past window.
	err := e.SubmitSignature(lock, vs, vals[0].index, vals[0].pub, sig, message, sourceTx, 10000-3601, 10000, callLog)
	if err == nil {
		t.Fatalf("expected staleness error")
	}
	ce, ok := err.(*fintypes.CoreError)
	if !ok || ce.Kind != fintypes.KindStaleness {
		t.Fatalf("expected KindStaleness, got %v", err)
	}
}

func TestMerkleProofFoldRoundtrip(t *testing.T) {
	leaf := fintypes.SHA3([]byte("leaf"))
	sib1 := fintypes.SHA3([]byte("sib1"))
	sib2 := fintypes.SHA3([]byte("sib2"))
	root := FoldMerkleProof(leaf, []fintypes.Hash{sib1, sib2})
	if !VerifyMerkleProof(leaf, []fintypes.Hash{sib1, sib2}, root) {
		t.Fatalf("expected proof to verify against its own fold")
	}
	if VerifyMerkleProof(leaf, []fintypes.Hash{sib2, sib1}, root) {
		t.Fatalf("different sibling order should not reproduce the same root unless both sides happen to sort identically")
	}
}
