// Package crypto provides the domain-separated hashing and signature
// dispatch the Bridge Verifier needs. It keeps the teacher's
// SignatureAlgorithm dispatch shape (chain/crypto/qrsig.go) narrowed to
// the one algorithm spec.md §4.5 names: Ed25519. See DESIGN.md for why
// the teacher's post-quantum branches (Dilithium/Falcon/Kyber, and the
// circl dependency behind them) were dropped rather than kept.
package crypto

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// SignatureAlgorithm names a supported signing scheme. The enum is kept
// even though only one value is defined today, because spec.md §4.5
// point 5 and §9 both describe verification as dispatching on an
// algorithm tag — callers should not assume Ed25519 is the only ever
// value.
type SignatureAlgorithm uint8

const (
	SigAlgEd25519 SignatureAlgorithm = iota + 1
)

func (a SignatureAlgorithm) String() string {
	switch a {
	case SigAlgEd25519:
		return "Ed25519"
	default:
		return "Unknown"
	}
}

// QRSignature is a signature over a message, tagged with the algorithm
// that produced it — named for the teacher's QRSignature, kept as the
// envelope shape even though only Ed25519 populates it now.
type QRSignature struct {
	Algorithm SignatureAlgorithm
	Signature []byte
	PublicKey []byte
}

// BridgeDomainTag is the domain-separation prefix spec.md §4.5 point 3
// requires: message_hash == H("FINOVA_BRIDGE_SIGNATURE" || message).
const BridgeDomainTag = "FINOVA_BRIDGE_SIGNATURE"

// HashBridgeMessage computes the domain-separated message hash the
// Bridge Verifier checks every submitted signature against.
func HashBridgeMessage(message []byte) [32]byte {
	h := sha3.New256()
	h.Write([]byte(BridgeDomainTag))
	h.Write(message)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Sign produces an Ed25519 signature over message using privateKey.
func Sign(message []byte, algorithm SignatureAlgorithm, privateKey ed25519.PrivateKey) (*QRSignature, error) {
	switch algorithm {
	case SigAlgEd25519:
		if len(privateKey) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("invalid Ed25519 private key size: %d", len(privateKey))
		}
		sig := ed25519.Sign(privateKey, message)
		pub := privateKey.Public().(ed25519.PublicKey)
		return &QRSignature{Algorithm: algorithm, Signature: sig, PublicKey: []byte(pub)}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAlgorithm, algorithm)
	}
}

// Verify checks that signature is a valid Ed25519 signature over message
// under publicKey. This is exposed for the deterministic precompile
// implementation in chain/evm — spec.md §9 Design Notes asks that the
// core itself never perform variable-time crypto inline, only scan for
// a recorded precompile side-effect; this function is what the
// precompile calls on the ledger's behalf, not what core handlers call
// directly.
func Verify(message, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

// ErrUnsupportedAlgorithm is returned when a submission names an
// algorithm this build does not implement.
var ErrUnsupportedAlgorithm = errors.New("crypto: unsupported signature algorithm")
