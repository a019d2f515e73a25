package bridge

import (
	"bytes"

	"finova-core/chain/fintypes"
)

// FoldMerkleProof implements spec.md §4.5's fold: sort-pair adjacent
// hashes (lexicographic min-left) and re-hash, depth <= MaxMerkleDepth.
// Grounded on the Finova reference's verify_merkle_proof (keccak pair
// folding), expressed with this ledger's native SHA3 hash instead.
func FoldMerkleProof(leaf fintypes.Hash, proof []fintypes.Hash) fintypes.Hash {
	computed := leaf
	for _, sibling := range proof {
		if bytes.Compare(computed[:], sibling[:]) <= 0 {
			computed = fintypes.SHA3(computed[:], sibling[:])
		} else {
			computed = fintypes.SHA3(sibling[:], computed[:])
		}
	}
	return computed
}

// VerifyMerkleProof reports whether folding leaf through proof
// reproduces root.
func VerifyMerkleProof(leaf fintypes.Hash, proof []fintypes.Hash, root fintypes.Hash) bool {
	if len(proof) == 0 || len(proof) > fintypes.MaxMerkleDepth {
		return false
	}
	return FoldMerkleProof(leaf, proof).Equal(root)
}
