// Package evm adapts the teacher's quantum-precompile dispatch
// (chain/evm/precompiles.go) to the one signature algorithm spec.md §9
// names: Ed25519. The core never performs variable-time crypto inline;
// it calls into this precompile and then, for bridge unlocks, scans the
// precompile call log the transaction produced (see call_log.go) rather
// than re-verifying the signature itself.
package evm

import (
	"errors"

	"finova-core/chain/crypto"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
)

// Ed25519VerifyAddress continues the teacher's quantum-precompile
// numbering (0x0a-0x0d were Dilithium/Falcon/Kyber/SPHINCS+).
var Ed25519VerifyAddress = common.BytesToAddress([]byte{14}) // 0x0e

// Ed25519VerifyGas prices the precompile call. Ed25519 verification is
// constant-time and cheap relative to the lattice schemes it replaces.
const Ed25519VerifyGas = uint64(3000)

// FinovaPrecompiles returns the precompiled contracts this chain adds
// to go-ethereum's base set.
func FinovaPrecompiles() map[common.Address]vm.PrecompiledContract {
	return map[common.Address]vm.PrecompiledContract{
		Ed25519VerifyAddress: &Ed25519Verify{},
	}
}

// UpdateFinovaPrecompiles adds this chain's precompiles to an existing
// precompile map, mirroring the teacher's UpdateQuantumPrecompiles.
func UpdateFinovaPrecompiles(precompiles map[common.Address]vm.PrecompiledContract) {
	for addr, contract := range FinovaPrecompiles() {
		precompiles[addr] = contract
	}
}

// Ed25519Verify precompiled contract. Input format: [32 bytes message
// hash][32 bytes public key][64 bytes signature], matching the
// fixed-offset layout the teacher used for DilithiumVerify/FalconVerify.
type Ed25519Verify struct{}

func (c *Ed25519Verify) RequiredGas(input []byte) uint64 {
	return Ed25519VerifyGas
}

func (c *Ed25519Verify) Run(input []byte) ([]byte, error) {
	const (
		messageOffset = 0
		messageSize   = 32
		pubkeyOffset  = messageOffset + messageSize
		pubkeySize    = 32
		sigOffset     = pubkeyOffset + pubkeySize
		sigSize       = 64
		totalSize     = sigOffset + sigSize
	)

	if len(input) < totalSize {
		return nil, errors.New("insufficient input data for Ed25519 verification")
	}

	message := input[messageOffset : messageOffset+messageSize]
	publicKey := input[pubkeyOffset : pubkeyOffset+pubkeySize]
	signature := input[sigOffset : sigOffset+sigSize]

	valid := crypto.Verify(message, signature, publicKey)

	result := make([]byte, 32)
	if valid {
		result[31] = 1
	}
	return result, nil
}
