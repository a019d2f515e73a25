package fintypes

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// AddressLength is the width of an account address in bytes.
	AddressLength = 32
	// HashLength is the width of a domain hash in bytes.
	HashLength = 32
)

// Address identifies a ledger account. It is opaque to the core engines:
// they never interpret its bytes, only compare and index by it.
type Address [AddressLength]byte

// Hash is a 32-byte cryptographic digest.
type Hash [HashLength]byte

// ZeroAddress is the empty address, used as a sentinel for "no referrer".
var ZeroAddress = Address{}

// ZeroHash is the empty hash.
var ZeroHash = Hash{}

// BytesToAddress right-aligns b into an Address, truncating from the left
// if b is longer than AddressLength.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		copy(a[:], b[len(b)-AddressLength:])
	} else {
		copy(a[AddressLength-len(b):], b)
	}
	return a
}

// BytesToHash right-aligns b into a Hash.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		copy(h[:], b[len(b)-HashLength:])
	} else {
		copy(h[HashLength-len(b):], b)
	}
	return h
}

func (a Address) Hex() string    { return "0x" + hex.EncodeToString(a[:]) }
func (a Address) String() string { return a.Hex() }
func (a Address) Bytes() []byte  { return a[:] }
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a[:], other[:])
}
func (a Address) IsZero() bool { return a.Equal(ZeroAddress) }

func (h Hash) Hex() string    { return "0x" + hex.EncodeToString(h[:]) }
func (h Hash) String() string { return h.Hex() }
func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) Equal(other Hash) bool {
	return bytes.Equal(h[:], other[:])
}
func (h Hash) IsZero() bool { return h.Equal(ZeroHash) }

// MarshalText renders an Address as a 0x-prefixed hex string, so it
// round-trips through JSON (and RPC query/form values) the way every
// other address-shaped wire value in this ecosystem does.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText parses a 0x-prefixed (or bare) hex string into an Address.
func (a *Address) UnmarshalText(text []byte) error {
	b, err := decodeHex(string(text), AddressLength)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}
	*a = BytesToAddress(b)
	return nil
}

// MarshalText renders a Hash as a 0x-prefixed hex string.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText parses a 0x-prefixed (or bare) hex string into a Hash.
func (h *Hash) UnmarshalText(text []byte) error {
	b, err := decodeHex(string(text), HashLength)
	if err != nil {
		return fmt.Errorf("parse hash: %w", err)
	}
	*h = BytesToHash(b)
	return nil
}

func decodeHex(s string, width int) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) > width {
		return nil, fmt.Errorf("value %d bytes wide, want at most %d", len(b), width)
	}
	return b, nil
}

// SHA3 computes the Keccak-family SHA3-256 digest of data, matching the
// teacher's use of golang.org/x/crypto/sha3 for address-space hashing.
func SHA3(data ...[]byte) Hash {
	h := sha3.New256()
	for _, d := range data {
		h.Write(d)
	}
	return BytesToHash(h.Sum(nil))
}
