// Package crypto provides cryptographic primitives for the chain.
package crypto

import (
	"crypto/sha256"

	"github.com/trinity-chain/trinitynode/pkg/types"
)

// Hash computes the SHA256 hash of the input data. Every consensus hash in
// this chain (block headers, merkle nodes, triangle and transaction hashes)
// is SHA256, never BLAKE3: BLAKE3 is reserved for non-consensus fingerprinting,
// see Fingerprint.
func Hash(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// DoubleHash computes Hash(Hash(data)).
func DoubleHash(data []byte) types.Hash {
	first := Hash(data)
	return Hash(first[:])
}

// HashConcat hashes the concatenation of two hashes. Used for building merkle trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}
