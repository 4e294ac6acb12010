package crypto

import "github.com/zeebo/blake3"

// Fingerprint computes a fast BLAKE3-256 digest for non-consensus uses: gossip
// dedup caches, log correlation, and other places that want a cheap collision
// check but must never feed into a hash that determines chain validity.
func Fingerprint(data []byte) [32]byte {
	return blake3.Sum256(data)
}
