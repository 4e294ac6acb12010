// Package crypto provides the signing, verification, and address derivation
// primitives used by transactions and blocks.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Signer signs messages with a private key over secp256k1/ECDSA.
type Signer interface {
	// Sign produces a DER-encoded ECDSA signature over an arbitrary-length message.
	Sign(message []byte) ([]byte, error)
	// PublicKey returns the compressed 33-byte public key.
	PublicKey() []byte
}

// Verifier verifies secp256k1/ECDSA signatures.
type Verifier interface {
	// Verify checks a DER-encoded signature against a message and compressed public key.
	Verify(message, signature, publicKey []byte) bool
}

// PrivateKey wraps a secp256k1 private key for ECDSA signing.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	key := secp256k1.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// Sign produces a DER-encoded ECDSA signature over a message's SHA256 digest.
func (pk *PrivateKey) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	sig := ecdsa.Sign(pk.key, digest[:])
	return sig.Serialize(), nil
}

// PublicKey returns the compressed 33-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// Address returns the stable textual derivation of a compressed public key
// used as a triangle owner string: the hex encoding of SHA256(pubKey).
func Address(pubKey []byte) string {
	sum := sha256.Sum256(pubKey)
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks a DER-encoded ECDSA signature against a message and
// a compressed public key. Returns false on any parse or verification failure.
func VerifySignature(message, signature, publicKey []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(message)
	return sig.Verify(digest[:], pubKey)
}

// ECDSAVerifier implements Verifier.
type ECDSAVerifier struct{}

// Verify checks a DER-encoded ECDSA signature against a message and a
// compressed public key.
func (v ECDSAVerifier) Verify(message, signature, publicKey []byte) bool {
	return VerifySignature(message, signature, publicKey)
}
