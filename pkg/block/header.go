package block

import (
	"encoding/binary"

	"github.com/trinity-chain/trinitynode/pkg/crypto"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// Header contains block metadata.
type Header struct {
	Height       uint64     `json:"height"`
	PreviousHash types.Hash `json:"previous_hash"`
	Timestamp    int64      `json:"timestamp"`
	Difficulty   uint64     `json:"difficulty"`
	Nonce        uint64     `json:"nonce"`
	MerkleRoot   types.Hash `json:"merkle_root"`
	Headline     string     `json:"headline,omitempty"`
}

// Hash computes the block header hash. Headline is cosmetic and excluded
// from the preimage.
func (h *Header) Hash() types.Hash {
	return crypto.Hash(h.SigningBytes())
}

// SigningBytes returns the canonical bytes hashed to produce the header's
// identity. Field order: height | previous_hash | timestamp | difficulty |
// nonce | merkle_root, all integers little-endian.
func (h *Header) SigningBytes() []byte {
	buf := make([]byte, 0, 8+32+8+8+8+32)
	buf = binary.LittleEndian.AppendUint64(buf, h.Height)
	buf = append(buf, h.PreviousHash.Bytes()...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.Timestamp))
	buf = binary.LittleEndian.AppendUint64(buf, h.Difficulty)
	buf = binary.LittleEndian.AppendUint64(buf, h.Nonce)
	buf = append(buf, h.MerkleRoot.Bytes()...)
	return buf
}

// MeetsTarget reports whether the header hash satisfies its own
// difficulty: the hex representation of the hash must begin with at
// least Difficulty leading zero nibbles.
func (h *Header) MeetsTarget() bool {
	return HashMeetsDifficulty(h.Hash(), h.Difficulty)
}

// HashMeetsDifficulty reports whether hash has at least difficulty
// leading zero hex nibbles.
func HashMeetsDifficulty(hash types.Hash, difficulty uint64) bool {
	b := hash.Bytes()
	fullBytes := difficulty / 2
	if uint64(len(b)) < fullBytes {
		return false
	}
	for i := uint64(0); i < fullBytes; i++ {
		if b[i] != 0 {
			return false
		}
	}
	if difficulty%2 == 1 {
		if fullBytes >= uint64(len(b)) {
			return false
		}
		if b[fullBytes]&0xF0 != 0 {
			return false
		}
	}
	return true
}
