// Package tx defines the three transaction variants that mutate triangle
// UTXO state: subdivision, transfer, and coinbase.
package tx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"

	"github.com/trinity-chain/trinitynode/pkg/crypto"
	"github.com/trinity-chain/trinitynode/pkg/geom"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// MaxSize is the largest serialized transaction this chain will accept.
const MaxSize = 100_000

// Transaction is the closed set of operations recorded in a block.
type Transaction interface {
	// Hash returns the canonical, variant-tagged transaction hash.
	Hash() types.Hash
	// FeeArea returns the geometric fee this transaction pays, in area units.
	// Coinbase transactions pay no fee and always return 0.
	FeeArea() float64
	// Size returns an upper bound on the transaction's canonical encoded size,
	// used to enforce MaxSize without a full serialization round-trip.
	Size() int
}

// Subdivision consumes one triangle and produces the three triangles its
// midpoint split yields. It carries a signature by the key in PublicKey;
// validation checks that signature but does not tie the key to the parent
// triangle's owner.
type Subdivision struct {
	ParentHash types.Hash       `json:"parent_hash"`
	Children   [3]geom.Triangle `json:"children"`
	Owner      string           `json:"owner"`
	Fee        uint64           `json:"fee"`
	Nonce      uint64           `json:"nonce"`
	Signature  []byte           `json:"-"`
	PublicKey  []byte           `json:"-"`
}

// subdivisionJSON mirrors Subdivision with hex-encoded byte fields.
type subdivisionJSON struct {
	ParentHash types.Hash       `json:"parent_hash"`
	Children   [3]geom.Triangle `json:"children"`
	Owner      string           `json:"owner"`
	Fee        uint64           `json:"fee"`
	Nonce      uint64           `json:"nonce"`
	Signature  string           `json:"signature,omitempty"`
	PublicKey  string           `json:"public_key,omitempty"`
}

// MarshalJSON encodes the subdivision with hex-encoded signature and public key.
func (s *Subdivision) MarshalJSON() ([]byte, error) {
	j := subdivisionJSON{
		ParentHash: s.ParentHash,
		Children:   s.Children,
		Owner:      s.Owner,
		Fee:        s.Fee,
		Nonce:      s.Nonce,
	}
	if s.Signature != nil {
		j.Signature = hexEncode(s.Signature)
	}
	if s.PublicKey != nil {
		j.PublicKey = hexEncode(s.PublicKey)
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes a subdivision with hex-encoded signature and public key.
func (s *Subdivision) UnmarshalJSON(data []byte) error {
	var j subdivisionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	s.ParentHash = j.ParentHash
	s.Children = j.Children
	s.Owner = j.Owner
	s.Fee = j.Fee
	s.Nonce = j.Nonce
	sig, err := hexDecode(j.Signature)
	if err != nil {
		return err
	}
	s.Signature = sig
	pub, err := hexDecode(j.PublicKey)
	if err != nil {
		return err
	}
	s.PublicKey = pub
	return nil
}

// SignableMessage returns the bytes a wallet signs to authorize a subdivision:
// parent_hash || child_hash[0..3] || owner_bytes || fee_le8 || nonce_le8.
func (s *Subdivision) SignableMessage() []byte {
	buf := make([]byte, 0, 32+32*3+len(s.Owner)+8+8)
	buf = append(buf, s.ParentHash.Bytes()...)
	for _, c := range s.Children {
		h := c.Hash()
		buf = append(buf, h.Bytes()...)
	}
	buf = append(buf, []byte(s.Owner)...)
	buf = binary.LittleEndian.AppendUint64(buf, s.Fee)
	buf = binary.LittleEndian.AppendUint64(buf, s.Nonce)
	return buf
}

// Hash is the canonical transaction hash: no variant tag is prefixed for
// subdivisions, the preimage is the raw signable fields.
func (s *Subdivision) Hash() types.Hash {
	buf := make([]byte, 0, 32+32*3+len(s.Owner)+8+8)
	buf = append(buf, s.ParentHash.Bytes()...)
	for _, c := range s.Children {
		h := c.Hash()
		buf = append(buf, h.Bytes()...)
	}
	buf = append(buf, []byte(s.Owner)...)
	buf = binary.LittleEndian.AppendUint64(buf, s.Fee)
	buf = binary.LittleEndian.AppendUint64(buf, s.Nonce)
	return crypto.Hash(buf)
}

// FeeArea reports the subdivision's integer fee as a geometric area value.
func (s *Subdivision) FeeArea() float64 {
	return float64(s.Fee)
}

// Size returns the approximate canonical encoded size of the subdivision.
func (s *Subdivision) Size() int {
	return 32 + 32*3 + len(s.Owner) + 8 + 8 + len(s.Signature) + len(s.PublicKey)
}

// Transfer moves one triangle to a new owner, paying a geometric fee that is
// deducted from the triangle's effective value without changing its shape.
type Transfer struct {
	InputHash types.Hash `json:"input_hash"`
	NewOwner  string     `json:"new_owner"`
	Sender    string     `json:"sender"`
	Memo      string     `json:"memo,omitempty"`
	FeeAreaV  float64    `json:"fee_area"`
	Nonce     uint64     `json:"nonce"`
	Signature []byte     `json:"-"`
	PublicKey []byte     `json:"-"`
}

type transferJSON struct {
	InputHash types.Hash `json:"input_hash"`
	NewOwner  string     `json:"new_owner"`
	Sender    string     `json:"sender"`
	Memo      string     `json:"memo,omitempty"`
	FeeArea   float64    `json:"fee_area"`
	Nonce     uint64     `json:"nonce"`
	Signature string     `json:"signature,omitempty"`
	PublicKey string     `json:"public_key,omitempty"`
}

// MarshalJSON encodes the transfer with hex-encoded signature and public key.
func (tr *Transfer) MarshalJSON() ([]byte, error) {
	j := transferJSON{
		InputHash: tr.InputHash,
		NewOwner:  tr.NewOwner,
		Sender:    tr.Sender,
		Memo:      tr.Memo,
		FeeArea:   tr.FeeAreaV,
		Nonce:     tr.Nonce,
	}
	if tr.Signature != nil {
		j.Signature = hexEncode(tr.Signature)
	}
	if tr.PublicKey != nil {
		j.PublicKey = hexEncode(tr.PublicKey)
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes a transfer with hex-encoded signature and public key.
func (tr *Transfer) UnmarshalJSON(data []byte) error {
	var j transferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	tr.InputHash = j.InputHash
	tr.NewOwner = j.NewOwner
	tr.Sender = j.Sender
	tr.Memo = j.Memo
	tr.FeeAreaV = j.FeeArea
	tr.Nonce = j.Nonce
	sig, err := hexDecode(j.Signature)
	if err != nil {
		return err
	}
	tr.Signature = sig
	pub, err := hexDecode(j.PublicKey)
	if err != nil {
		return err
	}
	tr.PublicKey = pub
	return nil
}

// SignableMessage returns the bytes a wallet signs to authorize a transfer:
// "TRANSFER:" || input_hash || new_owner_bytes || sender_bytes || fee_area_le8 || nonce_le8.
func (tr *Transfer) SignableMessage() []byte {
	buf := make([]byte, 0, 9+32+len(tr.NewOwner)+len(tr.Sender)+8+8)
	buf = append(buf, "TRANSFER:"...)
	buf = append(buf, tr.InputHash.Bytes()...)
	buf = append(buf, []byte(tr.NewOwner)...)
	buf = append(buf, []byte(tr.Sender)...)
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(tr.FeeAreaV))
	buf = binary.LittleEndian.AppendUint64(buf, tr.Nonce)
	return buf
}

// Hash is the canonical transaction hash, tagged with the literal "transfer".
func (tr *Transfer) Hash() types.Hash {
	buf := make([]byte, 0, 8+32+len(tr.NewOwner)+len(tr.Sender)+8+8)
	buf = append(buf, "transfer"...)
	buf = append(buf, tr.InputHash.Bytes()...)
	buf = append(buf, []byte(tr.NewOwner)...)
	buf = append(buf, []byte(tr.Sender)...)
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(tr.FeeAreaV))
	buf = binary.LittleEndian.AppendUint64(buf, tr.Nonce)
	return crypto.Hash(buf)
}

// FeeArea returns the transfer's declared geometric fee.
func (tr *Transfer) FeeArea() float64 {
	return tr.FeeAreaV
}

// Size returns the approximate canonical encoded size of the transfer.
func (tr *Transfer) Size() int {
	return 9 + 32 + len(tr.NewOwner) + len(tr.Sender) + len(tr.Memo) + 8 + 8 + len(tr.Signature) + len(tr.PublicKey)
}

// Coinbase mints a new reward triangle for the miner of a block. It is never
// signed; its validity rests entirely on the reward schedule and block position.
type Coinbase struct {
	RewardArea  uint64 `json:"reward_area"`
	Beneficiary string `json:"beneficiary"`
}

// MaxRewardArea is the largest area a single coinbase output may claim,
// independent of the actual block subsidy (that cap is enforced in internal/chain).
const MaxRewardArea = 1000

// Hash is the canonical transaction hash, tagged with the literal "coinbase".
func (c *Coinbase) Hash() types.Hash {
	buf := make([]byte, 0, 8+8+len(c.Beneficiary))
	buf = append(buf, "coinbase"...)
	buf = binary.LittleEndian.AppendUint64(buf, c.RewardArea)
	buf = append(buf, []byte(c.Beneficiary)...)
	return crypto.Hash(buf)
}

// FeeArea is always zero: coinbase transactions pay no fee.
func (c *Coinbase) FeeArea() float64 {
	return 0
}

// Size returns the approximate canonical encoded size of the coinbase.
func (c *Coinbase) Size() int {
	return 8 + len(c.Beneficiary)
}

func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func hexDecode(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}
