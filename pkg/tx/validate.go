package tx

import (
	"fmt"
	"math"

	"github.com/trinity-chain/trinitynode/pkg/crypto"
	"github.com/trinity-chain/trinitynode/pkg/geom"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// GeometricTolerance is the minimum value a transfer must leave behind after
// its fee is deducted. It mirrors geom.Tolerance so fee and area comparisons
// agree on what "zero" means.
const GeometricTolerance = geom.Tolerance

// MaxMemoLength bounds a transfer's optional memo field.
const MaxMemoLength = 256

// TriangleLookup is the read-only view of UTXO state that stateful
// validation needs. internal/utxo satisfies it.
type TriangleLookup interface {
	Get(hash types.Hash) (geom.Triangle, bool)
}

// ValidateSize rejects any transaction whose canonical size exceeds MaxSize.
func ValidateSize(t Transaction) error {
	if t.Size() > MaxSize {
		return fmt.Errorf("transaction too large: %d bytes, max %d", t.Size(), MaxSize)
	}
	return nil
}

// ValidateSignature checks only the subdivision's signature, without
// touching UTXO state. Used for early mempool admission.
func (s *Subdivision) ValidateSignature() error {
	if s.Signature == nil || s.PublicKey == nil {
		return fmt.Errorf("subdivision not signed")
	}
	if !crypto.VerifySignature(s.SignableMessage(), s.Signature, s.PublicKey) {
		return fmt.Errorf("invalid subdivision signature")
	}
	return nil
}

// Validate performs full validation against UTXO state: signature, parent
// existence, and exact geometric agreement with the parent's subdivision.
func (s *Subdivision) Validate(state TriangleLookup) error {
	if err := s.ValidateSignature(); err != nil {
		return err
	}

	parent, ok := state.Get(s.ParentHash)
	if !ok {
		return fmt.Errorf("parent triangle %s not found in UTXO set", s.ParentHash)
	}

	expected := parent.Subdivide()
	for i, child := range s.Children {
		want := expected[i]
		if !child.A.Equals(want.A) || !child.B.Equals(want.B) || !child.C.Equals(want.C) {
			return fmt.Errorf("child %d geometry does not match expected subdivision", i)
		}
	}
	return nil
}

// Validate checks the coinbase's reward bounds and beneficiary. Coinbase
// transactions are never signed.
func (c *Coinbase) Validate() error {
	if c.RewardArea == 0 {
		return fmt.Errorf("coinbase reward area must be greater than zero")
	}
	if c.RewardArea > MaxRewardArea {
		return fmt.Errorf("coinbase reward area %d exceeds maximum %d", c.RewardArea, MaxRewardArea)
	}
	if c.Beneficiary == "" {
		return fmt.Errorf("coinbase beneficiary address cannot be empty")
	}
	return nil
}

// Validate performs stateless validation: signature, non-empty addresses,
// memo length, and a finite non-negative fee. It does not touch UTXO state.
func (tr *Transfer) Validate() error {
	if tr.Signature == nil || tr.PublicKey == nil {
		return fmt.Errorf("transfer not signed")
	}
	if tr.Sender == "" {
		return fmt.Errorf("sender address cannot be empty")
	}
	if tr.NewOwner == "" {
		return fmt.Errorf("new owner address cannot be empty")
	}
	if math.IsNaN(tr.FeeAreaV) || math.IsInf(tr.FeeAreaV, 0) {
		return fmt.Errorf("fee area must be a finite number")
	}
	if tr.FeeAreaV < 0 {
		return fmt.Errorf("fee area cannot be negative")
	}
	if len(tr.Memo) > MaxMemoLength {
		return fmt.Errorf("memo exceeds maximum length of %d characters", MaxMemoLength)
	}
	if !crypto.VerifySignature(tr.SignableMessage(), tr.Signature, tr.PublicKey) {
		return fmt.Errorf("invalid transfer signature")
	}
	return nil
}

// ValidateWithState performs full validation: stateless checks plus input
// existence, the geometric fee-sufficiency check, and sender ownership.
func (tr *Transfer) ValidateWithState(state TriangleLookup) error {
	if err := tr.Validate(); err != nil {
		return err
	}

	input, ok := state.Get(tr.InputHash)
	if !ok {
		return fmt.Errorf("transfer input %s not found in UTXO set", tr.InputHash)
	}

	inputValue := input.EffectiveValue()
	remaining := inputValue - tr.FeeAreaV
	if remaining < GeometricTolerance {
		return fmt.Errorf(
			"insufficient triangle value: input has %.9f but fee_area is %.9f, leaving %.9f (minimum: %.9f)",
			inputValue, tr.FeeAreaV, remaining, GeometricTolerance,
		)
	}

	if input.Owner != tr.Sender {
		return fmt.Errorf("sender %s does not own input triangle (owned by %s)", tr.Sender, input.Owner)
	}

	return nil
}
