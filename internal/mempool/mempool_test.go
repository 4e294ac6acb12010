package mempool

import (
	"testing"

	"github.com/trinity-chain/trinitynode/pkg/crypto"
	"github.com/trinity-chain/trinitynode/pkg/geom"
	"github.com/trinity-chain/trinitynode/pkg/tx"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

type fakeState map[types.Hash]geom.Triangle

func (f fakeState) Get(hash types.Hash) (geom.Triangle, bool) {
	t, ok := f[hash]
	return t, ok
}

func signedSubdivision(t *testing.T, key *crypto.PrivateKey, parent geom.Triangle, nonce uint64) *tx.Subdivision {
	t.Helper()
	s := &tx.Subdivision{
		ParentHash: parent.Hash(),
		Children:   parent.Subdivide(),
		Owner:      crypto.Address(key.PublicKey()),
		Nonce:      nonce,
	}
	sig, err := key.Sign(s.SignableMessage())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	s.Signature = sig
	s.PublicKey = key.PublicKey()
	return s
}

func TestAddAndLen(t *testing.T) {
	key, _ := crypto.GenerateKey()
	parent := geom.Genesis(crypto.Address(key.PublicKey()))
	p := New()

	s := signedSubdivision(t, key, parent, 1)
	if err := p.Add(s); err != nil {
		t.Fatalf("add: %v", err)
	}
	if p.Len() != 1 {
		t.Fatalf("expected 1 pending tx, got %d", p.Len())
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	key, _ := crypto.GenerateKey()
	parent := geom.Genesis(crypto.Address(key.PublicKey()))
	p := New()

	s := signedSubdivision(t, key, parent, 1)
	if err := p.Add(s); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := p.Add(s); err == nil {
		t.Fatal("expected error adding duplicate transaction")
	}
	if p.Len() != 1 {
		t.Fatalf("expected 1 pending tx after duplicate rejected, got %d", p.Len())
	}
}

func TestAddRejectsCoinbase(t *testing.T) {
	p := New()
	cb := &tx.Coinbase{RewardArea: 500, Beneficiary: "miner"}
	if err := p.Add(cb); err == nil {
		t.Fatal("expected error adding coinbase to mempool")
	}
}

func TestAddEnforcesPerSenderLimit(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.Address(key.PublicKey())
	parent := geom.Genesis(addr)
	p := New()

	for i := uint64(0); i < MaxPerSender; i++ {
		s := signedSubdivision(t, key, parent, i)
		if err := p.Add(s); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	over := signedSubdivision(t, key, parent, MaxPerSender)
	if err := p.Add(over); err == nil {
		t.Fatal("expected error exceeding per-sender mempool limit")
	}
}

func TestByFeeOrdersDescending(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.Address(key.PublicKey())
	parent := geom.Genesis(addr)
	p := New()

	fees := []uint64{10, 50, 25}
	for i, fee := range fees {
		s := &tx.Subdivision{
			ParentHash: parent.Hash(),
			Children:   parent.Subdivide(),
			Owner:      addr,
			Fee:        fee,
			Nonce:      uint64(i),
		}
		sig, _ := key.Sign(s.SignableMessage())
		s.Signature = sig
		s.PublicKey = key.PublicKey()
		if err := p.Add(s); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	ordered := p.ByFee(-1)
	if len(ordered) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(ordered))
	}
	if ordered[0].FeeArea() != 50 || ordered[1].FeeArea() != 25 || ordered[2].FeeArea() != 10 {
		t.Fatalf("expected fees [50,25,10], got [%v,%v,%v]", ordered[0].FeeArea(), ordered[1].FeeArea(), ordered[2].FeeArea())
	}
}

func TestByFeeRespectsLimit(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.Address(key.PublicKey())
	parent := geom.Genesis(addr)
	p := New()

	for i, fee := range []uint64{10, 50, 25, 100, 5} {
		s := &tx.Subdivision{
			ParentHash: parent.Hash(),
			Children:   parent.Subdivide(),
			Owner:      addr,
			Fee:        fee,
			Nonce:      uint64(i),
		}
		sig, _ := key.Sign(s.SignableMessage())
		s.Signature = sig
		s.PublicKey = key.PublicKey()
		if err := p.Add(s); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	top3 := p.ByFee(3)
	if len(top3) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(top3))
	}
	if top3[0].FeeArea() != 100 || top3[1].FeeArea() != 50 || top3[2].FeeArea() != 25 {
		t.Fatalf("unexpected top 3 fees: %v %v %v", top3[0].FeeArea(), top3[1].FeeArea(), top3[2].FeeArea())
	}
}

func TestValidateAndPruneRemovesInvalid(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.Address(key.PublicKey())
	genesis := geom.Genesis(addr)
	p := New()

	valid := signedSubdivision(t, key, genesis, 1)
	if err := p.Add(valid); err != nil {
		t.Fatalf("add valid: %v", err)
	}

	missingParent := geom.Triangle{A: genesis.A, B: genesis.B, C: genesis.C, Owner: addr}
	missingParent.A.X += 5 // different geometry, different hash, not in state
	invalid := signedSubdivision(t, key, missingParent, 2)
	if err := p.Add(invalid); err != nil {
		t.Fatalf("add invalid: %v", err)
	}

	if p.Len() != 2 {
		t.Fatalf("expected 2 pending before prune, got %d", p.Len())
	}

	state := fakeState{genesis.Hash(): genesis}
	removed := p.ValidateAndPrune(state)
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if p.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", p.Len())
	}
}

func TestRemoveMany(t *testing.T) {
	key, _ := crypto.GenerateKey()
	parent := geom.Genesis(crypto.Address(key.PublicKey()))
	p := New()

	s := signedSubdivision(t, key, parent, 1)
	if err := p.Add(s); err != nil {
		t.Fatalf("add: %v", err)
	}
	p.RemoveMany([]types.Hash{s.Hash()})
	if p.Len() != 0 {
		t.Fatalf("expected 0 after removal, got %d", p.Len())
	}
}
