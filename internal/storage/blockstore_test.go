package storage

import (
	"testing"

	"github.com/trinity-chain/trinitynode/pkg/block"
	"github.com/trinity-chain/trinitynode/pkg/geom"
	"github.com/trinity-chain/trinitynode/pkg/tx"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

func TestFileBlockStore_SaveLoadChain(t *testing.T) {
	store := NewFileBlockStore(NewMemory())

	coinbase := &tx.Coinbase{RewardArea: 500, Beneficiary: "miner"}
	genesisBlock := block.NewBlock(&block.Header{
		Height:     0,
		Timestamp:  1700000000,
		MerkleRoot: block.ComputeMerkleRoot([]types.Hash{coinbase.Hash()}),
	}, []tx.Transaction{coinbase})

	if err := store.SaveBlock(genesisBlock); err != nil {
		t.Fatalf("save genesis: %v", err)
	}

	second := block.NewBlock(&block.Header{
		Height:       1,
		PreviousHash: genesisBlock.Hash(),
		Timestamp:    1700000001,
		MerkleRoot:   block.ComputeMerkleRoot([]types.Hash{coinbase.Hash()}),
	}, []tx.Transaction{coinbase})
	if err := store.SaveBlock(second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	chain, err := store.LoadChain()
	if err != nil {
		t.Fatalf("load chain: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(chain))
	}
	if chain[0].Header.Height != 0 || chain[1].Header.Height != 1 {
		t.Fatalf("expected ascending height order, got %d then %d", chain[0].Header.Height, chain[1].Header.Height)
	}
}

func TestFileBlockStore_UTXOSnapshotRoundTrip(t *testing.T) {
	store := NewFileBlockStore(NewMemory())

	g := geom.Genesis("alice")
	snapshot := map[types.Hash]geom.Triangle{g.Hash(): g}

	if err := store.SaveUTXOSnapshot(snapshot); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	loaded, err := store.LoadUTXOSnapshot()
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	got, ok := loaded[g.Hash()]
	if !ok {
		t.Fatal("expected genesis triangle to round-trip")
	}
	if got.Owner != "alice" {
		t.Fatalf("expected owner alice, got %s", got.Owner)
	}
}

func TestFileBlockStore_UTXOSnapshotEmptyBeforeSave(t *testing.T) {
	store := NewFileBlockStore(NewMemory())
	loaded, err := store.LoadUTXOSnapshot()
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty snapshot, got %d entries", len(loaded))
	}
}

func TestFileBlockStore_ChainMetaRoundTrip(t *testing.T) {
	store := NewFileBlockStore(NewMemory())
	want := ChainMeta{TipHash: types.Hash{0x01, 0x02}, Difficulty: 7}

	if err := store.SaveChainMeta(want); err != nil {
		t.Fatalf("save meta: %v", err)
	}
	got, err := store.LoadChainMeta()
	if err != nil {
		t.Fatalf("load meta: %v", err)
	}
	if got.TipHash != want.TipHash || got.Difficulty != want.Difficulty {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}
