package chain

import (
	"github.com/trinity-chain/trinitynode/pkg/block"
)

// GenesisConfig describes the single root triangle a fresh chain starts
// from: who owns it and what timestamp/difficulty the genesis header
// carries. It carries no transactions — the genesis triangle is seeded into
// UTXO state directly rather than minted through a coinbase, matching the
// special, un-subdivided root every geometric lineage traces back to.
type GenesisConfig struct {
	Owner             string
	Timestamp         int64
	InitialDifficulty uint64
}

// genesisHeadline is the cosmetic label carried by the genesis header only.
// It plays no role in consensus: Header.Hash excludes it.
const genesisHeadline = "TrinityNode Genesis Block - Sierpinski Triangle Blockchain"

// BuildGenesisBlock constructs the height-0 header for a fresh chain. It
// carries no transactions: InitGenesis seeds the genesis triangle into UTXO
// state directly, so the merkle root here is the root over an empty
// transaction set.
func BuildGenesisBlock(cfg GenesisConfig) *block.Block {
	header := &block.Header{
		Height:     0,
		Timestamp:  cfg.Timestamp,
		Difficulty: cfg.InitialDifficulty,
		MerkleRoot: block.ComputeMerkleRoot(nil),
		Headline:   genesisHeadline,
	}
	return block.NewBlock(header, nil)
}
