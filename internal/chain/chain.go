// Package chain implements the geometric blockchain's state machine: block
// validation, UTXO application, difficulty retargeting, and fork
// reorganization.
package chain

import (
	"fmt"
	"sync"

	"github.com/trinity-chain/trinitynode/internal/clockshim"
	"github.com/trinity-chain/trinitynode/internal/mempool"
	"github.com/trinity-chain/trinitynode/internal/storage"
	"github.com/trinity-chain/trinitynode/internal/utxo"
	"github.com/trinity-chain/trinitynode/pkg/block"
	"github.com/trinity-chain/trinitynode/pkg/chainerr"
	"github.com/trinity-chain/trinitynode/pkg/tx"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// Chain owns the canonical block history, the UTXO state at its tip, and
// whatever side branches have been seen but haven't overtaken it.
type Chain struct {
	mu sync.Mutex

	store storage.BlockStore
	clock clockshim.Clock
	pool  *mempool.Pool // may be nil: a chain can run without mempool wiring (e.g. in tests)

	state        *utxo.State
	meta         State
	genesisOwner string

	// blockIndex holds every block this node has ever accepted, on the main
	// chain or a side branch, keyed by hash — forks need their ancestors
	// available to be reorganized into.
	blockIndex map[types.Hash]*block.Block
	// heightIndex maps a height to the canonical block's hash at that height.
	// Only the main chain is indexed by height; side-branch blocks live in
	// blockIndex only until (if ever) a reorg makes them canonical.
	heightIndex map[uint64]types.Hash
	// cumDiff is the accumulated proof-of-work ending at each indexed block.
	// Fork choice does not consult it; branches are compared by height.
	cumDiff map[types.Hash]uint64
}

// New loads a chain from store, replaying its persisted UTXO snapshot and
// chain metadata. A freshly created store produces an uninitialized Chain;
// call InitGenesis before processing blocks.
func New(store storage.BlockStore, pool *mempool.Pool, clock clockshim.Clock) (*Chain, error) {
	if store == nil {
		return nil, fmt.Errorf("chain: block store is nil")
	}
	if clock == nil {
		clock = clockshim.Real{}
	}

	blocks, err := store.LoadChain()
	if err != nil {
		return nil, fmt.Errorf("chain: load persisted chain: %w", err)
	}

	snapshot, err := store.LoadUTXOSnapshot()
	if err != nil {
		return nil, fmt.Errorf("chain: load utxo snapshot: %w", err)
	}
	persistedMeta, err := store.LoadChainMeta()
	if err != nil {
		return nil, fmt.Errorf("chain: load chain meta: %w", err)
	}

	state := utxo.New()
	state.Load(snapshot)

	c := &Chain{
		store:        store,
		clock:        clock,
		pool:         pool,
		state:        state,
		genesisOwner: persistedMeta.GenesisOwner,
		blockIndex:   make(map[types.Hash]*block.Block),
		heightIndex:  make(map[uint64]types.Hash),
		cumDiff:      make(map[types.Hash]uint64),
	}

	var cum, supply uint64
	for _, blk := range blocks {
		h := blk.Hash()
		cum += blk.Header.Difficulty
		c.blockIndex[h] = blk
		c.heightIndex[blk.Header.Height] = h
		c.cumDiff[h] = cum
		supply += rewardMinted(blk)
	}

	if len(blocks) > 0 {
		tip := blocks[len(blocks)-1]
		c.meta = State{
			Height:               tip.Header.Height,
			TipHash:              tip.Hash(),
			TipTimestamp:         tip.Header.Timestamp,
			Supply:               supply,
			CumulativeDifficulty: cum,
		}
	}

	return c, nil
}

// rewardMinted returns the reward area a block's coinbase actually minted.
func rewardMinted(blk *block.Block) uint64 {
	for _, t := range blk.Transactions {
		if cb, ok := t.(*tx.Coinbase); ok {
			return cb.RewardArea
		}
	}
	return 0
}

// InitGenesis seeds a brand new chain: it writes the genesis block and
// directly seeds the genesis triangle into UTXO state (no coinbase, no
// validation — genesis is the one block that bypasses consensus rules).
func (c *Chain) InitGenesis(cfg GenesisConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.meta.IsGenesis() {
		return fmt.Errorf("chain: already initialized at height %d", c.meta.Height)
	}

	genesisBlock := BuildGenesisBlock(cfg)
	c.state = utxo.NewGenesis(cfg.Owner)

	if err := c.store.SaveBlock(genesisBlock); err != nil {
		return fmt.Errorf("chain: save genesis block: %w", err)
	}
	if err := c.store.SaveUTXOSnapshot(c.state.Snapshot()); err != nil {
		return fmt.Errorf("chain: save genesis utxo snapshot: %w", err)
	}

	hash := genesisBlock.Hash()
	if err := c.store.SaveChainMeta(storage.ChainMeta{TipHash: hash, Difficulty: cfg.InitialDifficulty, GenesisOwner: cfg.Owner}); err != nil {
		return fmt.Errorf("chain: save genesis meta: %w", err)
	}
	c.genesisOwner = cfg.Owner

	c.meta = State{
		Height:               0,
		TipHash:              hash,
		TipTimestamp:         genesisBlock.Header.Timestamp,
		Supply:               0,
		CumulativeDifficulty: genesisBlock.Header.Difficulty,
	}
	c.blockIndex[hash] = genesisBlock
	c.heightIndex[0] = hash
	c.cumDiff[hash] = genesisBlock.Header.Difficulty
	return nil
}

// Height returns the current chain height.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.Height
}

// TipHash returns the hash of the current canonical tip.
func (c *Chain) TipHash() types.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.TipHash
}

// Difficulty returns the difficulty the next block must satisfy.
func (c *Chain) Difficulty() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	tip, ok := c.blockIndex[c.meta.TipHash]
	if !ok {
		return 1
	}
	if adjusted, ok := c.nextDifficultyLocked(tip); ok {
		return adjusted
	}
	return tip.Header.Difficulty
}

// TipTimestamp returns the header timestamp of the current canonical tip.
func (c *Chain) TipTimestamp() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.TipTimestamp
}

// Supply returns the total reward area minted so far.
func (c *Chain) Supply() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.Supply
}

// GetBlock returns a known block (main chain or fork) by hash.
func (c *Chain) GetBlock(hash types.Hash) (*block.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	blk, ok := c.blockIndex[hash]
	if !ok {
		return nil, chainerr.New(chainerr.OrphanBlock, "block %s not known", hash)
	}
	return blk, nil
}

// GetBlockByHeight returns the canonical block at the given height.
func (c *Chain) GetBlockByHeight(height uint64) (*block.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getBlockByHeightLocked(height)
}

func (c *Chain) getBlockByHeightLocked(height uint64) (*block.Block, error) {
	hash, ok := c.heightIndex[height]
	if !ok {
		return nil, chainerr.New(chainerr.OrphanBlock, "no canonical block at height %d", height)
	}
	return c.blockIndex[hash], nil
}

// Balance returns the given owner's total effective triangle value at the
// current tip.
func (c *Chain) Balance(owner string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Balance(owner)
}

// nextDifficultyLocked computes the difficulty the block after tip must
// satisfy, if tip sits at a retarget boundary. Caller holds c.mu.
func (c *Chain) nextDifficultyLocked(tip *block.Block) (uint64, bool) {
	nextHeight := tip.Header.Height + 1
	if nextHeight%DifficultyAdjustmentWindow != 0 {
		return 0, false
	}

	windowStartHeight := nextHeight - DifficultyAdjustmentWindow
	startBlk, err := c.getBlockByHeightLocked(windowStartHeight)
	if err != nil {
		return 0, false
	}
	return adjustDifficulty(tip.Header.Difficulty, startBlk.Header.Timestamp, tip.Header.Timestamp), true
}
