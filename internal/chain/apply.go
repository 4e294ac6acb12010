package chain

import (
	"fmt"

	"github.com/trinity-chain/trinitynode/internal/storage"
	"github.com/trinity-chain/trinitynode/internal/utxo"
	"github.com/trinity-chain/trinitynode/pkg/block"
	"github.com/trinity-chain/trinitynode/pkg/chainerr"
	"github.com/trinity-chain/trinitynode/pkg/tx"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// Outcome reports what ProcessBlock did with an accepted block.
type Outcome int

const (
	// Extended means the block became the new main-chain tip.
	Extended Outcome = iota
	// SideBranch means the block was accepted but filed on a fork that is
	// not (yet) longer than the main chain.
	SideBranch
	// Reorganized means the block's fork overtook the main chain, and the
	// chain's canonical history and UTXO state were rebuilt onto it.
	Reorganized
)

// ProcessBlock validates blk against its parent and applies it: extending
// the main chain, filing it as a side branch, or triggering a reorg if its
// branch is now strictly longer than the current main chain. A block whose
// parent isn't known to this node at all is rejected as an orphan — callers
// are expected to fetch the missing ancestor and retry.
func (c *Chain) ProcessBlock(blk *block.Block) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if blk == nil || blk.Header == nil {
		return 0, fmt.Errorf("chain: nil block")
	}
	hash := blk.Hash()
	if _, exists := c.blockIndex[hash]; exists {
		return 0, fmt.Errorf("chain: block %s already known", hash)
	}

	parent, ok := c.blockIndex[blk.Header.PreviousHash]
	if !ok {
		return 0, chainerr.New(chainerr.OrphanBlock, "parent %s of block %s is unknown", blk.Header.PreviousHash, hash)
	}

	if err := c.validateAgainstParent(blk, parent); err != nil {
		return 0, err
	}

	branchCumDiff := c.cumDiff[parent.Hash()] + blk.Header.Difficulty

	if blk.Header.PreviousHash == c.meta.TipHash {
		if err := validateStateful(blk.Transactions, c.state); err != nil {
			return 0, err
		}
		if err := applyTxsToState(c.state, blk); err != nil {
			return 0, err
		}
		if err := c.persistExtension(blk, branchCumDiff); err != nil {
			return 0, err
		}
		c.indexBlock(blk, hash, branchCumDiff, true)
		return Extended, nil
	}

	// Fork candidate: store it as known but don't touch canonical state yet.
	c.indexBlock(blk, hash, branchCumDiff, false)

	// Fork choice is by branch length, not accumulated difficulty: a branch
	// only overtakes the main chain by carrying strictly more blocks.
	if blk.Header.Height <= c.meta.Height {
		return SideBranch, nil
	}

	if err := c.reorgToLocked(hash); err != nil {
		return 0, fmt.Errorf("chain: reorg to %s: %w", hash, err)
	}
	return Reorganized, nil
}

func (c *Chain) indexBlock(blk *block.Block, hash types.Hash, cumDiff uint64, canonical bool) {
	c.blockIndex[hash] = blk
	c.cumDiff[hash] = cumDiff
	if canonical {
		c.heightIndex[blk.Header.Height] = hash
	}
}

// persistExtension writes a block that extends the current tip and updates
// in-memory chain metadata to match.
func (c *Chain) persistExtension(blk *block.Block, cumDiff uint64) error {
	if err := c.store.SaveBlock(blk); err != nil {
		return fmt.Errorf("save block %d: %w", blk.Header.Height, err)
	}
	if err := c.store.SaveUTXOSnapshot(c.state.Snapshot()); err != nil {
		return fmt.Errorf("save utxo snapshot at height %d: %w", blk.Header.Height, err)
	}
	hash := blk.Hash()
	if err := c.store.SaveChainMeta(storage.ChainMeta{TipHash: hash, Difficulty: blk.Header.Difficulty}); err != nil {
		return fmt.Errorf("save chain meta at height %d: %w", blk.Header.Height, err)
	}

	c.meta.Height = blk.Header.Height
	c.meta.TipHash = hash
	c.meta.TipTimestamp = blk.Header.Timestamp
	c.meta.Supply += rewardMinted(blk)
	c.meta.CumulativeDifficulty = cumDiff

	if c.pool != nil {
		c.pool.RemoveMany(txHashes(blk.Transactions))
		c.pool.ValidateAndPrune(c.state)
	}
	return nil
}

// applyTxsToState applies every transaction in blk to state in order. A
// transaction that spends something an earlier transaction in the same
// block already consumed fails here with an ordinary "not found" error —
// that's what rejects an in-block double-spend.
func applyTxsToState(state *utxo.State, blk *block.Block) error {
	for _, t := range blk.Transactions {
		switch v := t.(type) {
		case *tx.Coinbase:
			if err := state.ApplyCoinbase(v, blk.Header.Height); err != nil {
				return chainerr.Wrap(chainerr.InvalidTransaction, err, "apply coinbase")
			}
		case *tx.Subdivision:
			if err := state.ApplySubdivision(v); err != nil {
				return chainerr.Wrap(chainerr.InvalidTransaction, err, "apply subdivision")
			}
		case *tx.Transfer:
			if err := state.ApplyTransfer(v); err != nil {
				return chainerr.Wrap(chainerr.InvalidTransaction, err, "apply transfer")
			}
		default:
			return fmt.Errorf("chain: unsupported transaction type %T", t)
		}
	}
	return nil
}

// reorgToLocked rebuilds canonical history and UTXO state onto the branch
// ending at newTip, by walking back to genesis and replaying every block's
// transactions from scratch. Full replay, rather than incremental undo, is
// the simpler of the two strategies a UTXO set without an undo log can use,
// and it only runs on the rare branch that actually overtakes the tip.
// Caller holds c.mu.
func (c *Chain) reorgToLocked(newTip types.Hash) error {
	branch, err := c.collectBranchLocked(newTip)
	if err != nil {
		return err
	}

	freshState := utxo.NewGenesis(c.genesisOwner)
	var supply uint64
	var cum uint64
	newHeightIndex := make(map[uint64]types.Hash, len(branch))
	newHeightIndex[0] = branch[0].Hash()
	cum = branch[0].Header.Difficulty

	for _, blk := range branch[1:] {
		if err := validateStateful(blk.Transactions, freshState); err != nil {
			return fmt.Errorf("replay block %d: %w", blk.Header.Height, err)
		}
		if err := applyTxsToState(freshState, blk); err != nil {
			return fmt.Errorf("replay block %d: %w", blk.Header.Height, err)
		}
		h := blk.Hash()
		newHeightIndex[blk.Header.Height] = h
		supply += rewardMinted(blk)
		cum += blk.Header.Difficulty
	}

	tip := branch[len(branch)-1]
	if err := c.store.SaveUTXOSnapshot(freshState.Snapshot()); err != nil {
		return fmt.Errorf("save reorganized utxo snapshot: %w", err)
	}
	if err := c.store.SaveChainMeta(storage.ChainMeta{TipHash: newTip, Difficulty: tip.Header.Difficulty}); err != nil {
		return fmt.Errorf("save reorganized chain meta: %w", err)
	}
	for _, blk := range branch {
		if err := c.store.SaveBlock(blk); err != nil {
			return fmt.Errorf("persist reorganized block %d: %w", blk.Header.Height, err)
		}
	}

	c.state = freshState
	c.heightIndex = newHeightIndex
	c.meta = State{
		Height:               tip.Header.Height,
		TipHash:              newTip,
		TipTimestamp:         tip.Header.Timestamp,
		Supply:               supply,
		CumulativeDifficulty: cum,
	}

	if c.pool != nil {
		c.pool.ValidateAndPrune(c.state)
	}
	return nil
}

// collectBranchLocked walks blockIndex from tipHash back to the genesis
// block (height 0), returning the branch genesis-first. Caller holds c.mu.
func (c *Chain) collectBranchLocked(tipHash types.Hash) ([]*block.Block, error) {
	var branch []*block.Block
	cur := tipHash
	for {
		blk, ok := c.blockIndex[cur]
		if !ok {
			return nil, fmt.Errorf("branch ancestor %s not indexed", cur)
		}
		branch = append(branch, blk)
		if blk.Header.Height == 0 {
			break
		}
		cur = blk.Header.PreviousHash
	}
	// Reverse into genesis-first order.
	for i, j := 0, len(branch)-1; i < j; i, j = i+1, j-1 {
		branch[i], branch[j] = branch[j], branch[i]
	}
	return branch, nil
}
