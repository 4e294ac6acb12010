package chain

import (
	"time"

	"github.com/trinity-chain/trinitynode/pkg/block"
	"github.com/trinity-chain/trinitynode/pkg/chainerr"
	"github.com/trinity-chain/trinitynode/pkg/tx"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// MaxFutureDrift bounds how far a block's timestamp may sit ahead of the
// validating node's own clock, to absorb ordinary clock skew between peers
// without letting a miner stamp blocks arbitrarily far in the future.
const MaxFutureDrift = 24 * time.Hour

// validateAgainstParent runs every chain-context rule that pkg/block's
// stateless Validate cannot check on its own: linkage, ordering, proof of
// work, and the reward cap. It does not touch UTXO state — that happens in
// applyTxsToState, where a double-spend inside the same block surfaces as
// an ordinary "not found" error on the second transaction.
func (c *Chain) validateAgainstParent(blk *block.Block, parent *block.Block) error {
	if err := blk.Validate(); err != nil {
		return chainerr.Wrap(chainerr.InvalidTransaction, err, "block %d failed structural validation", blk.Header.Height)
	}

	if blk.Header.Height != parent.Header.Height+1 {
		return chainerr.New(chainerr.InvalidBlockLinkage, "block height %d does not follow parent height %d", blk.Header.Height, parent.Header.Height)
	}

	if blk.Header.Timestamp <= parent.Header.Timestamp {
		return chainerr.New(chainerr.InvalidBlockLinkage, "block timestamp %d does not exceed parent timestamp %d", blk.Header.Timestamp, parent.Header.Timestamp)
	}

	if blk.Header.Timestamp > c.clock.Now().Add(MaxFutureDrift).Unix() {
		return chainerr.New(chainerr.InvalidBlockLinkage, "block timestamp %d is too far in the future", blk.Header.Timestamp)
	}

	expectedDifficulty := parent.Header.Difficulty
	if adjusted, ok := c.nextDifficultyLocked(parent); ok {
		expectedDifficulty = adjusted
	}
	if blk.Header.Difficulty != expectedDifficulty {
		return chainerr.New(chainerr.InvalidProofOfWork, "block %d declares difficulty %d, expected %d", blk.Header.Height, blk.Header.Difficulty, expectedDifficulty)
	}

	if !blk.Header.MeetsTarget() {
		return chainerr.New(chainerr.InvalidProofOfWork, "block %d hash does not meet difficulty %d", blk.Header.Height, blk.Header.Difficulty)
	}

	wantRoot := block.ComputeMerkleRoot(txHashes(blk.Transactions))
	if wantRoot != blk.Header.MerkleRoot {
		return chainerr.New(chainerr.InvalidMerkleRoot, "block %d merkle root mismatch", blk.Header.Height)
	}

	coinbaseCount := 0
	var coinbase *tx.Coinbase
	for i, t := range blk.Transactions {
		cb, ok := t.(*tx.Coinbase)
		if !ok {
			continue
		}
		coinbaseCount++
		if i != 0 {
			return chainerr.New(chainerr.InvalidTransaction, "coinbase must be the first transaction in block %d", blk.Header.Height)
		}
		coinbase = cb
	}
	if coinbaseCount != 1 {
		return chainerr.New(chainerr.InvalidTransaction, "block %d must contain exactly one coinbase, found %d", blk.Header.Height, coinbaseCount)
	}

	totalFees := totalFeeArea(blk.Transactions)
	maxReward := BlockReward(blk.Header.Height) + uint64(totalFees)
	if coinbase.RewardArea > maxReward {
		return chainerr.New(chainerr.InvalidTransaction, "block %d coinbase reward %d exceeds max %d (subsidy+fees)", blk.Header.Height, coinbase.RewardArea, maxReward)
	}

	return nil
}

// validateStateful re-validates every non-coinbase transaction against a
// UTXO view, the way a miner's candidate selection and a block's final
// acceptance both must. Every transaction is checked against the same
// unmodified view, so two transactions in one block spending the same
// triangle both pass here; applyTxsToState is what rejects that double-spend.
func validateStateful(txs []tx.Transaction, state tx.TriangleLookup) error {
	for _, t := range txs {
		switch v := t.(type) {
		case *tx.Coinbase:
			if err := v.Validate(); err != nil {
				return chainerr.Wrap(chainerr.InvalidTransaction, err, "coinbase validation failed")
			}
		case *tx.Subdivision:
			if err := v.Validate(state); err != nil {
				return chainerr.Wrap(chainerr.InvalidTransaction, err, "subdivision validation failed")
			}
		case *tx.Transfer:
			if err := v.ValidateWithState(state); err != nil {
				return chainerr.Wrap(chainerr.InvalidTransaction, err, "transfer validation failed")
			}
		}
	}
	return nil
}

func txHashes(txs []tx.Transaction) []types.Hash {
	hashes := make([]types.Hash, len(txs))
	for i, t := range txs {
		hashes[i] = t.Hash()
	}
	return hashes
}

// totalFeeArea sums the declared fee of every transaction in the block.
func totalFeeArea(txs []tx.Transaction) float64 {
	var total float64
	for _, t := range txs {
		total += t.FeeArea()
	}
	return total
}
