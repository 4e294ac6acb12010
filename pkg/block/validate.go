package block

import (
	"errors"
	"fmt"

	"github.com/trinity-chain/trinitynode/pkg/tx"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// Validation errors.
var (
	ErrNilHeader        = errors.New("block has nil header")
	ErrNoTransactions   = errors.New("block has no transactions")
	ErrBadMerkleRoot    = errors.New("merkle root mismatch")
	ErrZeroTimestamp    = errors.New("block timestamp is zero or negative")
	ErrNoCoinbase       = errors.New("first transaction must be coinbase")
	ErrMultipleCoinbase = errors.New("coinbase transaction must be the only one of its kind")
	ErrTooManyTxs       = errors.New("too many transactions in block")
	ErrBlockTooLarge    = errors.New("block too large")
)

// MaxTxsPerBlock bounds how many transactions a single block may carry.
const MaxTxsPerBlock = 50_000

// MaxBlockBytes bounds the approximate encoded size of a block.
const MaxBlockBytes = 4_000_000

// Validate checks block structure and internal consistency: well-formed
// header, merkle root agreement, a single leading coinbase, and each
// transaction's own stateless rules. It does not check anything that
// requires chain context (height, previous block, UTXO state) — that
// lives in the chain package's block application pipeline.
func (b *Block) Validate() error {
	if b.Header == nil {
		return ErrNilHeader
	}
	if b.Header.Timestamp <= 0 {
		return ErrZeroTimestamp
	}
	if len(b.Transactions) == 0 {
		return ErrNoTransactions
	}
	if len(b.Transactions) > MaxTxsPerBlock {
		return fmt.Errorf("%w: %d txs, max %d", ErrTooManyTxs, len(b.Transactions), MaxTxsPerBlock)
	}

	size := len(b.Header.SigningBytes())
	for _, t := range b.Transactions {
		size += t.Size()
	}
	if size > MaxBlockBytes {
		return fmt.Errorf("%w: %d bytes, max %d", ErrBlockTooLarge, size, MaxBlockBytes)
	}

	if _, ok := b.Transactions[0].(*tx.Coinbase); !ok {
		return ErrNoCoinbase
	}
	for i, t := range b.Transactions[1:] {
		if _, ok := t.(*tx.Coinbase); ok {
			return fmt.Errorf("tx %d: %w", i+1, ErrMultipleCoinbase)
		}
	}

	txHashes := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		txHashes[i] = t.Hash()
	}
	expectedRoot := ComputeMerkleRoot(txHashes)
	if b.Header.MerkleRoot != expectedRoot {
		return fmt.Errorf("%w: header=%s computed=%s", ErrBadMerkleRoot, b.Header.MerkleRoot, expectedRoot)
	}

	for i, t := range b.Transactions {
		if err := validateStateless(t); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}

	return nil
}

// validateStateless runs the stateless checks available for each
// transaction variant, dispatching by concrete type since Transaction
// has no Validate method of its own (stateful variants need UTXO
// context that this package doesn't have).
func validateStateless(t tx.Transaction) error {
	switch v := t.(type) {
	case *tx.Coinbase:
		return v.Validate()
	case *tx.Subdivision:
		if err := tx.ValidateSize(v); err != nil {
			return err
		}
		return v.ValidateSignature()
	case *tx.Transfer:
		if err := tx.ValidateSize(v); err != nil {
			return err
		}
		return v.Validate()
	default:
		return fmt.Errorf("unsupported transaction type %T", t)
	}
}

// Hash returns the block header hash.
func (b *Block) Hash() types.Hash {
	if b.Header == nil {
		return types.Hash{}
	}
	return b.Header.Hash()
}
