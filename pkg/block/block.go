// Package block defines block types and validation.
package block

import (
	"encoding/json"
	"fmt"

	"github.com/trinity-chain/trinitynode/pkg/tx"
)

// Block represents a block in the chain: a header plus the ordered list of
// transactions it commits to via the merkle root.
type Block struct {
	Header       *Header         `json:"header"`
	Transactions []tx.Transaction `json:"transactions"`
}

// NewBlock creates a new block with the given header and transactions.
func NewBlock(header *Header, txs []tx.Transaction) *Block {
	return &Block{
		Header:       header,
		Transactions: txs,
	}
}

const (
	txTypeCoinbase    = "coinbase"
	txTypeSubdivision = "subdivision"
	txTypeTransfer    = "transfer"
)

// taggedTx carries a transaction's variant alongside its encoded form, since
// Transaction is an interface and encoding/json can't dispatch on its own.
type taggedTx struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type blockJSON struct {
	Header       *Header    `json:"header"`
	Transactions []taggedTx `json:"transactions"`
}

// MarshalJSON encodes the block, tagging each transaction with its variant.
func (b *Block) MarshalJSON() ([]byte, error) {
	bj := blockJSON{Header: b.Header, Transactions: make([]taggedTx, len(b.Transactions))}
	for i, t := range b.Transactions {
		data, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("marshal tx %d: %w", i, err)
		}
		var typ string
		switch t.(type) {
		case *tx.Coinbase:
			typ = txTypeCoinbase
		case *tx.Subdivision:
			typ = txTypeSubdivision
		case *tx.Transfer:
			typ = txTypeTransfer
		default:
			return nil, fmt.Errorf("marshal tx %d: unsupported transaction type %T", i, t)
		}
		bj.Transactions[i] = taggedTx{Type: typ, Data: data}
	}
	return json.Marshal(bj)
}

// UnmarshalJSON decodes a block, dispatching each transaction on its tag.
func (b *Block) UnmarshalJSON(data []byte) error {
	var bj blockJSON
	if err := json.Unmarshal(data, &bj); err != nil {
		return err
	}
	b.Header = bj.Header
	b.Transactions = make([]tx.Transaction, len(bj.Transactions))
	for i, tt := range bj.Transactions {
		var decoded tx.Transaction
		switch tt.Type {
		case txTypeCoinbase:
			var c tx.Coinbase
			if err := json.Unmarshal(tt.Data, &c); err != nil {
				return fmt.Errorf("unmarshal tx %d: %w", i, err)
			}
			decoded = &c
		case txTypeSubdivision:
			var s tx.Subdivision
			if err := json.Unmarshal(tt.Data, &s); err != nil {
				return fmt.Errorf("unmarshal tx %d: %w", i, err)
			}
			decoded = &s
		case txTypeTransfer:
			var t tx.Transfer
			if err := json.Unmarshal(tt.Data, &t); err != nil {
				return fmt.Errorf("unmarshal tx %d: %w", i, err)
			}
			decoded = &t
		default:
			return fmt.Errorf("unmarshal tx %d: unknown transaction type %q", i, tt.Type)
		}
		b.Transactions[i] = decoded
	}
	return nil
}
