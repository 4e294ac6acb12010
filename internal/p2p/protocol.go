// Package p2p implements the peer synchronization protocol: length-prefixed
// framed messages over plain TCP connections, a header-then-batched-blocks
// sync algorithm, inbound gossip handling, and a peer registry with dial
// backoff.
package p2p

import (
	"encoding/gob"

	"github.com/trinity-chain/trinitynode/pkg/block"
	"github.com/trinity-chain/trinitynode/pkg/tx"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// MaxFrameSize bounds a single framed message. Frames larger than this are
// rejected before the body is even read.
const MaxFrameSize = 10 * 1024 * 1024

// SyncBatchSize is how many block hashes a GetBlocks request carries at a
// time during outbound sync.
const SyncBatchSize = 50

// MessageType identifies the variant carried by an Envelope. The set is
// closed: these are the only messages the wire protocol understands.
type MessageType string

const (
	MsgGetBlockHeaders MessageType = "get_block_headers"
	MsgBlockHeaders    MessageType = "block_headers"
	MsgGetBlock        MessageType = "get_block"
	MsgBlock           MessageType = "block"
	MsgGetBlocks       MessageType = "get_blocks"
	MsgBlocks          MessageType = "blocks"
	MsgNewBlock        MessageType = "new_block"
	MsgNewTransaction  MessageType = "new_transaction"
	MsgGetPeers        MessageType = "get_peers"
	MsgPeers           MessageType = "peers"
	MsgGetBlockchain   MessageType = "get_blockchain"
	MsgBlockchain      MessageType = "blockchain"
	MsgPing            MessageType = "ping"
	MsgPong            MessageType = "pong"
)

// GetBlockHeaders asks a peer for the canonical hash/height pairs it holds
// after a given height.
type GetBlockHeaders struct {
	AfterHeight uint64
}

// BlockHeader is the minimal per-block summary carried in a BlockHeaders
// response: enough for the requester to compute which bodies it's missing.
type BlockHeader struct {
	Height uint64
	Hash   types.Hash
}

// BlockHeaders answers GetBlockHeaders.
type BlockHeaders struct {
	Headers []BlockHeader
}

// GetBlock asks for a single block by hash.
type GetBlock struct {
	Hash types.Hash
}

// BlockMsg carries one block, as a response to GetBlock or as unsolicited
// gossip (NewBlock).
type BlockMsg struct {
	Block *block.Block
}

// GetBlocks asks for a batch of blocks by hash, capped at SyncBatchSize per
// request.
type GetBlocks struct {
	Hashes []types.Hash
}

// Blocks answers GetBlocks.
type Blocks struct {
	Blocks []*block.Block
}

// NewTransactionMsg carries a single gossiped transaction. Transaction is an
// interface; gob dispatches it on its own by the registered concrete type
// name embedded in the stream (see the gob.Register calls in init below), so
// no hand-rolled tagging is needed the way pkg/block's JSON encoding requires.
type NewTransactionMsg struct {
	Transaction tx.Transaction
}

// PeerInfo is the wire representation of a known peer, as exchanged by
// GetPeers/Peers.
type PeerInfo struct {
	ID   string
	Addr string
}

// Peers answers GetPeers.
type Peers struct {
	Peers []PeerInfo
}

// Blockchain carries the responder's full canonical block list, used only by
// GetBlockchain/Blockchain for diagnostic or cold-bootstrap exchanges.
type Blockchain struct {
	Blocks []*block.Block
}

func init() {
	gob.Register(&tx.Coinbase{})
	gob.Register(&tx.Subdivision{})
	gob.Register(&tx.Transfer{})

	gob.Register(GetBlockHeaders{})
	gob.Register(BlockHeaders{})
	gob.Register(GetBlock{})
	gob.Register(BlockMsg{})
	gob.Register(GetBlocks{})
	gob.Register(Blocks{})
	gob.Register(NewTransactionMsg{})
	gob.Register(Peers{})
	gob.Register(Blockchain{})
	gob.Register(struct{}{})
}
