package p2p

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trinity-chain/trinitynode/internal/chain"
	klog "github.com/trinity-chain/trinitynode/internal/log"
	"github.com/trinity-chain/trinitynode/internal/storage"
	"github.com/trinity-chain/trinitynode/pkg/block"
	"github.com/trinity-chain/trinitynode/pkg/chainerr"
	"github.com/trinity-chain/trinitynode/pkg/tx"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// maxOrphanChaseDepth bounds how many ancestors handleNewBlock will chase
// back through GetBlock before giving up on an orphan.
const maxOrphanChaseDepth = 50

// connDeadline is the implicit read/write timeout every framed exchange
// carries, since the protocol has no other notion of a cancelled RPC.
const connDeadline = 30 * time.Second

// Chain is the subset of internal/chain.Chain the sync layer needs: enough
// to answer header/block requests and to apply inbound blocks through the
// real validation and fork-choice path.
type Chain interface {
	Height() uint64
	TipHash() types.Hash
	GetBlock(hash types.Hash) (*block.Block, error)
	GetBlockByHeight(height uint64) (*block.Block, error)
	ProcessBlock(blk *block.Block) (chain.Outcome, error)
}

// MempoolAdder is the subset of internal/mempool.Pool the sync layer needs
// to route gossiped transactions into.
type MempoolAdder interface {
	Add(t tx.Transaction) error
}

// Config configures a Node.
type Config struct {
	ListenAddr string   // e.g. ":8333"
	Seeds      []string // bootstrap peer addresses (SEED_PEERS)
	DB         storage.DB
}

// Node listens for peer connections, answers sync requests, gossips newly
// mined blocks and submitted transactions, and runs the outbound sync loop
// against known peers.
type Node struct {
	cfg   Config
	chain Chain
	pool  MempoolAdder

	id       string
	registry *PeerRegistry

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu    sync.RWMutex
	peers map[string]*Peer // connected-ish peers, keyed by dial address

	seen *dedupCache
}

// New creates a Node. chainView and pool must be non-nil; db may be nil to
// disable peer persistence.
func New(cfg Config, chainView Chain, pool MempoolAdder) *Node {
	return &Node{
		cfg:      cfg,
		chain:    chainView,
		pool:     pool,
		id:       uuid.NewString(),
		registry: NewPeerRegistry(cfg.DB),
		peers:    make(map[string]*Peer),
		seen:     newDedupCache(),
	}
}

// Start begins listening and launches the accept loop, seed connection
// attempts, and the periodic outbound sync loop. It returns once the
// listener is bound; background work continues until Stop is called.
func (n *Node) Start() error {
	if err := n.registry.Load(); err != nil {
		return fmt.Errorf("p2p: load peer registry: %w", err)
	}
	for _, addr := range n.cfg.Seeds {
		n.registry.Remember(addr)
	}

	ln, err := net.Listen("tcp", n.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("p2p: listen on %s: %w", n.cfg.ListenAddr, err)
	}
	n.listener = ln
	n.ctx, n.cancel = context.WithCancel(context.Background())

	n.wg.Add(2)
	go n.acceptLoop()
	go n.syncLoop()

	klog.WithComponent("p2p").Info().Str("addr", n.cfg.ListenAddr).Msg("listening for peers")
	return nil
}

// Stop closes the listener and stops background loops.
func (n *Node) Stop() error {
	if n.cancel != nil {
		n.cancel()
	}
	var err error
	if n.listener != nil {
		err = n.listener.Close()
	}
	n.wg.Wait()
	return err
}

// PeerCount returns the number of peers currently believed reachable.
func (n *Node) PeerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}

// Addr returns the node's bound listen address, resolved after Start.
func (n *Node) Addr() string {
	if n.listener == nil {
		return n.cfg.ListenAddr
	}
	return n.listener.Addr().String()
}

// Registry exposes the peer registry so callers can seed it directly (tests,
// or a future admin surface) without going through SEED_PEERS parsing.
func (n *Node) Registry() *PeerRegistry {
	return n.registry
}

func (n *Node) acceptLoop() {
	defer n.wg.Done()
	logger := klog.WithComponent("p2p")
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.ctx.Done():
				return
			default:
				logger.Warn().Err(err).Msg("accept failed")
				continue
			}
		}
		go n.handleConn(conn)
	}
}

func (n *Node) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connDeadline))

	msgType, payload, err := ReadFrame(conn)
	if err != nil {
		return
	}

	logger := klog.WithComponent("p2p")
	logger.Debug().Str("type", string(msgType)).Str("remote", conn.RemoteAddr().String()).Msg("inbound message")

	switch msgType {
	case MsgGetBlockHeaders:
		n.handleGetBlockHeaders(conn, payload)
	case MsgGetBlock:
		n.handleGetBlock(conn, payload)
	case MsgGetBlocks:
		n.handleGetBlocks(conn, payload)
	case MsgNewBlock:
		n.handleNewBlock(conn, payload, 0)
	case MsgNewTransaction:
		n.handleNewTransaction(conn, payload)
	case MsgGetPeers:
		n.handleGetPeers(conn)
	case MsgGetBlockchain:
		n.handleGetBlockchain(conn)
	case MsgPing:
		WriteFrame(conn, MsgPong, struct{}{})
	default:
		logger.Warn().Str("type", string(msgType)).Msg("unknown message type")
	}
}

func (n *Node) handleGetBlockHeaders(conn net.Conn, payload any) {
	req, ok := payload.(GetBlockHeaders)
	if !ok {
		return
	}

	var headers []BlockHeader
	for h := req.AfterHeight + 1; h <= n.chain.Height(); h++ {
		blk, err := n.chain.GetBlockByHeight(h)
		if err != nil {
			break
		}
		headers = append(headers, BlockHeader{Height: h, Hash: blk.Hash()})
	}
	WriteFrame(conn, MsgBlockHeaders, BlockHeaders{Headers: headers})
}

func (n *Node) handleGetBlock(conn net.Conn, payload any) {
	req, ok := payload.(GetBlock)
	if !ok {
		return
	}
	blk, err := n.chain.GetBlock(req.Hash)
	if err != nil {
		WriteFrame(conn, MsgBlock, BlockMsg{})
		return
	}
	WriteFrame(conn, MsgBlock, BlockMsg{Block: blk})
}

func (n *Node) handleGetBlocks(conn net.Conn, payload any) {
	req, ok := payload.(GetBlocks)
	if !ok {
		return
	}
	blocks := make([]*block.Block, 0, len(req.Hashes))
	for _, h := range req.Hashes {
		if blk, err := n.chain.GetBlock(h); err == nil {
			blocks = append(blocks, blk)
		}
	}
	WriteFrame(conn, MsgBlocks, Blocks{Blocks: blocks})
}

// handleNewBlock applies a gossiped (or orphan-chase-recovered) block. If
// the engine reports OrphanBlock, it requests the missing parent over the
// same connection, applies it first, and retries — up to
// maxOrphanChaseDepth ancestors deep.
func (n *Node) handleNewBlock(conn net.Conn, payload any, depth int) {
	msg, ok := payload.(BlockMsg)
	if !ok || msg.Block == nil {
		WriteFrame(conn, MsgPong, struct{}{})
		return
	}
	n.applyBlock(conn, msg.Block, depth)
	WriteFrame(conn, MsgPong, struct{}{})
}

func (n *Node) applyBlock(conn net.Conn, blk *block.Block, depth int) {
	logger := klog.WithComponent("p2p")
	hash := blk.Hash()
	if n.seen.seenRecently(hash[:]) {
		logger.Debug().Uint64("height", blk.Header.Height).Msg("duplicate gossiped block, skipping")
		return
	}
	outcome, err := n.chain.ProcessBlock(blk)
	if err == nil {
		logger.Info().Uint64("height", blk.Header.Height).Str("outcome", fmt.Sprint(outcome)).Msg("block applied")
		return
	}

	if chainerr.Is(err, chainerr.OrphanBlock) && depth < maxOrphanChaseDepth {
		if err := WriteFrame(conn, MsgGetBlock, GetBlock{Hash: blk.Header.PreviousHash}); err != nil {
			return
		}
		respType, respPayload, err := ReadFrame(conn)
		if err != nil || respType != MsgBlock {
			return
		}
		resp, ok := respPayload.(BlockMsg)
		if !ok || resp.Block == nil {
			logger.Warn().Uint64("height", blk.Header.Height).Msg("orphan parent unavailable")
			return
		}
		n.applyBlock(conn, resp.Block, depth+1)
		if _, err := n.chain.ProcessBlock(blk); err != nil {
			logger.Warn().Err(err).Uint64("height", blk.Header.Height).Msg("block still invalid after orphan chase")
		}
		return
	}

	logger.Warn().Err(err).Uint64("height", blk.Header.Height).Msg("rejected inbound block")
}

func (n *Node) handleNewTransaction(conn net.Conn, payload any) {
	msg, ok := payload.(NewTransactionMsg)
	if !ok || msg.Transaction == nil {
		WriteFrame(conn, MsgPong, struct{}{})
		return
	}
	txHash := msg.Transaction.Hash()
	if n.seen.seenRecently(txHash[:]) {
		WriteFrame(conn, MsgPong, struct{}{})
		return
	}
	if err := n.pool.Add(msg.Transaction); err != nil {
		klog.WithComponent("p2p").Warn().Err(err).Msg("rejected gossiped transaction")
	}
	WriteFrame(conn, MsgPong, struct{}{})
}

func (n *Node) handleGetPeers(conn net.Conn) {
	recs := n.registry.Snapshot()
	out := make([]PeerInfo, len(recs))
	for i, rec := range recs {
		out[i] = PeerInfo{ID: rec.ID, Addr: rec.Addr}
	}
	WriteFrame(conn, MsgPeers, Peers{Peers: out})
}

func (n *Node) handleGetBlockchain(conn net.Conn) {
	var blocks []*block.Block
	for h := uint64(0); h <= n.chain.Height(); h++ {
		blk, err := n.chain.GetBlockByHeight(h)
		if err != nil {
			break
		}
		blocks = append(blocks, blk)
	}
	WriteFrame(conn, MsgBlockchain, Blockchain{Blocks: blocks})
}
