package p2p

import (
	"net"
	"time"

	klog "github.com/trinity-chain/trinitynode/internal/log"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// syncInterval is how often the node re-runs the outbound sync algorithm
// against every known peer whose backoff has cleared.
const syncInterval = 15 * time.Second

const dialTimeout = 10 * time.Second

func (n *Node) syncLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	n.syncAllPeers()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.syncAllPeers()
			n.seen.prune()
		}
	}
}

func (n *Node) syncAllPeers() {
	for _, rec := range n.registry.Snapshot() {
		if !n.registry.ShouldDial(rec.Addr) {
			continue
		}
		n.syncWithPeer(rec.Addr)
	}
}

// syncWithPeer runs the outbound sync algorithm against a single peer
// address: fetch headers after our height, batch-fetch and apply any
// missing blocks over fresh connections, then merge its peer list.
func (n *Node) syncWithPeer(addr string) {
	logger := klog.WithComponent("p2p")

	headers, err := n.fetchHeaders(addr)
	if err != nil {
		logger.Warn().Err(err).Str("peer", addr).Msg("sync: fetch headers failed")
		n.registry.RecordFailure(addr)
		return
	}
	if len(headers) == 0 {
		n.registry.RecordSuccess(addr, n.chain.Height())
		return
	}

	for i := 0; i < len(headers); i += SyncBatchSize {
		end := i + SyncBatchSize
		if end > len(headers) {
			end = len(headers)
		}
		batch := headers[i:end]
		if err := n.fetchAndApplyBatch(addr, batch); err != nil {
			logger.Warn().Err(err).Str("peer", addr).Msg("sync: batch fetch/apply failed, continuing")
			n.registry.RecordFailure(addr)
			continue
		}
	}

	n.mergePeers(addr)
	n.registry.RecordSuccess(addr, headers[len(headers)-1].Height)
}

func (n *Node) fetchHeaders(addr string) ([]BlockHeader, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connDeadline))

	if err := WriteFrame(conn, MsgGetBlockHeaders, GetBlockHeaders{AfterHeight: n.chain.Height()}); err != nil {
		return nil, err
	}
	msgType, payload, err := ReadFrame(conn)
	if err != nil {
		return nil, err
	}
	if msgType != MsgBlockHeaders {
		return nil, nil
	}
	resp, ok := payload.(BlockHeaders)
	if !ok {
		return nil, nil
	}
	return resp.Headers, nil
}

func (n *Node) fetchAndApplyBatch(addr string, batch []BlockHeader) error {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connDeadline))

	hashes := make([]types.Hash, len(batch))
	for i, h := range batch {
		hashes[i] = h.Hash
	}
	if err := WriteFrame(conn, MsgGetBlocks, GetBlocks{Hashes: hashes}); err != nil {
		return err
	}
	msgType, payload, err := ReadFrame(conn)
	if err != nil {
		return err
	}
	if msgType != MsgBlocks {
		return nil
	}
	resp, ok := payload.(Blocks)
	if !ok {
		return nil
	}

	logger := klog.WithComponent("p2p")
	for _, blk := range resp.Blocks {
		if _, err := n.chain.ProcessBlock(blk); err != nil {
			logger.Warn().Err(err).Uint64("height", blk.Header.Height).Msg("sync: failed to apply fetched block, advancing")
			continue
		}
	}
	return nil
}

func (n *Node) mergePeers(addr string) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connDeadline))

	if err := WriteFrame(conn, MsgGetPeers, struct{}{}); err != nil {
		return
	}
	msgType, payload, err := ReadFrame(conn)
	if err != nil || msgType != MsgPeers {
		return
	}
	resp, ok := payload.(Peers)
	if !ok {
		return
	}
	for _, p := range resp.Peers {
		n.registry.Remember(p.Addr)
	}
}
