package p2p

import (
	"net"
	"time"

	klog "github.com/trinity-chain/trinitynode/internal/log"
	"github.com/trinity-chain/trinitynode/pkg/block"
	"github.com/trinity-chain/trinitynode/pkg/tx"
)

// BroadcastBlock sends a newly mined or newly accepted block to every
// currently known peer, best-effort: a failed send is logged and the
// remaining peers are still attempted.
func (n *Node) BroadcastBlock(blk *block.Block) {
	n.broadcast(MsgNewBlock, BlockMsg{Block: blk})
}

// BroadcastTransaction sends a locally submitted transaction to every
// currently known peer, best-effort.
func (n *Node) BroadcastTransaction(t tx.Transaction) {
	n.broadcast(MsgNewTransaction, NewTransactionMsg{Transaction: t})
}

func (n *Node) broadcast(msgType MessageType, payload any) {
	logger := klog.WithComponent("p2p")
	for _, rec := range n.registry.Snapshot() {
		addr := rec.Addr
		go func() {
			conn, err := net.DialTimeout("tcp", addr, dialTimeout)
			if err != nil {
				logger.Warn().Err(err).Str("peer", addr).Msg("broadcast: dial failed")
				return
			}
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(connDeadline))
			if err := WriteFrame(conn, msgType, payload); err != nil {
				logger.Warn().Err(err).Str("peer", addr).Msg("broadcast: send failed")
				return
			}
			ReadFrame(conn) // drain the ack; ignore its content and any error
		}()
	}
}
