package p2p

import "time"

// Peer is a live, in-memory view of a known remote node: enough to dial it
// again and to report it via GetPeers. PeerRecord is its persisted form.
type Peer struct {
	ID          string
	Addr        string
	Height      uint64
	ConnectedAt time.Time
}
