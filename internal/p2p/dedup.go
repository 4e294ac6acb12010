package p2p

import (
	"sync"
	"time"

	"github.com/trinity-chain/trinitynode/pkg/crypto"
)

// dedupTTL bounds how long a fingerprint is remembered. Gossip that loops
// back around through a second peer after this window is reprocessed rather
// than dropped — harmless, since the underlying chain/mempool checks are
// idempotent regardless.
const dedupTTL = 5 * time.Minute

// dedupCache is a best-effort cache of recently seen gossip fingerprints,
// used only to skip redundant logging/reprocessing of a block or
// transaction arriving from more than one peer. It never gates consensus:
// chain.ProcessBlock and mempool.Pool.Add independently reject duplicates
// by their real hash, so a cache miss here is never unsafe, only wasted work.
type dedupCache struct {
	mu   sync.Mutex
	seen map[[32]byte]time.Time
}

func newDedupCache() *dedupCache {
	return &dedupCache{seen: make(map[[32]byte]time.Time)}
}

// seenRecently fingerprints data and reports whether it was already recorded
// within dedupTTL, recording it now if not.
func (d *dedupCache) seenRecently(data []byte) bool {
	fp := crypto.Fingerprint(data)
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.seen[fp]; ok && time.Since(t) < dedupTTL {
		return true
	}
	d.seen[fp] = time.Now()
	return false
}

// prune drops expired fingerprints so the cache doesn't grow unbounded
// across a long-running node.
func (d *dedupCache) prune() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	for fp, t := range d.seen {
		if now.Sub(t) >= dedupTTL {
			delete(d.seen, fp)
		}
	}
}
