// Package mempool holds pending, not-yet-mined transactions.
package mempool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/trinity-chain/trinitynode/pkg/tx"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// MaxTransactions bounds the total number of pending transactions, to
// prevent unbounded memory growth under spam.
const MaxTransactions = 10_000

// MaxPerSender bounds how many pending transactions a single sender/owner
// may have at once.
const MaxPerSender = 100

// Pool is a thread-safe set of pending transactions, indexed by hash.
type Pool struct {
	mu  sync.Mutex
	txs map[types.Hash]tx.Transaction
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{txs: make(map[types.Hash]tx.Transaction)}
}

// senderOf returns the address responsible for a transaction, for
// per-sender spam limiting. Coinbase has no sender.
func senderOf(t tx.Transaction) (string, bool) {
	switch v := t.(type) {
	case *tx.Transfer:
		return v.Sender, true
	case *tx.Subdivision:
		return v.Owner, true
	default:
		return "", false
	}
}

// Add validates t statelessly (cheap enough to reject spam without a
// state lookup) and inserts it into the pool.
func (p *Pool) Add(t tx.Transaction) error {
	hash := t.Hash()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.txs[hash]; exists {
		return fmt.Errorf("mempool: transaction already present")
	}

	switch v := t.(type) {
	case *tx.Transfer:
		if err := tx.ValidateSize(v); err != nil {
			return err
		}
		if err := v.Validate(); err != nil {
			return err
		}
	case *tx.Subdivision:
		if err := tx.ValidateSize(v); err != nil {
			return err
		}
		if err := v.ValidateSignature(); err != nil {
			return err
		}
	case *tx.Coinbase:
		return fmt.Errorf("mempool: coinbase transactions cannot be added to the mempool")
	default:
		return fmt.Errorf("mempool: unsupported transaction type %T", t)
	}

	if sender, ok := senderOf(t); ok {
		count := 0
		for _, existing := range p.txs {
			if s, ok := senderOf(existing); ok && s == sender {
				count++
				if count >= MaxPerSender {
					return fmt.Errorf("mempool: sender %s has reached the mempool limit of %d", sender, MaxPerSender)
				}
			}
		}
	}

	if len(p.txs) >= MaxTransactions {
		p.evictLowestFee()
	}

	p.txs[hash] = t
	return nil
}

// evictLowestFee removes the lowest-fee transactions to make room for new
// ones. When the pool is more than 90% full it evicts 10% at once, so this
// O(n log n) scan doesn't run on every single insert near capacity.
func (p *Pool) evictLowestFee() {
	if len(p.txs) == 0 {
		return
	}
	evictCount := 1
	if len(p.txs) > MaxTransactions*9/10 {
		if c := MaxTransactions / 10; c > 1 {
			evictCount = c
		}
	}

	type feeHash struct {
		fee  float64
		hash types.Hash
	}
	pairs := make([]feeHash, 0, len(p.txs))
	for h, t := range p.txs {
		pairs = append(pairs, feeHash{fee: t.FeeArea(), hash: h})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].fee < pairs[j].fee })

	if evictCount > len(pairs) {
		evictCount = len(pairs)
	}
	for _, ph := range pairs[:evictCount] {
		delete(p.txs, ph.hash)
	}
}

// Remove deletes a transaction from the pool by hash.
func (p *Pool) Remove(hash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.txs, hash)
}

// RemoveMany deletes several transactions at once, e.g. after they've
// landed in a mined block.
func (p *Pool) RemoveMany(hashes []types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range hashes {
		delete(p.txs, h)
	}
}

// Len returns the number of pending transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}

// Get returns a specific pending transaction by hash.
func (p *Pool) Get(hash types.Hash) (tx.Transaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.txs[hash]
	return t, ok
}

// All returns every pending transaction, in no particular order.
func (p *Pool) All() []tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]tx.Transaction, 0, len(p.txs))
	for _, t := range p.txs {
		out = append(out, t)
	}
	return out
}

// ByFee returns up to limit pending transactions ordered by fee descending,
// for block assembly. A negative limit returns every transaction.
func (p *Pool) ByFee(limit int) []tx.Transaction {
	p.mu.Lock()
	all := make([]tx.Transaction, 0, len(p.txs))
	for _, t := range p.txs {
		all = append(all, t)
	}
	p.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].FeeArea() > all[j].FeeArea() })
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

// ValidateAndPrune re-validates every pending transaction against state and
// removes any that no longer apply, e.g. after a reorganization spent their
// input on the new canonical chain. Returns the number removed.
func (p *Pool) ValidateAndPrune(state tx.TriangleLookup) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	var toRemove []types.Hash
	for hash, t := range p.txs {
		valid := false
		switch v := t.(type) {
		case *tx.Subdivision:
			if _, ok := state.Get(v.ParentHash); ok {
				valid = v.Validate(state) == nil
			}
		case *tx.Transfer:
			if _, ok := state.Get(v.InputHash); ok {
				valid = v.ValidateWithState(state) == nil
			}
		}
		if !valid {
			toRemove = append(toRemove, hash)
		}
	}
	for _, h := range toRemove {
		delete(p.txs, h)
	}
	return len(toRemove)
}
