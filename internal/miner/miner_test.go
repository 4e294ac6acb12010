package miner

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/trinity-chain/trinitynode/internal/clockshim"
	"github.com/trinity-chain/trinitynode/internal/rng"
	"github.com/trinity-chain/trinitynode/pkg/crypto"
	"github.com/trinity-chain/trinitynode/pkg/geom"
	"github.com/trinity-chain/trinitynode/pkg/tx"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

type fakeChain struct {
	height     uint64
	tipHash    types.Hash
	tipTS      int64
	difficulty uint64
}

func (f *fakeChain) Height() uint64        { return f.height }
func (f *fakeChain) TipHash() types.Hash   { return f.tipHash }
func (f *fakeChain) TipTimestamp() int64   { return f.tipTS }
func (f *fakeChain) Difficulty() uint64    { return f.difficulty }

type fakePool struct {
	txs []tx.Transaction
}

func (p *fakePool) ByFee(limit int) []tx.Transaction {
	if limit >= 0 && limit < len(p.txs) {
		return p.txs[:limit]
	}
	return p.txs
}

func fixedReward(height uint64) uint64 { return 500 }

func TestProduceBlockMintsCoinbase(t *testing.T) {
	chain := &fakeChain{height: 5, difficulty: 1}
	m := New(chain, nil, fixedReward, "miner", rng.NewSeeded(1), clockshim.Fixed{At: time.Unix(2_000_000_000, 0)})

	blk, err := m.ProduceBlock(context.Background())
	if err != nil {
		t.Fatalf("produce block: %v", err)
	}
	if blk.Header.Height != 6 {
		t.Fatalf("expected height 6, got %d", blk.Header.Height)
	}
	if !blk.Header.MeetsTarget() {
		t.Fatal("produced block must meet its declared difficulty")
	}
	if len(blk.Transactions) != 1 {
		t.Fatalf("expected 1 transaction (coinbase only), got %d", len(blk.Transactions))
	}
	cb, ok := blk.Transactions[0].(*tx.Coinbase)
	if !ok {
		t.Fatal("first transaction must be a coinbase")
	}
	if cb.RewardArea != 500 {
		t.Fatalf("expected reward area 500, got %d", cb.RewardArea)
	}
}

func TestProduceBlockIncludesMempoolFeesInCoinbase(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.Address(key.PublicKey())
	parent := geom.Genesis(addr)

	sub := &tx.Subdivision{ParentHash: parent.Hash(), Children: parent.Subdivide(), Owner: addr, Fee: 10, Nonce: 1}
	sub.Signature, _ = key.Sign(sub.SignableMessage())
	sub.PublicKey = key.PublicKey()

	chain := &fakeChain{height: 1, difficulty: 1}
	pool := &fakePool{txs: []tx.Transaction{sub}}
	m := New(chain, pool, fixedReward, "miner", rng.NewSeeded(2), clockshim.Fixed{At: time.Unix(2_000_000_000, 0)})

	blk, err := m.ProduceBlock(context.Background())
	if err != nil {
		t.Fatalf("produce block: %v", err)
	}
	if len(blk.Transactions) != 2 {
		t.Fatalf("expected coinbase + subdivision, got %d txs", len(blk.Transactions))
	}
	cb := blk.Transactions[0].(*tx.Coinbase)
	if cb.RewardArea != 510 {
		t.Fatalf("expected reward area 500+10 fee = 510, got %d", cb.RewardArea)
	}
}

func TestProduceBlockBumpsTimestampPastParent(t *testing.T) {
	chain := &fakeChain{height: 1, tipTS: 2_000_000_500, difficulty: 1}
	m := New(chain, nil, fixedReward, "miner", rng.NewSeeded(3), clockshim.Fixed{At: time.Unix(2_000_000_000, 0)})

	blk, err := m.ProduceBlock(context.Background())
	if err != nil {
		t.Fatalf("produce block: %v", err)
	}
	if blk.Header.Timestamp <= chain.tipTS {
		t.Fatalf("expected timestamp to exceed parent %d, got %d", chain.tipTS, blk.Header.Timestamp)
	}
}

func TestProduceBlockRespectsCancellation(t *testing.T) {
	// An unreachable difficulty forces the search loop to keep spinning
	// until the context is cancelled.
	chain := &fakeChain{height: 1, difficulty: 256}
	m := New(chain, nil, fixedReward, "miner", rng.NewSeeded(4), clockshim.Fixed{At: time.Unix(2_000_000_000, 0)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.ProduceBlock(ctx); err == nil {
		t.Fatal("expected cancellation error for an unreachable difficulty")
	}
}

func TestProduceBlockClampsRewardToMaxRewardArea(t *testing.T) {
	chain := &fakeChain{height: 1, difficulty: 1}
	bigReward := func(height uint64) uint64 { return tx.MaxRewardArea }

	key, _ := crypto.GenerateKey()
	addr := crypto.Address(key.PublicKey())
	parent := geom.Genesis(addr)
	sub := &tx.Subdivision{ParentHash: parent.Hash(), Children: parent.Subdivide(), Owner: addr, Fee: 50, Nonce: 1}
	sub.Signature, _ = key.Sign(sub.SignableMessage())
	sub.PublicKey = key.PublicKey()
	pool := &fakePool{txs: []tx.Transaction{sub}}

	m := New(chain, pool, bigReward, "miner", rng.NewSeeded(5), clockshim.Fixed{At: time.Unix(2_000_000_000, 0)})
	blk, err := m.ProduceBlock(context.Background())
	if err != nil {
		t.Fatalf("produce block: %v", err)
	}
	cb := blk.Transactions[0].(*tx.Coinbase)
	if cb.RewardArea != tx.MaxRewardArea {
		t.Fatalf("expected reward clamped to %d, got %d", tx.MaxRewardArea, cb.RewardArea)
	}
}

// tickingClock advances by step on every call to Now, so a test can observe
// a nonzero elapsed duration without sleeping.
type tickingClock struct {
	at   time.Time
	step time.Duration
}

func (c *tickingClock) Now() time.Time {
	c.at = c.at.Add(c.step)
	return c.at
}

func TestProduceBlockReportsHashrate(t *testing.T) {
	chain := &fakeChain{height: 1, difficulty: 2}
	clock := &tickingClock{at: time.Unix(2_000_000_000, 0), step: time.Second}
	m := New(chain, nil, fixedReward, "miner", rng.NewSeeded(6), clock)

	if got := m.Hashrate(); got != 0 {
		t.Fatalf("expected zero hashrate before any block is sealed, got %v", got)
	}

	if _, err := m.ProduceBlock(context.Background()); err != nil {
		t.Fatalf("produce block: %v", err)
	}

	want := math.Pow(16, 2) / float64(clock.step/time.Second)
	if got := m.Hashrate(); got != want {
		t.Fatalf("Hashrate() = %v, want %v", got, want)
	}
}

func TestReportHashrateClampsDifficultyExponent(t *testing.T) {
	chain := &fakeChain{height: 1, difficulty: 1}
	m := New(chain, nil, fixedReward, "miner", rng.NewSeeded(7), clockshim.Fixed{At: time.Unix(2_000_000_000, 0)})

	m.reportHashrate(1_000, 10)
	want := math.Pow(16, maxHashrateDifficulty) / 10
	if got := m.Hashrate(); got != want {
		t.Fatalf("Hashrate() = %v, want %v (exponent should clamp at %d)", got, want, maxHashrateDifficulty)
	}
}

func TestReportHashrateIgnoresNonPositiveElapsed(t *testing.T) {
	chain := &fakeChain{height: 1, difficulty: 1}
	m := New(chain, nil, fixedReward, "miner", rng.NewSeeded(8), clockshim.Fixed{At: time.Unix(2_000_000_000, 0)})

	m.reportHashrate(4, 2)
	before := m.Hashrate()

	m.reportHashrate(4, 0)
	if got := m.Hashrate(); got != before {
		t.Fatalf("non-positive elapsed time should leave hashrate unchanged: got %v, want %v", got, before)
	}
}
