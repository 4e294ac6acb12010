// Package miner assembles and seals candidate blocks: selecting mempool
// transactions by fee, minting the coinbase, and searching for a nonce that
// satisfies the chain's current difficulty.
package miner

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/trinity-chain/trinitynode/internal/clockshim"
	"github.com/trinity-chain/trinitynode/internal/rng"
	"github.com/trinity-chain/trinitynode/pkg/block"
	"github.com/trinity-chain/trinitynode/pkg/tx"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// maxHashrateDifficulty caps the difficulty exponent used in the hashrate
// estimate: beyond this, 16^d overflows any quantity worth reporting, so the
// estimate just saturates instead of producing nonsense.
const maxHashrateDifficulty = 40

// MaxBlockTxs bounds how many transactions (coinbase included) a produced
// block may carry.
const MaxBlockTxs = 2000

// ChainView is the read-only chain state a miner needs to build on the
// current tip.
type ChainView interface {
	Height() uint64
	TipHash() types.Hash
	TipTimestamp() int64
	Difficulty() uint64
}

// MempoolSelector selects pending transactions for inclusion, ordered by
// fee descending. internal/mempool.Pool satisfies this directly.
type MempoolSelector interface {
	ByFee(limit int) []tx.Transaction
}

// RewardFunc returns the block subsidy a coinbase at height may mint,
// before transaction fees are added. internal/chain.BlockReward satisfies
// this directly.
type RewardFunc func(height uint64) uint64

// Miner produces candidate blocks extending the current chain tip.
type Miner struct {
	chain       ChainView
	pool        MempoolSelector
	reward      RewardFunc
	beneficiary string
	rng         rng.Source
	clock       clockshim.Clock
	maxBlockTxs int

	// hashrateBits holds the last reported hashrate estimate as a
	// math.Float64bits-encoded value, so it can be read concurrently with
	// ProduceBlock without a mutex.
	hashrateBits atomic.Uint64
}

// New creates a Miner. pool may be nil to mine empty (coinbase-only) blocks.
func New(chain ChainView, pool MempoolSelector, reward RewardFunc, beneficiary string, source rng.Source, clock clockshim.Clock) *Miner {
	if source == nil {
		source = rng.System{}
	}
	if clock == nil {
		clock = clockshim.Real{}
	}
	return &Miner{
		chain:       chain,
		pool:        pool,
		reward:      reward,
		beneficiary: beneficiary,
		rng:         source,
		clock:       clock,
		maxBlockTxs: MaxBlockTxs,
	}
}

// ProduceBlock builds and seals a new block extending the current tip, using
// the current wall-clock time as its timestamp. Sealing stops if ctx is
// cancelled, returning ctx.Err(). The returned block is not applied to the
// chain — the caller passes it to chain.Chain.ProcessBlock.
func (m *Miner) ProduceBlock(ctx context.Context) (*block.Block, error) {
	timestamp := m.clock.Now().Unix()
	if parentTS := m.chain.TipTimestamp(); timestamp <= parentTS {
		timestamp = parentTS + 1
	}

	height := m.chain.Height() + 1

	var selected []tx.Transaction
	var totalFees float64
	if m.pool != nil {
		selected = m.pool.ByFee(m.maxBlockTxs - 1)
		for _, t := range selected {
			totalFees += t.FeeArea()
		}
	}

	rewardArea := m.reward(height) + uint64(totalFees)
	if rewardArea > tx.MaxRewardArea {
		rewardArea = tx.MaxRewardArea
	}
	coinbase := &tx.Coinbase{RewardArea: rewardArea, Beneficiary: m.beneficiary}

	// Canonical ordering: coinbase first, the rest sorted by hash ascending
	// so two miners selecting the same mempool content build an identical
	// (and therefore identically-hashed) block.
	sort.Slice(selected, func(i, j int) bool {
		hi, hj := selected[i].Hash(), selected[j].Hash()
		return bytes.Compare(hi.Bytes(), hj.Bytes()) < 0
	})

	txs := make([]tx.Transaction, 0, 1+len(selected))
	txs = append(txs, coinbase)
	txs = append(txs, selected...)

	txHashes := make([]types.Hash, len(txs))
	for i, t := range txs {
		txHashes[i] = t.Hash()
	}

	header := &block.Header{
		Height:       height,
		PreviousHash: m.chain.TipHash(),
		Timestamp:    timestamp,
		Difficulty:   m.chain.Difficulty(),
		MerkleRoot:   block.ComputeMerkleRoot(txHashes),
	}

	blk := block.NewBlock(header, txs)
	sealStart := m.clock.Now()
	if err := m.seal(ctx, blk); err != nil {
		return nil, fmt.Errorf("miner: seal block %d: %w", height, err)
	}
	m.reportHashrate(header.Difficulty, m.clock.Now().Sub(sealStart).Seconds())
	return blk, nil
}

// reportHashrate updates the reported (non-consensus) hashrate estimate for
// the nonce search that just completed: 16^min(difficulty, 40) hashes over
// elapsed seconds. A non-positive elapsed time (clock didn't advance, or a
// Fixed clock in tests) leaves the previous estimate untouched rather than
// dividing by zero.
func (m *Miner) reportHashrate(difficulty uint64, elapsedSeconds float64) {
	if elapsedSeconds <= 0 {
		return
	}
	exp := difficulty
	if exp > maxHashrateDifficulty {
		exp = maxHashrateDifficulty
	}
	rate := math.Pow(16, float64(exp)) / elapsedSeconds
	m.hashrateBits.Store(math.Float64bits(rate))
}

// Hashrate returns the most recently reported hash rate estimate, in hashes
// per second. It is derived from the last completed nonce search and is
// purely informational: it plays no role in validation or difficulty
// retargeting. Zero before the first block has been sealed.
func (m *Miner) Hashrate() float64 {
	return math.Float64frombits(m.hashrateBits.Load())
}

// seal searches for a nonce that satisfies the header's declared difficulty,
// starting from a randomized offset so two miners racing the same candidate
// don't redundantly retrace each other's low nonces. Cancellation is checked
// periodically rather than every iteration, to keep the hot loop cheap.
func (m *Miner) seal(ctx context.Context, blk *block.Block) error {
	start := m.rng.Uint64()
	for i := uint64(0); ; i++ {
		if i&0xFFFF == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		blk.Header.Nonce = start + i
		if blk.Header.MeetsTarget() {
			return nil
		}
		if i == ^uint64(0) {
			return fmt.Errorf("nonce space exhausted")
		}
	}
}
