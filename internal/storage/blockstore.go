package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/trinity-chain/trinitynode/pkg/block"
	"github.com/trinity-chain/trinitynode/pkg/geom"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// Key namespaces within a BlockStore's underlying DB.
var (
	blockPrefix       = []byte("b:")
	utxoKey           = []byte("u:snapshot")
	metaTipKey        = []byte("m:tip")
	metaDiffKey       = []byte("m:difficulty")
	metaGenesisOwner  = []byte("m:genesis_owner")
)

// ChainMeta is the small amount of chain-level state that isn't derivable
// by replaying blocks: the current tip, its difficulty, and the genesis
// triangle's owner (genesis carries no transactions, so its seed owner has
// nowhere else to live — a full fork replay needs it to reconstruct state
// from height zero).
type ChainMeta struct {
	TipHash      types.Hash
	Difficulty   uint64
	GenesisOwner string
}

// BlockStore persists blocks, the UTXO snapshot, and chain metadata. The
// UTXO snapshot is the primary triangle map only — the owner index is
// derived and is rebuilt in memory on load, never written here.
type BlockStore interface {
	// LoadChain returns every stored block ordered by height ascending.
	LoadChain() ([]*block.Block, error)
	// SaveBlock persists a single block, keyed by height.
	SaveBlock(b *block.Block) error
	// SaveUTXOSnapshot persists the primary triangle map.
	SaveUTXOSnapshot(snapshot map[types.Hash]geom.Triangle) error
	// LoadUTXOSnapshot returns the last persisted triangle map, or an empty
	// map if none has been saved yet.
	LoadUTXOSnapshot() (map[types.Hash]geom.Triangle, error)
	// SaveChainMeta persists the chain tip and current difficulty.
	SaveChainMeta(meta ChainMeta) error
	// LoadChainMeta returns the last persisted tip and difficulty.
	LoadChainMeta() (ChainMeta, error)
	Close() error
}

// FileBlockStore implements BlockStore on top of any DB, writing each block
// record (keyed by height) through a Batch where the DB offers one.
type FileBlockStore struct {
	db DB
}

// NewFileBlockStore wraps db as a BlockStore.
func NewFileBlockStore(db DB) *FileBlockStore {
	return &FileBlockStore{db: db}
}

func heightKey(height uint64) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], height)
	return key
}

// SaveBlock persists b under its height key. If the underlying DB supports
// batching, the write commits atomically; otherwise it's a single Put,
// which is already atomic for one key.
func (fs *FileBlockStore) SaveBlock(b *block.Block) error {
	if b.Header == nil {
		return fmt.Errorf("blockstore: cannot save block with nil header")
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("blockstore: marshal block at height %d: %w", b.Header.Height, err)
	}

	if batcher, ok := fs.db.(Batcher); ok {
		batch := batcher.NewBatch()
		if err := batch.Put(heightKey(b.Header.Height), data); err != nil {
			return fmt.Errorf("blockstore: batch put block: %w", err)
		}
		if err := batch.Commit(); err != nil {
			return fmt.Errorf("blockstore: commit block at height %d: %w", b.Header.Height, err)
		}
		return nil
	}

	if err := fs.db.Put(heightKey(b.Header.Height), data); err != nil {
		return fmt.Errorf("blockstore: put block at height %d: %w", b.Header.Height, err)
	}
	return nil
}

// LoadChain returns every stored block ordered by height ascending. Height
// keys are big-endian encoded so lexicographic key order already matches
// height order, but results are re-sorted defensively since ForEach's
// iteration order isn't guaranteed by every DB implementation.
func (fs *FileBlockStore) LoadChain() ([]*block.Block, error) {
	var blocks []*block.Block
	err := fs.db.ForEach(blockPrefix, func(_, value []byte) error {
		var b block.Block
		if err := json.Unmarshal(value, &b); err != nil {
			return fmt.Errorf("blockstore: unmarshal block: %w", err)
		}
		blocks = append(blocks, &b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Header.Height < blocks[j].Header.Height
	})
	return blocks, nil
}

// utxoEntry is one element of the persisted UTXO snapshot, which is stored
// as a JSON array with each triangle's hash as a hex string.
type utxoEntry struct {
	Hash     string        `json:"hash"`
	Triangle geom.Triangle `json:"triangle"`
}

func (fs *FileBlockStore) SaveUTXOSnapshot(snapshot map[types.Hash]geom.Triangle) error {
	entries := make([]utxoEntry, 0, len(snapshot))
	for h, t := range snapshot {
		entries = append(entries, utxoEntry{Hash: h.String(), Triangle: t})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("blockstore: marshal utxo snapshot: %w", err)
	}
	if err := fs.db.Put(utxoKey, data); err != nil {
		return fmt.Errorf("blockstore: put utxo snapshot: %w", err)
	}
	return nil
}

func (fs *FileBlockStore) LoadUTXOSnapshot() (map[types.Hash]geom.Triangle, error) {
	data, err := fs.db.Get(utxoKey)
	if err != nil {
		return make(map[types.Hash]geom.Triangle), nil
	}
	var entries []utxoEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("blockstore: unmarshal utxo snapshot: %w", err)
	}
	out := make(map[types.Hash]geom.Triangle, len(entries))
	for _, e := range entries {
		h, err := types.HexToHash(e.Hash)
		if err != nil {
			return nil, fmt.Errorf("blockstore: decode utxo hash %q: %w", e.Hash, err)
		}
		out[h] = e.Triangle
	}
	return out, nil
}

func (fs *FileBlockStore) SaveChainMeta(meta ChainMeta) error {
	if err := fs.db.Put(metaTipKey, meta.TipHash.Bytes()); err != nil {
		return fmt.Errorf("blockstore: put chain tip: %w", err)
	}
	diffBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(diffBytes, meta.Difficulty)
	if err := fs.db.Put(metaDiffKey, diffBytes); err != nil {
		return fmt.Errorf("blockstore: put chain difficulty: %w", err)
	}
	if meta.GenesisOwner != "" {
		if err := fs.db.Put(metaGenesisOwner, []byte(meta.GenesisOwner)); err != nil {
			return fmt.Errorf("blockstore: put genesis owner: %w", err)
		}
	}
	return nil
}

func (fs *FileBlockStore) LoadChainMeta() (ChainMeta, error) {
	var meta ChainMeta
	tipBytes, err := fs.db.Get(metaTipKey)
	if err != nil {
		return meta, nil // no meta persisted yet
	}
	if len(tipBytes) == types.HashSize {
		copy(meta.TipHash[:], tipBytes)
	}
	if diffBytes, err := fs.db.Get(metaDiffKey); err == nil && len(diffBytes) == 8 {
		meta.Difficulty = binary.BigEndian.Uint64(diffBytes)
	}
	if ownerBytes, err := fs.db.Get(metaGenesisOwner); err == nil {
		meta.GenesisOwner = string(ownerBytes)
	}
	return meta, nil
}

func (fs *FileBlockStore) Close() error {
	return fs.db.Close()
}
