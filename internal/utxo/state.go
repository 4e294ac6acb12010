// Package utxo tracks the set of unspent triangles: the chain's UTXO set.
package utxo

import (
	"fmt"
	"math"
	"sync"

	"github.com/trinity-chain/trinitynode/pkg/geom"
	"github.com/trinity-chain/trinitynode/pkg/tx"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// State is the set of currently unspent triangles, plus a derived index
// from owner address to the hashes they hold. The index makes balance and
// ownership queries O(1) instead of a full scan.
type State struct {
	mu      sync.RWMutex
	byHash  map[types.Hash]geom.Triangle
	byOwner map[string]map[types.Hash]struct{}
}

// New returns an empty State.
func New() *State {
	return &State{
		byHash:  make(map[types.Hash]geom.Triangle),
		byOwner: make(map[string]map[types.Hash]struct{}),
	}
}

// NewGenesis returns a State seeded with the single root triangle, owned by owner.
func NewGenesis(owner string) *State {
	s := New()
	g := geom.Genesis(owner)
	s.insert(g.Hash(), g)
	return s
}

// insert adds a triangle to both the primary map and the owner index.
// Callers must hold s.mu.
func (s *State) insert(hash types.Hash, t geom.Triangle) {
	s.byHash[hash] = t
	set, ok := s.byOwner[t.Owner]
	if !ok {
		set = make(map[types.Hash]struct{})
		s.byOwner[t.Owner] = set
	}
	set[hash] = struct{}{}
}

// remove deletes a triangle from both the primary map and the owner index.
// Callers must hold s.mu.
func (s *State) remove(hash types.Hash) (geom.Triangle, bool) {
	t, ok := s.byHash[hash]
	if !ok {
		return geom.Triangle{}, false
	}
	delete(s.byHash, hash)
	if set, ok := s.byOwner[t.Owner]; ok {
		delete(set, hash)
		if len(set) == 0 {
			delete(s.byOwner, t.Owner)
		}
	}
	return t, true
}

// Get returns the triangle stored under hash. It satisfies tx.TriangleLookup
// so pkg/tx can validate against state without importing this package.
func (s *State) Get(hash types.Hash) (geom.Triangle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byHash[hash]
	return t, ok
}

// Count returns the number of unspent triangles.
func (s *State) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byHash)
}

// TrianglesByOwner returns every triangle currently held by owner.
func (s *State) TrianglesByOwner(owner string) []geom.Triangle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hashes, ok := s.byOwner[owner]
	if !ok {
		return nil
	}
	out := make([]geom.Triangle, 0, len(hashes))
	for h := range hashes {
		out = append(out, s.byHash[h])
	}
	return out
}

// Balance returns the total area owner currently holds, summing each
// triangle's effective value rather than raw area so outstanding transfer
// fees are reflected.
func (s *State) Balance(owner string) float64 {
	var total float64
	for _, t := range s.TrianglesByOwner(owner) {
		total += t.EffectiveValue()
	}
	return total
}

// RebuildIndex recomputes the owner index from the primary triangle map.
// Only the primary map is persisted; call this after Load to restore the
// index rather than storing it too.
func (s *State) RebuildIndex() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOwner = make(map[string]map[types.Hash]struct{})
	for hash, t := range s.byHash {
		set, ok := s.byOwner[t.Owner]
		if !ok {
			set = make(map[types.Hash]struct{})
			s.byOwner[t.Owner] = set
		}
		set[hash] = struct{}{}
	}
}

// ApplySubdivision consumes the parent triangle and inserts its three children.
func (s *State) ApplySubdivision(t *tx.Subdivision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.remove(t.ParentHash); !ok {
		return fmt.Errorf("utxo: parent triangle %s not found", t.ParentHash)
	}
	for _, child := range t.Children {
		s.insert(child.Hash(), child)
	}
	return nil
}

// ApplyCoinbase mints a new reward triangle for the beneficiary of a block.
// The triangle is a right isosceles triangle sized to RewardArea, offset by
// height so reward triangles from different blocks never collide.
func (s *State) ApplyCoinbase(t *tx.Coinbase, height uint64) error {
	side := math.Sqrt(2.0 * float64(t.RewardArea))
	if math.IsNaN(side) || math.IsInf(side, 0) || side <= 0 {
		return fmt.Errorf("utxo: invalid reward area %d for coinbase", t.RewardArea)
	}

	offset := float64(height) * 1000.0
	newTriangle := geom.Triangle{
		A:     geom.Point{X: offset, Y: 0},
		B:     geom.Point{X: offset + side, Y: 0},
		C:     geom.Point{X: offset, Y: side},
		Owner: t.Beneficiary,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert(newTriangle.Hash(), newTriangle)
	return nil
}

// ApplyTransfer moves a triangle to a new owner, deducting its fee from the
// triangle's effective value. The triangle's geometry — and therefore its
// hash — is unchanged: the fee reduces value, not shape.
func (s *State) ApplyTransfer(t *tx.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.remove(t.InputHash)
	if !ok {
		return fmt.Errorf("utxo: transfer input %s not found", t.InputHash)
	}

	newValue := old.EffectiveValue() - t.FeeAreaV
	updated := old
	updated.Owner = t.NewOwner
	updated.Value = &newValue
	s.insert(updated.Hash(), updated)
	return nil
}

// Snapshot returns a copy of the primary triangle map for persistence. The
// owner index is intentionally excluded — it is derived data, reconstructed
// by RebuildIndex after Load.
func (s *State) Snapshot() map[types.Hash]geom.Triangle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[types.Hash]geom.Triangle, len(s.byHash))
	for h, t := range s.byHash {
		out[h] = t
	}
	return out
}

// Load replaces the primary triangle map with snapshot and rebuilds the
// owner index from it.
func (s *State) Load(snapshot map[types.Hash]geom.Triangle) {
	s.mu.Lock()
	s.byHash = make(map[types.Hash]geom.Triangle, len(snapshot))
	for h, t := range snapshot {
		s.byHash[h] = t
	}
	s.mu.Unlock()
	s.RebuildIndex()
}
