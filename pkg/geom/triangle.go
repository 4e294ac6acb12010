package geom

import (
	"bytes"
	"math"
	"sort"

	"github.com/trinity-chain/trinitynode/pkg/crypto"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// Triangle is a single UTXO entry: three vertices, the hash of the parent
// triangle it was subdivided from (nil for roots), an owner address, and an
// optional effective value overriding the raw geometric area.
type Triangle struct {
	A, B, C    Point
	ParentHash *types.Hash
	Owner      string
	Value      *float64
}

// Area computes the Shoelace-formula area of the triangle. The evaluation
// order matches the canonical geometric derivation term for term; do not
// reassociate it, the consensus hash of every coinbase and subdivision
// depends on the exact floating-point result.
func (t Triangle) Area() float64 {
	return math.Abs(t.A.X*(t.B.Y-t.C.Y)+t.B.X*(t.C.Y-t.A.Y)+t.C.X*(t.A.Y-t.B.Y)) / 2.0
}

// EffectiveValue returns Value if set, otherwise the raw geometric area.
func (t Triangle) EffectiveValue() float64 {
	if t.Value != nil {
		return *t.Value
	}
	return t.Area()
}

// Hash is the canonical triangle hash: the three vertex hashes sorted into
// lexicographic order (so vertex permutation never changes identity) and
// concatenated through a single SHA256.
func (t Triangle) Hash() types.Hash {
	ha, hb, hc := t.A.Hash(), t.B.Hash(), t.C.Hash()
	parts := [][]byte{ha.Bytes(), hb.Bytes(), hc.Bytes()}
	sort.Slice(parts, func(i, j int) bool { return bytes.Compare(parts[i], parts[j]) < 0 })

	buf := make([]byte, 0, 96)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return crypto.Hash(buf)
}

// IsValid reports whether every vertex is in-domain and the triangle has
// strictly positive area beyond Tolerance.
func (t Triangle) IsValid() bool {
	return t.A.IsValid() && t.B.IsValid() && t.C.IsValid() && t.Area() > Tolerance
}

// Subdivide splits t into its three midpoint children, each inheriting t's
// owner and a third of t's value (when set). The inverted center triangle is
// never produced: it is the 25% of area consensus burns on every subdivision.
func (t Triangle) Subdivide() [3]Triangle {
	midAB := Midpoint(t.A, t.B)
	midBC := Midpoint(t.B, t.C)
	midCA := Midpoint(t.C, t.A)

	parentHash := t.Hash()

	var childValue *float64
	if t.Value != nil {
		v := *t.Value / 3.0
		childValue = &v
	}

	mk := func(a, b, c Point) Triangle {
		return Triangle{A: a, B: b, C: c, ParentHash: &parentHash, Owner: t.Owner, Value: childValue}
	}

	return [3]Triangle{
		mk(t.A, midAB, midCA),
		mk(midAB, t.B, midBC),
		mk(midCA, midBC, t.C),
	}
}

// Genesis returns the fixed root triangle the chain starts from.
func Genesis(owner string) Triangle {
	return Triangle{
		A:     Point{X: 0, Y: 0},
		B:     Point{X: 1, Y: 0},
		C:     Point{X: 0.5, Y: 0.866025403784},
		Owner: owner,
	}
}
