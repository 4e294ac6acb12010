// Package geom implements the planar primitives the chain's UTXO model is
// built from: points, triangles, and the subdivision/hashing rules that
// give them consensus meaning.
package geom

import (
	"encoding/binary"
	"math"

	"github.com/trinity-chain/trinitynode/pkg/crypto"
	"github.com/trinity-chain/trinitynode/pkg/types"
)

// Tolerance is the epsilon used for all geometric equality and positive-area
// checks. Two coordinates within Tolerance of each other are the same point;
// a triangle with area at or below Tolerance is degenerate.
const Tolerance = 1e-9

// MaxCoordinate bounds every point coordinate to (-MaxCoordinate, MaxCoordinate).
const MaxCoordinate = 1e10

// Point is a single vertex in the plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsValid reports whether both coordinates lie strictly within the domain.
func (p Point) IsValid() bool {
	return p.X > -MaxCoordinate && p.X < MaxCoordinate &&
		p.Y > -MaxCoordinate && p.Y < MaxCoordinate
}

// Equals reports whether p and o are the same point within Tolerance.
func (p Point) Equals(o Point) bool {
	return math.Abs(p.X-o.X) < Tolerance && math.Abs(p.Y-o.Y) < Tolerance
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) * 0.5, Y: (a.Y + b.Y) * 0.5}
}

// Hash returns SHA256(x_le8 || y_le8), the canonical point hash used as the
// building block of triangle hashing.
func (p Point) Hash() types.Hash {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(p.X))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(p.Y))
	return crypto.Hash(buf[:])
}
