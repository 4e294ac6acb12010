package geom

import (
	"math"
	"testing"
)

func unitTriangle() Triangle {
	return Triangle{
		A: Point{X: 0, Y: 0},
		B: Point{X: 1, Y: 0},
		C: Point{X: 0, Y: 1},
	}
}

func TestTriangleArea(t *testing.T) {
	got := unitTriangle().Area()
	if math.Abs(got-0.5) > Tolerance {
		t.Fatalf("area = %v, want 0.5", got)
	}
}

func TestTriangleHashIsCanonical(t *testing.T) {
	tri := unitTriangle()
	permuted := Triangle{A: tri.C, B: tri.A, C: tri.B}
	if tri.Hash() != permuted.Hash() {
		t.Fatal("hash must be invariant under vertex permutation")
	}
}

func TestGenesisTriangleMatchesSpec(t *testing.T) {
	g := Genesis("genesis_owner")
	if !g.IsValid() {
		t.Fatal("genesis triangle must be valid")
	}
	if g.Owner != "genesis_owner" {
		t.Fatalf("owner = %q, want genesis_owner", g.Owner)
	}
}

func TestSubdivisionCorrectness(t *testing.T) {
	parent := unitTriangle()
	parentArea := parent.Area()
	children := parent.Subdivide()

	var sum float64
	for _, c := range children {
		sum += c.Area()
		if c.ParentHash == nil || *c.ParentHash != parent.Hash() {
			t.Fatal("child parent hash mismatch")
		}
	}

	want := parentArea * 0.75
	if math.Abs(sum-want) > Tolerance {
		t.Fatalf("children total area = %v, want %v", sum, want)
	}
}

func TestSubdivisionChildLayout(t *testing.T) {
	parent := unitTriangle()
	children := parent.Subdivide()
	midAB := Midpoint(parent.A, parent.B)
	midBC := Midpoint(parent.B, parent.C)
	midCA := Midpoint(parent.C, parent.A)

	if !children[0].A.Equals(parent.A) || !children[0].B.Equals(midAB) || !children[0].C.Equals(midCA) {
		t.Fatal("child 0 layout mismatch")
	}
	if !children[1].A.Equals(midAB) || !children[1].B.Equals(parent.B) || !children[1].C.Equals(midBC) {
		t.Fatal("child 1 layout mismatch")
	}
	if !children[2].A.Equals(midCA) || !children[2].B.Equals(midBC) || !children[2].C.Equals(parent.C) {
		t.Fatal("child 2 layout mismatch")
	}
}

func TestGeometricValidation(t *testing.T) {
	if !unitTriangle().IsValid() {
		t.Fatal("unit triangle should be valid")
	}
	degenerate := Triangle{A: Point{X: 0, Y: 0}, B: Point{X: 1, Y: 0}, C: Point{X: 2, Y: 0}}
	if degenerate.IsValid() {
		t.Fatal("collinear triangle should be invalid")
	}
	outOfRange := Triangle{A: Point{X: MaxCoordinate, Y: 0}, B: Point{X: 1, Y: 0}, C: Point{X: 0, Y: 1}}
	if outOfRange.IsValid() {
		t.Fatal("out-of-domain triangle should be invalid")
	}
}

func TestEffectiveValueFallsBackToArea(t *testing.T) {
	tri := unitTriangle()
	if tri.EffectiveValue() != tri.Area() {
		t.Fatal("effective value should equal area when Value is nil")
	}
	v := 42.0
	tri.Value = &v
	if tri.EffectiveValue() != 42.0 {
		t.Fatal("effective value should use Value when set")
	}
}
