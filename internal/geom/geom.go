// Package geom holds the small set of planar types shared by the solver,
// the corner editor and the renderers.
package geom

import (
	"fmt"
	"math"
)

// Point represents a 2D coordinate. Viewport-space points live in [0,1]x[0,1]
// with the origin at the bottom-left, but nothing here enforces that range.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Scale returns p*s.
func (p Point) Scale(s float64) Point { return Point{X: p.X * s, Y: p.Y * s} }

// Len returns the Euclidean length of p.
func (p Point) Len() float64 { return math.Hypot(p.X, p.Y) }

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

func (p Point) String() string { return fmt.Sprintf("(%g, %g)", p.X, p.Y) }

// CornerCount is the number of corners of a CornerSet.
const CornerCount = 4

// CornerSet is a quadrilateral in counter-clockwise order. Index positions are
// significant: corner i always refers to the same physical corner.
type CornerSet [CornerCount]Point

// Canonical returns the unit square (0,0),(1,0),(1,1),(0,1).
func Canonical() CornerSet {
	return CornerSet{
		{X: 0, Y: 0},
		{X: 1, Y: 0},
		{X: 1, Y: 1},
		{X: 0, Y: 1},
	}
}

// CornersFromSlice copies pts into a CornerSet. ok is false when len(pts) != 4.
func CornersFromSlice(pts []Point) (CornerSet, bool) {
	var c CornerSet
	if len(pts) != CornerCount {
		return c, false
	}
	copy(c[:], pts)
	return c, true
}

// Slice returns the corners as a freshly allocated slice.
func (c CornerSet) Slice() []Point {
	out := make([]Point, CornerCount)
	copy(out, c[:])
	return out
}

// Matrix is a 3x3 projective matrix in row-major order.
type Matrix [3][3]float64

// Identity returns the 3x3 identity matrix.
func Identity() Matrix {
	return Matrix{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// MatrixFromVector reshapes a 9-element vector row-major into a Matrix.
func MatrixFromVector(v [9]float64) Matrix {
	return Matrix{
		{v[0], v[1], v[2]},
		{v[3], v[4], v[5]},
		{v[6], v[7], v[8]},
	}
}

// Vector flattens m row-major.
func (m Matrix) Vector() [9]float64 {
	return [9]float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	}
}

// Scale returns m with every entry multiplied by s.
func (m Matrix) Scale(s float64) Matrix {
	for r := range 3 {
		for c := range 3 {
			m[r][c] *= s
		}
	}
	return m
}

// Mul returns m*n.
func (m Matrix) Mul(n Matrix) Matrix {
	var out Matrix
	for r := range 3 {
		for c := range 3 {
			out[r][c] = m[r][0]*n[0][c] + m[r][1]*n[1][c] + m[r][2]*n[2][c]
		}
	}
	return out
}

// Apply maps p through m in homogeneous coordinates and performs the
// perspective divide. ok is false when the homogeneous w is zero.
func (m Matrix) Apply(p Point) (Point, bool) {
	w := m[2][0]*p.X + m[2][1]*p.Y + m[2][2]
	if w == 0 {
		return Point{}, false
	}
	x := (m[0][0]*p.X + m[0][1]*p.Y + m[0][2]) / w
	y := (m[1][0]*p.X + m[1][1]*p.Y + m[1][2]) / w
	return Point{X: x, Y: y}, true
}

// ApproxEqual reports whether m and n agree entry-wise within tol.
func (m Matrix) ApproxEqual(n Matrix, tol float64) bool {
	for r := range 3 {
		for c := range 3 {
			if math.Abs(m[r][c]-n[r][c]) > tol {
				return false
			}
		}
	}
	return true
}
