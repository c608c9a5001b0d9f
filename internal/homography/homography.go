// Package homography estimates the projective transform between two
// quadrilaterals from their four corner correspondences.
package homography

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/keystone/internal/geom"
	"gonum.org/v1/gonum/mat"
)

// Method selects the estimation algorithm.
type Method string

const (
	// MethodSVD takes the right singular vector of the smallest singular value
	// of the 8x9 correspondence matrix.
	MethodSVD Method = "svd"
	// MethodLinear fixes h22 = 1 and solves the remaining 8x8 system directly.
	MethodLinear Method = "linear"
)

// Methods lists every supported method.
var Methods = []Method{MethodSVD, MethodLinear}

// ParseMethod converts a configuration string into a Method.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodSVD, "":
		return MethodSVD, nil
	case MethodLinear:
		return MethodLinear, nil
	default:
		return "", fmt.Errorf("unknown homography method %q (must be one of: svd, linear)", s)
	}
}

var (
	// ErrFactorization is returned when the singular value decomposition does
	// not converge.
	ErrFactorization = errors.New("homography: svd factorization failed")
	// ErrSingular is returned by the linear method for a singular system.
	ErrSingular = errors.New("homography: singular system")
)

// normEpsilon guards the h22 normalization.
const normEpsilon = 1e-12

// Solver computes homographies with a fixed method.
type Solver struct {
	method Method
}

// NewSolver returns a solver using method. An empty method selects MethodSVD.
func NewSolver(method Method) *Solver {
	if method == "" {
		method = MethodSVD
	}
	return &Solver{method: method}
}

// Method returns the estimation method in use.
func (s *Solver) Method() Method { return s.method }

// Solve returns H such that H*from[i] ~ to[i] in homogeneous coordinates.
func (s *Solver) Solve(from, to geom.CornerSet) (geom.Matrix, error) {
	switch s.method {
	case MethodLinear:
		return SolveLinear(from, to)
	default:
		return Solve(from, to)
	}
}

// Solve estimates the homography mapping from[i] to to[i] through the SVD of
// the stacked correspondence matrix.
//
// Degenerate input (repeated points, collinear triples) is not rejected; the
// decomposition still yields some singular vector, which may be meaningless.
func Solve(from, to geom.CornerSet) (geom.Matrix, error) {
	a := mat.NewDense(2*geom.CornerCount, 9, correspondenceRows(from, to))

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return geom.Matrix{}, ErrFactorization
	}

	var v mat.Dense
	svd.VTo(&v)
	_, cols := v.Dims()
	h := mat.Col(nil, cols-1, &v)

	var vec [9]float64
	copy(vec[:], h)
	return normalize(geom.MatrixFromVector(vec)), nil
}

// correspondenceRows lays out the 8x9 coefficient matrix row-major. Each pair
// contributes
//
//	-x1, -y1, -1,   0,   0,  0, x2*x1, x2*y1, x2
//	  0,   0,  0, -x1, -y1, -1, y2*x1, y2*y1, y2
func correspondenceRows(from, to geom.CornerSet) []float64 {
	data := make([]float64, 0, 2*geom.CornerCount*9)
	for i := range geom.CornerCount {
		x1, y1 := from[i].X, from[i].Y
		x2, y2 := to[i].X, to[i].Y
		data = append(data,
			-x1, -y1, -1, 0, 0, 0, x2*x1, x2*y1, x2,
			0, 0, 0, -x1, -y1, -1, y2*x1, y2*y1, y2,
		)
	}
	return data
}

// normalize scales h so that h22 == 1. The singular vector is only defined up
// to scale and sign; matrices with h22 ~ 0 are returned unchanged.
func normalize(h geom.Matrix) geom.Matrix {
	if math.Abs(h[2][2]) <= normEpsilon {
		return h
	}
	return h.Scale(1 / h[2][2])
}

// Transform maps p through h. The result is (-1e9, -1e9) when the homogeneous
// w vanishes, which lands far outside any viewport.
func Transform(h geom.Matrix, p geom.Point) geom.Point {
	q, ok := h.Apply(p)
	if !ok {
		return geom.Point{X: -1e9, Y: -1e9}
	}
	return q
}
