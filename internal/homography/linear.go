package homography

import (
	"math"

	"github.com/MeKo-Tech/keystone/internal/geom"
)

// pivotTolerance treats pivots below this magnitude as zero.
const pivotTolerance = 1e-12

// SolveLinear computes the homography mapping p[i] -> q[i] with h22 fixed to 1.
// Unlike Solve it reports ErrSingular for degenerate input.
func SolveLinear(p, q geom.CornerSet) (geom.Matrix, error) {
	// Augmented 8x9 system over h00..h21. For each pair:
	//   X h00 + Y h01 + h02 - x X h20 - x Y h21 = x
	//   X h10 + Y h11 + h12 - y X h20 - y Y h21 = y
	var m [8][9]float64
	for i, from := range p {
		to := q[i]
		m[2*i] = [9]float64{from.X, from.Y, 1, 0, 0, 0, -from.X * to.X, -from.Y * to.X, to.X}
		m[2*i+1] = [9]float64{0, 0, 0, from.X, from.Y, 1, -from.X * to.Y, -from.Y * to.Y, to.Y}
	}

	h, ok := gaussJordan(m)
	if !ok {
		return geom.Matrix{}, ErrSingular
	}
	return geom.MatrixFromVector([9]float64{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}), nil
}

// gaussJordan reduces the augmented matrix m to identity form with partial
// pivoting and returns the last column. It fails when a pivot vanishes.
func gaussJordan(m [8][9]float64) ([8]float64, bool) {
	for col := range 8 {
		pivot := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) <= pivotTolerance {
			return [8]float64{}, false
		}
		m[col], m[pivot] = m[pivot], m[col]

		inv := 1 / m[col][col]
		for c := col; c < 9; c++ {
			m[col][c] *= inv
		}
		for r := range 8 {
			if f := m[r][col]; r != col && f != 0 {
				for c := col; c < 9; c++ {
					m[r][c] -= f * m[col][c]
				}
			}
		}
	}

	var x [8]float64
	for i := range x {
		x[i] = m[i][8]
	}
	return x, true
}
