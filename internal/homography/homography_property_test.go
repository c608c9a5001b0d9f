package homography

import (
	"math"
	"testing"

	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genQuad generates a convex quadrilateral by jittering each corner of the
// unit square. A jitter of 0.15 keeps every triple well away from collinear.
func genQuad() gopter.Gen {
	gens := make([]gopter.Gen, 2*geom.CornerCount)
	for i := range gens {
		gens[i] = gen.Float64Range(-0.15, 0.15)
	}
	return gopter.CombineGens(gens...).Map(func(vals []interface{}) geom.CornerSet {
		c := geom.Canonical()
		for i := range geom.CornerCount {
			c[i].X += vals[2*i].(float64)
			c[i].Y += vals[2*i+1].(float64)
		}
		return c
	})
}

func mapsCorners(h geom.Matrix, from, to geom.CornerSet, tol float64) bool {
	for i := range geom.CornerCount {
		got, ok := h.Apply(from[i])
		if !ok {
			return false
		}
		if math.Abs(got.X-to[i].X) > tol || math.Abs(got.Y-to[i].Y) > tol {
			return false
		}
	}
	return true
}

// TestSolve_RoundTrip verifies that the solved matrix maps every source corner
// onto its destination corner.
func TestSolve_RoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("solve(from, to) maps from[i] onto to[i]", prop.ForAll(
		func(from, to geom.CornerSet) bool {
			h, err := Solve(from, to)
			if err != nil {
				return false
			}
			return mapsCorners(h, from, to, roundTripTolerance)
		},
		genQuad(),
		genQuad(),
	))

	properties.TestingRun(t)
}

// TestSolve_SelfIsIdentity verifies solve(A, A) is the identity up to scale.
func TestSolve_SelfIsIdentity(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("solve(A, A) is the identity", prop.ForAll(
		func(quad geom.CornerSet) bool {
			h, err := Solve(quad, quad)
			if err != nil {
				return false
			}
			return h.ApproxEqual(geom.Identity(), 1e-6)
		},
		genQuad(),
	))

	properties.TestingRun(t)
}

// TestSolve_LinearAgreement verifies both methods produce the same transform.
func TestSolve_LinearAgreement(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("svd and linear methods agree", prop.ForAll(
		func(from geom.CornerSet) bool {
			a, err := Solve(from, geom.Canonical())
			if err != nil {
				return false
			}
			b, err := SolveLinear(from, geom.Canonical())
			if err != nil {
				return false
			}
			return a.ApproxEqual(b, 1e-6)
		},
		genQuad(),
	))

	properties.TestingRun(t)
}
