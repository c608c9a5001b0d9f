package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	c := Canonical()
	assert.Equal(t, CornerSet{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, c)
}

func TestCornersFromSlice(t *testing.T) {
	tests := []struct {
		name string
		pts  []Point
		ok   bool
	}{
		{name: "nil", pts: nil, ok: false},
		{name: "three points", pts: []Point{{0, 0}, {1, 0}, {1, 1}}, ok: false},
		{name: "four points", pts: []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, ok: true},
		{name: "five points", pts: []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {2, 2}}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := CornersFromSlice(tt.pts)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.pts, c.Slice())
			}
		})
	}
}

func TestMatrix_Apply(t *testing.T) {
	x, ok := Identity().Apply(Pt(10, 20))
	require.True(t, ok)
	assert.InDelta(t, 10, x.X, 1e-12)
	assert.InDelta(t, 20, x.Y, 1e-12)

	// Pure projective scale: w = 2 halves the point.
	m := Identity()
	m[2][2] = 2
	x, ok = m.Apply(Pt(4, 6))
	require.True(t, ok)
	assert.InDelta(t, 2, x.X, 1e-12)
	assert.InDelta(t, 3, x.Y, 1e-12)

	m[2][2] = 0
	_, ok = m.Apply(Pt(0, 0))
	assert.False(t, ok, "zero w must be reported")
}

func TestMatrix_VectorRoundTrip(t *testing.T) {
	v := [9]float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	m := MatrixFromVector(v)
	assert.Equal(t, 2.0, m[0][1])
	assert.Equal(t, 7.0, m[2][0])
	assert.Equal(t, v, m.Vector())
}

func TestMatrix_MulIdentity(t *testing.T) {
	m := MatrixFromVector([9]float64{2, 0, 1, 0, 3, 1, 0.1, 0.2, 1})
	assert.True(t, m.Mul(Identity()).ApproxEqual(m, 1e-12))
	assert.True(t, Identity().Mul(m).ApproxEqual(m, 1e-12))
}

func TestPointOps(t *testing.T) {
	p := Pt(3, 4)
	assert.InDelta(t, 5, p.Len(), 1e-12)
	assert.InDelta(t, 5, Pt(0, 0).Dist(p), 1e-12)
	assert.Equal(t, Pt(4, 6), p.Add(Pt(1, 2)))
	assert.Equal(t, Pt(2, 2), p.Sub(Pt(1, 2)))
	assert.Equal(t, Pt(1.5, 2), p.Scale(0.5))
}
