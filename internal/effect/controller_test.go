package effect

import (
	"errors"
	"image/color"
	"io"
	"log/slog"
	"testing"

	"github.com/MeKo-Tech/keystone/internal/editor"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/homography"
	"github.com/MeKo-Tech/keystone/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRenderer struct {
	matrices []geom.Matrix
	params   []Params
}

func (r *recordingRenderer) SetHomography(h geom.Matrix) { r.matrices = append(r.matrices, h) }
func (r *recordingRenderer) SetParams(p Params)          { r.params = append(r.params, p) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newController(t *testing.T, s store.Store, r Renderer) *Controller {
	t.Helper()
	c, err := New(Options{Store: s, Renderer: r, Logger: quietLogger()})
	require.NoError(t, err)
	return c
}

func TestNew_DefaultsToCanonical(t *testing.T) {
	r := &recordingRenderer{}
	c := newController(t, nil, r)

	assert.Equal(t, geom.Canonical(), c.Corners())
	assert.True(t, c.Matrix().ApproxEqual(geom.Identity(), 1e-9))
	require.Len(t, r.matrices, 1, "initial solve is pushed to the renderer")
	require.Len(t, r.params, 1)
	assert.False(t, c.Editing())
	assert.Equal(t, homography.MethodSVD, c.Method())
}

func TestNew_LoadsStoredCorners(t *testing.T) {
	s := store.NewMemoryStore()
	stored := geom.CornerSet{{X: 0.1, Y: 0}, {X: 0.9, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	require.NoError(t, store.SaveCorners(s, store.DefaultKey, stored))

	c := newController(t, s, nil)
	assert.Equal(t, stored, c.Corners())

	p, ok := c.Matrix().Apply(stored[0])
	require.True(t, ok)
	assert.InDelta(t, 0, p.X, 1e-6)
	assert.InDelta(t, 0, p.Y, 1e-6)
}

func TestNew_RejectedPayloadFallsBack(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(store.DefaultKey, `{"arr":[{"x":0.5,"y":0.5}]}`))

	c := newController(t, s, nil)
	assert.Equal(t, geom.Canonical(), c.Corners())
}

func TestTick_IdleIgnoresInput(t *testing.T) {
	r := &recordingRenderer{}
	c := newController(t, nil, r)

	_, changed, err := c.Tick(Frame{
		Pointers: []editor.PointerEvent{{ID: 1, Phase: editor.PhaseDown, Position: geom.Pt(0, 0)}},
		Reset:    true,
		Select:   []int{0},
		Nudge:    geom.Pt(1, 0),
	})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, r.matrices, 1)
	assert.Empty(t, c.Editor().ActivePointers())
}

func TestTick_DragResolves(t *testing.T) {
	r := &recordingRenderer{}
	c := newController(t, nil, r)

	_, _, err := c.Tick(Frame{ToggleEdit: true})
	require.NoError(t, err)
	require.True(t, c.Editing())

	_, changed, err := c.Tick(Frame{Pointers: []editor.PointerEvent{
		{ID: 7, Phase: editor.PhaseDown, Position: geom.Pt(1, 1)},
	}})
	require.NoError(t, err)
	assert.False(t, changed, "a down alone does not move a corner")

	h, changed, err := c.Tick(Frame{Pointers: []editor.PointerEvent{
		{ID: 7, Phase: editor.PhaseMove, Position: geom.Pt(0.9, 0.95)},
	}})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, r.matrices, 2)

	p, ok := h.Apply(geom.Pt(0.9, 0.95))
	require.True(t, ok)
	assert.InDelta(t, 1, p.X, 1e-6)
	assert.InDelta(t, 1, p.Y, 1e-6)

	_, changed, err = c.Tick(Frame{})
	require.NoError(t, err)
	assert.False(t, changed, "dirty is edge-triggered")
}

func TestTick_ExitPersists(t *testing.T) {
	s := store.NewMemoryStore()
	c := newController(t, s, nil)
	require.NoError(t, c.SetEditing(true))

	_, changed, err := c.Tick(Frame{Select: []int{2}, Nudge: geom.Pt(-1, 0)})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, s.Exists(store.DefaultKey), "nothing is saved while editing")

	_, _, err = c.Tick(Frame{ToggleEdit: true})
	require.NoError(t, err)
	assert.False(t, c.Editing())

	saved := store.LoadCorners(s, store.DefaultKey, nil)
	assert.InDelta(t, 1-DefaultNudgeStep, saved[2].X, 1e-12)
	assert.Equal(t, c.Corners(), saved)
}

func TestTick_CommandOrder(t *testing.T) {
	c := newController(t, nil, nil)
	require.NoError(t, c.SetEditing(true))

	// Reset runs before select and nudge, so the nudge survives.
	_, changed, err := c.Tick(Frame{Reset: true, Select: []int{0}, Nudge: geom.Pt(0, 1)})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.InDelta(t, DefaultNudgeStep, c.Corners()[0].Y, 1e-12)
}

func TestTick_EnterClearsSelection(t *testing.T) {
	c := newController(t, nil, nil)
	require.NoError(t, c.SetEditing(true))
	_, _, err := c.Tick(Frame{Select: []int{1, 3}})
	require.NoError(t, err)

	require.NoError(t, c.SetEditing(false))
	require.NoError(t, c.SetEditing(true))
	assert.Equal(t, [4]bool{}, c.Editor().Selected())
}

func TestTick_ProtocolViolationDoesNotAbort(t *testing.T) {
	c := newController(t, nil, nil)
	require.NoError(t, c.SetEditing(true))

	_, changed, err := c.Tick(Frame{Pointers: []editor.PointerEvent{
		{ID: 1, Phase: editor.PhaseDown, Position: geom.Pt(0, 0)},
		{ID: 1, Phase: editor.PhaseDown, Position: geom.Pt(1, 0)},
		{ID: 1, Phase: editor.PhaseMove, Position: geom.Pt(0.02, 0.01)},
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, editor.ErrProtocolViolation))
	assert.True(t, changed, "events after the violation still apply")
	assert.Equal(t, geom.Pt(0.02, 0.01), c.Corners()[0])
}

func TestSetParams_Forwards(t *testing.T) {
	r := &recordingRenderer{}
	c := newController(t, nil, r)

	p := Params{EdgeSmoothness: 0.3, Background: color.RGBA{R: 10, A: 255}}
	c.SetParams(p)
	assert.Equal(t, p, c.Params())
	assert.Equal(t, p, r.params[len(r.params)-1])
}

func TestNew_LinearMethod(t *testing.T) {
	c, err := New(Options{Method: homography.MethodLinear, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, homography.MethodLinear, c.Method())
	assert.True(t, c.Matrix().ApproxEqual(geom.Identity(), 1e-9))
}
