// Package editor implements the interactive corner editor: four viewport
// corners, a per-corner selection flag, and the pointer tracking that lets
// several touches drag different corners at once.
package editor

import (
	"log/slog"

	"github.com/MeKo-Tech/keystone/internal/geom"
)

const cornerCount = geom.CornerCount

// Config holds configuration for the corner editor.
type Config struct {
	SelectionRadius float64    // hit-test radius in viewport units
	Projection      Projection // screen -> viewport mapping (nil = identity)
	Logger          *slog.Logger
}

// DefaultConfig returns sensible defaults for the editor.
func DefaultConfig() Config {
	return Config{
		SelectionRadius: 0.04,
		Projection:      IdentityProjection,
	}
}

// Editor owns the corner set, the selection flags and the pointer map.
// It is not safe for concurrent use; drive it from a single tick loop.
type Editor struct {
	corners  geom.CornerSet
	selected [cornerCount]bool
	pointers pointerTracker
	dirty    bool

	radius     float64
	projection Projection
	log        *slog.Logger
}

// New creates an editor holding the canonical unit square.
func New(cfg Config) *Editor {
	if cfg.Projection == nil {
		cfg.Projection = IdentityProjection
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Editor{
		corners:    geom.Canonical(),
		pointers:   newPointerTracker(),
		radius:     cfg.SelectionRadius,
		projection: cfg.Projection,
		log:        cfg.Logger.With("component", "editor"),
	}
}

// SetProjection replaces the screen -> viewport mapping.
func (e *Editor) SetProjection(p Projection) {
	if p == nil {
		p = IdentityProjection
	}
	e.projection = p
}

// SelectionRadius returns the hit-test radius in viewport units.
func (e *Editor) SelectionRadius() float64 { return e.radius }

// Begin clears every selection flag and forgets all live pointers. The
// controller calls it when edit mode is entered.
func (e *Editor) Begin() {
	e.selected = [cornerCount]bool{}
	e.pointers.reset()
}

// Corners returns a copy of the current corners.
func (e *Editor) Corners() geom.CornerSet { return e.corners }

// Selected returns a copy of the selection flags.
func (e *Editor) Selected() [cornerCount]bool { return e.selected }

// ActivePointers returns a copy of the pointer -> corner map.
func (e *Editor) ActivePointers() map[PointerID]int { return e.pointers.snapshot() }

// SetCorners replaces all four corners. Any other length is rejected and the
// current corners are kept.
func (e *Editor) SetCorners(pts []geom.Point) error {
	c, ok := geom.CornersFromSlice(pts)
	if !ok {
		err := &ValidationError{Op: "write corners", Got: len(pts)}
		e.log.Error("Could not write viewport corners, parameter size mismatch", "got", len(pts))
		return err
	}
	e.corners = c
	e.dirty = true
	return nil
}

// ReadCorners copies the corners into dst, which must have length four.
func (e *Editor) ReadCorners(dst []geom.Point) error {
	if len(dst) != cornerCount {
		err := &ValidationError{Op: "read corners", Got: len(dst)}
		e.log.Error("Could not read viewport corners, parameter size mismatch", "got", len(dst))
		return err
	}
	copy(dst, e.corners[:])
	return nil
}

// ResetToCanonical overwrites the corners with the unit square.
func (e *Editor) ResetToCanonical() {
	e.corners = geom.Canonical()
	e.dirty = true
}

// Handle dispatches a pointer event by phase.
func (e *Editor) Handle(ev PointerEvent) error {
	switch ev.Phase {
	case PhaseDown:
		return e.PointerDown(ev.ID, ev.Position)
	case PhaseMove:
		e.PointerMove(ev.ID, ev.Position)
	case PhaseUp:
		e.PointerUp(ev.ID)
	case PhaseCancel:
		e.PointerCancel(ev.ID)
	}
	return nil
}

// PointerDown hit-tests the corners at the projected position and lets the
// pointer claim the lowest-index corner within the selection radius. A down
// for an id that is already live is a protocol violation and changes nothing.
// A hit on a corner owned by another pointer is ignored.
func (e *Editor) PointerDown(id PointerID, screen geom.Point) error {
	if e.pointers.registered(id) {
		e.log.Error("Pointer down with already stored pointer id", "pointer_id", id)
		return &ProtocolViolation{ID: id}
	}

	pos := e.projection.ScreenToViewport(screen)
	idx, hit := e.hitTest(pos)
	if !hit {
		return nil
	}
	if !e.pointers.claim(id, idx) {
		owner, _ := e.pointers.owner(idx)
		e.log.Debug("Corner already claimed", "corner", idx, "pointer_id", id, "owner", owner)
		return nil
	}
	e.selected[idx] = true
	return nil
}

// PointerMove drags the corner owned by id to the projected position.
// Unknown ids are ignored.
func (e *Editor) PointerMove(id PointerID, screen geom.Point) {
	idx, ok := e.pointers.corner(id)
	if !ok {
		return
	}
	e.corners[idx] = e.projection.ScreenToViewport(screen)
	e.dirty = true
}

// PointerUp releases the corner owned by id. Unknown ids are ignored.
func (e *Editor) PointerUp(id PointerID) {
	if idx, ok := e.pointers.release(id); ok {
		e.selected[idx] = false
	}
}

// PointerCancel behaves like PointerUp.
func (e *Editor) PointerCancel(id PointerID) { e.PointerUp(id) }

// SetSelected replaces the selection flags so that exactly the given corner
// indices are selected. It shares the flags with pointer-driven selection:
// within a tick, whichever call comes last wins.
func (e *Editor) SetSelected(indices ...int) {
	var sel [cornerCount]bool
	for _, i := range indices {
		if i < 0 || i >= cornerCount {
			e.log.Debug("Ignoring out of range corner index", "index", i)
			continue
		}
		sel[i] = true
	}
	e.selected = sel
}

// Nudge moves every selected corner by direction*magnitude.
func (e *Editor) Nudge(direction geom.Point, magnitude float64) {
	delta := direction.Scale(magnitude)
	if delta.X == 0 && delta.Y == 0 {
		return
	}
	for i := range cornerCount {
		if e.selected[i] {
			e.corners[i] = e.corners[i].Add(delta)
			e.dirty = true
		}
	}
}

// ConsumeDirty reports whether the corners changed since the last call and
// clears the flag.
func (e *Editor) ConsumeDirty() bool {
	d := e.dirty
	e.dirty = false
	return d
}

// hitTest returns the lowest-index corner strictly within the selection radius.
func (e *Editor) hitTest(pos geom.Point) (int, bool) {
	for i := range cornerCount {
		if pos.Dist(e.corners[i]) < e.radius {
			return i, true
		}
	}
	return -1, false
}
