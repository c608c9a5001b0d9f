package editor

import (
	"fmt"

	"github.com/MeKo-Tech/keystone/internal/geom"
)

// PointerID identifies a touch contact or an emulated mouse pointer. Ids are
// unique among concurrently live pointers only.
type PointerID int64

// Phase is the lifecycle stage of a pointer event.
type Phase int

const (
	PhaseDown Phase = iota
	PhaseMove
	PhaseUp
	PhaseCancel
)

var phaseNames = [...]string{"down", "move", "up", "cancel"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// ParsePhase converts a wire name ("down", "move", "up", "cancel") to a Phase.
func ParsePhase(s string) (Phase, error) {
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown pointer phase %q", s)
}

// PointerEvent is a single pointer transition in screen space.
type PointerEvent struct {
	ID       PointerID
	Phase    Phase
	Position geom.Point
}

// Projection converts screen-space positions to viewport space.
type Projection interface {
	ScreenToViewport(p geom.Point) geom.Point
}

// ProjectionFunc adapts a function to Projection.
type ProjectionFunc func(geom.Point) geom.Point

// ScreenToViewport calls f(p).
func (f ProjectionFunc) ScreenToViewport(p geom.Point) geom.Point { return f(p) }

// IdentityProjection treats screen positions as viewport positions.
var IdentityProjection Projection = ProjectionFunc(func(p geom.Point) geom.Point { return p })
