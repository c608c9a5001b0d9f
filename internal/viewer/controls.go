package viewer

import (
	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Controls is the keyboard state sampled for one tick.
type Controls struct {
	// CtrlPressed is true on the tick a Ctrl key goes down.
	CtrlPressed bool
	HHeld       bool
	Reset       bool
	Digits      [geom.CornerCount]bool

	Up, Down, Left, Right bool
}

var digitKeys = [geom.CornerCount]ebiten.Key{ebiten.KeyDigit0, ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3}

// PollControls reads the keyboard.
func PollControls() Controls {
	c := Controls{
		CtrlPressed: inpututil.IsKeyJustPressed(ebiten.KeyControlLeft) || inpututil.IsKeyJustPressed(ebiten.KeyControlRight),
		HHeld:       ebiten.IsKeyPressed(ebiten.KeyH),
		Reset:       ebiten.IsKeyPressed(ebiten.KeyR),
		Up:          ebiten.IsKeyPressed(ebiten.KeyArrowUp),
		Down:        ebiten.IsKeyPressed(ebiten.KeyArrowDown),
		Left:        ebiten.IsKeyPressed(ebiten.KeyArrowLeft),
		Right:       ebiten.IsKeyPressed(ebiten.KeyArrowRight),
	}
	for i, k := range digitKeys {
		c.Digits[i] = ebiten.IsKeyPressed(k)
	}
	return c
}

// Frame turns the keyboard state into controller input. Ctrl+H enters edit
// mode and Ctrl alone leaves it. Digit keys replace the selection only while
// at least one is held, so pointer-driven selection survives otherwise.
func (c Controls) Frame(editing bool) effect.Frame {
	f := effect.Frame{
		ToggleEdit: c.CtrlPressed && (c.HHeld || editing),
		Reset:      c.Reset,
	}

	for i, held := range c.Digits {
		if held {
			f.Select = append(f.Select, i)
		}
	}

	if c.Up {
		f.Nudge.Y++
	}
	if c.Down {
		f.Nudge.Y--
	}
	if c.Right {
		f.Nudge.X++
	}
	if c.Left {
		f.Nudge.X--
	}
	return f
}
