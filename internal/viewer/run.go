package viewer

import (
	"errors"

	"github.com/hajimehoshi/ebiten/v2"
)

// WindowOptions configure the desktop window.
type WindowOptions struct {
	Title      string
	Width      int
	Height     int
	Fullscreen bool
}

// Run opens the window and blocks until it closes. The corners are saved on
// the way out, also when the window is closed during editing.
func Run(g *Game, w WindowOptions) error {
	ebiten.SetWindowTitle(w.Title)
	ebiten.SetWindowSize(w.Width, w.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetFullscreen(w.Fullscreen)

	g.logger.Info("Viewer started", "width", w.Width, "height", w.Height, "fullscreen", w.Fullscreen)
	runErr := ebiten.RunGame(g)
	return errors.Join(runErr, g.ctrl.Save())
}
