// Package viewer runs the keystone correction in a desktop window. The window
// shows the warped source; while editing it also shows the corner outline and
// draggable anchors.
package viewer

import (
	"errors"
	"image"
	"image/color"
	"log/slog"

	"github.com/MeKo-Tech/keystone/internal/editor"
	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/input"
	"github.com/MeKo-Tech/keystone/internal/warp"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

const pulsePeriod = 0.8 // seconds

var (
	borderColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	anchorColor   = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	selectedColor = color.RGBA{R: 255, G: 200, B: 0, A: 255}
)

// Options configure a Game.
type Options struct {
	Controller *effect.Controller
	Renderer   *warp.Renderer
	Source     image.Image
	Logger     *slog.Logger
}

// Game implements ebiten.Game.
type Game struct {
	ctrl     *effect.Controller
	renderer *warp.Renderer
	source   image.Image
	logger   *slog.Logger

	pointers   *pointers
	projection *input.ScreenProjection
	pulse      *pulse

	frame    *ebiten.Image
	frameGen uint64
	touchIDs []ebiten.TouchID
}

// New creates a game. The controller's editor receives screen coordinates
// from now on.
func New(opts Options) (*Game, error) {
	if opts.Controller == nil || opts.Renderer == nil {
		return nil, errors.New("viewer: controller and renderer are required")
	}
	if opts.Source == nil {
		return nil, errors.New("viewer: source image is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Game{
		ctrl:       opts.Controller,
		renderer:   opts.Renderer,
		source:     opts.Source,
		logger:     logger.With("component", "viewer"),
		pointers:   newPointers(nil),
		projection: &input.ScreenProjection{FlipY: true},
		pulse:      newPulse(pulsePeriod),
	}
	g.ctrl.Editor().SetProjection(g.projection)
	return g, nil
}

// Update collects one tick of input and drives the controller.
func (g *Game) Update() error {
	editing := g.ctrl.Editing()
	if !editing && inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	frame := PollControls().Frame(editing)
	if ebiten.IsFocused() {
		frame.Pointers = g.pollPointers()
	} else {
		frame.Pointers = g.pointers.release()
	}
	g.tick(frame)

	if g.ctrl.Editing() {
		g.pulse.Update(1 / float32(ebiten.TPS()))
	}
	return nil
}

// tick drives the controller with one frame. Pointers still down when edit
// mode ends are released so they cannot resume a drag after re-entry.
func (g *Game) tick(frame effect.Frame) {
	wasEditing := g.ctrl.Editing()
	if _, changed, err := g.ctrl.Tick(frame); err != nil {
		g.logger.Warn("Input rejected", "error", err)
	} else if changed {
		g.logger.Debug("Frame invalidated", "generation", g.renderer.Generation())
	}
	if wasEditing && !g.ctrl.Editing() {
		if released := g.pointers.release(); len(released) > 0 {
			g.logger.Debug("Released pointers on leaving edit mode", "count", len(released))
		}
	}
}

func (g *Game) pollPointers() []editor.PointerEvent {
	mx, my := ebiten.CursorPosition()
	pressed := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)

	g.touchIDs = ebiten.AppendTouchIDs(g.touchIDs[:0])
	live := make(map[editor.PointerID]geom.Point, len(g.touchIDs))
	for _, id := range g.touchIDs {
		x, y := ebiten.TouchPosition(id)
		live[editor.PointerID(id)] = geom.Point{X: float64(x), Y: float64(y)}
	}
	return g.pointers.poll(pressed, geom.Point{X: float64(mx), Y: float64(my)}, live)
}

// Draw shows the warped frame, uploading it only when it changed.
func (g *Game) Draw(screen *ebiten.Image) {
	if gen := g.renderer.Generation(); g.frame == nil || gen != g.frameGen {
		rgba := g.renderer.Render(g.source)
		b := rgba.Bounds()
		if g.frame == nil || g.frame.Bounds().Size() != b.Size() {
			if g.frame != nil {
				g.frame.Deallocate()
			}
			g.frame = ebiten.NewImage(b.Dx(), b.Dy())
		}
		g.frame.WritePixels(rgba.Pix)
		g.frameGen = gen
	}
	screen.DrawImage(g.frame, nil)

	if g.ctrl.Editing() {
		g.drawOverlay(screen)
	}
}

func (g *Game) drawOverlay(screen *ebiten.Image) {
	corners := g.ctrl.Corners()
	selected := g.ctrl.Editor().Selected()
	radius := float32(g.ctrl.Editor().SelectionRadius() * min(g.projection.Width, g.projection.Height))

	pts := screenCorners(*g.projection, corners)
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		vector.StrokeLine(screen, p.x, p.y, q.x, q.y, 2, borderColor, true)
	}
	for i, p := range pts {
		if selected[i] {
			vector.DrawFilledCircle(screen, p.x, p.y, radius, pulseColor(g.pulse.Value()), true)
			continue
		}
		vector.StrokeCircle(screen, p.x, p.y, radius, 2, anchorColor, true)
	}
}

// Layout tracks the window size; the frame is rendered at full resolution.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	w, h := float64(outsideWidth), float64(outsideHeight)
	if g.projection.Width != w || g.projection.Height != h {
		g.projection.Width, g.projection.Height = w, h
		g.renderer.Resize(outsideWidth, outsideHeight)
	}
	return outsideWidth, outsideHeight
}

type screenPoint struct{ x, y float32 }

func screenCorners(p input.ScreenProjection, c geom.CornerSet) [geom.CornerCount]screenPoint {
	var out [geom.CornerCount]screenPoint
	for i, v := range c {
		s := p.ViewportToScreen(v)
		out[i] = screenPoint{x: float32(s.X), y: float32(s.Y)}
	}
	return out
}

// pulseColor fades a selected anchor between its two colors.
func pulseColor(t float32) color.RGBA {
	lerp := func(a, b uint8) uint8 { return uint8(float32(a) + (float32(b)-float32(a))*t) }
	return color.RGBA{
		R: lerp(selectedColor.R, anchorColor.R),
		G: lerp(selectedColor.G, anchorColor.G),
		B: lerp(selectedColor.B, anchorColor.B),
		A: 255,
	}
}
