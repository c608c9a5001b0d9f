// Package effect drives the keystone correction once per frame: it owns the
// edit-mode toggle, feeds input to the corner editor and re-solves the
// homography whenever the corners change.
package effect

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/keystone/internal/editor"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/homography"
	"github.com/MeKo-Tech/keystone/internal/store"
)

// DefaultNudgeStep is the viewport distance a nudge moves selected corners.
const DefaultNudgeStep = 0.001

// Params are forwarded to the renderer untouched.
type Params struct {
	// EdgeSmoothness in [0,1] widens the blend band at the warped border.
	EdgeSmoothness float64
	Background     color.RGBA
}

// Renderer consumes the solved matrix.
type Renderer interface {
	SetHomography(h geom.Matrix)
	SetParams(p Params)
}

// Frame is the input collected for one tick.
type Frame struct {
	// ToggleEdit flips between idle and editing.
	ToggleEdit bool
	Pointers   []editor.PointerEvent
	Reset      bool
	// Select replaces the selection when non-nil.
	Select []int
	// Nudge is a direction; it is scaled by the nudge step.
	Nudge geom.Point
}

// Options configure a Controller.
type Options struct {
	Store     store.Store
	Key       string
	Editor    editor.Config
	Method    homography.Method
	NudgeStep float64
	Params    Params
	Renderer  Renderer
	Logger    *slog.Logger
}

// Controller is not safe for concurrent use.
type Controller struct {
	store     store.Store
	key       string
	editor    *editor.Editor
	solver    *homography.Solver
	renderer  Renderer
	params    Params
	nudgeStep float64
	logger    *slog.Logger

	editing bool
	matrix  geom.Matrix
}

// New loads the stored corners and performs the initial solve.
func New(opts Options) (*Controller, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Key == "" {
		opts.Key = store.DefaultKey
	}
	if opts.NudgeStep <= 0 {
		opts.NudgeStep = DefaultNudgeStep
	}
	if opts.Editor.SelectionRadius <= 0 {
		opts.Editor.SelectionRadius = editor.DefaultConfig().SelectionRadius
	}
	if opts.Editor.Logger == nil {
		opts.Editor.Logger = logger
	}

	c := &Controller{
		store:     opts.Store,
		key:       opts.Key,
		editor:    editor.New(opts.Editor),
		solver:    homography.NewSolver(opts.Method),
		renderer:  opts.Renderer,
		params:    opts.Params,
		nudgeStep: opts.NudgeStep,
		logger:    logger.With("component", "effect"),
		matrix:    geom.Identity(),
	}

	corners := store.LoadCorners(c.store, c.key, c.logger)
	if err := c.editor.SetCorners(corners.Slice()); err != nil {
		return nil, err
	}
	c.editor.ConsumeDirty()

	if c.renderer != nil {
		c.renderer.SetParams(c.params)
	}
	if err := c.solve(); err != nil {
		return nil, fmt.Errorf("initial solve failed: %w", err)
	}
	return c, nil
}

// Tick applies one frame of input. It returns the current matrix and whether
// it changed during this tick. Input errors are logged and joined into the
// returned error; they never stop the tick.
func (c *Controller) Tick(f Frame) (geom.Matrix, bool, error) {
	ticksTotal.Inc()
	var errs []error

	if f.ToggleEdit {
		if err := c.SetEditing(!c.editing); err != nil {
			errs = append(errs, err)
		}
	}

	if c.editing {
		for _, ev := range f.Pointers {
			if err := c.editor.Handle(ev); err != nil {
				if errors.Is(err, editor.ErrProtocolViolation) {
					protocolViolationsTotal.Inc()
				}
				errs = append(errs, err)
			}
		}
		if f.Reset {
			c.editor.ResetToCanonical()
		}
		if f.Select != nil {
			c.editor.SetSelected(f.Select...)
		}
		if f.Nudge != (geom.Point{}) {
			c.editor.Nudge(f.Nudge, c.nudgeStep)
		}
	}

	changed := false
	if c.editor.ConsumeDirty() {
		if err := c.solve(); err != nil {
			errs = append(errs, err)
		} else {
			changed = true
		}
	}
	return c.matrix, changed, errors.Join(errs...)
}

// SetEditing enters or leaves edit mode. Leaving persists the corners.
func (c *Controller) SetEditing(on bool) error {
	if on == c.editing {
		return nil
	}
	c.editing = on
	if on {
		editModeTransitions.WithLabelValues("editing").Inc()
		c.editor.Begin()
		c.logger.Info("Entered edit mode")
		return nil
	}
	editModeTransitions.WithLabelValues("idle").Inc()
	c.logger.Info("Left edit mode", "corners", c.editor.Corners())
	return c.Save()
}

// Save persists the current corners.
func (c *Controller) Save() error {
	if err := store.SaveCorners(c.store, c.key, c.editor.Corners()); err != nil {
		c.logger.Error("Failed to save corners", "key", c.key, "error", err)
		return err
	}
	return nil
}

// Editing reports whether edit mode is active.
func (c *Controller) Editing() bool { return c.editing }

// Matrix returns the last solved homography.
func (c *Controller) Matrix() geom.Matrix { return c.matrix }

// Corners returns the current corner set.
func (c *Controller) Corners() geom.CornerSet { return c.editor.Corners() }

// Editor exposes the underlying corner editor.
func (c *Controller) Editor() *editor.Editor { return c.editor }

// Method returns the solver method in use.
func (c *Controller) Method() homography.Method { return c.solver.Method() }

// Params returns the renderer parameters.
func (c *Controller) Params() Params { return c.params }

// SetParams replaces the renderer parameters and forwards them.
func (c *Controller) SetParams(p Params) {
	c.params = p
	if c.renderer != nil {
		c.renderer.SetParams(p)
	}
}

// solve maps the edited corners back onto the unit square.
func (c *Controller) solve() error {
	method := string(c.solver.Method())
	start := time.Now()
	h, err := c.solver.Solve(c.editor.Corners(), geom.Canonical())
	solveDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		solvesTotal.WithLabelValues(method, "error").Inc()
		c.logger.Error("Homography solve failed", "method", method, "error", err)
		return err
	}
	solvesTotal.WithLabelValues(method, "ok").Inc()

	c.matrix = h
	if c.renderer != nil {
		c.renderer.SetHomography(h)
	}
	c.logger.Debug("Homography updated", "method", method, "matrix", h.Vector())
	return nil
}
