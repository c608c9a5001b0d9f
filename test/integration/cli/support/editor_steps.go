package support

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/keystone/internal/editor"
	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/homography"
	"github.com/MeKo-Tech/keystone/internal/store"
	"github.com/cucumber/godog"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (testCtx *TestContext) newController() error {
	ctrl, err := effect.New(effect.Options{
		Store:     testCtx.Store,
		Editor:    editor.Config{SelectionRadius: 0.04, Logger: quietLogger()},
		NudgeStep: 0.001,
		Logger:    quietLogger(),
	})
	if err != nil {
		return err
	}
	testCtx.Controller = ctrl
	testCtx.LastMatrix = ctrl.Matrix()
	return nil
}

func (testCtx *TestContext) aFreshController() error {
	testCtx.Store = store.NewMemoryStore()
	return testCtx.newController()
}

func (testCtx *TestContext) aControllerWithStoredCorners(corners string) error {
	c, err := parseCorners(corners)
	if err != nil {
		return err
	}
	testCtx.Store = store.NewMemoryStore()
	if err := store.SaveCorners(testCtx.Store, store.DefaultKey, c); err != nil {
		return err
	}
	return testCtx.newController()
}

func (testCtx *TestContext) aControllerWithStoredPayload(payload string) error {
	testCtx.Store = store.NewMemoryStore()
	if err := testCtx.Store.Set(store.DefaultKey, payload); err != nil {
		return err
	}
	return testCtx.newController()
}

func (testCtx *TestContext) tick(f effect.Frame) error {
	if testCtx.Controller == nil {
		return errors.New("no controller")
	}
	testCtx.LastMatrix, testCtx.LastChanged, testCtx.LastTickErr = testCtx.Controller.Tick(f)
	return nil
}

func pointerEvent(id int, phase editor.Phase, pos geom.Point) editor.PointerEvent {
	return editor.PointerEvent{ID: editor.PointerID(id), Phase: phase, Position: pos}
}

func (testCtx *TestContext) editModeIsToggled() error {
	return testCtx.tick(effect.Frame{ToggleEdit: true})
}

func (testCtx *TestContext) pointerGoesDownAt(id int, at string) error {
	p, err := parsePoint(at)
	if err != nil {
		return err
	}
	return testCtx.tick(effect.Frame{Pointers: []editor.PointerEvent{pointerEvent(id, editor.PhaseDown, p)}})
}

func (testCtx *TestContext) pointerGoesDownTwiceAt(id int, at string) error {
	p, err := parsePoint(at)
	if err != nil {
		return err
	}
	return testCtx.tick(effect.Frame{Pointers: []editor.PointerEvent{
		pointerEvent(id, editor.PhaseDown, p),
		pointerEvent(id, editor.PhaseDown, p),
	}})
}

func (testCtx *TestContext) pointerMovesTo(id int, to string) error {
	p, err := parsePoint(to)
	if err != nil {
		return err
	}
	return testCtx.tick(effect.Frame{Pointers: []editor.PointerEvent{pointerEvent(id, editor.PhaseMove, p)}})
}

func (testCtx *TestContext) pointerIsLifted(id int) error {
	return testCtx.tick(effect.Frame{Pointers: []editor.PointerEvent{pointerEvent(id, editor.PhaseUp, geom.Point{})}})
}

func (testCtx *TestContext) cornersAreSelected(list string) error {
	indices := []int{}
	for _, f := range strings.Split(list, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return err
		}
		indices = append(indices, i)
	}
	return testCtx.tick(effect.Frame{Select: indices})
}

func (testCtx *TestContext) theSelectionIsNudged(direction string) error {
	d, err := parsePoint(direction)
	if err != nil {
		return err
	}
	return testCtx.tick(effect.Frame{Nudge: d})
}

func (testCtx *TestContext) theCornersAreReset() error {
	return testCtx.tick(effect.Frame{Reset: true})
}

func (testCtx *TestContext) anEmptyFrameIsTicked() error {
	return testCtx.tick(effect.Frame{})
}

func (testCtx *TestContext) cornerShouldBeAt(idx int, at string) error {
	want, err := parsePoint(at)
	if err != nil {
		return err
	}
	got := testCtx.Controller.Corners()[idx]
	if !closeTo(got, want) {
		return fmt.Errorf("corner %d is at %v, want %v", idx, got, want)
	}
	return nil
}

func (testCtx *TestContext) theCornersShouldBe(corners string) error {
	want, err := parseCorners(corners)
	if err != nil {
		return err
	}
	return cornersEqual(testCtx.Controller.Corners(), want)
}

func (testCtx *TestContext) cornerShouldBeSelected(idx int) error {
	if !testCtx.Controller.Editor().Selected()[idx] {
		return fmt.Errorf("corner %d is not selected", idx)
	}
	return nil
}

func (testCtx *TestContext) noCornerShouldBeSelected() error {
	for i, sel := range testCtx.Controller.Editor().Selected() {
		if sel {
			return fmt.Errorf("corner %d is selected", i)
		}
	}
	return nil
}

// theMatrixShouldMapTheCornersOntoTheUnitSquare checks every corner against
// the canonical square.
func (testCtx *TestContext) theMatrixShouldMapTheCornersOntoTheUnitSquare() error {
	canonical := geom.Canonical()
	for i, c := range testCtx.Controller.Corners() {
		if got := homography.Transform(testCtx.LastMatrix, c); !closeTo(got, canonical[i]) {
			return fmt.Errorf("corner %d maps to %v, want %v", i, got, canonical[i])
		}
	}
	return nil
}

func (testCtx *TestContext) theMatrixShouldBeTheIdentity() error {
	if !testCtx.LastMatrix.ApproxEqual(geom.Identity(), 1e-9) {
		return fmt.Errorf("matrix is %v, want identity", testCtx.LastMatrix)
	}
	return nil
}

func (testCtx *TestContext) theTickShouldReportAChange() error {
	if !testCtx.LastChanged {
		return fmt.Errorf("tick reported no change (err: %v)", testCtx.LastTickErr)
	}
	return nil
}

func (testCtx *TestContext) theTickShouldReportNoChange() error {
	if testCtx.LastChanged {
		return errors.New("tick reported a change")
	}
	return nil
}

func (testCtx *TestContext) theTickShouldReportAProtocolViolation() error {
	if !errors.Is(testCtx.LastTickErr, editor.ErrProtocolViolation) {
		return fmt.Errorf("expected a protocol violation, got %v", testCtx.LastTickErr)
	}
	return nil
}

func (testCtx *TestContext) editModeShouldBe(state string) error {
	want := state == "on"
	if testCtx.Controller.Editing() != want {
		return fmt.Errorf("edit mode is %v, want %s", testCtx.Controller.Editing(), state)
	}
	return nil
}

func (testCtx *TestContext) theMemoryStoreShouldHoldCorners(corners string) error {
	want, err := parseCorners(corners)
	if err != nil {
		return err
	}
	if !testCtx.Store.Exists(store.DefaultKey) {
		return errors.New("nothing stored")
	}
	return cornersEqual(store.LoadCorners(testCtx.Store, store.DefaultKey, nil), want)
}

func (testCtx *TestContext) theMemoryStoreShouldBeEmpty() error {
	if testCtx.Store.Exists(store.DefaultKey) {
		return errors.New("store holds corners")
	}
	return nil
}

// RegisterEditorSteps registers the in-process controller steps.
func (testCtx *TestContext) RegisterEditorSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a fresh controller$`, testCtx.aFreshController)
	sc.Step(`^a controller with stored corners "([^"]*)"$`, testCtx.aControllerWithStoredCorners)
	sc.Step(`^a controller with the stored payload '([^']*)'$`, testCtx.aControllerWithStoredPayload)
	sc.Step(`^edit mode is toggled$`, testCtx.editModeIsToggled)
	sc.Step(`^pointer (\d+) goes down at "([^"]*)"$`, testCtx.pointerGoesDownAt)
	sc.Step(`^pointer (\d+) goes down twice at "([^"]*)"$`, testCtx.pointerGoesDownTwiceAt)
	sc.Step(`^pointer (\d+) moves to "([^"]*)"$`, testCtx.pointerMovesTo)
	sc.Step(`^pointer (\d+) is lifted$`, testCtx.pointerIsLifted)
	sc.Step(`^corners "([^"]*)" are selected$`, testCtx.cornersAreSelected)
	sc.Step(`^the selection is nudged by "([^"]*)"$`, testCtx.theSelectionIsNudged)
	sc.Step(`^the corners are reset$`, testCtx.theCornersAreReset)
	sc.Step(`^an empty frame is ticked$`, testCtx.anEmptyFrameIsTicked)
	sc.Step(`^corner (\d+) should be at "([^"]*)"$`, testCtx.cornerShouldBeAt)
	sc.Step(`^the corners should be "([^"]*)"$`, testCtx.theCornersShouldBe)
	sc.Step(`^corner (\d+) should be selected$`, testCtx.cornerShouldBeSelected)
	sc.Step(`^no corner should be selected$`, testCtx.noCornerShouldBeSelected)
	sc.Step(`^the matrix should map the corners onto the unit square$`, testCtx.theMatrixShouldMapTheCornersOntoTheUnitSquare)
	sc.Step(`^the matrix should be the identity$`, testCtx.theMatrixShouldBeTheIdentity)
	sc.Step(`^the tick should report a change$`, testCtx.theTickShouldReportAChange)
	sc.Step(`^the tick should report no change$`, testCtx.theTickShouldReportNoChange)
	sc.Step(`^the tick should report a protocol violation$`, testCtx.theTickShouldReportAProtocolViolation)
	sc.Step(`^edit mode should be (on|off)$`, testCtx.editModeShouldBe)
	sc.Step(`^the memory store should hold corners "([^"]*)"$`, testCtx.theMemoryStoreShouldHoldCorners)
	sc.Step(`^the memory store should be empty$`, testCtx.theMemoryStoreShouldBeEmpty)
}
