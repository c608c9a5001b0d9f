package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/homography"
	"github.com/MeKo-Tech/keystone/internal/store"
	"github.com/MeKo-Tech/keystone/internal/testutil"
	"github.com/MeKo-Tech/keystone/internal/utils"
	"github.com/cucumber/godog"
)

const pointTolerance = 1e-6

// parseCorners reads four "x,y" pairs separated by semicolons.
func parseCorners(s string) (geom.CornerSet, error) {
	var pts []geom.Point
	for _, f := range strings.Split(s, ";") {
		x, y, ok := strings.Cut(strings.TrimSpace(f), ",")
		if !ok {
			return geom.CornerSet{}, fmt.Errorf("invalid point %q", f)
		}
		px, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return geom.CornerSet{}, err
		}
		py, err := strconv.ParseFloat(y, 64)
		if err != nil {
			return geom.CornerSet{}, err
		}
		pts = append(pts, geom.Point{X: px, Y: py})
	}
	c, ok := geom.CornersFromSlice(pts)
	if !ok {
		return geom.CornerSet{}, fmt.Errorf("expected 4 points, got %d", len(pts))
	}
	return c, nil
}

func parsePoint(s string) (geom.Point, error) {
	x, y, ok := strings.Cut(s, ",")
	if !ok {
		return geom.Point{}, fmt.Errorf("invalid point %q", s)
	}
	px, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
	if err != nil {
		return geom.Point{}, err
	}
	py, err := strconv.ParseFloat(strings.TrimSpace(y), 64)
	if err != nil {
		return geom.Point{}, err
	}
	return geom.Point{X: px, Y: py}, nil
}

func closeTo(a, b geom.Point) bool {
	return math.Abs(a.X-b.X) <= pointTolerance && math.Abs(a.Y-b.Y) <= pointTolerance
}

func cornersEqual(got, want geom.CornerSet) error {
	for i := range got {
		if !closeTo(got[i], want[i]) {
			return fmt.Errorf("corner %d: got %v, want %v", i, got[i], want[i])
		}
	}
	return nil
}

// iRunCommand executes a keystone command line. The leading "keystone" is
// replaced with the binary under test.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteVariables(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] == "keystone" {
		if bin := os.Getenv(BinaryEnv); bin != "" {
			parts[0] = bin
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	testCtx.LastDuration = time.Since(start)
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nStdout: %s\nStderr: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastOutput, testCtx.substituteVariables(expected)) {
		return fmt.Errorf("output does not contain %q\nOutput: %s", expected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(expected string) error {
	if !strings.Contains(testCtx.LastStderr, expected) {
		return fmt.Errorf("error output does not mention %q\nStderr: %s", expected, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var v any
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &v); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldEqual(field, expected string) error {
	var data map[string]any
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &data); err != nil {
		return fmt.Errorf("output is not a JSON object: %w", err)
	}
	v, ok := data[field]
	if !ok {
		return fmt.Errorf("JSON field %q not found", field)
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("JSON field %q: got %q, want %q", field, got, expected)
	}
	return nil
}

// theSolvedMatrixShouldMap checks the matrix of a JSON solve result.
func (testCtx *TestContext) theSolvedMatrixShouldMap(from, to string) error {
	var result struct {
		Matrix geom.Matrix `json:"matrix"`
	}
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &result); err != nil {
		return fmt.Errorf("output is not a solve result: %w", err)
	}
	p, err := parsePoint(from)
	if err != nil {
		return err
	}
	want, err := parsePoint(to)
	if err != nil {
		return err
	}
	if got := homography.Transform(result.Matrix, p); !closeTo(got, want) {
		return fmt.Errorf("matrix maps %v to %v, want %v", p, got, want)
	}
	return nil
}

func (testCtx *TestContext) theStoreShouldHoldCorners(corners string) error {
	want, err := parseCorners(corners)
	if err != nil {
		return err
	}
	fs, err := store.OpenFileStore(testCtx.StorePath)
	if err != nil {
		return err
	}
	if !fs.Exists(store.DefaultKey) {
		return fmt.Errorf("store %s holds no corners", testCtx.StorePath)
	}
	return cornersEqual(store.LoadCorners(fs, store.DefaultKey, nil), want)
}

func (testCtx *TestContext) theStoreShouldNotHoldCorners() error {
	fs, err := store.OpenFileStore(testCtx.StorePath)
	if err != nil {
		return err
	}
	if fs.Exists(store.DefaultKey) {
		return fmt.Errorf("store %s still holds corners", testCtx.StorePath)
	}
	return nil
}

func (testCtx *TestContext) aTestImageOfSize(name string, width, height int) error {
	img := testutil.QuadrantImage(width, height)
	return utils.SaveImage(img, testCtx.TempPath(name))
}

func (testCtx *TestContext) theImageShouldBe(name string, width, height int) error {
	_, meta, err := utils.LoadImage(testCtx.TempPath(name))
	if err != nil {
		return err
	}
	if meta.Width != width || meta.Height != height {
		return fmt.Errorf("image %s is %dx%d, want %dx%d", name, meta.Width, meta.Height, width, height)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if !testutil.FileExists(testCtx.TempPath(name)) {
		return fmt.Errorf("file %s does not exist", name)
	}
	return nil
}

// RegisterCommandSteps registers the CLI steps.
func (testCtx *TestContext) RegisterCommandSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON field "([^"]*)" should equal "([^"]*)"$`, testCtx.theJSONFieldShouldEqual)
	sc.Step(`^the solved matrix should map "([^"]*)" to "([^"]*)"$`, testCtx.theSolvedMatrixShouldMap)
	sc.Step(`^the store should hold corners "([^"]*)"$`, testCtx.theStoreShouldHoldCorners)
	sc.Step(`^the store should not hold corners$`, testCtx.theStoreShouldNotHoldCorners)
	sc.Step(`^a test image "([^"]*)" of size (\d+)x(\d+)$`, testCtx.aTestImageOfSize)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+)$`, testCtx.theImageShouldBe)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
}
