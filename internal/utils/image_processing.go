package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// FitMode selects how a source image is brought to the output size.
type FitMode string

const (
	// FitStretch resizes to exactly the target, ignoring aspect ratio.
	FitStretch FitMode = "stretch"
	// FitFill scales to cover the target and crops the overflow.
	FitFill FitMode = "fill"
	// FitPad scales to fit inside the target and pads with the background.
	FitPad FitMode = "pad"
)

// ParseFitMode validates a fit mode name. Empty means stretch.
func ParseFitMode(s string) (FitMode, error) {
	switch FitMode(s) {
	case "", FitStretch:
		return FitStretch, nil
	case FitFill, FitPad:
		return FitMode(s), nil
	}
	return "", fmt.Errorf("unknown fit mode %q (want stretch, fill or pad)", s)
}

// FitImage brings img to width x height. Sources already at the target size
// are returned unchanged.
func FitImage(img image.Image, width, height int, mode FitMode, bg color.Color) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "fit", Err: errors.New("input image is nil")}
	}
	if width <= 0 || height <= 0 {
		return nil, &ImageProcessingError{
			Operation: "fit",
			Err:       fmt.Errorf("invalid target dimensions: %dx%d", width, height),
		}
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img, nil
	}

	switch mode {
	case FitFill:
		return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos), nil
	case FitPad:
		fitted := imaging.Fit(img, width, height, imaging.Lanczos)
		return PadImage(fitted, width, height, bg)
	default:
		return imaging.Resize(img, width, height, imaging.Lanczos), nil
	}
}

// PadImage centres img on a width x height canvas filled with bg.
func PadImage(img image.Image, width, height int, bg color.Color) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "pad", Err: errors.New("input image is nil")}
	}
	if width <= 0 || height <= 0 {
		return nil, &ImageProcessingError{
			Operation: "pad",
			Err:       fmt.Errorf("invalid target dimensions: %dx%d", width, height),
		}
	}

	b := img.Bounds()
	x := max(0, (width-b.Dx())/2)
	y := max(0, (height-b.Dy())/2)

	canvas := imaging.New(width, height, bg)
	return imaging.Paste(canvas, img, image.Pt(x, y)), nil
}
