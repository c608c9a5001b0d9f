package warp

import (
	"image"
	"image/color"
)

// Grid draws a calibration pattern: a checkerboard with a white border and
// a coloured marker in the bottom-left cell so orientation stays visible.
func Grid(w, h, cells int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 {
		return img
	}
	if cells <= 0 {
		cells = 8
	}
	dark := color.RGBA{R: 40, G: 40, B: 48, A: 255}
	light := color.RGBA{R: 200, G: 200, B: 210, A: 255}
	marker := color.RGBA{R: 230, G: 60, B: 40, A: 255}
	border := max(1, min(w, h)/100)

	for y := range h {
		for x := range w {
			cx := x * cells / w
			cy := y * cells / h
			c := dark
			if (cx+cy)%2 == 0 {
				c = light
			}
			if cx == 0 && cy == cells-1 {
				c = marker
			}
			if x < border || y < border || x >= w-border || y >= h-border {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
