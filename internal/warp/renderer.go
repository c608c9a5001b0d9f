package warp

import (
	"image"
	"sync"

	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/geom"
)

// Renderer implements effect.Renderer and caches the last rendered frame.
type Renderer struct {
	mu         sync.Mutex
	h          geom.Matrix
	params     effect.Params
	generation uint64

	width, height int
	cached        *image.RGBA
	cachedGen     uint64
	cachedSrc     image.Image
}

var _ effect.Renderer = (*Renderer)(nil)

// NewRenderer creates a renderer producing width x height frames.
func NewRenderer(width, height int) *Renderer {
	return &Renderer{h: geom.Identity(), width: width, height: height}
}

func (r *Renderer) SetHomography(h geom.Matrix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.h = h
	r.generation++
}

func (r *Renderer) SetParams(p effect.Params) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = p
	r.generation++
}

// Resize changes the output size.
func (r *Renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if width == r.width && height == r.height {
		return
	}
	r.width, r.height = width, height
	r.generation++
}

// Generation increases whenever the next Render would differ.
func (r *Renderer) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Homography returns the matrix currently applied.
func (r *Renderer) Homography() geom.Matrix {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.h
}

// Render warps src, reusing the previous frame when neither the source nor
// the renderer state changed.
func (r *Renderer) Render(src image.Image) *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil && r.cachedGen == r.generation && r.cachedSrc == src {
		return r.cached
	}
	r.cached = Warp(src, r.h, r.params, r.width, r.height)
	r.cachedGen = r.generation
	r.cachedSrc = src
	return r.cached
}
