// Package imageproc provides the image operations of the app: aspect canvas
// composition (fit, fill, stretch) and text or logo watermarking.
package imageproc

import (
	"fmt"
	"math"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
)

// absorbs float noise in k*a so that the binding side keeps the source size
const canvasEpsilon = 1e-7

// Canvas limits; a bigger canvas is refused before anything is allocated.
const (
	MaxCanvasSide   = 1 << 16
	MaxCanvasPixels = 1 << 28
)

// CanvasSize returns the smallest integer canvas with ratio a:b that holds a w x h image.
func CanvasSize(w, h int, a, b float64) (int, int, error) {
	if !(a > 0) || !(b > 0) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return 0, 0, fmt.Errorf("%w: aspect components must be positive, got %v:%v", model.ErrInvalidArgument, a, b)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: image size %dx%d", model.ErrInvalidArgument, w, h)
	}

	k := math.Max(float64(w)/a, float64(h)/b)
	cwf := math.Ceil(k*a - canvasEpsilon)
	chf := math.Ceil(k*b - canvasEpsilon)
	if !fitsCanvas(cwf, chf) {
		return 0, 0, fmt.Errorf("%w: canvas for %dx%d at %v:%v exceeds %d px per side or %d px total",
			model.ErrInvalidArgument, w, h, a, b, MaxCanvasSide, MaxCanvasPixels)
	}

	return max(int(cwf), w), max(int(chf), h), nil
}

func fitsCanvas(cw, ch float64) bool {
	for _, v := range []float64{cw, ch} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v > MaxCanvasSide {
			return false
		}
	}
	return cw*ch <= MaxCanvasPixels
}
