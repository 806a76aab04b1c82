package imageproc

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/disintegration/imaging"
)

// sigma of the gaussian blur behind fit-mode images
const backgroundBlur = 25.0

// Compose places src onto the aspect canvas according to s.Mode.
func Compose(src image.Image, s model.Settings) (*image.NRGBA, error) {
	switch s.Mode {
	case model.ModeFit:
		bg, err := model.ParseColor(s.Background.Color)
		if err != nil {
			return nil, err
		}
		return Fit(src, s.Aspect, s.Background.Kind, bg)
	case model.ModeFill:
		return Fill(src, s.Aspect, s.Crop)
	case model.ModeStretch:
		return Stretch(src, s.Aspect)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedMode, s.Mode)
	}
}

// Fit keeps src unscaled and centers it on a canvas filled with bg or,
// for model.BackgroundBlur, with a blurred cover copy of src.
func Fit(src image.Image, aspect model.Aspect, kind model.BackgroundKind, bg color.Color) (*image.NRGBA, error) {
	img := opaque(src)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	cw, ch, err := CanvasSize(w, h, aspect.W, aspect.H)
	if err != nil {
		return nil, err
	}

	var canvas *image.NRGBA
	switch kind {
	case model.BackgroundBlur:
		canvas = imaging.Blur(cover(img, cw, ch), backgroundBlur)
	default:
		canvas = imaging.New(cw, ch, bg)
	}

	return imaging.Paste(canvas, img, image.Pt((cw-w)/2, (ch-h)/2)), nil
}

// Fill scales src to cover the canvas and crops the overflow.
func Fill(src image.Image, aspect model.Aspect, anchor model.CropAnchor) (*image.NRGBA, error) {
	img := opaque(src)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	cw, ch, err := CanvasSize(w, h, aspect.W, aspect.H)
	if err != nil {
		return nil, err
	}

	if anchor == model.CropSmart {
		if res, err := smartFill(img, cw, ch); err == nil {
			return res, nil
		}
	}
	return cover(img, cw, ch), nil
}

// Stretch resizes src to the canvas, each axis on its own.
func Stretch(src image.Image, aspect model.Aspect) (*image.NRGBA, error) {
	img := opaque(src)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	cw, ch, err := CanvasSize(w, h, aspect.W, aspect.H)
	if err != nil {
		return nil, err
	}
	return imaging.Resize(img, cw, ch, imaging.Linear), nil
}

// cover resizes img by max(cw/w, ch/h) and crops the center cw x ch.
func cover(img image.Image, cw, ch int) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	scale := math.Max(float64(cw)/float64(w), float64(ch)/float64(h))

	rw := max(cw, int(math.Round(float64(w)*scale)))
	rh := max(ch, int(math.Round(float64(h)*scale)))

	resized := imaging.Resize(img, rw, rh, imaging.Lanczos)
	return imaging.CropCenter(resized, cw, ch)
}

// opaque drops the alpha channel, keeping the color channels as stored.
func opaque(src image.Image) *image.NRGBA {
	dst := imaging.Clone(src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
