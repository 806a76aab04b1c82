package imageproc

import (
	"image"
	"image/color"
	"math"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const (
	minMargin       = 8
	textMarginRatio = 0.02
)

type TextMark struct {
	Text     string
	Face     font.Face
	Color    color.NRGBA
	Position model.Position
	Opacity  int
}

type LogoMark struct {
	Position    model.Position
	Opacity     int
	Scale       float64
	MarginRatio float64
}

// ApplyText draws m.Text on base. Empty text, or text without visible glyphs,
// returns base itself.
func ApplyText(base image.Image, m TextMark) image.Image {
	if m.Text == "" || m.Face == nil {
		return base
	}

	bounds, _ := font.BoundString(m.Face, m.Text)
	minX, minY := bounds.Min.X.Floor(), bounds.Min.Y.Floor()
	tw, th := bounds.Max.X.Ceil()-minX, bounds.Max.Y.Ceil()-minY
	if tw <= 0 || th <= 0 {
		return base
	}

	ink := m.Color
	ink.A = uint8(math.Round(255 * float64(m.Opacity) / 100))

	layer := image.NewNRGBA(image.Rect(0, 0, tw, th))
	d := font.Drawer{
		Dst:  layer,
		Src:  image.NewUniform(ink),
		Face: m.Face,
		Dot:  fixed.P(-minX, -minY),
	}
	d.DrawString(m.Text)

	b := base.Bounds()
	margin := int(math.Max(minMargin, float64(b.Dx())*textMarginRatio))
	at := anchorOrigin(m.Position, b.Dx(), b.Dy(), tw, th, margin)

	return imaging.Overlay(base, layer, b.Min.Add(at), 1.0)
}

// ApplyLogo scales logo to m.Scale of the base width and blends it in with
// its alpha multiplied by m.Opacity/100. A nil logo returns base itself.
func ApplyLogo(base, logo image.Image, m LogoMark) image.Image {
	if logo == nil {
		return base
	}
	lw, lh := logo.Bounds().Dx(), logo.Bounds().Dy()
	if lw <= 0 || lh <= 0 {
		return base
	}

	b := base.Bounds()
	targetW := max(1, int(float64(b.Dx())*m.Scale))
	s := float64(targetW) / float64(lw)
	ow := max(1, int(float64(lw)*s))
	oh := max(1, int(float64(lh)*s))

	scaled := imaging.Resize(logo, ow, oh, imaging.Lanczos)

	margin := int(math.Max(minMargin, float64(b.Dx())*m.MarginRatio))
	at := anchorOrigin(m.Position, b.Dx(), b.Dy(), ow, oh, margin)

	return imaging.Overlay(base, scaled, b.Min.Add(at), float64(m.Opacity)/100)
}

// anchorOrigin is the top-left corner of an ow x oh overlay on a bw x bh base.
func anchorOrigin(pos model.Position, bw, bh, ow, oh, margin int) image.Point {
	switch pos {
	case model.BottomLeft:
		return image.Pt(margin, bh-oh-margin)
	case model.TopLeft:
		return image.Pt(margin, margin)
	case model.TopRight:
		return image.Pt(bw-ow-margin, margin)
	case model.Center:
		return image.Pt((bw-ow)/2, (bh-oh)/2)
	default:
		return image.Pt(bw-ow-margin, bh-oh-margin)
	}
}
