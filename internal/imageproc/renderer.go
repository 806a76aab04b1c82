package imageproc

import (
	"fmt"
	"image"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"golang.org/x/image/font"
)

// Renderer applies one Settings record to any number of images.
// It is not safe for concurrent use: the font face keeps a glyph cache.
type Renderer struct {
	settings model.Settings
	logo     image.Image
	face     font.Face
	text     TextMark
	logoMark LogoMark
}

// NewRenderer validates s and resolves its colors and font once.
// logo is only used when s asks for a logo watermark and may be nil.
func NewRenderer(s model.Settings, logo image.Image) (*Renderer, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	r := &Renderer{settings: s}
	wm := s.Watermark

	switch wm.Kind {
	case model.WatermarkText:
		ink, err := model.ParseColor(wm.Color)
		if err != nil {
			return nil, err
		}
		if wm.Text != "" {
			r.face = LoadFace(wm.FontName, float64(wm.FontSize))
		}
		r.text = TextMark{
			Text:     wm.Text,
			Face:     r.face,
			Color:    ink,
			Position: wm.Position,
			Opacity:  wm.Opacity,
		}
	case model.WatermarkLogo:
		r.logo = logo
		r.logoMark = LogoMark{
			Position:    wm.Position,
			Opacity:     wm.Opacity,
			Scale:       wm.Scale,
			MarginRatio: wm.MarginRatio,
		}
	}

	return r, nil
}

// Render composes src onto the aspect canvas and applies the watermark.
func (r *Renderer) Render(src image.Image) (image.Image, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source image", model.ErrInvalidArgument)
	}

	composed, err := Compose(src, r.settings)
	if err != nil {
		return nil, err
	}

	switch r.settings.Watermark.Kind {
	case model.WatermarkText:
		return ApplyText(composed, r.text), nil
	case model.WatermarkLogo:
		return ApplyLogo(composed, r.logo, r.logoMark), nil
	default:
		return composed, nil
	}
}
