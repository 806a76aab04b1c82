package imageproc

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"
)

// resizer implements the smartcrop resizer on top of imaging.
type resizer struct {
	filter imaging.ResampleFilter
}

func (r resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.filter)
}

// smartFill picks the cw:ch window with the best content score and scales it to cw x ch.
func smartFill(img *image.NRGBA, cw, ch int) (*image.NRGBA, error) {
	analyzer := smartcrop.NewAnalyzer(resizer{filter: imaging.Linear})

	crop, err := analyzer.FindBestCrop(img, cw, ch)
	if err != nil {
		return nil, fmt.Errorf("finding best crop: %w", err)
	}
	crop = crop.Intersect(img.Bounds())
	if crop.Empty() {
		return nil, errors.New("smartcrop returned an empty window")
	}

	return imaging.Resize(imaging.Crop(img, crop), cw, ch, imaging.Lanczos), nil
}
