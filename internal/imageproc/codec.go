package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const JPEGQuality = 95

// Decode reads PNG, JPEG, BMP, WebP (and the rest imaging knows) honoring EXIF orientation.
func Decode(r io.Reader) (image.Image, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", model.ErrFileAccess)
	}
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUnsupportedFormat, err)
	}
	return img, nil
}

// Open decodes the image file at path.
func Open(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", model.ErrFileAccess, path, err)
	}
	defer f.Close()

	return Decode(f)
}

// FormatForPath picks JPEG for .jpg/.jpeg and PNG for everything else.
func FormatForPath(path string) imaging.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return imaging.JPEG
	default:
		return imaging.PNG
	}
}

// FormatFromName maps "jpeg"/"jpg"/"png" to a format; anything else is JPEG.
func FormatFromName(name string) imaging.Format {
	if f, err := imaging.FormatFromExtension(name); err == nil && f == imaging.PNG {
		return imaging.PNG
	}
	return imaging.JPEG
}

func Encode(w io.Writer, img image.Image, format imaging.Format) error {
	return imaging.Encode(w, img, format, imaging.JPEGQuality(JPEGQuality))
}

// EncodeBuffer encodes img and returns the reader with its size, ready for storage.
func EncodeBuffer(img image.Image, format imaging.Format) (io.Reader, int64, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format); err != nil {
		return nil, 0, fmt.Errorf("failed to encode result image: %w", err)
	}
	return &buf, int64(buf.Len()), nil
}
