package imageproc

import (
	"os"
	"path/filepath"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
)

// FontDirs are searched for a font given by bare file name.
var FontDirs = []string{
	"/usr/share/fonts/truetype",
	"/usr/share/fonts/truetype/dejavu",
	"/usr/share/fonts/truetype/msttcorefonts",
	"/usr/share/fonts/TTF",
	"/usr/local/share/fonts",
	"/Library/Fonts",
	"/System/Library/Fonts/Supplemental",
	`C:\Windows\Fonts`,
}

// LoadFace resolves a TrueType font by path or file name. When nothing can be
// loaded it falls back to the embedded Go Regular font, and to the basic bitmap
// face if even that fails. It never returns an error.
func LoadFace(name string, size float64) font.Face {
	if name != "" {
		if f := readFont(name); f != nil {
			return truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72})
		}
	}

	if f, err := truetype.Parse(goregular.TTF); err == nil {
		return truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72})
	}
	return basicfont.Face7x13
}

func readFont(name string) *truetype.Font {
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		for _, dir := range FontDirs {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		f, err := truetype.Parse(data)
		if err != nil {
			continue
		}
		return f
	}
	return nil
}
