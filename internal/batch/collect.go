// Package batch runs a local resize batch: it gathers image files from the
// given paths and renders them one by one on a single background goroutine.
package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
)

var SupportedExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".webp": true,
}

func IsSupported(path string) bool {
	return SupportedExt[strings.ToLower(filepath.Ext(path))]
}

// Collect expands folders recursively, keeps supported files and drops
// duplicates in first-seen order. Paths that cannot be read are reported
// but do not stop the scan.
func Collect(paths []string) ([]string, []error) {
	seen := make(map[string]bool)
	files := make([]string, 0, len(paths))
	var errs []error

	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = filepath.Clean(path)
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		files = append(files, path)
	}

	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", model.ErrFileAccess, err))
			continue
		}

		if !info.IsDir() {
			if IsSupported(p) {
				add(p)
			}
			continue
		}

		walkErr := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %v", model.ErrFileAccess, err))
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if !d.IsDir() && IsSupported(path) {
				add(path)
			}
			return nil
		})
		if walkErr != nil {
			errs = append(errs, fmt.Errorf("%w: %v", model.ErrFileAccess, walkErr))
		}
	}

	return files, errs
}

// OutputPath is outDir/{base}_resized.jpg
func OutputPath(outDir, src string) string {
	return filepath.Join(outDir, model.ResultName(filepath.Base(src)))
}
