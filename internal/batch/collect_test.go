package batch

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, imaging.Save(imaging.New(w, h, color.NRGBA{R: 90, G: 120, B: 200, A: 255}), path))
}

func TestIsSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "a.png", want: true},
		{path: "a.JPG", want: true},
		{path: "dir/a.jpeg", want: true},
		{path: "a.bmp", want: true},
		{path: "a.webp", want: true},
		{path: "a.gif", want: false},
		{path: "a.txt", want: false},
		{path: "noext", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.want, IsSupported(tt.path))
		})
	}
}

func TestCollect_FoldersAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "nested", "b.jpg")
	writeImage(t, a, 10, 10)
	writeImage(t, b, 10, 10)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))

	files, errs := Collect([]string{a, dir, "  ", a})
	require.Empty(t, errs)
	require.Equal(t, []string{a, b}, files)
}

func TestCollect_MissingPath(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	writeImage(t, a, 10, 10)

	files, errs := Collect([]string{filepath.Join(dir, "missing.png"), a})
	require.Equal(t, []string{a}, files)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], model.ErrFileAccess)
}

func TestOutputPath(t *testing.T) {
	require.Equal(t, filepath.Join("out", "cat_resized.jpg"), OutputPath("out", filepath.Join("in", "cat.png")))
	require.Equal(t, filepath.Join("out", "a.b_resized.jpg"), OutputPath("out", "a.b.webp"))
}
