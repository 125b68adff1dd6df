package testutils

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// CreatePNG writes a solid-colour PNG of the given size and returns its path.
func CreatePNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	return writeImage(t, dir, name, width, height, func(f *os.File, img image.Image) error {
		return png.Encode(f, img)
	})
}

// CreateJPEG writes a solid-colour JPEG of the given size and returns its path.
func CreateJPEG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	return writeImage(t, dir, name, width, height, func(f *os.File, img image.Image) error {
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 85})
	})
}

func writeImage(t *testing.T, dir, name string, width, height int, encode func(*os.File, image.Image) error) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 160, A: 255})
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	AssertNoError(t, err)
	defer func() { _ = f.Close() }()

	AssertNoError(t, encode(f, img))
	return path
}

// CreatePDF builds a PDF with the requested number of pages by importing generated
// images, one per page, and returns its path.
func CreatePDF(t *testing.T, dir string, pages int) string {
	t.Helper()
	return CreateNamedPDF(t, dir, fmt.Sprintf("fixture_%d_pages.pdf", pages), pages)
}

// CreateNamedPDF is CreatePDF with an explicit file name.
func CreateNamedPDF(t *testing.T, dir, name string, pages int) string {
	t.Helper()

	imgDir := t.TempDir()
	images := make([]string, 0, pages)
	for i := range pages {
		images = append(images, CreatePNG(t, imgDir, fmt.Sprintf("page_%d.png", i+1), 64+i, 48))
	}

	out := filepath.Join(dir, name)
	conf := model.NewDefaultConfiguration()
	AssertNoError(t, api.ImportImagesFile(images, out, nil, conf))
	return out
}

// PageCount returns the page count of a PDF, failing the test on error.
func PageCount(t *testing.T, path string) int {
	t.Helper()
	n, err := api.PageCountFile(path)
	AssertNoError(t, err)
	return n
}

// FileSize returns the size of a file, failing the test on error.
func FileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	AssertNoError(t, err)
	return info.Size()
}
