//go:build mupdf

package convert

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	fitz "github.com/gen2brain/go-fitz"
)

// MuPDF renders pages in-process with MuPDF.
type MuPDF struct{}

// NewMuPDF returns the MuPDF renderer.
func NewMuPDF() Renderer { return MuPDF{} }

func (MuPDF) Name() string    { return "mupdf" }
func (MuPDF) Available() bool { return true }

func (MuPDF) Render(ctx context.Context, in, outDir string, opts RenderOptions) ([]string, error) {
	doc, err := fitz.New(in)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = doc.Close() }()

	files := make([]string, 0, len(opts.Pages))
	for _, n := range opts.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n > doc.NumPage() {
			return nil, fmt.Errorf("page %d out of range", n)
		}
		img, err := doc.ImageDPI(n-1, float64(opts.DPI))
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", n, err)
		}
		name := opts.PageFile(n)
		if err := writeImage(filepath.Join(outDir, name), img, opts.Format); err != nil {
			return nil, err
		}
		files = append(files, name)
	}
	return files, nil
}

func writeImage(path string, img image.Image, format ImageFormat) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if format == FormatPNG {
		err = png.Encode(f, img)
	} else {
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: JPEGQuality})
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
