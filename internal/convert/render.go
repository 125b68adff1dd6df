package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sammcj/pdfmaster/internal/pagerange"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sirupsen/logrus"
)

// Rendering limits.
const (
	DefaultDPI  = 300
	MinDPI      = 36
	MaxDPI      = 600
	JPEGQuality = 90
)

// ImageFormat is the encoding of rendered pages.
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpg"
	FormatPNG  ImageFormat = "png"
)

// ParseImageFormat validates an image format. Empty means jpg.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", response.BadRequest(fmt.Sprintf("unsupported image format %q", s), nil)
	}
}

// ClampDPI returns dpi bounded to the supported range; zero means the default.
func ClampDPI(dpi int) int {
	switch {
	case dpi == 0:
		return DefaultDPI
	case dpi < MinDPI:
		return MinDPI
	case dpi > MaxDPI:
		return MaxDPI
	default:
		return dpi
	}
}

// RenderOptions controls page rendering.
type RenderOptions struct {
	Format ImageFormat
	DPI    int
	Pages  []int
}

// PageFile is the file name a renderer writes for page n.
func (o RenderOptions) PageFile(n int) string {
	return fmt.Sprintf("page_%d.%s", n, o.Format)
}

// Renderer rasterises PDF pages.
type Renderer interface {
	Name() string
	Available() bool
	Render(ctx context.Context, in, outDir string, opts RenderOptions) ([]string, error)
}

// ImagesResult describes rendered pages.
type ImagesResult struct {
	Files    []string    `json:"files"`
	Renderer string      `json:"renderer"`
	Format   ImageFormat `json:"format"`
	DPI      int         `json:"dpi"`
}

// ToImages renders the selected pages into outDir, trying each renderer in turn.
func (c *Converter) ToImages(ctx context.Context, in, outDir string, format ImageFormat, dpi int, sel pagerange.Selection) (*ImagesResult, error) {
	count, err := api.PageCountFile(in)
	if err != nil {
		return nil, response.OperationFailed("failed to read PDF", err)
	}
	pages, err := sel.Resolve(count)
	if err != nil {
		return nil, response.BadRequest("invalid page selection", err)
	}
	if format == "" {
		format = FormatJPEG
	}

	opts := RenderOptions{Format: format, DPI: ClampDPI(dpi), Pages: pages}
	files, name, err := c.render(ctx, in, outDir, opts)
	if err != nil {
		return nil, err
	}
	return &ImagesResult{Files: files, Renderer: name, Format: format, DPI: opts.DPI}, nil
}

func (c *Converter) render(ctx context.Context, in, outDir string, opts RenderOptions) ([]string, string, error) {
	var lastErr error
	tried := 0
	for _, r := range c.renderers {
		if !r.Available() {
			continue
		}
		tried++
		files, err := r.Render(ctx, in, outDir, opts)
		if err == nil {
			return files, r.Name(), nil
		}
		lastErr = err
		c.logger.WithError(err).WithFields(logrus.Fields{
			"renderer": r.Name(),
			"pages":    len(opts.Pages),
		}).Warn("Renderer failed")
	}

	if tried == 0 {
		return nil, "", response.OperationFailed("no PDF renderer available; install poppler-utils (pdftoppm) or build with -tags mupdf", ErrUnavailable)
	}
	return nil, "", response.OperationFailed("PDF to image conversion failed", lastErr)
}

// RasterizePage renders one page as PNG and returns the encoded bytes.
func (c *Converter) RasterizePage(ctx context.Context, path string, page, dpi int) ([]byte, error) {
	dir, done, err := c.scratch("raster-*")
	if err != nil {
		return nil, err
	}
	defer done()

	opts := RenderOptions{Format: FormatPNG, DPI: ClampDPI(dpi), Pages: []int{page}}
	files, _, err := c.render(ctx, path, dir, opts)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("renderer produced no image for page %d", page)
	}
	return os.ReadFile(filepath.Join(dir, files[0]))
}
