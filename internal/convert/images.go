package convert

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sammcj/pdfmaster/internal/response"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxImageDimension is the longest side an image keeps before it is downscaled.
const MaxImageDimension = 4000

// MaxResizeDimension bounds the size requested from ResizeImage.
const MaxResizeDimension = 10000

// Orientation selects the page orientation for imported images.
type Orientation string

const (
	OrientationAuto      Orientation = "auto"
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// ParseOrientation validates an orientation. Empty means auto.
func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return OrientationAuto, nil
	case OrientationAuto, OrientationPortrait, OrientationLandscape:
		return o, nil
	default:
		return "", response.BadRequest(fmt.Sprintf("unknown orientation %q", s), nil)
	}
}

// PDFResult describes a PDF built from images.
type PDFResult struct {
	PageCount  int `json:"page_count"`
	Normalised int `json:"normalised_images"`
}

// ImagesToPDF places each image on its own A4 page, in order.
func (c *Converter) ImagesToPDF(ctx context.Context, images []string, out string, orientation Orientation) (*PDFResult, error) {
	if len(images) == 0 {
		return nil, response.BadRequest("No images provided", nil)
	}
	if orientation == "" {
		orientation = OrientationAuto
	}

	dir, done, err := c.scratch("images-*")
	if err != nil {
		return nil, err
	}
	defer done()

	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return nil, response.Internal("failed to prepare output", err)
	}

	conf := model.NewDefaultConfiguration()
	result := &PDFResult{}

	for i, src := range images {
		if err := ctx.Err(); err != nil {
			return nil, response.Internal("request cancelled", err)
		}

		img, landscape, converted, err := normaliseImage(src, dir, i)
		if err != nil {
			return nil, response.BadRequest(fmt.Sprintf("could not read image %s", filepath.Base(src)), err)
		}
		if converted {
			result.Normalised++
		}

		form := "A4"
		if orientation == OrientationLandscape || (orientation == OrientationAuto && landscape) {
			form = "A4L"
		}
		imp, err := api.Import(fmt.Sprintf("formsize:%s, position:c, scalefactor:0.9", form), types.POINTS)
		if err != nil {
			return nil, response.Internal("invalid import settings", err)
		}

		// ImportImagesFile appends when out already exists.
		if err := api.ImportImagesFile([]string{img}, out, imp, conf); err != nil {
			return nil, response.OperationFailed(fmt.Sprintf("failed to add image %s", filepath.Base(src)), err)
		}
	}

	count, err := api.PageCountFile(out)
	if err != nil {
		return nil, response.OperationFailed("failed to read generated PDF", err)
	}
	result.PageCount = count

	c.logger.WithField("images", len(images)).Debug("Built PDF from images")
	return result, nil
}

// normaliseImage returns a path pdfcpu can import. JPEG and PNG files within the size
// limit are used as they are; anything else is decoded, downscaled if needed and
// written to dir as PNG.
func normaliseImage(src, dir string, idx int) (string, bool, bool, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", false, false, err
	}
	cfg, format, err := image.DecodeConfig(f)
	_ = f.Close()
	if err != nil {
		return "", false, false, err
	}
	landscape := cfg.Width > cfg.Height

	oversized := cfg.Width > MaxImageDimension || cfg.Height > MaxImageDimension
	if (format == "jpeg" || format == "png") && !oversized {
		return src, landscape, false, nil
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", false, false, err
	}
	if oversized {
		img = imaging.Fit(img, MaxImageDimension, MaxImageDimension, imaging.Lanczos)
	}

	out := filepath.Join(dir, fmt.Sprintf("image_%03d.png", idx))
	if err := imaging.Save(img, out); err != nil {
		return "", false, false, err
	}
	b := img.Bounds()
	return out, b.Dx() > b.Dy(), true, nil
}

// ResizeResult reports the dimensions of a resized image.
type ResizeResult struct {
	Width          int `json:"width"`
	Height         int `json:"height"`
	OriginalWidth  int `json:"original_width"`
	OriginalHeight int `json:"original_height"`
}

// ResizeImage scales in to width x height and writes it to out, encoded by out's
// extension. A zero dimension keeps the aspect ratio.
func (c *Converter) ResizeImage(in, out string, width, height int) (*ResizeResult, error) {
	if width < 0 || height < 0 || (width == 0 && height == 0) {
		return nil, response.BadRequest("width or height must be a positive number", nil)
	}
	if width > MaxResizeDimension || height > MaxResizeDimension {
		return nil, response.BadRequest(fmt.Sprintf("dimensions may not exceed %d pixels", MaxResizeDimension), nil)
	}

	img, err := imaging.Open(in, imaging.AutoOrientation(true))
	if err != nil {
		return nil, response.BadRequest("could not read image", err)
	}
	orig := img.Bounds()

	resized := imaging.Resize(img, width, height, imaging.Lanczos)
	if err := imaging.Save(resized, out, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, response.OperationFailed("failed to write resized image", err)
	}

	b := resized.Bounds()
	return &ResizeResult{
		Width:          b.Dx(),
		Height:         b.Dy(),
		OriginalWidth:  orig.Dx(),
		OriginalHeight: orig.Dy(),
	}, nil
}
