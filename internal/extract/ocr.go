//go:build ocr

package extract

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/otiai10/gosseract/v2"
	"golang.org/x/sync/errgroup"
)

// ocrDPI is the resolution pages are rendered at before recognition.
const ocrDPI = 300

// OCR renders each page and recognises it with Tesseract.
type OCR struct {
	lang       string
	rasterizer PageRasterizer
}

// NewOCR returns the Tesseract strategy. It is unavailable without a rasterizer.
func NewOCR(lang string, rasterizer PageRasterizer) TextExtractor {
	if lang == "" {
		lang = "eng"
	}
	return &OCR{lang: lang, rasterizer: rasterizer}
}

func (o *OCR) Name() string    { return "ocr" }
func (o *OCR) Available() bool { return o.rasterizer != nil }

func (o *OCR) Extract(ctx context.Context, path string, pages []int) ([]PageText, error) {
	if o.rasterizer == nil {
		return nil, errors.New("no page rasterizer configured")
	}

	texts := make([]PageText, len(pages))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, n := range pages {
		g.Go(func() error {
			img, err := o.rasterizer.RasterizePage(ctx, path, n, ocrDPI)
			if err != nil {
				return fmt.Errorf("render page %d: %w", n, err)
			}
			text, err := o.recognise(img)
			if err != nil {
				return fmt.Errorf("recognise page %d: %w", n, err)
			}
			texts[i] = PageText{Page: n, Text: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}

func (o *OCR) recognise(img []byte) (string, error) {
	c := gosseract.NewClient()
	defer func() { _ = c.Close() }()

	if err := c.SetLanguage(o.lang); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if err := c.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	return c.Text()
}
