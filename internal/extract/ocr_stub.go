//go:build !ocr

package extract

import (
	"context"
	"errors"
)

type noOCR struct{}

// NewOCR returns a placeholder; build with -tags ocr to enable Tesseract.
func NewOCR(string, PageRasterizer) TextExtractor { return noOCR{} }

func (noOCR) Name() string    { return "ocr" }
func (noOCR) Available() bool { return false }

func (noOCR) Extract(context.Context, string, []int) ([]PageText, error) {
	return nil, errors.New("ocr support not compiled in")
}
