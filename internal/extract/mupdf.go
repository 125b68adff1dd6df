//go:build mupdf

package extract

import (
	"context"
	"fmt"

	fitz "github.com/gen2brain/go-fitz"
)

// MuPDF extracts text with MuPDF.
type MuPDF struct{}

// NewMuPDF returns the MuPDF strategy.
func NewMuPDF() TextExtractor { return MuPDF{} }

func (MuPDF) Name() string    { return "mupdf" }
func (MuPDF) Available() bool { return true }

func (MuPDF) Extract(ctx context.Context, path string, pages []int) ([]PageText, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = doc.Close() }()

	texts := make([]PageText, 0, len(pages))
	for _, n := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n > doc.NumPage() {
			return nil, fmt.Errorf("page %d out of range", n)
		}
		text, err := doc.Text(n - 1)
		if err != nil {
			return nil, fmt.Errorf("text page %d: %w", n, err)
		}
		texts = append(texts, PageText{Page: n, Text: text})
	}
	return texts, nil
}
