//go:build !mupdf

package extract

import (
	"context"
	"errors"
)

type noMuPDF struct{}

// NewMuPDF returns a placeholder; build with -tags mupdf to enable MuPDF.
func NewMuPDF() TextExtractor { return noMuPDF{} }

func (noMuPDF) Name() string    { return "mupdf" }
func (noMuPDF) Available() bool { return false }

func (noMuPDF) Extract(context.Context, string, []int) ([]PageText, error) {
	return nil, errors.New("mupdf support not compiled in")
}
