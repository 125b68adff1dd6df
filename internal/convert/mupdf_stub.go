//go:build !mupdf

package convert

import (
	"context"
	"errors"
)

type noMuPDF struct{}

// NewMuPDF returns a placeholder; build with -tags mupdf to enable MuPDF rendering.
func NewMuPDF() Renderer { return noMuPDF{} }

func (noMuPDF) Name() string    { return "mupdf" }
func (noMuPDF) Available() bool { return false }

func (noMuPDF) Render(context.Context, string, string, RenderOptions) ([]string, error) {
	return nil, errors.New("mupdf support not compiled in")
}
