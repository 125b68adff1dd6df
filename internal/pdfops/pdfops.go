// Package pdfops performs the delegated PDF transformations (merge, split, rotate,
// compress, stamp, encrypt, page removal and reordering, inspection) on files inside
// the session root. The heavy lifting is done by pdfcpu; this package validates
// inputs, maps library failures onto the response error taxonomy and reports results.
package pdfops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sammcj/pdfmaster/internal/cache"
	"github.com/sammcj/pdfmaster/internal/config"
	"github.com/sammcj/pdfmaster/internal/pagerange"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidPassword is returned when a document cannot be opened with the given password.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrNotEncrypted is returned when unlocking a document that has no password.
	ErrNotEncrypted = errors.New("document is not encrypted")
	// ErrPageOutOfRange is returned when a page selection exceeds the document.
	ErrPageOutOfRange = pagerange.ErrOutOfRange
)

// Processor runs PDF operations.
type Processor struct {
	logger      *logrus.Logger
	props       *cache.Cache
	compressors []Compressor
}

// New returns a Processor. props may be nil to disable property caching.
func New(logger *logrus.Logger, tools config.Tools, props *cache.Cache) *Processor {
	return &Processor{
		logger: logger,
		props:  props,
		compressors: []Compressor{
			NewGhostscript(tools.Ghostscript, tools.GhostscriptArgs, tools.Timeout),
			PdfcpuOptimizer{},
		},
	}
}

// WithCompressors replaces the compression strategies, in priority order.
func (p *Processor) WithCompressors(c ...Compressor) *Processor {
	p.compressors = c
	return p
}

// Compressors returns the configured compression strategies.
func (p *Processor) Compressors() []Compressor {
	return p.compressors
}

// NewConfiguration returns the pdfcpu configuration used for every operation.
func NewConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in the PDF at path.
func (p *Processor) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, classify("failed to read PDF", err)
	}
	return n, nil
}

// resolvePages expands sel against the document and maps range errors to client errors.
func (p *Processor) resolvePages(path string, sel pagerange.Selection) ([]int, int, error) {
	count, err := p.PageCount(path)
	if err != nil {
		return nil, 0, err
	}
	pages, err := sel.Resolve(count)
	if err != nil {
		return nil, count, response.BadRequest("invalid page selection", err)
	}
	return pages, count, nil
}

// classify wraps a pdfcpu error, recognising password failures.
func classify(message string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not encrypted"):
		return response.BadRequest(message, fmt.Errorf("%w: %v", ErrNotEncrypted, err))
	case strings.Contains(msg, "password"):
		return response.BadRequest("Invalid password", ErrInvalidPassword)
	default:
		return response.OperationFailed(message, err)
	}
}

func pageStrings(pages []int) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = strconv.Itoa(p)
	}
	return out
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return response.Internal("request cancelled", err)
	}
	return nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// copyFile copies src to dst, replacing dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
