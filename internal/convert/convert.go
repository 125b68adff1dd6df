// Package convert moves documents between formats: PDF pages to images, images to
// PDF, PDF to Word, office and HTML documents to PDF, and image resizing.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sammcj/pdfmaster/internal/config"
	"github.com/sammcj/pdfmaster/internal/extract"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sirupsen/logrus"
)

// ErrUnavailable is returned when the tool a conversion depends on is missing.
var ErrUnavailable = errors.New("converter unavailable")

// Converter runs format conversions.
type Converter struct {
	logger    *logrus.Logger
	renderers []Renderer
	office    *Office
	extractor *extract.Extractor
	workDir   string
}

// New returns a Converter. Scratch files go under workDir, or the OS temp dir when empty.
func New(logger *logrus.Logger, tools config.Tools, workDir string) *Converter {
	return &Converter{
		logger: logger,
		renderers: []Renderer{
			NewMuPDF(),
			NewPdftoppm(tools.Pdftoppm, tools.Timeout),
		},
		office:  NewOffice(tools.Soffice, tools.SofficeArgs, tools.Timeout),
		workDir: workDir,
	}
}

// UseExtractor sets the text extractor used by PDFToWord.
func (c *Converter) UseExtractor(e *extract.Extractor) {
	c.extractor = e
}

// WithRenderers replaces the rendering chain.
func (c *Converter) WithRenderers(r ...Renderer) *Converter {
	c.renderers = r
	return c
}

// WithOffice replaces the LibreOffice runner.
func (c *Converter) WithOffice(o *Office) *Converter {
	c.office = o
	return c
}

// Renderers lists the names of available renderers in chain order.
func (c *Converter) Renderers() []string {
	var names []string
	for _, r := range c.renderers {
		if r.Available() {
			names = append(names, r.Name())
		}
	}
	return names
}

// OfficeAvailable reports whether LibreOffice conversions can run.
func (c *Converter) OfficeAvailable() bool {
	return c.office != nil && c.office.Available()
}

func (c *Converter) scratch(pattern string) (string, func(), error) {
	dir, err := os.MkdirTemp(c.workDir, pattern)
	if err != nil {
		return "", func() {}, response.Internal("failed to create work directory", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			c.logger.WithError(err).Warn("Failed to clean up work directory")
		}
	}, nil
}

// WordResult summarises a PDF to Word conversion.
type WordResult struct {
	Strategy  string `json:"strategy"`
	PageCount int    `json:"page_count"`
	WordCount int    `json:"word_count"`
}

// PDFToWord writes the text of every page into a .docx at out.
func (c *Converter) PDFToWord(ctx context.Context, in, out string) (*WordResult, error) {
	if c.extractor == nil {
		return nil, response.Internal("no text extractor configured", nil)
	}
	res, err := c.extractor.Text(ctx, in, extract.TextOptions{})
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, response.Internal("failed to create output", err)
	}
	if err := extract.WriteDocx(f, res.Pages); err != nil {
		_ = f.Close()
		return nil, response.OperationFailed("failed to write Word document", err)
	}
	if err := f.Close(); err != nil {
		return nil, response.Internal("failed to write output", err)
	}

	return &WordResult{Strategy: res.Strategy, PageCount: res.PageCount, WordCount: res.WordCount}, nil
}

// OfficeToPDF converts a Word, Excel or PowerPoint file into a PDF at out.
func (c *Converter) OfficeToPDF(ctx context.Context, in, out string) error {
	if !c.OfficeAvailable() {
		return response.OperationFailed("LibreOffice is required for office conversion but was not found", ErrUnavailable)
	}
	dir, done, err := c.scratch("office-*")
	if err != nil {
		return err
	}
	defer done()

	produced, err := c.office.Convert(ctx, in, dir, "pdf")
	if err != nil {
		return response.OperationFailed("office conversion failed", err)
	}
	return move(produced, out)
}

// HTMLToPDF renders an HTML string into a PDF at out using the given page size.
func (c *Converter) HTMLToPDF(ctx context.Context, html, pageSize, out string) error {
	if strings.TrimSpace(html) == "" {
		return response.BadRequest("No HTML content provided", nil)
	}
	size, err := ParsePageSize(pageSize)
	if err != nil {
		return err
	}
	if !c.OfficeAvailable() {
		return response.OperationFailed("LibreOffice is required for HTML conversion but was not found", ErrUnavailable)
	}

	dir, done, err := c.scratch("html-*")
	if err != nil {
		return err
	}
	defer done()

	src := filepath.Join(dir, "document.html")
	if err := os.WriteFile(src, []byte(WithPageSize(html, size)), 0o600); err != nil {
		return response.Internal("failed to write HTML", err)
	}

	produced, err := c.office.Convert(ctx, src, dir, "pdf:writer_web_pdf_Export")
	if err != nil {
		return response.OperationFailed("HTML conversion failed", err)
	}
	return move(produced, out)
}

var pageSizes = map[string]string{
	"a3":     "A3",
	"a4":     "A4",
	"a5":     "A5",
	"letter": "letter",
	"legal":  "legal",
}

// ParsePageSize validates a CSS page size name. Empty means A4.
func ParsePageSize(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "A4", nil
	}
	if v, ok := pageSizes[s]; ok {
		return v, nil
	}
	return "", response.BadRequest(fmt.Sprintf("unsupported page size %q", s), nil)
}

// WithPageSize injects an @page rule ahead of the document.
func WithPageSize(html, size string) string {
	rule := fmt.Sprintf("<style>@page { size: %s; }</style>", size)
	lower := strings.ToLower(html)
	if i := strings.Index(lower, "<head>"); i >= 0 {
		i += len("<head>")
		return html[:i] + rule + html[i:]
	}
	return rule + html
}

func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return response.Internal("failed to read converted file", err)
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return response.Internal("failed to write output", err)
	}
	return nil
}
