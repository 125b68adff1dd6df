// Package extract pulls text and tables out of PDFs. Text extraction runs a chain of
// strategies, each backed by a different parser, and keeps the first one that yields
// any text.
package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sammcj/pdfmaster/internal/config"
	"github.com/sammcj/pdfmaster/internal/pagerange"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

// PreviewLimit is the number of characters returned inline by the HTTP surface.
const PreviewLimit = 5000

// StrategyNone is reported when no strategy found any text.
const StrategyNone = "none"

// PageText is the text of one page.
type PageText struct {
	Page  int    `json:"page"`
	Text  string `json:"text"`
	Chars int    `json:"char_count"`
}

// TextExtractor is one text extraction strategy.
type TextExtractor interface {
	Name() string
	Available() bool
	Extract(ctx context.Context, path string, pages []int) ([]PageText, error)
}

// PageRasterizer renders a single page to an encoded image for OCR.
type PageRasterizer interface {
	RasterizePage(ctx context.Context, path string, page, dpi int) ([]byte, error)
}

// TextOptions controls Text.
type TextOptions struct {
	Pages  pagerange.Selection
	UseOCR bool
}

// TextResult is the outcome of a text extraction.
type TextResult struct {
	Strategy       string     `json:"strategy"`
	Pages          []PageText `json:"pages"`
	PageCount      int        `json:"page_count"`
	WordCount      int        `json:"word_count"`
	FullTextLength int        `json:"full_text_length"`
	Warnings       []string   `json:"warnings,omitempty"`
}

// Text joins the page texts with blank lines.
func (r *TextResult) Text() string {
	parts := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Extractor runs text and table extraction.
type Extractor struct {
	logger     *logrus.Logger
	strategies []TextExtractor
	ocr        TextExtractor
}

// New returns an Extractor with the default strategy chain. Scratch files go under
// workDir. rasterizer feeds the OCR strategy and may be nil.
func New(logger *logrus.Logger, tools config.Tools, workDir string, rasterizer PageRasterizer) *Extractor {
	return &Extractor{
		logger: logger,
		strategies: []TextExtractor{
			PlainText{},
			NewContentStream(logger, workDir),
			NewMuPDF(),
		},
		ocr: NewOCR(tools.TesseractLang, rasterizer),
	}
}

// WithStrategies replaces the chain. ocr may be nil.
func (e *Extractor) WithStrategies(ocr TextExtractor, strategies ...TextExtractor) *Extractor {
	e.ocr = ocr
	e.strategies = strategies
	return e
}

// Strategies lists the names of available strategies in chain order.
func (e *Extractor) Strategies() []string {
	var names []string
	if e.ocr != nil && e.ocr.Available() {
		names = append(names, e.ocr.Name())
	}
	for _, s := range e.strategies {
		if s.Available() {
			names = append(names, s.Name())
		}
	}
	return names
}

func resolve(path string, sel pagerange.Selection) ([]int, int, error) {
	count, err := api.PageCountFile(path)
	if err != nil {
		return nil, 0, response.OperationFailed("failed to read PDF", err)
	}
	pages, err := sel.Resolve(count)
	if err != nil {
		return nil, count, response.BadRequest("invalid page selection", err)
	}
	return pages, count, nil
}

// Text extracts the text of the selected pages.
func (e *Extractor) Text(ctx context.Context, path string, opts TextOptions) (*TextResult, error) {
	pages, count, err := resolve(path, opts.Pages)
	if err != nil {
		return nil, err
	}

	result := &TextResult{PageCount: count, Strategy: StrategyNone}

	chain := e.strategies
	if opts.UseOCR {
		if e.ocr != nil && e.ocr.Available() {
			chain = append([]TextExtractor{e.ocr}, chain...)
		} else {
			result.Warnings = append(result.Warnings, "OCR requested but not available in this build")
		}
	}

	for _, s := range chain {
		if !s.Available() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, response.Internal("request cancelled", err)
		}

		texts, err := s.Extract(ctx, path, pages)
		if err != nil {
			e.logger.WithError(err).WithField("strategy", s.Name()).Warn("Text extraction strategy failed")
			continue
		}
		texts = normalise(texts)
		if !hasText(texts) {
			e.logger.WithField("strategy", s.Name()).Debug("Text extraction strategy found no text")
			continue
		}

		result.Strategy = s.Name()
		result.Pages = texts
		break
	}

	if result.Pages == nil {
		result.Pages = emptyPages(pages)
	}
	full := result.Text()
	result.FullTextLength = utf8.RuneCountInString(full)
	result.WordCount = len(strings.Fields(full))

	e.logger.WithFields(logrus.Fields{
		"strategy": result.Strategy,
		"pages":    len(pages),
		"chars":    result.FullTextLength,
	}).Debug("Extracted text")

	return result, nil
}

func normalise(texts []PageText) []PageText {
	out := make([]PageText, len(texts))
	for i, t := range texts {
		text := strings.TrimSpace(norm.NFC.String(t.Text))
		out[i] = PageText{Page: t.Page, Text: text, Chars: utf8.RuneCountInString(text)}
	}
	return out
}

func hasText(texts []PageText) bool {
	for _, t := range texts {
		if t.Chars > 0 {
			return true
		}
	}
	return false
}

func emptyPages(pages []int) []PageText {
	out := make([]PageText, len(pages))
	for i, p := range pages {
		out[i] = PageText{Page: p}
	}
	return out
}

// Preview returns at most limit characters of text and whether it was cut.
func Preview(text string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	i, n := 0, 0
	for i = range text {
		if n == limit {
			break
		}
		n++
	}
	return text[:i], true
}

// Format is an output format for extracted text.
type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
	FormatDocx     Format = "docx"
)

// ParseFormat validates a text output format. Empty means txt.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "text":
		return FormatText, nil
	case "markdown":
		return FormatMarkdown, nil
	case FormatText, FormatMarkdown, FormatJSON, FormatDocx:
		return f, nil
	default:
		return "", response.BadRequest(fmt.Sprintf("unsupported text format %q", s), nil)
	}
}
