package pdfops

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sammcj/pdfmaster/internal/pagerange"
	"github.com/sammcj/pdfmaster/internal/response"
)

// Watermark defaults.
const (
	DefaultWatermarkText     = "WATERMARK"
	DefaultWatermarkOpacity  = 0.3
	DefaultWatermarkAngle    = 45
	DefaultWatermarkFontSize = 48
	DefaultWatermarkColor    = "#808080"
)

// Page number defaults.
const (
	DefaultPageNumberFormat   = "{page}/{total}"
	DefaultPageNumberPosition = "bottom-right"
	DefaultPageNumberFontSize = 10
	pageNumberMargin          = 20
)

var hexColour = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// WatermarkOptions configures a text watermark.
type WatermarkOptions struct {
	Text     string
	Opacity  float64
	Angle    int
	FontSize int
	Color    string
	Pages    pagerange.Selection
}

// DefaultWatermarkOptions returns the documented defaults.
func DefaultWatermarkOptions() WatermarkOptions {
	return WatermarkOptions{
		Text:     DefaultWatermarkText,
		Opacity:  DefaultWatermarkOpacity,
		Angle:    DefaultWatermarkAngle,
		FontSize: DefaultWatermarkFontSize,
		Color:    DefaultWatermarkColor,
		Pages:    pagerange.AllPages(),
	}
}

// Description renders the options as a pdfcpu watermark description.
func (o WatermarkOptions) Description() (string, error) {
	if o.Opacity < 0 || o.Opacity > 1 {
		return "", response.BadRequest(fmt.Sprintf("opacity must be between 0 and 1, got %g", o.Opacity), nil)
	}
	if o.FontSize <= 0 {
		return "", response.BadRequest(fmt.Sprintf("font size must be positive, got %d", o.FontSize), nil)
	}
	if !hexColour.MatchString(o.Color) {
		return "", response.BadRequest(fmt.Sprintf("colour must look like #RRGGBB, got %q", o.Color), nil)
	}

	angle := o.Angle % 360
	switch {
	case angle > 180:
		angle -= 360
	case angle < -180:
		angle += 360
	}

	return fmt.Sprintf("fontname:Helvetica, points:%d, rotation:%d, opacity:%.2f, fillcolor:%s, scalefactor:1 abs",
		o.FontSize, angle, o.Opacity, strings.ToUpper(o.Color)), nil
}

// StampResult describes a stamped document.
type StampResult struct {
	Pages     []int `json:"pages"`
	PageCount int   `json:"page_count"`
}

// Watermark overlays text on the selected pages.
func (p *Processor) Watermark(ctx context.Context, in, out string, opts WatermarkOptions) (*StampResult, error) {
	if strings.TrimSpace(opts.Text) == "" {
		return nil, response.BadRequest("watermark text must not be empty", nil)
	}
	desc, err := opts.Description()
	if err != nil {
		return nil, err
	}
	pages, count, err := p.resolvePages(in, opts.Pages)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	wm, err := api.TextWatermark(opts.Text, desc, true, false, types.POINTS)
	if err != nil {
		return nil, response.BadRequest("invalid watermark", err)
	}
	if err := api.AddWatermarksFile(in, out, pageStrings(pages), wm, NewConfiguration()); err != nil {
		return nil, classify("failed to add watermark", err)
	}
	return &StampResult{Pages: pages, PageCount: count}, nil
}

// PageNumberOptions configures page numbering.
type PageNumberOptions struct {
	Format   string
	Position string
	Start    int
	FontSize int
	Pages    pagerange.Selection
}

// DefaultPageNumberOptions returns the documented defaults.
func DefaultPageNumberOptions() PageNumberOptions {
	return PageNumberOptions{
		Format:   DefaultPageNumberFormat,
		Position: DefaultPageNumberPosition,
		Start:    1,
		FontSize: DefaultPageNumberFontSize,
		Pages:    pagerange.AllPages(),
	}
}

// anchor maps a position name to a pdfcpu anchor and the offset pulling the
// label in from the page edge.
func anchor(position string) (string, string, error) {
	m := pageNumberMargin
	switch strings.ToLower(strings.TrimSpace(position)) {
	case "bottom-right", "":
		return "br", fmt.Sprintf("%d %d", -m, m), nil
	case "bottom-left":
		return "bl", fmt.Sprintf("%d %d", m, m), nil
	case "bottom-center", "bottom-centre":
		return "bc", fmt.Sprintf("0 %d", m), nil
	case "top-right":
		return "tr", fmt.Sprintf("%d %d", -m, -m), nil
	case "top-left":
		return "tl", fmt.Sprintf("%d %d", m, -m), nil
	case "top-center", "top-centre":
		return "tc", fmt.Sprintf("0 %d", -m), nil
	default:
		return "", "", response.BadRequest(fmt.Sprintf("unknown position %q", position), nil)
	}
}

// Label renders the number shown on page (1-based) of a document with total pages.
func (o PageNumberOptions) Label(page, total int) string {
	format := o.Format
	if format == "" {
		format = DefaultPageNumberFormat
	}
	offset := o.Start - 1
	r := strings.NewReplacer(
		"{page}", strconv.Itoa(page+offset),
		"{total}", strconv.Itoa(total+offset),
	)
	return r.Replace(format)
}

// PageNumbers stamps a page label on every selected page.
func (p *Processor) PageNumbers(ctx context.Context, in, out string, opts PageNumberOptions) (*StampResult, error) {
	if opts.Start < 0 {
		return nil, response.BadRequest("start number must not be negative", nil)
	}
	if opts.FontSize <= 0 {
		opts.FontSize = DefaultPageNumberFontSize
	}
	pos, offset, err := anchor(opts.Position)
	if err != nil {
		return nil, err
	}
	pages, count, err := p.resolvePages(in, opts.Pages)
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("fontname:Helvetica, points:%d, position:%s, offset:%s, rotation:0, opacity:1, fillcolor:#000000, scalefactor:1 abs",
		opts.FontSize, pos, offset)

	stamps := make(map[int]*model.Watermark, len(pages))
	for _, page := range pages {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}
		wm, err := api.TextWatermark(opts.Label(page, count), desc, true, false, types.POINTS)
		if err != nil {
			return nil, response.BadRequest("invalid page number format", err)
		}
		stamps[page] = wm
	}

	if err := api.AddWatermarksMapFile(in, out, stamps, NewConfiguration()); err != nil {
		return nil, classify("failed to add page numbers", err)
	}
	return &StampResult{Pages: pages, PageCount: count}, nil
}
