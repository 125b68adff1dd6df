package pdfops

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sammcj/pdfmaster/internal/pagerange"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sirupsen/logrus"
)

// DefaultRotation is applied when no angle is given.
const DefaultRotation = 90

// MergeResult describes a merged document.
type MergeResult struct {
	InputCount int `json:"input_count"`
	PageCount  int `json:"page_count"`
}

// SplitResult lists the files produced by a split.
type SplitResult struct {
	Files     []string `json:"files"`
	Pages     []int    `json:"pages"`
	PageCount int      `json:"source_page_count"`
}

// PagesResult describes a document after pages were rotated, removed or reordered.
type PagesResult struct {
	Pages     []int `json:"pages"`
	PageCount int   `json:"page_count"`
}

// Merge concatenates inputs in order into out.
func (p *Processor) Merge(ctx context.Context, inputs []string, out string) (*MergeResult, error) {
	if len(inputs) < 2 {
		return nil, response.BadRequest("At least 2 PDF files required for merging", nil)
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	if err := api.MergeCreateFile(inputs, out, false, NewConfiguration()); err != nil {
		return nil, classify("failed to merge PDFs", err)
	}

	count, err := p.PageCount(out)
	if err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"inputs": len(inputs),
		"pages":  count,
	}).Debug("Merged PDFs")

	return &MergeResult{InputCount: len(inputs), PageCount: count}, nil
}

// Split writes one page_N.pdf per selected page into outDir.
func (p *Processor) Split(ctx context.Context, in string, sel pagerange.Selection, outDir string) (*SplitResult, error) {
	pages, count, err := p.resolvePages(in, sel)
	if err != nil {
		return nil, err
	}

	conf := NewConfiguration()
	files := make([]string, 0, len(pages))
	for _, page := range pages {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}
		name := fmt.Sprintf("page_%d.pdf", page)
		if err := api.TrimFile(in, filepath.Join(outDir, name), []string{strconv.Itoa(page)}, conf); err != nil {
			return nil, classify(fmt.Sprintf("failed to extract page %d", page), err)
		}
		files = append(files, name)
	}

	return &SplitResult{Files: files, Pages: pages, PageCount: count}, nil
}

// Extract writes the selected pages, in document order, into a single file.
func (p *Processor) Extract(ctx context.Context, in, out string, sel pagerange.Selection) (*PagesResult, error) {
	pages, _, err := p.resolvePages(in, sel)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if err := api.TrimFile(in, out, pageStrings(pages), NewConfiguration()); err != nil {
		return nil, classify("failed to extract pages", err)
	}
	return &PagesResult{Pages: pages, PageCount: len(pages)}, nil
}

// NormaliseRotation maps any multiple of 90 onto 0, 90, 180 or 270.
func NormaliseRotation(angle int) (int, error) {
	if angle%90 != 0 {
		return 0, response.BadRequest(fmt.Sprintf("rotation must be a multiple of 90, got %d", angle), nil)
	}
	return ((angle % 360) + 360) % 360, nil
}

// Rotate turns the selected pages clockwise by angle degrees.
func (p *Processor) Rotate(ctx context.Context, in, out string, angle int, sel pagerange.Selection) (*PagesResult, error) {
	rotation, err := NormaliseRotation(angle)
	if err != nil {
		return nil, err
	}
	pages, count, err := p.resolvePages(in, sel)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	if rotation == 0 {
		if err := copyFile(in, out); err != nil {
			return nil, response.Internal("failed to write output", err)
		}
		return &PagesResult{Pages: pages, PageCount: count}, nil
	}

	if err := api.RotateFile(in, out, rotation, pageStrings(pages), NewConfiguration()); err != nil {
		return nil, classify("failed to rotate PDF", err)
	}
	return &PagesResult{Pages: pages, PageCount: count}, nil
}

// RemovePages deletes the selected pages. Removing every page is rejected.
func (p *Processor) RemovePages(ctx context.Context, in, out string, sel pagerange.Selection) (*PagesResult, error) {
	if sel.All {
		return nil, response.BadRequest("No pages specified for removal", nil)
	}
	pages, count, err := p.resolvePages(in, sel)
	if err != nil {
		return nil, err
	}
	if len(pages) >= count {
		return nil, response.BadRequest("cannot remove every page of the document", nil)
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	if err := api.RemovePagesFile(in, out, pageStrings(pages), NewConfiguration()); err != nil {
		return nil, classify("failed to remove pages", err)
	}
	return &PagesResult{Pages: pages, PageCount: count - len(pages)}, nil
}

// Rearrange writes the pages in the given order. Pages may repeat or be omitted.
func (p *Processor) Rearrange(ctx context.Context, in, out string, order []int) (*PagesResult, error) {
	if len(order) == 0 {
		return nil, response.BadRequest("No page order specified", nil)
	}
	count, err := p.PageCount(in)
	if err != nil {
		return nil, err
	}
	if err := pagerange.CheckBounds(order, count); err != nil {
		return nil, response.BadRequest("invalid page order", err)
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	if err := api.CollectFile(in, out, pageStrings(order), NewConfiguration()); err != nil {
		return nil, classify("failed to rearrange pages", err)
	}
	return &PagesResult{Pages: order, PageCount: len(order)}, nil
}
