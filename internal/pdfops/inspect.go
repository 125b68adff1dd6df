package pdfops

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sammcj/pdfmaster/internal/cache"
	"github.com/sammcj/pdfmaster/internal/pagerange"
	"github.com/sammcj/pdfmaster/internal/response"
)

// PageInfo describes one page.
type PageInfo struct {
	Number   int     `json:"page_number"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation int     `json:"rotation"`
}

// Properties is the document metadata surfaced by the properties endpoint.
type Properties struct {
	PageCount    int        `json:"page_count"`
	FileSize     int64      `json:"file_size"`
	Version      string     `json:"pdf_version,omitempty"`
	Title        string     `json:"title,omitempty"`
	Author       string     `json:"author,omitempty"`
	Subject      string     `json:"subject,omitempty"`
	Keywords     string     `json:"keywords,omitempty"`
	Creator      string     `json:"creator,omitempty"`
	Producer     string     `json:"producer,omitempty"`
	CreationDate string     `json:"creation_date,omitempty"`
	ModDate      string     `json:"modification_date,omitempty"`
	IsEncrypted  bool       `json:"is_encrypted"`
	Pages        []PageInfo `json:"pages,omitempty"`
}

// Properties reads document metadata. Encrypted documents that cannot be opened
// without a password report IsEncrypted with only the file size filled in.
func (p *Processor) Properties(ctx context.Context, path string) (*Properties, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	size, err := fileSize(path)
	if err != nil {
		return nil, response.NotFound("file not found", err)
	}

	key, cacheable := cache.FileKey("props", path)
	if cacheable && p.props != nil {
		if v, ok := p.props.Get(key); ok {
			if props, ok := v.(*Properties); ok {
				return props, nil
			}
		}
	}

	pctx, err := api.ReadContextFile(path)
	if err != nil {
		if errors.Is(classify("", err), ErrInvalidPassword) {
			return &Properties{FileSize: size, IsEncrypted: true}, nil
		}
		return nil, classify("failed to read PDF", err)
	}

	props := &Properties{
		PageCount:    pctx.PageCount,
		FileSize:     size,
		Version:      pctx.VersionString(),
		Title:        pctx.Title,
		Author:       pctx.Author,
		Subject:      pctx.Subject,
		Keywords:     pctx.Keywords,
		Creator:      pctx.Creator,
		Producer:     pctx.Producer,
		CreationDate: pctx.CreationDate,
		ModDate:      pctx.ModDate,
		IsEncrypted:  pctx.Encrypt != nil,
	}

	dims, err := pctx.PageDims()
	if err == nil {
		for i, d := range dims {
			info := PageInfo{
				Number: i + 1,
				Width:  round2(d.Width),
				Height: round2(d.Height),
			}
			if _, _, inherited, err := pctx.PageDict(i+1, false); err == nil && inherited != nil {
				info.Rotation = inherited.Rotate
			}
			props.Pages = append(props.Pages, info)
		}
	}

	if cacheable && p.props != nil {
		p.props.Set(key, props)
	}
	return props, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ImagesResult lists the image files extracted from a document.
type ImagesResult struct {
	Files []string `json:"files"`
	Pages []int    `json:"pages"`
}

// ExtractImages writes the embedded images of the selected pages into outDir.
func (p *Processor) ExtractImages(ctx context.Context, in, outDir string, sel pagerange.Selection) (*ImagesResult, error) {
	pages, _, err := p.resolvePages(in, sel)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	if err := api.ExtractImagesFile(in, outDir, pageStrings(pages), NewConfiguration()); err != nil {
		return nil, classify("failed to extract images", err)
	}

	files, err := imageFiles(outDir)
	if err != nil {
		return nil, response.Internal("failed to list extracted images", err)
	}
	if len(files) == 0 {
		return nil, response.BadRequest("No images found", nil)
	}
	return &ImagesResult{Files: files, Pages: pages}, nil
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
	".gif": true, ".bmp": true, ".webp": true, ".jpx": true, ".jp2": true,
}

// imageFiles returns the names of image files directly inside dir, sorted.
func imageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
