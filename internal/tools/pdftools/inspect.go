package pdftools

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/pdfmaster/internal/extract"
	"github.com/sammcj/pdfmaster/internal/pagerange"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sammcj/pdfmaster/internal/tools"
)

// ExtractTextTool returns the text of a PDF and optionally writes it to a file.
type ExtractTextTool struct{}

func (t *ExtractTextTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_extract_text",
		mcp.WithDescription(`Extract text from a PDF. Text layers are read first; use_ocr falls back to OCR for scanned pages when OCR support is built in.`),
		filePathParam(),
		pagesParam("read"),
		mcp.WithBoolean("use_ocr",
			mcp.Description("Run OCR on pages without a text layer (default: false)"),
		),
		mcp.WithString("format",
			mcp.Description("Format of the file written to output_path (default: txt)"),
			mcp.Enum(string(extract.FormatText), string(extract.FormatMarkdown), string(extract.FormatJSON), string(extract.FormatDocx)),
		),
		mcp.WithString("output_path",
			mcp.Description("Absolute path to also write the extracted text to"),
		),
		mcp.WithNumber("max_chars",
			mcp.Description("Characters of text returned inline (default: 20000)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// defaultInlineChars bounds the text returned in a tool result.
const defaultInlineChars = 20000

func (t *ExtractTextTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	in, err := tools.File(args, "file_path", "pdf")
	if err != nil {
		return nil, err
	}
	sel, err := tools.Pages(args, "pages")
	if err != nil {
		return nil, err
	}
	format, err := extract.ParseFormat(tools.String(args, "format", ""))
	if err != nil {
		return nil, err
	}
	out, err := tools.OptionalPath(args, "output_path")
	if err != nil {
		return nil, err
	}
	limit, err := tools.Int(args, "max_chars", defaultInlineChars)
	if err != nil {
		return nil, err
	}

	res, err := env.Extractor.Text(ctx, in, extract.TextOptions{Pages: sel, UseOCR: tools.Bool(args, "use_ocr", false)})
	if err != nil {
		return nil, err
	}
	if out != "" {
		if err := os.MkdirAll(filepath.Dir(out), 0o700); err != nil {
			return nil, response.Internal("failed to create output directory", err)
		}
		if err := extract.WriteTextFile(out, res, format, filepath.Base(in)); err != nil {
			return nil, response.OperationFailed("failed to write extracted text", err)
		}
	}

	text, truncated := extract.Preview(res.Text(), limit)
	return tools.JSONResult(struct {
		OutputPath     string   `json:"output_path,omitempty"`
		Text           string   `json:"text"`
		Truncated      bool     `json:"truncated"`
		Strategy       string   `json:"strategy"`
		PageCount      int      `json:"page_count"`
		WordCount      int      `json:"word_count"`
		FullTextLength int      `json:"full_text_length"`
		Warnings       []string `json:"warnings,omitempty"`
	}{out, text, truncated, res.Strategy, res.PageCount, res.WordCount, res.FullTextLength, res.Warnings})
}

// ExtractTablesTool detects tables and writes them in a chosen format.
type ExtractTablesTool struct{}

func (t *ExtractTablesTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_extract_tables",
		mcp.WithDescription("Detect tables in a PDF and write them as markdown, CSV, JSON, text or an xlsx workbook."),
		filePathParam(),
		pagesParam("scan"),
		mcp.WithString("format",
			mcp.Description("Output format (default: markdown)"),
			mcp.Enum(string(extract.TableMarkdown), string(extract.TableCSV), string(extract.TableJSON),
				string(extract.TableText), string(extract.TableXLSX)),
		),
		outputPathParam(),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *ExtractTablesTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	in, err := tools.File(args, "file_path", "pdf")
	if err != nil {
		return nil, err
	}
	sel, err := tools.Pages(args, "pages")
	if err != nil {
		return nil, err
	}
	format, err := extract.ParseTableFormat(tools.String(args, "format", ""))
	if err != nil {
		return nil, err
	}
	explicit, err := tools.OptionalPath(args, "output_path")
	if err != nil {
		return nil, err
	}
	out, err := env.OutputPath(explicit, in, "tables", format.Extension())
	if err != nil {
		return nil, err
	}

	res, err := env.Extractor.Tables(ctx, in, sel)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, response.Internal("failed to create output", err)
	}
	if err := extract.WriteTables(f, res.Tables, format); err != nil {
		_ = f.Close()
		return nil, response.OperationFailed("failed to write tables", err)
	}
	if err := f.Close(); err != nil {
		return nil, response.Internal("failed to write tables", err)
	}

	return tools.JSONResult(struct {
		writeResult
		Format extract.TableFormat `json:"format"`
		Count  int                 `json:"count"`
		*extract.TablesResult
	}{writeResult{out}, format, len(res.Tables), res})
}

// PropertiesTool reports document metadata.
type PropertiesTool struct{}

func (t *PropertiesTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_properties",
		mcp.WithDescription("Report page count, page sizes, metadata and encryption state of a PDF."),
		filePathParam(),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *PropertiesTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	in, err := tools.File(args, "file_path", "pdf")
	if err != nil {
		return nil, err
	}
	props, err := env.PDF.Properties(ctx, in)
	if err != nil {
		return nil, err
	}
	return tools.JSONResult(props)
}

// PageRangeTool parses a page-range expression, optionally against a document.
type PageRangeTool struct{}

func (t *PageRangeTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"page_range",
		mcp.WithDescription(`Parse a page-range expression such as '1-3,5' into the sorted page list it selects. Give page_count or file_path to check the pages exist and expand 'all'.`),
		mcp.WithString("pages",
			mcp.Required(),
			mcp.Description("Page-range expression; 'all' or empty selects every page"),
		),
		mcp.WithNumber("page_count",
			mcp.Description("Number of pages in the document"),
		),
		mcp.WithString("file_path",
			mcp.Description("Absolute path of a PDF to read the page count from"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// PageRangeResult is the parsed form of a page-range expression.
type PageRangeResult struct {
	Input      string `json:"input"`
	All        bool   `json:"all"`
	Pages      []int  `json:"pages,omitempty"`
	Normalised string `json:"normalised"`
	PageCount  int    `json:"page_count,omitempty"`
}

func (t *PageRangeTool) Execute(_ context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	raw, _ := args["pages"].(string)
	sel, err := pagerange.Parse(raw)
	if err != nil {
		return nil, response.BadRequest(err.Error(), err)
	}

	count, err := tools.Int(args, "page_count", 0)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(tools.String(args, "file_path", "")) != "" {
		in, err := tools.File(args, "file_path", "pdf")
		if err != nil {
			return nil, err
		}
		if count, err = env.PDF.PageCount(in); err != nil {
			return nil, err
		}
	}

	res := PageRangeResult{Input: raw, All: sel.All, Pages: sel.Pages, Normalised: sel.String()}
	if count > 0 {
		pages, err := sel.Resolve(count)
		if err != nil {
			return nil, response.BadRequest(err.Error(), err)
		}
		res.Pages = pages
		res.Normalised = pagerange.Format(pages)
		res.PageCount = count
	}
	return tools.JSONResult(res)
}
