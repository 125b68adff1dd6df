// Package pdftools exposes the PDF operations as MCP tools. Every tool takes
// absolute paths. Outputs go to output_path (or output_dir for multi-file results)
// and otherwise to the session output directory.
package pdftools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/pdfmaster/internal/registry"
	"github.com/sammcj/pdfmaster/internal/tools"
)

func init() {
	for _, t := range []tools.Tool{
		&MergeTool{},
		&SplitTool{},
		&RotateTool{},
		&RemovePagesTool{},
		&RearrangeTool{},
		&CompressTool{},
		&WatermarkTool{},
		&PageNumbersTool{},
		&ProtectTool{},
		&UnlockTool{},
		&ExtractTextTool{},
		&ExtractTablesTool{},
		&PropertiesTool{},
		&PageRangeTool{},
		&ToImagesTool{},
		&ImagesToPDFTool{},
	} {
		registry.Register(t)
	}
}

func filePathParam() mcp.ToolOption {
	return mcp.WithString("file_path",
		mcp.Required(),
		mcp.Description("Absolute path to the PDF document"),
	)
}

func outputPathParam() mcp.ToolOption {
	return mcp.WithString("output_path",
		mcp.Description("Absolute path for the output file (defaults to the session output directory)"),
	)
}

func pagesParam(what string) mcp.ToolOption {
	return mcp.WithString("pages",
		mcp.Description("Pages to "+what+", e.g. '1-3,5' (default: all pages)"),
	)
}

// writeResult is the common shape of a single-output result.
type writeResult struct {
	OutputPath string `json:"output_path"`
}
