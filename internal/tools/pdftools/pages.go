package pdftools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/pdfmaster/internal/pagerange"
	"github.com/sammcj/pdfmaster/internal/pdfops"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sammcj/pdfmaster/internal/tools"
	"github.com/sirupsen/logrus"
)

// MergeTool concatenates PDFs.
type MergeTool struct{}

func (t *MergeTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_merge",
		mcp.WithDescription("Merge two or more PDF documents, in the order given, into a single PDF."),
		mcp.WithArray("file_paths",
			mcp.Required(),
			mcp.Description("Absolute paths of the PDFs to merge, at least two"),
			mcp.WithStringItems(),
		),
		outputPathParam(),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *MergeTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	inputs, err := tools.Files(args, "file_paths", "pdf")
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, response.BadRequest("At least 2 PDF files required for merging", nil)
	}
	explicit, err := tools.OptionalPath(args, "output_path")
	if err != nil {
		return nil, err
	}
	out, err := env.OutputPath(explicit, inputs[0], "merged", "pdf")
	if err != nil {
		return nil, err
	}

	res, err := env.PDF.Merge(ctx, inputs, out)
	if err != nil {
		return nil, err
	}
	env.Logger.WithFields(logrus.Fields{"inputs": len(inputs), "output": out}).Debug("Merged PDFs")

	return tools.JSONResult(struct {
		writeResult
		*pdfops.MergeResult
	}{writeResult{out}, res})
}

// SplitTool writes one PDF per selected page.
type SplitTool struct{}

func (t *SplitTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_split",
		mcp.WithDescription("Split a PDF into single-page documents, one file per selected page."),
		filePathParam(),
		pagesParam("extract"),
		mcp.WithString("output_dir",
			mcp.Description("Absolute directory for the page files (defaults to a folder in the session output directory)"),
		),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *SplitTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	in, err := tools.File(args, "file_path", "pdf")
	if err != nil {
		return nil, err
	}
	sel, err := tools.Pages(args, "pages")
	if err != nil {
		return nil, err
	}
	explicit, err := tools.OptionalPath(args, "output_dir")
	if err != nil {
		return nil, err
	}
	dir, err := env.OutputDirFor(explicit, in, "split")
	if err != nil {
		return nil, err
	}

	res, err := env.PDF.Split(ctx, in, sel, dir)
	if err != nil {
		return nil, err
	}
	return tools.JSONResult(struct {
		OutputDir string `json:"output_dir"`
		*pdfops.SplitResult
	}{dir, res})
}

// RotateTool turns pages by a multiple of 90 degrees.
type RotateTool struct{}

func (t *RotateTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_rotate",
		mcp.WithDescription("Rotate pages of a PDF clockwise by a multiple of 90 degrees."),
		filePathParam(),
		mcp.WithNumber("angle",
			mcp.Description("Rotation in degrees, a multiple of 90 (default: 90)"),
		),
		pagesParam("rotate"),
		outputPathParam(),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *RotateTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	in, err := tools.File(args, "file_path", "pdf")
	if err != nil {
		return nil, err
	}
	angle, err := tools.Int(args, "angle", pdfops.DefaultRotation)
	if err != nil {
		return nil, err
	}
	sel, err := tools.Pages(args, "pages")
	if err != nil {
		return nil, err
	}
	return pagesOp(ctx, env, args, in, "rotated", func(ctx context.Context, out string) (*pdfops.PagesResult, error) {
		return env.PDF.Rotate(ctx, in, out, angle, sel)
	})
}

// RemovePagesTool deletes pages.
type RemovePagesTool struct{}

func (t *RemovePagesTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_remove_pages",
		mcp.WithDescription("Remove pages from a PDF. At least one page must remain."),
		filePathParam(),
		mcp.WithString("pages",
			mcp.Required(),
			mcp.Description("Pages to remove, e.g. '2,4-6'"),
		),
		outputPathParam(),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *RemovePagesTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	in, err := tools.File(args, "file_path", "pdf")
	if err != nil {
		return nil, err
	}
	raw, err := tools.RequiredString(args, "pages")
	if err != nil {
		return nil, err
	}
	sel, err := pagerange.Parse(raw)
	if err != nil {
		return nil, err
	}
	return pagesOp(ctx, env, args, in, "modified", func(ctx context.Context, out string) (*pdfops.PagesResult, error) {
		return env.PDF.RemovePages(ctx, in, out, sel)
	})
}

// RearrangeTool reorders pages.
type RearrangeTool struct{}

func (t *RearrangeTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_rearrange",
		mcp.WithDescription("Reorder the pages of a PDF. Pages left out of the order are dropped."),
		filePathParam(),
		mcp.WithString("order",
			mcp.Required(),
			mcp.Description("New page order as a comma separated list, e.g. '3,1,2'"),
		),
		outputPathParam(),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *RearrangeTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	in, err := tools.File(args, "file_path", "pdf")
	if err != nil {
		return nil, err
	}
	raw, err := tools.RequiredString(args, "order")
	if err != nil {
		return nil, err
	}
	order, err := pagerange.ParseOrder(raw)
	if err != nil {
		return nil, err
	}
	return pagesOp(ctx, env, args, in, "rearranged", func(ctx context.Context, out string) (*pdfops.PagesResult, error) {
		return env.PDF.Rearrange(ctx, in, out, order)
	})
}

func pagesOp(ctx context.Context, env *tools.Env, args map[string]any, in, suffix string,
	fn func(ctx context.Context, out string) (*pdfops.PagesResult, error)) (*mcp.CallToolResult, error) {
	explicit, err := tools.OptionalPath(args, "output_path")
	if err != nil {
		return nil, err
	}
	out, err := env.OutputPath(explicit, in, suffix, "pdf")
	if err != nil {
		return nil, err
	}
	res, err := fn(ctx, out)
	if err != nil {
		return nil, err
	}
	return tools.JSONResult(struct {
		writeResult
		*pdfops.PagesResult
	}{writeResult{out}, res})
}
