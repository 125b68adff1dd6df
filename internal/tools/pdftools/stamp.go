package pdftools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/pdfmaster/internal/pdfops"
	"github.com/sammcj/pdfmaster/internal/tools"
)

// WatermarkTool overlays diagonal text.
type WatermarkTool struct{}

func (t *WatermarkTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_watermark",
		mcp.WithDescription("Overlay a text watermark on pages of a PDF."),
		filePathParam(),
		mcp.WithString("text",
			mcp.Description("Watermark text (default: "+pdfops.DefaultWatermarkText+")"),
		),
		mcp.WithNumber("opacity",
			mcp.Description("Opacity between 0 and 1 (default: 0.3)"),
		),
		mcp.WithNumber("angle",
			mcp.Description("Rotation of the text in degrees (default: 45)"),
		),
		mcp.WithNumber("font_size",
			mcp.Description("Font size in points (default: 48)"),
		),
		mcp.WithString("color",
			mcp.Description("Text colour as #RRGGBB (default: #808080)"),
		),
		pagesParam("watermark"),
		outputPathParam(),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *WatermarkTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	in, err := tools.File(args, "file_path", "pdf")
	if err != nil {
		return nil, err
	}

	opts := pdfops.DefaultWatermarkOptions()
	opts.Text = tools.String(args, "text", opts.Text)
	opts.Color = tools.String(args, "color", opts.Color)
	if opts.Opacity, err = tools.Float(args, "opacity", opts.Opacity); err != nil {
		return nil, err
	}
	if opts.Angle, err = tools.Int(args, "angle", opts.Angle); err != nil {
		return nil, err
	}
	if opts.FontSize, err = tools.Int(args, "font_size", opts.FontSize); err != nil {
		return nil, err
	}
	if opts.Pages, err = tools.Pages(args, "pages"); err != nil {
		return nil, err
	}

	return stampOp(ctx, env, args, in, "watermarked", func(ctx context.Context, out string) (*pdfops.StampResult, error) {
		return env.PDF.Watermark(ctx, in, out, opts)
	})
}

// PageNumbersTool stamps page labels.
type PageNumbersTool struct{}

func (t *PageNumbersTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_page_numbers",
		mcp.WithDescription("Stamp page numbers on pages of a PDF."),
		filePathParam(),
		mcp.WithString("position",
			mcp.Description("Where the label goes (default: bottom-right)"),
			mcp.Enum("bottom-right", "bottom-left", "bottom-center", "top-right", "top-left", "top-center"),
		),
		mcp.WithString("format",
			mcp.Description("Label format; {page} is the page number and {total} the page count (default: {page}/{total})"),
		),
		mcp.WithNumber("start",
			mcp.Description("Number shown on the first labelled page (default: 1)"),
		),
		mcp.WithNumber("font_size",
			mcp.Description("Font size in points (default: 10)"),
		),
		pagesParam("number"),
		outputPathParam(),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *PageNumbersTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	in, err := tools.File(args, "file_path", "pdf")
	if err != nil {
		return nil, err
	}

	opts := pdfops.DefaultPageNumberOptions()
	opts.Position = tools.String(args, "position", opts.Position)
	opts.Format = tools.String(args, "format", opts.Format)
	if opts.Start, err = tools.Int(args, "start", opts.Start); err != nil {
		return nil, err
	}
	if opts.FontSize, err = tools.Int(args, "font_size", opts.FontSize); err != nil {
		return nil, err
	}
	if opts.Pages, err = tools.Pages(args, "pages"); err != nil {
		return nil, err
	}

	return stampOp(ctx, env, args, in, "numbered", func(ctx context.Context, out string) (*pdfops.StampResult, error) {
		return env.PDF.PageNumbers(ctx, in, out, opts)
	})
}

func stampOp(ctx context.Context, env *tools.Env, args map[string]any, in, suffix string,
	fn func(ctx context.Context, out string) (*pdfops.StampResult, error)) (*mcp.CallToolResult, error) {
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
		*pdfops.StampResult
	}{writeResult{out}, res})
}
