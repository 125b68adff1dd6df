package pdftools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/pdfmaster/internal/convert"
	"github.com/sammcj/pdfmaster/internal/tools"
)

// ToImagesTool renders pages to image files.
type ToImagesTool struct{}

func (t *ToImagesTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_to_images",
		mcp.WithDescription(`Render pages of a PDF to JPEG or PNG files, one per page. Needs pdftoppm on the PATH or a build with MuPDF support.`),
		filePathParam(),
		mcp.WithString("format",
			mcp.Description("Image format (default: jpg)"),
			mcp.Enum(string(convert.FormatJPEG), string(convert.FormatPNG)),
		),
		mcp.WithNumber("dpi",
			mcp.Description("Resolution in dots per inch (default: 300)"),
		),
		pagesParam("render"),
		mcp.WithString("output_dir",
			mcp.Description("Absolute directory for the images (defaults to a folder in the session output directory)"),
		),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *ToImagesTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	in, err := tools.File(args, "file_path", "pdf")
	if err != nil {
		return nil, err
	}
	format, err := convert.ParseImageFormat(tools.String(args, "format", ""))
	if err != nil {
		return nil, err
	}
	dpi, err := tools.Int(args, "dpi", convert.DefaultDPI)
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
	dir, err := env.OutputDirFor(explicit, in, string(format))
	if err != nil {
		return nil, err
	}

	res, err := env.Converter.ToImages(ctx, in, dir, format, dpi, sel)
	if err != nil {
		return nil, err
	}
	return tools.JSONResult(struct {
		OutputDir string `json:"output_dir"`
		*convert.ImagesResult
	}{dir, res})
}

// ImagesToPDFTool builds a PDF with one image per page.
type ImagesToPDFTool struct{}

func (t *ImagesToPDFTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"images_to_pdf",
		mcp.WithDescription("Combine images (JPEG, PNG, GIF, BMP, TIFF or WebP) into a PDF, one image per A4 page."),
		mcp.WithArray("file_paths",
			mcp.Required(),
			mcp.Description("Absolute paths of the images, in page order"),
			mcp.WithStringItems(),
		),
		mcp.WithString("orientation",
			mcp.Description("Page orientation; auto follows each image's aspect ratio (default: auto)"),
			mcp.Enum(string(convert.OrientationAuto), string(convert.OrientationPortrait), string(convert.OrientationLandscape)),
		),
		outputPathParam(),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

var imageExtensions = []string{"jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp"}

func (t *ImagesToPDFTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	images, err := tools.Files(args, "file_paths", imageExtensions...)
	if err != nil {
		return nil, err
	}
	orientation, err := convert.ParseOrientation(tools.String(args, "orientation", ""))
	if err != nil {
		return nil, err
	}
	first := "images"
	if len(images) > 0 {
		first = images[0]
	}
	explicit, err := tools.OptionalPath(args, "output_path")
	if err != nil {
		return nil, err
	}
	out, err := env.OutputPath(explicit, first, "converted", "pdf")
	if err != nil {
		return nil, err
	}

	res, err := env.Converter.ImagesToPDF(ctx, images, out, orientation)
	if err != nil {
		return nil, err
	}
	return tools.JSONResult(struct {
		writeResult
		*convert.PDFResult
	}{writeResult{out}, res})
}
