package pdftools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/pdfmaster/internal/pdfops"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sammcj/pdfmaster/internal/tools"
)

// CompressTool shrinks a PDF without ever growing it.
type CompressTool struct{}

func (t *CompressTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_compress",
		mcp.WithDescription(`Compress a PDF. Every available strategy is tried and the smallest result kept; the output is never larger than the input.`),
		filePathParam(),
		mcp.WithString("quality",
			mcp.Description("Compression quality; lower means smaller files (default: medium)"),
			mcp.Enum(string(pdfops.QualityLow), string(pdfops.QualityMedium), string(pdfops.QualityHigh)),
		),
		mcp.WithNumber("target_reduction",
			mcp.Description("Desired size reduction in percent, 0-99. Picks a quality when none is given"),
		),
		outputPathParam(),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *CompressTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	in, err := tools.File(args, "file_path", "pdf")
	if err != nil {
		return nil, err
	}

	var opts pdfops.CompressOptions
	if opts.Quality, err = pdfops.ParseQuality(tools.String(args, "quality", "")); err != nil {
		return nil, err
	}
	if opts.TargetReduction, err = tools.Float(args, "target_reduction", 0); err != nil {
		return nil, err
	}
	if opts.TargetReduction < 0 || opts.TargetReduction >= 100 {
		return nil, response.BadRequest("target_reduction must be between 0 and 100", nil)
	}
	if opts.TargetReduction > 0 && tools.String(args, "quality", "") == "" {
		opts.Quality = pdfops.QualityForTarget(opts.TargetReduction)
	}

	explicit, err := tools.OptionalPath(args, "output_path")
	if err != nil {
		return nil, err
	}
	out, err := env.OutputPath(explicit, in, "compressed", "pdf")
	if err != nil {
		return nil, err
	}

	res, err := env.PDF.Compress(ctx, in, out, opts)
	if err != nil {
		return nil, err
	}
	return tools.JSONResult(struct {
		writeResult
		*pdfops.CompressResult
	}{writeResult{out}, res})
}

// ProtectTool encrypts a PDF with a password.
type ProtectTool struct{}

func (t *ProtectTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_protect",
		mcp.WithDescription("Encrypt a PDF with AES-256 so it needs a password to open."),
		filePathParam(),
		mcp.WithString("password",
			mcp.Required(),
			mcp.Description("Password required to open the output"),
		),
		outputPathParam(),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *ProtectTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	return securityOp(ctx, env, args, "protected", env.PDF.Protect)
}

// UnlockTool removes encryption from a PDF.
type UnlockTool struct{}

func (t *UnlockTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"pdf_unlock",
		mcp.WithDescription("Remove password protection from a PDF given its password."),
		filePathParam(),
		mcp.WithString("password",
			mcp.Required(),
			mcp.Description("Current password of the document"),
		),
		outputPathParam(),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *UnlockTool) Execute(ctx context.Context, env *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	return securityOp(ctx, env, args, "unlocked", env.PDF.Unlock)
}

// securityOp reads the password verbatim; surrounding spaces are significant.
func securityOp(ctx context.Context, env *tools.Env, args map[string]any, suffix string,
	fn func(ctx context.Context, in, out, password string) error) (*mcp.CallToolResult, error) {
	password, _ := args["password"].(string)
	if password == "" {
		return nil, response.BadRequest("Password is required", nil)
	}
	in, err := tools.File(args, "file_path", "pdf")
	if err != nil {
		return nil, err
	}
	explicit, err := tools.OptionalPath(args, "output_path")
	if err != nil {
		return nil, err
	}
	out, err := env.OutputPath(explicit, in, suffix, "pdf")
	if err != nil {
		return nil, err
	}
	if err := fn(ctx, in, out, password); err != nil {
		return nil, err
	}
	return tools.JSONResult(writeResult{out})
}
