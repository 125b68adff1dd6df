package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/pdfmaster/internal/convert"
	"github.com/sammcj/pdfmaster/internal/extract"
	"github.com/sammcj/pdfmaster/internal/pdfops"
	"github.com/sirupsen/logrus"
)

// Tool is the interface that all MCP tool implementations must satisfy
type Tool interface {
	// Definition returns the tool's definition for MCP registration
	Definition() mcp.Tool

	// Execute runs the tool against the shared collaborators in env with parsed arguments
	Execute(ctx context.Context, env *Env, args map[string]any) (*mcp.CallToolResult, error)
}

// Env holds the collaborators shared by every tool invocation.
type Env struct {
	Logger    *logrus.Logger
	PDF       *pdfops.Processor
	Extractor *extract.Extractor
	Converter *convert.Converter

	// OutputDir receives outputs when a call names no output_path or output_dir.
	OutputDir string
}

// OutputPath returns explicit when set, otherwise a file in the default output
// directory named after input with suffix and ext, e.g. report_rotated.pdf.
func (e *Env) OutputPath(explicit, input, suffix, ext string) (string, error) {
	if explicit != "" {
		if err := os.MkdirAll(filepath.Dir(explicit), 0o700); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
		return explicit, nil
	}
	if e.OutputDir == "" {
		return "", fmt.Errorf("output_path is required when no default output directory is configured")
	}
	if err := os.MkdirAll(e.OutputDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(e.OutputDir, fmt.Sprintf("%s_%s.%s", base, suffix, ext)), nil
}

// OutputDirFor returns explicit when set, otherwise a fresh directory for input
// below the default output directory.
func (e *Env) OutputDirFor(explicit, input, suffix string) (string, error) {
	dir := explicit
	if dir == "" {
		if e.OutputDir == "" {
			return "", fmt.Errorf("output_dir is required when no default output directory is configured")
		}
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		dir = filepath.Join(e.OutputDir, base+"_"+suffix)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return dir, nil
}

// JSONResult renders data as an indented JSON text result.
func JSONResult(data any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// ExtendedHelpProvider is an optional interface that tools can implement to provide
// detailed usage information, examples, and troubleshooting help
type ExtendedHelpProvider interface {
	ProvideExtendedInfo() *ExtendedHelp
}

// ExtendedHelp contains detailed information about a tool's usage
type ExtendedHelp struct {
	Examples         []ToolExample        `json:"examples,omitempty"`
	CommonPatterns   []string             `json:"common_patterns,omitempty"`
	Troubleshooting  []TroubleshootingTip `json:"troubleshooting,omitempty"`
	ParameterDetails map[string]string    `json:"parameter_details,omitempty"`
	WhenToUse        string               `json:"when_to_use,omitempty"`
	WhenNotToUse     string               `json:"when_not_to_use,omitempty"`
}

// ToolExample represents a usage example for a tool
type ToolExample struct {
	Description    string         `json:"description"`
	Arguments      map[string]any `json:"arguments"`
	ExpectedResult string         `json:"expected_result,omitempty"`
}

// TroubleshootingTip represents a troubleshooting tip for a tool
type TroubleshootingTip struct {
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
}
