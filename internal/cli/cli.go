// Package cli runs the PDF tools straight from the terminal, bypassing both the
// HTTP server and MCP. Tools are invoked in-process through the registry.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/pdfmaster/internal/registry"
	"github.com/sammcj/pdfmaster/internal/telemetry"
	"github.com/sammcj/pdfmaster/internal/tools"
)

// OutputFormat controls how tool results are rendered.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates the --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

var (
	heading = color.New(color.FgCyan, color.Bold)
	dim     = color.New(color.Faint)
)

// Runner executes CLI commands against the tool registry.
type Runner struct {
	out    io.Writer
	output OutputFormat
}

// NewRunner creates a Runner writing to stdout in the given format.
func NewRunner(output OutputFormat) *Runner {
	return &Runner{out: os.Stdout, output: output}
}

// WithWriter redirects output to w.
func (r *Runner) WithWriter(w io.Writer) *Runner {
	r.out = w
	return r
}

type toolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListTools prints the enabled tools, one per line.
func (r *Runner) ListTools() error {
	names := registry.GetEnabledToolNames()
	summaries := make([]toolSummary, 0, len(names))
	for _, name := range names {
		tool, ok := registry.GetTool(name)
		if !ok {
			continue
		}
		summaries = append(summaries, toolSummary{Name: name, Description: summary(tool.Definition().Description)})
	}

	if r.output == OutputJSON {
		return r.json(summaries)
	}

	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\n", s.Name, s.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if detailed := registry.GetToolNamesWithExtendedHelp(); len(detailed) > 0 {
		dim.Fprintf(r.out, "\nExamples and troubleshooting: %s\n", strings.Join(detailed, ", "))
		dim.Fprintln(r.out, "Run 'pdfmaster tools help <tool>' for details.")
	}
	return nil
}

// HelpTool prints the flags a tool accepts, followed by any extended help.
func (r *Runner) HelpTool(name string) error {
	tool, err := lookup(name)
	if err != nil {
		return err
	}
	def := tool.Definition()
	if r.output == OutputJSON {
		return r.json(def)
	}

	heading.Fprintf(r.out, "%s\n", def.Name)
	if def.Description != "" {
		fmt.Fprintf(r.out, "%s\n", def.Description)
	}

	props := def.InputSchema.Properties
	if len(props) == 0 {
		fmt.Fprintln(r.out, "\nNo parameters.")
	} else {
		heading.Fprintln(r.out, "\nFlags:")
		tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
		for _, pname := range sortedKeys(props) {
			prop, _ := props[pname].(map[string]any)
			typ, _ := prop["type"].(string)
			desc, _ := prop["description"].(string)
			line := summary(desc)
			if slices.Contains(def.InputSchema.Required, pname) {
				line += " (required)"
			}
			if values := enumValues(prop); values != "" {
				line += " [" + values + "]"
			}
			fmt.Fprintf(tw, "  --%s\t%s\t%s\n", toFlagName(pname), typ, line)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if p, ok := tool.(tools.ExtendedHelpProvider); ok {
		r.extendedHelp(p.ProvideExtendedInfo())
	}
	return nil
}

func (r *Runner) extendedHelp(help *tools.ExtendedHelp) {
	if help == nil {
		return
	}
	if help.WhenToUse != "" {
		heading.Fprintln(r.out, "\nWhen to use:")
		fmt.Fprintf(r.out, "  %s\n", help.WhenToUse)
	}
	if len(help.Examples) > 0 {
		heading.Fprintln(r.out, "\nExamples:")
		for _, ex := range help.Examples {
			args, err := json.Marshal(ex.Arguments)
			if err != nil {
				continue
			}
			fmt.Fprintf(r.out, "  %s\n", ex.Description)
			dim.Fprintf(r.out, "    %s\n", args)
		}
	}
	if len(help.Troubleshooting) > 0 {
		heading.Fprintln(r.out, "\nTroubleshooting:")
		for _, tip := range help.Troubleshooting {
			fmt.Fprintf(r.out, "  %s\n    %s\n", tip.Problem, tip.Solution)
		}
	}
}

// RunTool executes a tool. args are --key=value flags, bare boolean flags or a JSON
// object; flags override keys from the object.
func (r *Runner) RunTool(ctx context.Context, name string, args []string) error {
	tool, err := lookup(name)
	if err != nil {
		return fmt.Errorf("%w (run 'pdfmaster tools list' to see available tools)", err)
	}
	def := tool.Definition()

	params, err := parseArgs(args, def)
	if err != nil {
		return fmt.Errorf("argument error: %w", err)
	}

	result, err := registry.Execute(ctx, def.Name, params, telemetry.TransportCLI)
	if err != nil {
		return fmt.Errorf("%s failed: %w", def.Name, err)
	}
	return r.render(result)
}

func (r *Runner) render(result *mcp.CallToolResult) error {
	if result == nil {
		return nil
	}

	if r.output == OutputJSON {
		if err := r.json(result); err != nil {
			return err
		}
	} else {
		for _, c := range result.Content {
			if text, ok := c.(mcp.TextContent); ok {
				fmt.Fprintln(r.out, text.Text)
				continue
			}
			if err := r.json(c); err != nil {
				return err
			}
		}
	}

	if result.IsError {
		return fmt.Errorf("tool reported an error")
	}
	return nil
}

func (r *Runner) json(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// lookup finds an enabled tool, accepting kebab-case for snake_case names.
func lookup(name string) (tools.Tool, error) {
	for _, candidate := range []string{name, strings.ReplaceAll(name, "-", "_")} {
		if tool, ok := registry.GetTool(candidate); ok {
			return tool, nil
		}
	}
	return nil, fmt.Errorf("unknown tool: %s", name)
}

func summary(desc string) string {
	first, _, _ := strings.Cut(desc, "\n")
	return strings.TrimSpace(first)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func enumValues(prop map[string]any) string {
	values, ok := prop["enum"].([]any)
	if !ok {
		if strs, ok := prop["enum"].([]string); ok {
			return strings.Join(strs, "|")
		}
		return ""
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "|")
}
