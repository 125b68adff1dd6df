package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/pdfmaster/internal/registry"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sammcj/pdfmaster/internal/testutils"
	"github.com/sammcj/pdfmaster/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTool struct{}

func (echoTool) Definition() mcp.Tool {
	return mcp.NewTool("pdf_echo",
		mcp.WithDescription("Echo arguments\nSecond line"),
		mcp.WithString("file_path", mcp.Required(), mcp.Description("Input")),
		mcp.WithNumber("angle", mcp.Description("Degrees")),
		mcp.WithBoolean("use_ocr", mcp.Description("OCR")),
		mcp.WithArray("file_paths", mcp.WithStringItems()),
	)
}

func (echoTool) Execute(_ context.Context, _ *tools.Env, args map[string]any) (*mcp.CallToolResult, error) {
	if args["file_path"] == "fail" {
		return nil, response.BadRequest("bad input", nil)
	}
	return tools.JSONResult(args)
}

func TestMain(m *testing.M) {
	registry.Register(echoTool{})
	registry.Init(testutils.CreateTestLogger(), &tools.Env{}, nil)
	m.Run()
}

func TestParseArgs(t *testing.T) {
	def := echoTool{}.Definition()

	tests := []struct {
		name    string
		args    []string
		want    map[string]any
		wantErr bool
	}{
		{
			name: "flags",
			args: []string{"--file-path=/tmp/a.pdf", "--angle", "180", "--use-ocr"},
			want: map[string]any{"file_path": "/tmp/a.pdf", "angle": int64(180), "use_ocr": true},
		},
		{
			name: "json merges under flags",
			args: []string{"--angle=90", `{"angle": 270, "file_path": "/tmp/b.pdf"}`},
			want: map[string]any{"file_path": "/tmp/b.pdf", "angle": int64(90)},
		},
		{
			name: "comma separated array",
			args: []string{"--file-paths=/a.pdf,/b.pdf"},
			want: map[string]any{"file_paths": []string{"/a.pdf", "/b.pdf"}},
		},
		{name: "missing value", args: []string{"--file-path"}, wantErr: true},
		{name: "bare word", args: []string{"merge"}, wantErr: true},
		{name: "bad json", args: []string{"{nope"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args, def)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToFlagName(t *testing.T) {
	assert.Equal(t, "file-path", toFlagName("file_path"))
	assert.Equal(t, "page-count", toFlagName("pageCount"))
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, OutputJSON, f)

	f, err = ParseOutputFormat("")
	require.NoError(t, err)
	assert.Equal(t, OutputText, f)

	_, err = ParseOutputFormat("yaml")
	assert.Error(t, err)
}

func TestListTools(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRunner(OutputJSON).WithWriter(&buf).ListTools())

	var entries []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "pdf_echo", entries[0].Name)
	assert.Equal(t, "Echo arguments", entries[0].Description)
}

func TestHelpTool(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRunner(OutputText).WithWriter(&buf).HelpTool("pdf-echo"))
	assert.Contains(t, buf.String(), "--file-path")
	assert.Contains(t, buf.String(), "(required)")

	assert.Error(t, NewRunner(OutputText).WithWriter(&buf).HelpTool("nope"))
}

func TestRunTool(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(OutputText).WithWriter(&buf)

	require.NoError(t, r.RunTool(context.Background(), "pdf-echo", []string{"--file-path=/tmp/x.pdf", "--angle=90"}))
	var echoed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &echoed))
	assert.Equal(t, "/tmp/x.pdf", echoed["file_path"])
	assert.EqualValues(t, 90, echoed["angle"])

	buf.Reset()
	err := r.RunTool(context.Background(), "pdf_echo", []string{"--file-path=fail"})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "bad input")

	assert.Error(t, r.RunTool(context.Background(), "missing", nil))
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		raw  string
		typ  string
		want any
	}{
		{raw: "42", typ: "integer", want: int64(42)},
		{raw: "2.5", typ: "number", want: 2.5},
		{raw: "abc", typ: "number", want: "abc"},
		{raw: "yes", typ: "boolean", want: true},
		{raw: "false", typ: "boolean", want: false},
		{raw: `["a","b"]`, typ: "array", want: []any{"a", "b"}},
		{raw: `{"a":1}`, typ: "object", want: map[string]any{"a": float64(1)}},
		{raw: "plain", typ: "string", want: "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.typ+"/"+tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, coerce(tt.raw, tt.typ))
		})
	}
}

func TestHelpToolJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRunner(OutputJSON).WithWriter(&buf).HelpTool("pdf_echo"))

	var def map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &def))
	assert.Equal(t, "pdf_echo", def["name"])
}
