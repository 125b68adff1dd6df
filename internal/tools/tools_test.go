package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int
		wantErr bool
	}{
		{"absent", nil, 7, false},
		{"json number", float64(90), 90, false},
		{"fraction", 1.5, 0, true},
		{"string", " 12 ", 12, false},
		{"empty string", "", 7, false},
		{"bad string", "twelve", 0, true},
		{"bool", true, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]any{}
			if tt.value != nil {
				args["n"] = tt.value
			}
			got, err := Int(args, "n", 7)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, response.KindBadRequest, response.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFloatAndBool(t *testing.T) {
	f, err := Float(map[string]any{"o": "0.25"}, "o", 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, f, 1e-9)

	_, err = Float(map[string]any{"o": "lots"}, "o", 1)
	assert.Error(t, err)

	assert.True(t, Bool(map[string]any{"b": "true"}, "b", false))
	assert.False(t, Bool(map[string]any{"b": false}, "b", true))
	assert.True(t, Bool(map[string]any{"b": "maybe"}, "b", true))
}

func TestPages(t *testing.T) {
	sel, err := Pages(map[string]any{}, "pages")
	require.NoError(t, err)
	assert.True(t, sel.All)

	sel, err = Pages(map[string]any{"pages": "3,1-2"}, "pages")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, sel.Pages)

	_, err = Pages(map[string]any{"pages": "0"}, "pages")
	assert.Equal(t, response.KindBadRequest, response.KindOf(err))
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.PDF")
	require.NoError(t, os.WriteFile(a, []byte("%PDF"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("%PDF"), 0o600))

	tests := []struct {
		name    string
		value   any
		want    []string
		wantErr bool
		kind    response.Kind
	}{
		{"array", []any{a, b}, []string{a, b}, false, 0},
		{"comma separated", a + ", " + b, []string{a, b}, false, 0},
		{"string slice", []string{b}, []string{b}, false, 0},
		{"relative", []any{"a.pdf"}, nil, true, response.KindBadRequest},
		{"missing", []any{filepath.Join(dir, "c.pdf")}, nil, true, response.KindNotFound},
		{"wrong extension", []any{filepath.Join(dir, "c.txt")}, nil, true, response.KindBadRequest},
		{"directory", []any{dir + "/"}, nil, true, response.KindBadRequest},
		{"not a list", 42, nil, true, response.KindBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Files(map[string]any{"files": tt.value}, "files", "pdf")
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.kind, response.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutputPath(t *testing.T) {
	env := &Env{OutputDir: filepath.Join(t.TempDir(), "out")}

	got, err := env.OutputPath("", "/docs/report.pdf", "rotated", "pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.OutputDir, "report_rotated.pdf"), got)
	assert.DirExists(t, env.OutputDir)

	explicit := filepath.Join(t.TempDir(), "deep", "x.pdf")
	got, err = env.OutputPath(explicit, "/docs/report.pdf", "rotated", "pdf")
	require.NoError(t, err)
	assert.Equal(t, explicit, got)
	assert.DirExists(t, filepath.Dir(explicit))

	_, err = (&Env{}).OutputPath("", "/docs/report.pdf", "rotated", "pdf")
	assert.Error(t, err)

	dir, err := env.OutputDirFor("", "/docs/report.pdf", "split")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.OutputDir, "report_split"), dir)
}

func TestJSONResult(t *testing.T) {
	res, err := JSONResult(map[string]int{"pages": 3})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	assert.False(t, res.IsError)
}
