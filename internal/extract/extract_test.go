package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/sammcj/pdfmaster/internal/config"
	"github.com/sammcj/pdfmaster/internal/pagerange"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/sammcj/pdfmaster/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeStrategy struct {
	name  string
	text  string
	err   error
	calls *int
}

func (f fakeStrategy) Name() string    { return f.name }
func (f fakeStrategy) Available() bool { return true }
func (f fakeStrategy) Extract(_ context.Context, _ string, pages []int) ([]PageText, error) {
	if f.calls != nil {
		*f.calls++
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]PageText, len(pages))
	for i, p := range pages {
		out[i] = PageText{Page: p, Text: f.text}
	}
	return out, nil
}

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	return New(testutils.CreateTestLogger(), config.Default().Tools, t.TempDir(), nil)
}

func TestTextChain(t *testing.T) {
	in := testutils.CreatePDF(t, t.TempDir(), 2)
	calls := 0

	e := newExtractor(t).WithStrategies(nil,
		fakeStrategy{name: "broken", err: errors.New("boom")},
		fakeStrategy{name: "blank", text: "   "},
		fakeStrategy{name: "good", text: "Café au lait"},
		fakeStrategy{name: "unused", text: "never", calls: &calls},
	)

	res, err := e.Text(context.Background(), in, TextOptions{Pages: pagerange.AllPages(), UseOCR: true})
	require.NoError(t, err)
	assert.Equal(t, "good", res.Strategy)
	assert.Equal(t, 2, res.PageCount)
	require.Len(t, res.Pages, 2)
	assert.Equal(t, "Café au lait", res.Pages[0].Text)
	assert.Equal(t, 12, res.Pages[0].Chars)
	assert.Equal(t, 6, res.WordCount)
	assert.Equal(t, 26, res.FullTextLength)
	assert.NotEmpty(t, res.Warnings)
	assert.Zero(t, calls)
}

func TestTextNoStrategyFindsText(t *testing.T) {
	in := testutils.CreatePDF(t, t.TempDir(), 1)

	res, err := newExtractor(t).Text(context.Background(), in, TextOptions{Pages: pagerange.AllPages()})
	require.NoError(t, err)
	assert.Equal(t, StrategyNone, res.Strategy)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, 0, res.FullTextLength)
}

func TestTextOutOfRange(t *testing.T) {
	in := testutils.CreatePDF(t, t.TempDir(), 1)
	sel, err := pagerange.Parse("2")
	require.NoError(t, err)

	_, err = newExtractor(t).Text(context.Background(), in, TextOptions{Pages: sel})
	assert.Equal(t, response.KindBadRequest, response.KindOf(err))
}

func TestStrategies(t *testing.T) {
	names := newExtractor(t).Strategies()
	assert.Contains(t, names, "pdf")
	assert.Contains(t, names, "pdfcpu")
}

func TestTextFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "simple", content: "BT\n/F1 12 Tf\n(Hello World) Tj\nET", want: "Hello World"},
		{name: "array", content: "[(Hel) -20 (lo)] TJ", want: "Hel lo"},
		{name: "escaped parens", content: `(a \(b\) c) Tj`, want: "a (b) c"},
		{name: "octal", content: `(caf\351) Tj`, want: "café"},
		{name: "punctuation", content: "(Hello) Tj\n(, world) Tj\n(.) Tj", want: "Hello, world."},
		{name: "no text", content: "q 1 0 0 1 0 0 cm Q", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TextFromContent(tt.content))
		})
	}
}

func TestContentStreamStaysInWorkDir(t *testing.T) {
	in := testutils.CreatePDF(t, t.TempDir(), 2)
	work := t.TempDir()
	t.Setenv("TMPDIR", filepath.Join(work, "missing"))

	texts, err := NewContentStream(testutils.CreateTestLogger(), work).Extract(context.Background(), in, []int{1, 2})
	require.NoError(t, err)
	require.Len(t, texts, 2)
	assert.Equal(t, 2, texts[1].Page)

	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory should be removed")

	_, err = NewContentStream(testutils.CreateTestLogger(), "").Extract(context.Background(), in, []int{1})
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	text, cut := Preview("hello", 10)
	assert.Equal(t, "hello", text)
	assert.False(t, cut)

	text, cut = Preview("héllo wörld", 4)
	assert.Equal(t, "héll", text)
	assert.True(t, cut)

	long := strings.Repeat("a", PreviewLimit+10)
	text, cut = Preview(long, PreviewLimit)
	assert.Len(t, text, PreviewLimit)
	assert.True(t, cut)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "TXT", want: FormatText},
		{in: "markdown", want: FormatMarkdown},
		{in: "docx", want: FormatDocx},
		{in: "json", want: FormatJSON},
		{in: "pdf", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestWriteText(t *testing.T) {
	res := &TextResult{Pages: []PageText{{Page: 1, Text: "one"}, {Page: 2}}}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, res, FormatText, ""))
	assert.Equal(t, "one\n\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteText(&buf, res, FormatMarkdown, "report.pdf"))
	assert.Contains(t, buf.String(), "# report.pdf")
	assert.Contains(t, buf.String(), "## Page 1\n\none")
	assert.Contains(t, buf.String(), "*No text content found on this page*")

	buf.Reset()
	require.NoError(t, WriteText(&buf, res, FormatJSON, "report.pdf"))
	assert.Contains(t, buf.String(), `"source": "report.pdf"`)
	assert.Contains(t, buf.String(), `"pages"`)
}

func readZipEntry(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer func() { _ = rc.Close() }()
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(b)
		}
	}
	t.Fatalf("entry %s not found", name)
	return ""
}

func TestWriteDocx(t *testing.T) {
	var buf bytes.Buffer
	pages := []PageText{
		{Page: 1, Text: "first line\nR&D <draft>"},
		{Page: 2, Text: "second page"},
	}
	require.NoError(t, WriteDocx(&buf, pages))

	assert.Contains(t, readZipEntry(t, buf.Bytes(), "[Content_Types].xml"), "wordprocessingml.document.main+xml")
	assert.Contains(t, readZipEntry(t, buf.Bytes(), "_rels/.rels"), "word/document.xml")

	doc := readZipEntry(t, buf.Bytes(), "word/document.xml")
	assert.Contains(t, doc, ">first line<")
	assert.Contains(t, doc, "R&amp;D &lt;draft&gt;")
	assert.Equal(t, 1, strings.Count(doc, `w:type="page"`))
	assert.Contains(t, doc, ">second page<")
}

func TestCellsFromTexts(t *testing.T) {
	row := []pdf.Text{
		{X: 10, S: "Name"},
		{X: 100, S: "Qty"},
		{X: 160, S: "Unit"},
		{X: 185, S: "price"},
	}
	assert.Equal(t, []string{"Name", "Qty", "Unit price"}, CellsFromTexts(row))
	assert.Empty(t, CellsFromTexts(nil))
}

func TestSplitTextRows(t *testing.T) {
	rows := SplitTextRows("Item    Qty\tPrice\nsingle cell\n\napple  3  1.20")
	assert.Equal(t, [][]string{
		{"Item", "Qty", "Price"},
		{"single cell"},
		nil,
		{"apple", "3", "1.20"},
	}, rows)
}

func TestDetectTables(t *testing.T) {
	rows := [][]string{
		{"heading"},
		{"a", "b"},
		{"1", "2"},
		{"footer"},
		{"lonely", "row"},
		nil,
		{"x", "y", "z"},
		{"1", "2"},
		{"3", "4", "5"},
	}
	tables := DetectTables(3, rows)
	require.Len(t, tables, 2)
	assert.Equal(t, 3, tables[0].Page)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}}, tables[0].Rows)
	assert.Len(t, tables[1].Rows, 3)
	assert.Equal(t, 3, tables[1].Columns())
}

func TestParseTableFormat(t *testing.T) {
	f, err := ParseTableFormat("")
	require.NoError(t, err)
	assert.Equal(t, TableMarkdown, f)
	assert.Equal(t, "md", f.Extension())

	f, err = ParseTableFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, "xlsx", f.Extension())

	_, err = ParseTableFormat("html")
	assert.Error(t, err)
}

var sampleTables = []Table{
	{Page: 1, Rows: [][]string{{"Item", "Qty"}, {"apple", "3"}, {"pear|green"}}},
	{Page: 2, Rows: [][]string{{"a", "b", "c"}, {"1", "2", "3"}}},
}

func TestWriteTablesMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTables(&buf, sampleTables, TableMarkdown))
	out := buf.String()
	assert.Contains(t, out, "### Table 1 (page 1)")
	assert.Contains(t, out, "| Item | Qty |\n| --- | --- |\n| apple | 3 |\n| pear\\|green |  |")
	assert.Contains(t, out, "### Table 2 (page 2)")
}

func TestWriteTablesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTables(&buf, sampleTables, TableCSV))
	assert.Equal(t, "Item,Qty\napple,3\npear|green,\n\na,b,c\n1,2,3\n", buf.String())
}

func TestWriteTablesText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTables(&buf, sampleTables[:1], TableText))
	assert.Contains(t, buf.String(), "Table 1 (page 1)\nItem        Qty\napple       3")
}

func TestWriteTablesXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTables(&buf, sampleTables, TableXLSX))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"Table 1", "Table 2"}, f.GetSheetList())
	rows, err := f.GetRows("Table 2")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"1", "2", "3"}}, rows)
}

func TestTablesOnImageOnlyPDF(t *testing.T) {
	in := testutils.CreatePDF(t, t.TempDir(), 1)
	res, err := newExtractor(t).Tables(context.Background(), in, pagerange.AllPages())
	require.NoError(t, err)
	assert.Equal(t, TableStrategyText, res.Strategy)
	assert.Empty(t, res.Tables)
}
