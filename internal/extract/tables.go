package extract

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/sammcj/pdfmaster/internal/pagerange"
	"github.com/sammcj/pdfmaster/internal/response"
	"github.com/xuri/excelize/v2"
)

const (
	// approxCharWidth estimates glyph advance in points when the parser reports none.
	approxCharWidth = 5.0
	// cellGap is the horizontal gap, in points, that separates two cells.
	cellGap = 12.0
	// minTableRows is the smallest run of multi-cell rows treated as a table.
	minTableRows = 2
)

const (
	TableStrategyPositioned = "positioned"
	TableStrategyText       = "text"
)

var columnSeparator = regexp.MustCompile(`\t+| {2,}`)

// Table is a detected grid of cells.
type Table struct {
	Page int        `json:"page"`
	Rows [][]string `json:"rows"`
}

// Columns returns the width of the widest row.
func (t Table) Columns() int {
	n := 0
	for _, r := range t.Rows {
		n = max(n, len(r))
	}
	return n
}

// TablesResult lists the tables found in a document.
type TablesResult struct {
	Strategy  string  `json:"strategy"`
	PageCount int     `json:"page_count"`
	Tables    []Table `json:"tables"`
}

// Tables detects tables on the selected pages. Positioned text is tried first; when
// it yields nothing the plain text chain is split on runs of whitespace.
func (e *Extractor) Tables(ctx context.Context, path string, sel pagerange.Selection) (*TablesResult, error) {
	pages, count, err := resolve(path, sel)
	if err != nil {
		return nil, err
	}
	result := &TablesResult{PageCount: count, Strategy: TableStrategyPositioned}

	rows, err := positionedRows(ctx, path, pages)
	if err != nil {
		e.logger.WithError(err).Debug("Positioned text unavailable, falling back to plain text")
	}
	for _, p := range pages {
		result.Tables = append(result.Tables, DetectTables(p, rows[p])...)
	}
	if len(result.Tables) > 0 {
		return result, nil
	}

	text, err := e.Text(ctx, path, TextOptions{Pages: sel})
	if err != nil {
		return nil, err
	}
	result.Strategy = TableStrategyText
	for _, p := range text.Pages {
		result.Tables = append(result.Tables, DetectTables(p.Page, SplitTextRows(p.Text))...)
	}
	return result, nil
}

// positionedRows groups each page's text runs into rows of cells by position.
func positionedRows(ctx context.Context, path string, pages []int) (out map[int][][]string, err error) {
	out = make(map[int][][]string, len(pages))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return out, err
	}
	defer func() { _ = f.Close() }()

	for _, n := range pages {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return out, fmt.Errorf("page %d: %w", n, err)
		}
		for _, row := range rows {
			out[n] = append(out[n], CellsFromTexts(row.Content))
		}
	}
	return out, nil
}

// CellsFromTexts merges horizontally adjacent runs of a row into cells. Runs are
// expected in left to right order.
func CellsFromTexts(texts []pdf.Text) []string {
	var cells []string
	var cur strings.Builder
	end := 0.0

	for i, t := range texts {
		s := strings.TrimSpace(t.S)
		width := t.W
		if width <= 0 {
			width = float64(utf8.RuneCountInString(t.S)) * approxCharWidth
		}
		if i > 0 && t.X-end > cellGap {
			cells = appendCell(cells, cur.String())
			cur.Reset()
		}
		if s != "" {
			if cur.Len() > 0 && t.X-end > approxCharWidth/2 {
				cur.WriteByte(' ')
			}
			cur.WriteString(s)
		}
		end = t.X + width
	}
	return appendCell(cells, cur.String())
}

func appendCell(cells []string, s string) []string {
	if s = strings.TrimSpace(s); s == "" {
		return cells
	}
	return append(cells, s)
}

// SplitTextRows splits plain text into rows, using tabs or runs of two or more
// spaces as column separators.
func SplitTextRows(text string) [][]string {
	var rows [][]string
	for line := range strings.SplitSeq(text, "\n") {
		var cells []string
		for _, c := range columnSeparator.Split(strings.TrimSpace(line), -1) {
			cells = appendCell(cells, c)
		}
		rows = append(rows, cells)
	}
	return rows
}

// DetectTables returns every run of at least two consecutive rows that each have
// two or more cells.
func DetectTables(page int, rows [][]string) []Table {
	var tables []Table
	var run [][]string

	flush := func() {
		if len(run) >= minTableRows {
			tables = append(tables, Table{Page: page, Rows: run})
		}
		run = nil
	}
	for _, r := range rows {
		if len(r) >= 2 {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()
	return tables
}

// TableFormat is an output format for tables.
type TableFormat string

const (
	TableMarkdown TableFormat = "markdown"
	TableText     TableFormat = "text"
	TableCSV      TableFormat = "csv"
	TableJSON     TableFormat = "json"
	TableXLSX     TableFormat = "xlsx"
)

// ParseTableFormat validates a table output format. Empty means markdown.
func ParseTableFormat(s string) (TableFormat, error) {
	switch f := TableFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "md":
		return TableMarkdown, nil
	case "txt":
		return TableText, nil
	case TableMarkdown, TableText, TableCSV, TableJSON, TableXLSX:
		return f, nil
	default:
		return "", response.BadRequest(fmt.Sprintf("unsupported table format %q", s), nil)
	}
}

// Extension returns the file extension used for the format.
func (f TableFormat) Extension() string {
	switch f {
	case TableMarkdown:
		return "md"
	case TableText:
		return "txt"
	default:
		return string(f)
	}
}

// WriteTables renders tables in the given format.
func WriteTables(w io.Writer, tables []Table, format TableFormat) error {
	switch format {
	case TableMarkdown, "":
		return writeMarkdownTables(w, tables)
	case TableText:
		return writeTextTables(w, tables)
	case TableCSV:
		return writeCSVTables(w, tables)
	case TableJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tables)
	case TableXLSX:
		return writeXLSXTables(w, tables)
	default:
		return fmt.Errorf("unsupported table format %q", format)
	}
}

func padded(row []string, cols int) []string {
	out := make([]string, cols)
	copy(out, row)
	return out
}

func writeMarkdownTables(w io.Writer, tables []Table) error {
	var b strings.Builder
	for i, t := range tables {
		cols := t.Columns()
		fmt.Fprintf(&b, "### Table %d (page %d)\n\n", i+1, t.Page)
		for j, row := range t.Rows {
			cells := padded(row, cols)
			for k, c := range cells {
				cells[k] = strings.ReplaceAll(c, "|", `\|`)
			}
			b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
			if j == 0 {
				b.WriteString("|" + strings.Repeat(" --- |", cols) + "\n")
			}
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeTextTables(w io.Writer, tables []Table) error {
	for i, t := range tables {
		if _, err := fmt.Fprintf(w, "Table %d (page %d)\n", i+1, t.Page); err != nil {
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, row := range t.Rows {
			fmt.Fprintln(tw, strings.Join(padded(row, t.Columns()), "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

func writeCSVTables(w io.Writer, tables []Table) error {
	cw := csv.NewWriter(w)
	for i, t := range tables {
		if i > 0 {
			if err := cw.Write([]string{}); err != nil {
				return err
			}
		}
		for _, row := range t.Rows {
			if err := cw.Write(padded(row, t.Columns())); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSXTables(w io.Writer, tables []Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, t := range tables {
		sheet := fmt.Sprintf("Table %d", i+1)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", sheet, err)
		}

		for r, row := range t.Rows {
			for c, value := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(sheet, cell, value); err != nil {
					return err
				}
			}
		}
	}

	_, err := f.WriteTo(w)
	return err
}
