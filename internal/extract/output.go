package extract

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// WriteText renders an extraction result in the given format.
func WriteText(w io.Writer, res *TextResult, format Format, title string) error {
	switch format {
	case FormatText, "":
		_, err := io.WriteString(w, res.Text())
		return err
	case FormatMarkdown:
		return writeMarkdown(w, res, title)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Source string `json:"source,omitempty"`
			*TextResult
		}{Source: title, TextResult: res})
	case FormatDocx:
		return WriteDocx(w, res.Pages)
	default:
		return fmt.Errorf("unsupported text format %q", format)
	}
}

func writeMarkdown(w io.Writer, res *TextResult, title string) error {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	for _, p := range res.Pages {
		fmt.Fprintf(&b, "## Page %d\n\n", p.Page)
		if p.Text == "" {
			b.WriteString("*No text content found on this page*\n\n")
			continue
		}
		b.WriteString(p.Text)
		b.WriteString("\n\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteTextFile is WriteText to a new file at path.
func WriteTextFile(path string, res *TextResult, format Format, title string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := WriteText(f, res, format, title); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
