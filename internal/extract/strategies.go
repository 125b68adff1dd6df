package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"
)

// PlainText reads text through ledongthuc/pdf's content interpreter, which decodes
// font encodings and ToUnicode maps.
type PlainText struct{}

func (PlainText) Name() string    { return "pdf" }
func (PlainText) Available() bool { return true }

func (PlainText) Extract(ctx context.Context, path string, pages []int) (texts []PageText, err error) {
	// the reader panics on malformed input
	defer func() {
		if r := recover(); r != nil {
			texts, err = nil, fmt.Errorf("pdf reader: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, n := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n > r.NumPage() {
			return nil, fmt.Errorf("page %d out of range", n)
		}
		page := r.Page(n)
		if page.V.IsNull() {
			texts = append(texts, PageText{Page: n})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		texts = append(texts, PageText{Page: n, Text: text})
	}
	return texts, nil
}

// ContentStream dumps each page's content stream with pdfcpu and recovers the
// strings shown by text operators. Dumps are written to a scratch directory under
// workDir.
type ContentStream struct {
	logger  *logrus.Logger
	workDir string
}

// NewContentStream returns a ContentStream that writes its dumps under workDir.
func NewContentStream(logger *logrus.Logger, workDir string) *ContentStream {
	return &ContentStream{logger: logger, workDir: workDir}
}

func (*ContentStream) Name() string    { return "pdfcpu" }
func (*ContentStream) Available() bool { return true }

func (c *ContentStream) Extract(ctx context.Context, path string, pages []int) ([]PageText, error) {
	if c.workDir == "" {
		return nil, errors.New("no work directory configured")
	}
	dir, err := os.MkdirTemp(c.workDir, "content-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil && c.logger != nil {
			c.logger.WithError(err).Warn("Failed to clean up work directory")
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	sel := make([]string, len(pages))
	for i, p := range pages {
		sel[i] = strconv.Itoa(p)
	}
	if err := api.ExtractContentFile(path, dir, sel, conf); err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	texts := make([]PageText, 0, len(pages))
	for _, n := range pages {
		matches, _ := filepath.Glob(filepath.Join(dir, fmt.Sprintf("*_Content_page_%d.txt", n)))
		if len(matches) == 0 {
			texts = append(texts, PageText{Page: n})
			continue
		}
		raw, err := os.ReadFile(matches[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read content for page %d: %w", n, err)
		}
		texts = append(texts, PageText{Page: n, Text: TextFromContent(string(raw))})
	}
	return texts, nil
}

// TextFromContent recovers readable text from a raw content stream.
func TextFromContent(content string) string {
	var shown []string
	for line := range strings.SplitSeq(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, "Tj") || strings.HasSuffix(line, "TJ") ||
			strings.HasSuffix(line, "'") || strings.HasSuffix(line, "\"") {
			shown = append(shown, operands(line)...)
		}
	}
	if len(shown) == 0 {
		return ""
	}
	return cleanup(strings.Join(shown, " "))
}

// operands returns the literal strings inside a text show operation.
func operands(op string) []string {
	var texts []string
	depth, start := 0, -1

	for i := 0; i < len(op); i++ {
		switch op[i] {
		case '\\':
			i++
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				if s := unescape(op[start:i]); strings.TrimSpace(s) != "" {
					texts = append(texts, s)
				}
				start = -1
			}
		}
	}
	return texts
}

// unescape resolves PDF literal string escapes, including octal codes.
func unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' || i+1 >= len(s) {
			b.WriteByte(ch)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b', 'f':
		case '(', ')', '\\':
			b.WriteByte(s[i])
		default:
			if isOctal(s[i]) {
				j := i
				for j < len(s) && j < i+3 && isOctal(s[j]) {
					j++
				}
				code, _ := strconv.ParseUint(s[i:j], 8, 8)
				b.WriteRune(latin1(byte(code)))
				i = j - 1
				continue
			}
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }

// latin1 maps a single-byte code to a printable rune, dropping control codes.
func latin1(c byte) rune {
	switch {
	case c == '\n' || c == '\r' || c == '\t':
		return rune(c)
	case c < 32 || c == 127:
		return ' '
	default:
		return rune(c)
	}
}

var controlRunes = []rune{'\u0000', '\u001f', '�'}

func cleanup(text string) string {
	text = strings.Map(func(r rune) rune {
		if slices.Contains(controlRunes, r) {
			return -1
		}
		if r < 32 && r != '\n' && r != '\t' {
			return ' '
		}
		return r
	}, text)

	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}
	for _, p := range []string{".", ",", "!", "?"} {
		text = strings.ReplaceAll(text, " "+p, p)
	}
	return strings.TrimSpace(text)
}
