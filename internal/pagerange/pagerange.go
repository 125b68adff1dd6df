// Package pagerange parses compact page-range strings such as "1,3,5-7" into
// normalised page sets.
package pagerange

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var (
	// ErrInvalid is wrapped by every parse failure.
	ErrInvalid = errors.New("invalid page range")
	// ErrOutOfRange is returned when a selection names a page the document does not have.
	ErrOutOfRange = errors.New("page out of range")
)

// Selection is the parsed form of a page-range string. When All is set Pages is nil
// and callers resolve the selection against the document's page count.
type Selection struct {
	All   bool
	Pages []int
}

// AllPages returns the selection meaning "every page".
func AllPages() Selection {
	return Selection{All: true}
}

// Parse converts a page-range string into a sorted, duplicate-free selection.
// Empty input and "all" select every page.
func Parse(s string) (Selection, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return AllPages(), nil
	}

	pages, err := parseTokens(s)
	if err != nil {
		return Selection{}, err
	}

	slices.Sort(pages)
	return Selection{Pages: slices.Compact(pages)}, nil
}

// ParseOrder parses a page list keeping the caller's order and any repeats.
// It is used where the sequence itself is the instruction, e.g. "3,1,2".
func ParseOrder(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty page order", ErrInvalid)
	}
	return parseTokens(s)
}

func parseTokens(s string) ([]int, error) {
	var pages []int
	for token := range strings.SplitSeq(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, fmt.Errorf("%w: empty token in %q", ErrInvalid, s)
		}

		if !strings.Contains(token, "-") {
			page, err := parsePage(token)
			if err != nil {
				return nil, err
			}
			pages = append(pages, page)
			continue
		}

		bounds := strings.Split(token, "-")
		if len(bounds) != 2 {
			return nil, fmt.Errorf("%w: malformed range %q", ErrInvalid, token)
		}
		start, err := parsePage(bounds[0])
		if err != nil {
			return nil, err
		}
		end, err := parsePage(bounds[1])
		if err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("%w: range %q starts after it ends", ErrInvalid, token)
		}
		for p := start; p <= end; p++ {
			pages = append(pages, p)
		}
	}
	return pages, nil
}

func parsePage(token string) (int, error) {
	token = strings.TrimSpace(token)
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a page number", ErrInvalid, token)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: page numbers start at 1, got %d", ErrInvalid, n)
	}
	return n, nil
}

// Resolve expands the selection against a document with pageCount pages.
func (s Selection) Resolve(pageCount int) ([]int, error) {
	if s.All {
		pages := make([]int, pageCount)
		for i := range pageCount {
			pages[i] = i + 1
		}
		return pages, nil
	}
	if err := CheckBounds(s.Pages, pageCount); err != nil {
		return nil, err
	}
	return slices.Clone(s.Pages), nil
}

// CheckBounds reports the first page greater than pageCount.
func CheckBounds(pages []int, pageCount int) error {
	for _, p := range pages {
		if p > pageCount {
			return fmt.Errorf("%w: page %d requested but document has %d pages", ErrOutOfRange, p, pageCount)
		}
	}
	return nil
}

// Strings returns the selection in the form pdfcpu expects for selectedPages.
// A nil slice means every page.
func (s Selection) Strings() []string {
	if s.All {
		return nil
	}
	return []string{Format(s.Pages)}
}

// String renders the selection back into range syntax.
func (s Selection) String() string {
	if s.All {
		return "all"
	}
	return Format(s.Pages)
}

// Format compacts a sorted page list into range syntax, e.g. [1 2 3 5] -> "1-3,5".
func Format(pages []int) string {
	if len(pages) == 0 {
		return ""
	}

	var b strings.Builder
	start, prev := pages[0], pages[0]
	flush := func() {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if start == prev {
			b.WriteString(strconv.Itoa(start))
		} else {
			fmt.Fprintf(&b, "%d-%d", start, prev)
		}
	}

	for _, p := range pages[1:] {
		if p == prev+1 {
			prev = p
			continue
		}
		flush()
		start, prev = p, p
	}
	flush()

	return b.String()
}
