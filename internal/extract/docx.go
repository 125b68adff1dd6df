package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const (
	docxHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	docxFooter    = `<w:sectPr/></w:body></w:document>`
	docxPageBreak = `<w:p><w:r><w:br w:type="page"/></w:r></w:p>`
)

// WriteDocx writes pages as a Word document: one paragraph per line and a page
// break between pages.
func WriteDocx(w io.Writer, pages []PageText) error {
	zw := zip.NewWriter(w)

	parts := []struct {
		name string
		body func(io.Writer) error
	}{
		{"[Content_Types].xml", constant(docxContentTypes)},
		{"_rels/.rels", constant(docxRels)},
		{"word/document.xml", func(w io.Writer) error { return writeDocumentXML(w, pages) }},
	}

	for _, p := range parts {
		fw, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("create %s: %w", p.name, err)
		}
		if err := p.body(fw); err != nil {
			return fmt.Errorf("write %s: %w", p.name, err)
		}
	}
	return zw.Close()
}

func constant(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func writeDocumentXML(w io.Writer, pages []PageText) error {
	var b bytes.Buffer
	b.WriteString(docxHeader)

	for i, page := range pages {
		if i > 0 {
			b.WriteString(docxPageBreak)
		}
		for line := range strings.SplitSeq(page.Text, "\n") {
			b.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
			if err := xml.EscapeText(&b, []byte(strings.TrimRight(line, "\r"))); err != nil {
				return err
			}
			b.WriteString(`</w:t></w:r></w:p>`)
		}
	}

	b.WriteString(docxFooter)
	_, err := b.WriteTo(w)
	return err
}
