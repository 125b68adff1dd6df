package storage

import (
	"github.com/h2non/filetype"
)

// sniffLen covers the longest signature filetype inspects.
const sniffLen = 8192

var (
	imageExts  = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true, "bmp": true, "tif": true, "tiff": true, "webp": true}
	ooxmlExts  = map[string]bool{"docx": true, "xlsx": true, "pptx": true}
	legacyExts = map[string]bool{"doc": true, "xls": true, "ppt": true}
)

// ContentMatches reports whether the leading bytes of a file agree with its extension.
// Formats without a reliable signature (html, txt) always match.
func ContentMatches(ext string, head []byte) bool {
	switch {
	case ext == "pdf":
		return filetype.IsExtension(head, "pdf")
	case imageExts[ext]:
		return filetype.IsImage(head)
	case ooxmlExts[ext]:
		kind, _ := filetype.Match(head)
		return ooxmlExts[kind.Extension] || kind.Extension == "zip"
	case legacyExts[ext]:
		kind, _ := filetype.Match(head)
		return kind == filetype.Unknown || legacyExts[kind.Extension] || filetype.IsDocument(head)
	default:
		return true
	}
}

// DetectMIME returns the sniffed MIME type of head, or "application/octet-stream".
func DetectMIME(head []byte) string {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}
