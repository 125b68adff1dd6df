// Package imports pulls in every tool package so their init functions register
// with the registry. Binaries that expose tools import this package for side effects.
package imports

import (
	_ "github.com/sammcj/pdfmaster/internal/tools/pdftools"
)
