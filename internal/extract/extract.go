// Package extract pulls plain text out of PDF documents with MuPDF.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

var (
	ErrIO           = errors.New("pdf input unreadable")
	ErrParseFailure = errors.New("pdf parse failure")
	ErrNoText       = errors.New("pdf contains no extractable text")
)

// pdfMagic is the signature every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// LooksLikePDF reports whether content starts with the PDF signature.
func LooksLikePDF(content []byte) bool {
	return bytes.HasPrefix(content, pdfMagic)
}

// Extractor reads the text layer of a PDF held in memory. It is safe for
// concurrent use; every call opens its own document.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// ExtractText returns the text of every page in order, pages separated by a
// newline. Scanned documents without a text layer yield ErrNoText.
func (e *Extractor) ExtractText(ctx context.Context, source []byte) (string, error) {
	if len(source) == 0 {
		return "", fmt.Errorf("%w: empty document", ErrIO)
	}

	doc, err := fitz.NewFromMemory(source)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrParseFailure, err)
	}
	defer doc.Close()

	var b strings.Builder
	for page := 0; page < doc.NumPage(); page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(page)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %w", ErrParseFailure, page+1, err)
		}
		b.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			b.WriteByte('\n')
		}
	}

	out := b.String()
	if strings.TrimSpace(out) == "" {
		return "", ErrNoText
	}
	return out, nil
}
