// Package extract turns documents on disk into raw text for fusion.
package extract

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Defaults for the extractor.
const (
	DefaultMaxPages = 3
	DefaultMaxBytes = 1 << 20
)

// ErrUnsupported means the extension has no extractor.
var ErrUnsupported = errors.New("unsupported document type")

// Extractor reads PDF and plain-text documents.
type Extractor struct {
	MaxPages int   // PDF pages to read
	MaxBytes int64 // cap for plain-text files
}

// New returns an Extractor with default limits.
func New() *Extractor {
	return &Extractor{MaxPages: DefaultMaxPages, MaxBytes: DefaultMaxBytes}
}

// Supported reports whether the extension (with dot) can be extracted.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

// Extract returns the text of the document at path.
func (e *Extractor) Extract(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return e.pdfText(path)
	case ".txt", ".md":
		return e.plainText(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
}

func (e *Extractor) plainText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	limit := e.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

// pdfText reads the first pages of a PDF. The pdf package panics on some
// malformed inputs, so panics become errors.
func (e *Extractor) pdfText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parsing %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	maxPages := e.MaxPages
	if maxPages <= 0 || maxPages > r.NumPage() {
		maxPages = r.NumPage()
	}

	var builder strings.Builder
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(pageText)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}
