// Package extract provides per-page text extraction from document formats.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnsupported marks a document type that cannot be extracted. It is fatal
// to that single document's ingestion, never to the batch.
var ErrUnsupported = errors.New("unsupported document type")

// Page is one extracted unit of a document. Paginated formats (PDF) are
// 1-indexed; non-paginated formats yield a single implicit page 0.
// Text may be empty when extraction of that page failed; an empty page is not
// an error.
type Page struct {
	Number int
	Text   string
}

// Extractor extracts page text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether a file with extension ext (leading dot, any case)
// can be extracted.
func (e *Extractor) Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".doc", ".xlsx", ".txt", ".md":
		return true
	}
	return false
}

// Extract reads the file at path and returns its pages.
// PDF content is split per page; DOCX, XLSX and plain text yield a single
// implicit page numbered 0. Returns ErrUnsupported for unknown extensions.
func (e *Extractor) Extract(path string) ([]Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts pages from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) ([]Page, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx", ".doc":
		text, err := extractDOCX(content)
		if err != nil {
			return nil, err
		}
		return []Page{{Number: 0, Text: text}}, nil
	case ".xlsx":
		text, err := extractExcel(content)
		if err != nil {
			return nil, err
		}
		return []Page{{Number: 0, Text: text}}, nil
	case ".txt", ".md":
		return []Page{{Number: 0, Text: sanitizeUTF8(content)}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// sanitizeUTF8 returns content as a string, replacing invalid byte sequences
// with U+FFFD so downstream regexp work stays safe.
func sanitizeUTF8(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	return string(bytes.ToValidUTF8(content, []byte("�")))
}

// ExtractText returns the whole document as one string, pages joined with
// newlines. Used for free-text drafts where page boundaries do not matter.
func (e *Extractor) ExtractText(path string) (string, error) {
	pages, err := e.Extract(path)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n"), nil
}
