// Package extract provides text extraction from uploaded documents.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/tanya/internal/models"
)

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether filename has an extension the extractor handles.
func (e *Extractor) Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read file: %v", models.ErrExtraction, err)
	}
	return e.ExtractBytes(content, filepath.Base(path))
}

// ExtractBytes extracts text from content, choosing the format from filename's extension.
// Failures wrap models.ErrExtraction.
func (e *Extractor) ExtractBytes(content []byte, filename string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".pdf":
		text, err := extractPDF(content)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", models.ErrExtraction, filename, err)
		}
		return text, nil
	case ".txt", ".md":
		return extractPlain(content)
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", models.ErrExtraction, ext)
	}
}
