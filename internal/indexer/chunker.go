// Package indexer provides document chunking and ingestion.
package indexer

import (
	"strings"

	"github.com/hyperjump/tanya/internal/fileid"
	"github.com/hyperjump/tanya/internal/models"
)

// Chunker splits text into overlapping fixed-size character windows.
// Sizes are counted in runes so a multi-byte character is never cut.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// An overlap that is not smaller than the size is clamped to size-1.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Split returns the non-empty windows of text in order.
// Empty or whitespace-only input yields an empty slice.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	out := []string{}
	if strings.TrimSpace(text) == "" {
		return out
	}
	step := c.chunkSize - c.chunkOverlap
	for i := 0; i < len(runes); i += step {
		end := i + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if window := strings.TrimSpace(string(runes[i:end])); window != "" {
			out = append(out, window)
		}
		if end >= len(runes) {
			break
		}
	}
	return out
}

// Chunk splits text into chunks of pdfName with deterministic ids.
func (c *Chunker) Chunk(namespace, pdfName, text string) []models.Chunk {
	windows := c.Split(text)
	chunks := make([]models.Chunk, 0, len(windows))
	for i, w := range windows {
		chunks = append(chunks, models.Chunk{
			ID:        fileid.ChunkID(pdfName, i),
			Text:      w,
			PDFName:   pdfName,
			Namespace: namespace,
			Index:     i,
		})
	}
	return chunks
}
