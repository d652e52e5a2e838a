// Package fileid derives deterministic identifiers for documents and chunks.
package fileid

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// pointSpace namespaces the UUIDv5 point ids handed to external vector stores.
var pointSpace = uuid.MustParse("6f1c2a4e-5b7d-4c1e-9a3f-2d8e7b6c5a41")

// PDFName returns the document name for an uploaded or watched file: the base name without extension.
func PDFName(filename string) string {
	base := filepath.Base(filepath.Clean(filename))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ChunkID returns the id of the index-th chunk of pdfName.
// Re-ingesting the same document yields the same ids, so upserts overwrite.
func ChunkID(pdfName string, index int) string {
	return fmt.Sprintf("%s-chunk-%d", pdfName, index)
}

// PointID maps a chunk id in a namespace to a stable UUID, for stores that only accept UUID or integer keys.
func PointID(namespace, chunkID string) string {
	return uuid.NewSHA1(pointSpace, []byte(namespace+"/"+chunkID)).String()
}
