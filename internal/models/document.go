// Package models defines core data structures for chunks, matches, questions, answers and conversation turns.
package models

import "time"

// GlobalNamespace is the reserved partition holding global-mode conversation turns.
// It never contains chunks and is never a federated search target.
const GlobalNamespace = "GLOBAL"

// Chunk is a contiguous window of a document's extracted text.
type Chunk struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	PDFName   string `json:"pdf_name"`
	Namespace string `json:"namespace"`
	Index     int    `json:"chunk_index"`
}

// Match is a chunk returned by a vector query together with its similarity score.
type Match struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	PDFName   string  `json:"pdf_name"`
	Namespace string  `json:"namespace"`
	Score     float64 `json:"score"`
}

// UploadedFile is a document submitted for ingestion.
type UploadedFile struct {
	Name    string
	Content []byte
}

// FileResult reports the outcome for one file of an ingest batch.
type FileResult struct {
	File    string `json:"file"`
	PDFName string `json:"pdf_name,omitempty"`
	Chunks  int    `json:"chunks,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// IngestResult summarizes a batch ingest.
type IngestResult struct {
	Namespace string        `json:"namespace"`
	Stored    []FileResult  `json:"stored"`
	Skipped   []FileResult  `json:"skipped"`
	Duration  time.Duration `json:"-"`
}

// Reasons recorded for skipped files.
const (
	ReasonNoText           = "no extractable text"
	ReasonExtractionFailed = "extraction failed"
	ReasonEmbeddingFailed  = "embedding failed"
	ReasonStorageFailed    = "storage failed"
	ReasonUnsupported      = "unsupported file type"
)
