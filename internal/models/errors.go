package models

import "errors"

// Error kinds. Adapters wrap these with %w so callers can classify failures with errors.Is.
var (
	ErrValidation        = errors.New("invalid request")
	ErrExtraction        = errors.New("text extraction failed")
	ErrEmbeddingService  = errors.New("embedding service error")
	ErrGeneration        = errors.New("generation service error")
	ErrVectorStore       = errors.New("vector store error")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrNoEvidence        = errors.New("no evidence found")
	ErrNamespaceNotFound = errors.New("namespace not found")

	// Orchestrator and ingestion outcomes.
	ErrRetrievalFailed  = errors.New("retrieval failed")
	ErrGenerationFailed = errors.New("generation failed")
	ErrIngestFailed     = errors.New("no documents could be ingested")
)

// UserMessage maps an error to the message shown to API and CLI users.
// Validation errors are echoed; everything else gets a generic retry hint.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrNamespaceNotFound):
		return "Namespace not found."
	case errors.Is(err, ErrIngestFailed):
		return "None of the uploaded files could be processed. Please check the files and try again."
	default:
		return "Failed to process the request. Please try again."
	}
}
