// Package vector provides namespace-partitioned vector stores and federated search across them.
package vector

import (
	"context"

	"github.com/hyperjump/tanya/internal/models"
)

// Record is a chunk with its embedding, ready to be upserted.
type Record struct {
	Chunk  models.Chunk
	Vector []float32
}

// Store is a namespace-partitioned vector store.
//
// Upsert is idempotent on chunk id within a namespace. Query returns at most topK
// matches ordered by descending similarity, each tagged with the namespace it came
// from; querying a namespace that does not exist yields no matches. DeleteNamespace
// removes everything in the namespace in one step or not at all. ReplaceDocument swaps
// a document's chunks for records and leaves the previous version in place when it fails.
// A namespace exists while it holds at least one chunk: deleting its last document
// removes it from ListNamespaces.
type Store interface {
	Upsert(ctx context.Context, namespace string, records []Record) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.Match, error)
	ListNamespaces(ctx context.Context) ([]string, error)
	DeleteNamespace(ctx context.Context, namespace string) error
	DeleteDocument(ctx context.Context, namespace, pdfName string) error
	ReplaceDocument(ctx context.Context, namespace, pdfName string, records []Record) error
	Type() string
	Close() error
}

func checkDimensions(records []Record, dims int) error {
	for _, r := range records {
		if len(r.Vector) != dims {
			return dimensionError(len(r.Vector), dims)
		}
	}
	return nil
}
