package vector

import (
	"fmt"

	"github.com/hyperjump/tanya/internal/config"
)

// StoreType names a vector store backend.
type StoreType string

const (
	// StoreTypeBolt keeps vectors in an embedded bbolt file. Default.
	StoreTypeBolt StoreType = "bolt"
	// StoreTypeQdrant uses a Qdrant server, one collection per namespace.
	StoreTypeQdrant StoreType = "qdrant"
	// StoreTypeMemory keeps everything in process memory. Lost on exit.
	StoreTypeMemory StoreType = "memory"
)

// NewStore creates the store selected by cfg.Vector.Type for vectors of the given dimension.
func NewStore(cfg *config.Config, dimensions int) (Store, error) {
	switch StoreType(cfg.Vector.Type) {
	case StoreTypeBolt, "":
		return NewBoltStore(cfg.Storage.VectorPath, dimensions)
	case StoreTypeQdrant:
		q := cfg.Vector.Qdrant
		return NewQdrantStore(q.URL, dimensions, QdrantOptions{
			APIKey:           q.APIKey(),
			CollectionPrefix: q.CollectionPrefix,
			Timeout:          q.Timeout,
		})
	case StoreTypeMemory:
		return NewMemoryStore(dimensions)
	default:
		return nil, fmt.Errorf("unknown vector store type: %s (supported: bolt, qdrant, memory)", cfg.Vector.Type)
	}
}
