package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/tanya/internal/models"
	"go.etcd.io/bbolt"
)

var _ Store = (*BoltStore)(nil)

const (
	boltNamespacePrefix = "ns:"
	boltMetaBucket      = "meta"
	boltDimensionsKey   = "dimensions"
)

// boltRecord is the on-disk value for one chunk. Vector is little-endian float32.
type boltRecord struct {
	Text    string `json:"text"`
	PDFName string `json:"pdf_name"`
	Index   int    `json:"chunk_index"`
	Vector  []byte `json:"vector"`
}

// BoltStore is an embedded Store backed by a bbolt file. Each namespace is a top-level
// bucket, so deleting a namespace is a single DeleteBucket inside one transaction.
type BoltStore struct {
	db         *bbolt.DB
	dimensions int
}

// NewBoltStore opens (or creates) the store at path. The file remembers the dimension it was
// created with; reopening it with a different dimension fails with models.ErrDimensionMismatch.
func NewBoltStore(path string, dimensions int) (*BoltStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create vector store directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", models.ErrVectorStore, path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(boltMetaBucket))
		if err != nil {
			return err
		}
		stored := meta.Get([]byte(boltDimensionsKey))
		if stored == nil {
			return meta.Put([]byte(boltDimensionsKey), []byte(strconv.Itoa(dimensions)))
		}
		got, err := strconv.Atoi(string(stored))
		if err != nil {
			return fmt.Errorf("corrupt dimensions entry: %w", err)
		}
		if got != dimensions {
			return dimensionError(dimensions, got)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		if errors.Is(err, models.ErrDimensionMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: init %s: %v", models.ErrVectorStore, path, err)
	}
	return &BoltStore{db: db, dimensions: dimensions}, nil
}

// Type returns the store type identifier.
func (s *BoltStore) Type() string {
	return string(StoreTypeBolt)
}

func bucketName(namespace string) []byte {
	return []byte(boltNamespacePrefix + namespace)
}

// Upsert writes records under namespace in one transaction.
func (s *BoltStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	if err := checkDimensions(records, s.dimensions); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(namespace))
		if err != nil {
			return err
		}
		return putRecords(b, records)
	})
	if err != nil {
		return fmt.Errorf("%w: upsert into %s: %v", models.ErrVectorStore, namespace, err)
	}
	return nil
}

func putRecords(b *bbolt.Bucket, records []Record) error {
	for _, r := range records {
		data, err := json.Marshal(boltRecord{
			Text:    r.Chunk.Text,
			PDFName: r.Chunk.PDFName,
			Index:   r.Chunk.Index,
			Vector:  float32SliceToBytes(r.Vector),
		})
		if err != nil {
			return err
		}
		if err := b.Put([]byte(r.Chunk.ID), data); err != nil {
			return err
		}
	}
	return nil
}

// Query scans the namespace bucket and returns the topK chunks by cosine similarity.
func (s *BoltStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.Match, error) {
	if len(vector) != s.dimensions {
		return nil, dimensionError(len(vector), s.dimensions)
	}
	matches := []models.Match{}
	if topK <= 0 {
		return matches, nil
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(namespace))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode chunk %s: %w", k, err)
			}
			matches = append(matches, models.Match{
				ID:        string(k),
				Text:      rec.Text,
				PDFName:   rec.PDFName,
				Namespace: namespace,
				Score:     CosineSimilarity(vector, bytesToFloat32Slice(rec.Vector)),
			})
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: query %s: %v", models.ErrVectorStore, namespace, err)
	}
	return topMatches(matches, topK), nil
}

// ListNamespaces returns every namespace bucket, sorted.
func (s *BoltStore) ListNamespaces(ctx context.Context) ([]string, error) {
	names := []string{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			if ns, ok := strings.CutPrefix(string(name), boltNamespacePrefix); ok {
				names = append(names, ns)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list namespaces: %v", models.ErrVectorStore, err)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteNamespace drops the namespace bucket.
func (s *BoltStore) DeleteNamespace(ctx context.Context, namespace string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket(bucketName(namespace))
	})
	if errors.Is(err, bbolt.ErrBucketNotFound) {
		return fmt.Errorf("%w: %s", models.ErrNamespaceNotFound, namespace)
	}
	if err != nil {
		return fmt.Errorf("%w: delete namespace %s: %v", models.ErrVectorStore, namespace, err)
	}
	return nil
}

// DeleteDocument removes every chunk of pdfName from namespace. The namespace bucket is
// dropped once it holds nothing.
func (s *BoltStore) DeleteDocument(ctx context.Context, namespace, pdfName string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(namespace))
		if b == nil {
			return nil
		}
		if err := deleteDocument(b, pdfName); err != nil {
			return err
		}
		return dropIfEmpty(tx, b, namespace)
	})
	if err != nil {
		return fmt.Errorf("%w: delete document %s/%s: %v", models.ErrVectorStore, namespace, pdfName, err)
	}
	return nil
}

// ReplaceDocument deletes the chunks of pdfName and writes records in one transaction.
func (s *BoltStore) ReplaceDocument(ctx context.Context, namespace, pdfName string, records []Record) error {
	if err := checkDimensions(records, s.dimensions); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(namespace))
		if err != nil {
			return err
		}
		if err := deleteDocument(b, pdfName); err != nil {
			return err
		}
		if err := putRecords(b, records); err != nil {
			return err
		}
		return dropIfEmpty(tx, b, namespace)
	})
	if err != nil {
		return fmt.Errorf("%w: replace document %s/%s: %v", models.ErrVectorStore, namespace, pdfName, err)
	}
	return nil
}

func deleteDocument(b *bbolt.Bucket, pdfName string) error {
	var stale [][]byte
	err := b.ForEach(func(k, v []byte) error {
		var rec boltRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		if rec.PDFName == pdfName {
			stale = append(stale, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func dropIfEmpty(tx *bbolt.Tx, b *bbolt.Bucket, namespace string) error {
	if k, _ := b.Cursor().First(); k != nil {
		return nil
	}
	return tx.DeleteBucket(bucketName(namespace))
}

// Close closes the bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
