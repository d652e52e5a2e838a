package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/tanya/internal/models"
)

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	chunk  models.Chunk
	vector []float32
	seq    int
}

// MemoryStore is an in-memory Store using brute-force cosine search.
// Suitable for tests and throwaway deployments; nothing is persisted.
type MemoryStore struct {
	dimensions int
	namespaces map[string]map[string]*memoryEntry
	seq        int
	mu         sync.RWMutex
}

// NewMemoryStore creates an in-memory store for vectors of the given dimension.
func NewMemoryStore(dimensions int) (*MemoryStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryStore{
		dimensions: dimensions,
		namespaces: make(map[string]map[string]*memoryEntry),
	}, nil
}

// Type returns the store type identifier.
func (m *MemoryStore) Type() string {
	return string(StoreTypeMemory)
}

// Upsert stores records under namespace, replacing any with the same chunk id.
func (m *MemoryStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	if err := checkDimensions(records, m.dimensions); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(namespace, records)
	return nil
}

func (m *MemoryStore) putLocked(namespace string, records []Record) {
	if len(records) == 0 {
		return
	}
	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]*memoryEntry)
		m.namespaces[namespace] = ns
	}
	for _, r := range records {
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		chunk := r.Chunk
		chunk.Namespace = namespace
		seq := m.seq
		if existing, ok := ns[chunk.ID]; ok {
			seq = existing.seq
		} else {
			m.seq++
		}
		ns[chunk.ID] = &memoryEntry{chunk: chunk, vector: vec, seq: seq}
	}
}

// Query returns the topK most similar chunks in namespace.
func (m *MemoryStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.Match, error) {
	if len(vector) != m.dimensions {
		return nil, dimensionError(len(vector), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns := m.namespaces[namespace]
	if topK <= 0 || len(ns) == 0 {
		return []models.Match{}, nil
	}
	entries := make([]*memoryEntry, 0, len(ns))
	for _, e := range ns {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	matches := make([]models.Match, 0, len(entries))
	for _, e := range entries {
		matches = append(matches, models.Match{
			ID:        e.chunk.ID,
			Text:      e.chunk.Text,
			PDFName:   e.chunk.PDFName,
			Namespace: namespace,
			Score:     CosineSimilarity(vector, e.vector),
		})
	}
	return topMatches(matches, topK), nil
}

// ListNamespaces returns the namespaces holding at least one chunk, sorted.
func (m *MemoryStore) ListNamespaces(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.namespaces))
	for name, ns := range m.namespaces {
		if len(ns) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// DeleteNamespace drops the namespace and all its chunks.
func (m *MemoryStore) DeleteNamespace(ctx context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.namespaces[namespace]; !ok {
		return fmt.Errorf("%w: %s", models.ErrNamespaceNotFound, namespace)
	}
	delete(m.namespaces, namespace)
	return nil
}

// DeleteDocument removes every chunk of pdfName from namespace.
func (m *MemoryStore) DeleteDocument(ctx context.Context, namespace, pdfName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(namespace, pdfName)
	if len(m.namespaces[namespace]) == 0 {
		delete(m.namespaces, namespace)
	}
	return nil
}

// ReplaceDocument swaps the chunks of pdfName for records under one lock.
func (m *MemoryStore) ReplaceDocument(ctx context.Context, namespace, pdfName string, records []Record) error {
	if err := checkDimensions(records, m.dimensions); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(namespace, pdfName)
	m.putLocked(namespace, records)
	if len(m.namespaces[namespace]) == 0 {
		delete(m.namespaces, namespace)
	}
	return nil
}

func (m *MemoryStore) deleteLocked(namespace, pdfName string) {
	for id, e := range m.namespaces[namespace] {
		if e.chunk.PDFName == pdfName {
			delete(m.namespaces[namespace], id)
		}
	}
}

// Size returns the number of chunks across all namespaces.
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, ns := range m.namespaces {
		n += len(ns)
	}
	return n
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}
