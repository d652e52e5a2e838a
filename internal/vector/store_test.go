package vector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/tanya/internal/fileid"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(pdf string, idx int, text string, vec ...float32) Record {
	return Record{
		Chunk:  models.Chunk{ID: fileid.ChunkID(pdf, idx), Text: text, PDFName: pdf, Index: idx},
		Vector: vec,
	}
}

// storeContract exercises the behaviour every Store implementation must share.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("upsert and query ranks by similarity", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, "A", []Record{
			rec("doc", 0, "east", 1, 0, 0),
			rec("doc", 1, "north-east", 0.9, 0.1, 0),
			rec("doc", 2, "north", 0, 1, 0),
		}))
		matches, err := s.Query(ctx, "A", []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "east", matches[0].Text)
		assert.Equal(t, "north-east", matches[1].Text)
		for _, m := range matches {
			assert.Equal(t, "A", m.Namespace)
			assert.Equal(t, "doc", m.PDFName)
		}
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	})

	t.Run("upsert is idempotent on chunk id", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, "A", []Record{rec("doc", 0, "v1", 1, 0, 0)}))
		require.NoError(t, s.Upsert(ctx, "A", []Record{rec("doc", 0, "v2", 1, 0, 0)}))
		matches, err := s.Query(ctx, "A", []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "v2", matches[0].Text)
	})

	t.Run("namespaces are isolated and listed", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, "B", []Record{rec("x", 0, "in B", 1, 0, 0)}))
		require.NoError(t, s.Upsert(ctx, "A", []Record{rec("x", 0, "in A", 1, 0, 0)}))
		names, err := s.ListNamespaces(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, names)

		matches, err := s.Query(ctx, "A", []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "in A", matches[0].Text)
	})

	t.Run("unknown namespace yields no matches", func(t *testing.T) {
		s := newStore(t)
		matches, err := s.Query(ctx, "missing", []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("delete namespace removes everything", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, "A", []Record{rec("x", 0, "a", 1, 0, 0), rec("y", 0, "b", 0, 1, 0)}))
		require.NoError(t, s.DeleteNamespace(ctx, "A"))
		matches, err := s.Query(ctx, "A", []float32{1, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, matches)
		names, err := s.ListNamespaces(ctx)
		require.NoError(t, err)
		assert.NotContains(t, names, "A")
		assert.True(t, errors.Is(s.DeleteNamespace(ctx, "A"), models.ErrNamespaceNotFound))
	})

	t.Run("delete document keeps other documents", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, "A", []Record{
			rec("old", 0, "o0", 1, 0, 0),
			rec("old", 1, "o1", 1, 0, 0),
			rec("keep", 0, "k0", 1, 0, 0),
		}))
		require.NoError(t, s.DeleteDocument(ctx, "A", "old"))
		matches, err := s.Query(ctx, "A", []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "keep", matches[0].PDFName)
	})

	t.Run("deleting the last document drops the namespace", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, "A", []Record{rec("only", 0, "o0", 1, 0, 0)}))
		require.NoError(t, s.Upsert(ctx, "B", []Record{rec("other", 0, "b0", 1, 0, 0)}))
		require.NoError(t, s.DeleteDocument(ctx, "A", "only"))
		names, err := s.ListNamespaces(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"B"}, names)
		assert.ErrorIs(t, s.DeleteNamespace(ctx, "A"), models.ErrNamespaceNotFound)
	})

	t.Run("replace document swaps chunks", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, "A", []Record{
			rec("doc", 0, "old0", 1, 0, 0),
			rec("doc", 1, "old1", 1, 0, 0),
			rec("doc", 2, "old2", 1, 0, 0),
			rec("keep", 0, "k0", 1, 0, 0),
		}))
		require.NoError(t, s.ReplaceDocument(ctx, "A", "doc", []Record{rec("doc", 0, "new0", 1, 0, 0)}))
		matches, err := s.Query(ctx, "A", []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		texts := make([]string, 0, len(matches))
		for _, m := range matches {
			texts = append(texts, m.Text)
		}
		assert.ElementsMatch(t, []string{"new0", "k0"}, texts)
	})

	t.Run("replace into a new namespace creates it", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.ReplaceDocument(ctx, "fresh", "doc", []Record{rec("doc", 0, "n0", 1, 0, 0)}))
		names, err := s.ListNamespaces(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"fresh"}, names)
	})

	t.Run("failed replace keeps previous version", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, "A", []Record{rec("doc", 0, "old0", 1, 0, 0), rec("doc", 1, "old1", 1, 0, 0)}))
		err := s.ReplaceDocument(ctx, "A", "doc", []Record{rec("doc", 0, "bad", 1, 0)})
		assert.ErrorIs(t, err, models.ErrDimensionMismatch)
		matches, err := s.Query(ctx, "A", []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("dimension mismatch is rejected", func(t *testing.T) {
		s := newStore(t)
		err := s.Upsert(ctx, "A", []Record{rec("x", 0, "bad", 1, 0)})
		assert.ErrorIs(t, err, models.ErrDimensionMismatch)
		_, err = s.Query(ctx, "A", []float32{1, 0, 0, 0}, 1)
		assert.ErrorIs(t, err, models.ErrDimensionMismatch)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		s, err := NewMemoryStore(3)
		require.NoError(t, err)
		return s
	})
}

func TestBoltStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		s, err := NewBoltStore(filepath.Join(t.TempDir(), "vectors", "chunks.bolt"), 3)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBoltStore_reopenKeepsDataAndDimension(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chunks.bolt")
	s, err := NewBoltStore(path, 3)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, "A", []Record{rec("x", 0, "persisted", 1, 0, 0)}))
	require.NoError(t, s.Close())

	_, err = NewBoltStore(path, 4)
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)

	s, err = NewBoltStore(path, 3)
	require.NoError(t, err)
	defer s.Close()
	matches, err := s.Query(ctx, "A", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "persisted", matches[0].Text)
}

func TestNewMemoryStore_invalidDimensions(t *testing.T) {
	_, err := NewMemoryStore(0)
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 0}))
}

func TestTopMatches_stableTies(t *testing.T) {
	in := []models.Match{{ID: "a", Score: 0.5}, {ID: "b", Score: 0.9}, {ID: "c", Score: 0.5}}
	out := topMatches(in, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Len(t, topMatches(out, 1), 1)
}
