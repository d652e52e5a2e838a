package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/fileid"
	"github.com/hyperjump/tanya/internal/metrics"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/vector"
	"github.com/hyperjump/tanya/pkg/utils"
	"go.uber.org/zap"
)

// Indexer ingests documents: extract, chunk, embed and upsert into the vector store.
type Indexer struct {
	store     vector.Store
	embedder  embedding.Embedder
	extractor *extract.Extractor
	chunker   *Chunker
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for ingestion events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithMetrics records per-file outcomes on m.
func WithMetrics(m *metrics.Metrics) IndexerOption {
	return func(idx *Indexer) { idx.metrics = m }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	store vector.Store,
	embedder embedding.Embedder,
	extractor *extract.Extractor,
	cfg *config.RetrievalConfig,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IngestBatch ingests files into namespace. Files are processed one at a time and
// independently: a file that fails is reported as skipped and the batch continues.
// The batch fails with models.ErrIngestFailed only when no file was stored; the
// returned result is populated in that case too.
func (idx *Indexer) IngestBatch(ctx context.Context, namespace string, files []models.UploadedFile) (*models.IngestResult, error) {
	if err := models.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", models.ErrValidation)
	}

	start := time.Now()
	result := &models.IngestResult{
		Namespace: namespace,
		Stored:    []models.FileResult{},
		Skipped:   []models.FileResult{},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fr, err := idx.ingestOne(ctx, namespace, f)
		if err != nil {
			idx.logger.Warn("skipping file",
				zap.String("namespace", namespace),
				zap.String("file", f.Name),
				zap.String("reason", fr.Reason),
				zap.Error(err),
			)
			result.Skipped = append(result.Skipped, fr)
			idx.metrics.ObserveIngestFile(false, 0)
			continue
		}
		idx.logger.Info("file ingested",
			zap.String("namespace", namespace),
			zap.String("pdf_name", fr.PDFName),
			zap.Int("chunks", fr.Chunks),
		)
		result.Stored = append(result.Stored, fr)
		idx.metrics.ObserveIngestFile(true, fr.Chunks)
	}
	result.Duration = time.Since(start)

	if len(result.Stored) == 0 {
		return result, fmt.Errorf("%w: %d file(s) skipped", models.ErrIngestFailed, len(result.Skipped))
	}
	return result, nil
}

// ingestOne runs the pipeline for a single file. On error the FileResult carries the skip reason.
func (idx *Indexer) ingestOne(ctx context.Context, namespace string, f models.UploadedFile) (models.FileResult, error) {
	fr := models.FileResult{File: f.Name, PDFName: fileid.PDFName(f.Name)}
	if !idx.extractor.Supported(f.Name) {
		fr.Reason = models.ReasonUnsupported
		return fr, fmt.Errorf("%w: unsupported file %s", models.ErrExtraction, f.Name)
	}

	text, err := idx.extractor.ExtractBytes(f.Content, f.Name)
	if err != nil {
		fr.Reason = models.ReasonExtractionFailed
		return fr, err
	}
	text = Preprocess(text)
	idx.logger.Debug("extracted text",
		zap.String("file", f.Name),
		zap.Int("chars", len(text)),
		zap.String("preview", utils.Truncate(text, 200)),
	)

	chunks := idx.chunker.Chunk(namespace, fr.PDFName, text)
	if len(chunks) == 0 {
		fr.Reason = models.ReasonNoText
		return fr, fmt.Errorf("%w: %s has no extractable text", models.ErrExtraction, f.Name)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		fr.Reason = models.ReasonEmbeddingFailed
		return fr, err
	}
	if len(vectors) != len(chunks) {
		fr.Reason = models.ReasonEmbeddingFailed
		return fr, fmt.Errorf("%w: got %d embeddings for %d chunks", models.ErrEmbeddingService, len(vectors), len(chunks))
	}
	dims := idx.embedder.Dimensions()
	records := make([]vector.Record, len(chunks))
	for i := range chunks {
		if len(vectors[i]) != dims {
			fr.Reason = models.ReasonEmbeddingFailed
			return fr, fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				models.ErrDimensionMismatch, i, len(vectors[i]), dims)
		}
		records[i] = vector.Record{Chunk: chunks[i], Vector: vectors[i]}
	}

	if err := idx.store.ReplaceDocument(ctx, namespace, fr.PDFName, records); err != nil {
		fr.Reason = models.ReasonStorageFailed
		return fr, err
	}
	fr.Chunks = len(chunks)
	return fr, nil
}

// IngestFile reads the file at path and ingests it into namespace.
func (idx *Indexer) IngestFile(ctx context.Context, namespace, path string) (*models.IngestResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", models.ErrValidation, path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return idx.IngestBatch(ctx, namespace, []models.UploadedFile{{Name: filepath.Base(path), Content: content}})
}

// IngestPaths ingests every regular file named by paths into namespace as one batch.
// Directories are walked recursively; only files whose extension is in allowedExts
// (all supported files when empty) are picked up from directories.
func (idx *Indexer) IngestPaths(ctx context.Context, namespace string, paths []string, allowedExts []string) (*models.IngestResult, error) {
	var files []models.UploadedFile
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			content, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", p, err)
			}
			files = append(files, models.UploadedFile{Name: filepath.Base(p), Content: content})
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
				return nil
			}
			if len(allowedExts) == 0 && !idx.extractor.Supported(path) {
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			files = append(files, models.UploadedFile{Name: filepath.Base(path), Content: content})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no matching files found", models.ErrValidation)
	}
	return idx.IngestBatch(ctx, namespace, files)
}

// IsIngestFailure reports whether err means nothing from a batch was stored.
func IsIngestFailure(err error) bool {
	return errors.Is(err, models.ErrIngestFailed)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
