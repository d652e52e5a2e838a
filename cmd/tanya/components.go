package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/llm"
	"github.com/hyperjump/tanya/internal/metrics"
	"github.com/hyperjump/tanya/internal/search"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/vector"
	"github.com/hyperjump/tanya/internal/watcher"
	"go.uber.org/zap"
)

// Components holds every long-lived dependency built from the config.
type Components struct {
	Conversations storage.ConversationStore
	Embedder      embedding.Embedder
	Generator     llm.Generator
	VectorStore   vector.Store
	Metrics       *metrics.Metrics
	Engine        *search.Engine
	Indexer       *indexer.Indexer
}

func (c *Components) Close() {
	if c.Conversations != nil {
		_ = c.Conversations.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
	if c.VectorStore != nil {
		_ = c.VectorStore.Close()
	}
}

// initializeComponents wires the application. The generator needs an API key, so it is
// only built when withGenerator is set; commands that never answer questions skip it.
func initializeComponents(cfg *config.Config, logger *zap.Logger, withGenerator bool) (*Components, error) {
	c := &Components{Metrics: metrics.New()}

	conversations, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize conversation storage: %w", err)
	}
	c.Conversations = conversations

	c.Embedder, err = embedding.New(&cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	c.VectorStore, err = vector.NewStore(cfg, c.Embedder.Dimensions())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	logger.Info("vector store initialized",
		zap.String("type", c.VectorStore.Type()),
		zap.Int("dimensions", c.Embedder.Dimensions()),
	)

	if withGenerator {
		gen, err := llm.NewOpenAIGenerator(&cfg.Generation)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize generator: %w", err)
		}
		c.Generator = gen
	}

	c.Engine = search.NewEngine(c.VectorStore, c.Embedder, c.Generator, c.Conversations, &cfg.Retrieval,
		search.WithLogger(logger),
		search.WithMetrics(c.Metrics),
	)
	c.Indexer = indexer.NewIndexer(c.VectorStore, c.Embedder, extract.NewExtractor(), &cfg.Retrieval,
		indexer.WithLogger(logger),
		indexer.WithMetrics(c.Metrics),
	)
	return c, nil
}

// newInbox builds the inbox watcher for cfg, or returns nil when no inbox is configured.
func newInbox(cfg *config.Config, idx *indexer.Indexer, logger *zap.Logger) *watcher.Inbox {
	if cfg.Ingest.InboxDir == "" {
		return nil
	}
	ingest := func(ctx context.Context, namespace, path string) error {
		res, err := idx.IngestFile(ctx, namespace, path)
		if err != nil {
			return err
		}
		logger.Info("inbox file ingested",
			zap.String("namespace", namespace),
			zap.String("path", path),
			zap.Int("stored", len(res.Stored)),
		)
		return nil
	}
	return watcher.NewInbox(cfg.Ingest.InboxDir, cfg.Ingest.ProcessedDir, cfg.Ingest.Extensions, ingest,
		watcher.WithLogger(logger))
}
