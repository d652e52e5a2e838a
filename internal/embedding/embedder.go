// Package embedding provides text embedding clients and caching.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/tanya/internal/config"
	"go.uber.org/zap"
)

// Embedder produces vector embeddings for text.
// Service failures wrap models.ErrEmbeddingService.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Close() error
}

// New builds the embedder selected by cfg.Provider, wrapped in an LRU cache when cfg.CacheSize > 0.
func New(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var base Embedder
	switch cfg.Provider {
	case "mock":
		base = NewMockEmbedder(cfg.Dimensions)
	case "openai":
		e, err := NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey(),
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		base = e
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if logger != nil {
		logger.Info("embedder ready",
			zap.String("provider", cfg.Provider),
			zap.String("model", base.ModelName()),
			zap.Int("dimensions", base.Dimensions()),
		)
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(base, cfg.CacheSize), nil
	}
	return base, nil
}
