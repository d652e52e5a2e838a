package config

import "time"

const defaultChunkOverlap = 100

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Retrieval.ChunkOverlap = defaultChunkOverlap
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any zero values in cfg.
// Zero is a valid chunk overlap, so the overlap default only comes from Default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120 * time.Second
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{"http://localhost:4200"}
	}

	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/tanya/data/db/conversations.db"
	}
	if cfg.Storage.VectorPath == "" {
		cfg.Storage.VectorPath = "/usr/local/var/tanya/data/vectors/chunks.bolt"
	}

	if cfg.Vector.Type == "" {
		cfg.Vector.Type = "bolt"
	}
	if cfg.Vector.Qdrant.URL == "" {
		cfg.Vector.Qdrant.URL = "http://localhost:6333"
	}
	if cfg.Vector.Qdrant.APIKeyEnv == "" {
		cfg.Vector.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
	}
	if cfg.Vector.Qdrant.CollectionPrefix == "" {
		cfg.Vector.Qdrant.CollectionPrefix = "tanya_"
	}
	if cfg.Vector.Qdrant.Timeout == 0 {
		cfg.Vector.Qdrant.Timeout = 30 * time.Second
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-ada-002"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 60 * time.Second
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}

	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-3.5-turbo"
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 90 * time.Second
	}

	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = 1000
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.GlobalTopK == 0 {
		cfg.Retrieval.GlobalTopK = 15
	}
	if cfg.Retrieval.MaxSources == 0 {
		cfg.Retrieval.MaxSources = 1
	}
	if cfg.Retrieval.GlobalMaxSources == 0 {
		cfg.Retrieval.GlobalMaxSources = 3
	}
	if cfg.Retrieval.CharBudget == 0 {
		cfg.Retrieval.CharBudget = 6000
	}
	if cfg.Retrieval.FederatedTimeout == 0 {
		cfg.Retrieval.FederatedTimeout = 10 * time.Second
	}
	if cfg.Retrieval.FederatedConcurrency == 0 {
		cfg.Retrieval.FederatedConcurrency = 8
	}

	if cfg.Ingest.MaxFiles == 0 {
		cfg.Ingest.MaxFiles = 5
	}
	if cfg.Ingest.MaxUploadBytes == 0 {
		cfg.Ingest.MaxUploadBytes = 50 << 20
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".pdf"}
	}
}
