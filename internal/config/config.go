// Package config provides configuration loading and structs for the Tanya server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Vector     VectorConfig     `yaml:"vector"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Ingest     IngestConfig     `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// StorageConfig holds paths for the conversation database and the embedded vector store.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	VectorPath   string `yaml:"vector_path"`
}

// VectorConfig selects the vector store backend.
type VectorConfig struct {
	// Type is one of "bolt", "qdrant" or "memory".
	Type   string       `yaml:"type"`
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant REST settings. Each namespace maps to one collection.
type QdrantConfig struct {
	URL              string        `yaml:"url"`
	APIKeyEnv        string        `yaml:"api_key_env"`
	CollectionPrefix string        `yaml:"collection_prefix"`
	Timeout          time.Duration `yaml:"timeout"`
}

// EmbeddingConfig holds embedding service settings.
type EmbeddingConfig struct {
	// Provider is "openai" or "mock".
	Provider   string        `yaml:"provider"`
	BaseURL    string        `yaml:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	BatchSize  int           `yaml:"batch_size"`
	Timeout    time.Duration `yaml:"timeout"`
	CacheSize  int           `yaml:"cache_size"`
}

// GenerationConfig holds chat-completion settings.
type GenerationConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RetrievalConfig holds chunking, query and evidence selection settings.
type RetrievalConfig struct {
	ChunkSize            int           `yaml:"chunk_size"`
	ChunkOverlap         int           `yaml:"chunk_overlap"`
	TopK                 int           `yaml:"top_k"`
	GlobalTopK           int           `yaml:"global_top_k"`
	MaxSources           int           `yaml:"max_sources"`
	GlobalMaxSources     int           `yaml:"global_max_sources"`
	CharBudget           int           `yaml:"char_budget"`
	FederatedTimeout     time.Duration `yaml:"federated_timeout"`
	FederatedConcurrency int           `yaml:"federated_concurrency"`
	GlobalQuestionSuffix string        `yaml:"global_question_suffix"`
}

// IngestConfig holds upload limits and inbox watch settings.
type IngestConfig struct {
	MaxFiles       int      `yaml:"max_files"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	InboxDir       string   `yaml:"inbox_dir"`
	ProcessedDir   string   `yaml:"processed_dir"`
	Extensions     []string `yaml:"extensions"`
}

// APIKey returns the value of the environment variable named by APIKeyEnv.
func (e *EmbeddingConfig) APIKey() string { return lookupEnv(e.APIKeyEnv) }

// APIKey returns the value of the environment variable named by APIKeyEnv.
func (g *GenerationConfig) APIKey() string { return lookupEnv(g.APIKeyEnv) }

// APIKey returns the value of the environment variable named by APIKeyEnv.
func (q *QdrantConfig) APIKey() string { return lookupEnv(q.APIKeyEnv) }

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorPath = expandPath(cfg.Storage.VectorPath, configDir)
	if cfg.Ingest.InboxDir != "" {
		cfg.Ingest.InboxDir = expandPath(cfg.Ingest.InboxDir, configDir)
	}
	if cfg.Ingest.ProcessedDir != "" {
		cfg.Ingest.ProcessedDir = expandPath(cfg.Ingest.ProcessedDir, configDir)
	}

	return cfg, nil
}

// Validate reports settings that defaults cannot repair.
func Validate(cfg *Config) error {
	switch cfg.Vector.Type {
	case "bolt", "qdrant", "memory":
	default:
		return fmt.Errorf("unknown vector store type %q", cfg.Vector.Type)
	}
	switch cfg.Embedding.Provider {
	case "openai", "mock":
	default:
		return fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	if cfg.Retrieval.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap (%d) must not be negative", cfg.Retrieval.ChunkOverlap)
	}
	if cfg.Retrieval.ChunkOverlap >= cfg.Retrieval.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)",
			cfg.Retrieval.ChunkOverlap, cfg.Retrieval.ChunkSize)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
